// Package filelock implements a per-path mutex set: one sync.Mutex per
// path, lazily created and retained, with a LockMany operation that
// acquires a deduplicated set of path locks concurrently. Waiters on the
// same path are not granted the lock in FIFO order.
package filelock

import (
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Locker is a set of per-path mutexes, keyed by path and created on
// first reference.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{locks: map[string]*sync.Mutex{}}
}

func (l *Locker) mutexFor(path string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[path]
	if !ok {
		m = &sync.Mutex{}
		l.locks[path] = m
	}
	return m
}

// Guard releases every mutex it holds when Release is called. Paths is
// preserved for diagnostics.
type Guard struct {
	paths []string
	mutxs []*sync.Mutex
}

// Release unlocks every mutex acquired by LockMany, in reverse order of
// the deduplicated path list.
func (g *Guard) Release() {
	for i := len(g.mutxs) - 1; i >= 0; i-- {
		g.mutxs[i].Unlock()
	}
}

// LockMany deduplicates paths (preserving first occurrence), then
// acquires one mutex per distinct path concurrently. Callers MUST
// deduplicate-by-contract upstream too; LockMany defends against the
// same path appearing twice in a single call deadlocking against itself.
func (l *Locker) LockMany(paths []string) *Guard {
	deduped := dedupe(paths)
	mutxs := make([]*sync.Mutex, len(deduped))
	for i, p := range deduped {
		mutxs[i] = l.mutexFor(p)
	}

	p := pool.New()
	for _, m := range mutxs {
		m := m
		p.Go(func() { m.Lock() })
	}
	p.Wait()

	return &Guard{paths: deduped, mutxs: mutxs}
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
