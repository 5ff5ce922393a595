// Package sessions bounds the set of retained text-edit BIT sessions
// with an LRU, per §5's memory requirement.
package sessions

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/styrainc/rtvolume/internal/bit"
)

// DefaultCapacity is the number of sessions retained per volume absent
// an explicit override.
const DefaultCapacity = 256

// Store is a thread-safe, capacity-bounded map from session timestamp to
// its accumulated-drift BIT. It implements dispatch.Sessions.
type Store struct {
	mu      sync.Mutex
	cache   *lru.Cache[uint64, *bit.Tree]
	onEvict func()
}

// New returns a Store with the given capacity. onEvict, if non-nil, is
// called once per eviction (used to drive the sessions_evicted metric).
func New(capacity int, onEvict func()) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{onEvict: onEvict}
	cache, err := lru.NewWithEvict[uint64, *bit.Tree](capacity, func(uint64, *bit.Tree) {
		if s.onEvict != nil {
			s.onEvict()
		}
	})
	if err != nil {
		// Only returns an error for a non-positive size, guarded above.
		panic(err)
	}
	s.cache = cache
	return s
}

// Get returns the session's BIT, if it's still retained.
func (s *Store) Get(timestamp uint64) (*bit.Tree, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(timestamp)
}

// Commit installs tree as the current state for timestamp, used both to
// install a fresh empty session (§4.5 step 3) and to persist accumulated
// drift back after a successful text-patch apply.
func (s *Store) Commit(timestamp uint64, tree *bit.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(timestamp, tree)
}

// Len reports the number of retained sessions, for diagnostics/tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
