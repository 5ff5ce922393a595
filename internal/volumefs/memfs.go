package volumefs

import (
	"context"
	"strings"
	"sync"

	"github.com/styrainc/rtvolume/internal/kvstore"
)

// MemFS is a pure in-memory FS: a map from path to content, guarded by a
// read-write mutex. read_file on a missing key fails with ENOENT.
type MemFS struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewMemFS returns an empty MemFS.
func NewMemFS() *MemFS {
	return &MemFS{files: map[string]string{}}
}

func (m *MemFS) ReadFile(_ context.Context, path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.files[path]
	if !ok {
		return "", kvstore.NotFound(path)
	}
	return v, nil
}

func (m *MemFS) WriteFile(_ context.Context, path string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}

func (m *MemFS) Unlink(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *MemFS) Readdir(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemFS) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = map[string]string{}
	return nil
}

// Seed loads content directly into the map, used at volume boot to
// hydrate MemFS from the durable tier without going through WriteFile's
// (otherwise harmless) extra lock round trip per file.
func (m *MemFS) Seed(files map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, c := range files {
		m.files[p] = c
	}
}
