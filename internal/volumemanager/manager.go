// Package volumemanager lazily constructs and retains one actor.Volume
// per volume id, hydrating each durable volume's fast tier from its KV
// store on first reference.
package volumemanager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/styrainc/rtvolume/internal/actor"
	"github.com/styrainc/rtvolume/internal/kvstore"
	"github.com/styrainc/rtvolume/internal/metrics"
	"github.com/styrainc/rtvolume/internal/volumefs"
)

// ephemeralPrefix marks a volume id as memory-only: no durable tier, no
// hydration, contents vanish on restart.
const ephemeralPrefix = "ephemeral:"

// Manager holds every volume touched so far, keyed by id. Construction
// of a new volume (including durable-tier hydration) happens under mu,
// blocking concurrent request handling for the duration, per the
// hydration contract.
type Manager struct {
	dataDir         string
	metrics         *metrics.Metrics
	log             zerolog.Logger
	sessionCapacity int

	mu      sync.Mutex
	volumes map[string]*actor.Volume
	stores  map[string]kvstore.KVStore
}

// Config carries the construction-time settings a Manager needs.
type Config struct {
	DataDir         string
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
	SessionCapacity int
}

// New returns an empty Manager; volumes are created lazily by Get.
func New(cfg Config) *Manager {
	return &Manager{
		dataDir:         cfg.DataDir,
		metrics:         cfg.Metrics,
		log:             cfg.Logger,
		sessionCapacity: cfg.SessionCapacity,
		volumes:         map[string]*actor.Volume{},
		stores:          map[string]kvstore.KVStore{},
	}
}

// Close closes every volume's underlying durable store. Intended for
// process shutdown; Get must not be called concurrently with Close.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, kv := range m.stores {
		if err := kv.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("volumemanager: close %s: %w", id, err)
		}
	}
	return firstErr
}

// Get returns the Volume for id, constructing and hydrating it on first
// reference.
func (m *Manager) Get(ctx context.Context, id string) (*actor.Volume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.volumes[id]; ok {
		return v, nil
	}

	v, err := m.build(ctx, id)
	if err != nil {
		return nil, err
	}
	m.volumes[id] = v
	return v, nil
}

func (m *Manager) build(ctx context.Context, id string) (*actor.Volume, error) {
	ephemeral := strings.HasPrefix(id, ephemeralPrefix)

	opts := []actor.Option{actor.WithLogger(m.log)}
	if m.sessionCapacity > 0 {
		opts = append(opts, actor.WithSessionCapacity(m.sessionCapacity))
	}

	if ephemeral {
		mem := volumefs.NewMemFS()
		kv, err := kvstore.OpenBadger("", true)
		if err != nil {
			return nil, fmt.Errorf("volumemanager: open in-memory store for %s: %w", id, err)
		}
		fs := volumefs.NewTieredFS(mem, volumefs.NewDurableFS(kv))
		m.stores[id] = kv
		return actor.New(id, fs, m.metrics, true, opts...), nil
	}

	dir := filepath.Join(m.dataDir, id)
	kv, err := kvstore.OpenBadger(dir, false)
	if err != nil {
		return nil, fmt.Errorf("volumemanager: open store for %s: %w", id, err)
	}
	durable := volumefs.NewDurableFS(kv)
	mem := volumefs.NewMemFS()

	if err := hydrate(ctx, mem, durable); err != nil {
		return nil, fmt.Errorf("volumemanager: hydrate %s: %w", id, err)
	}

	fs := volumefs.NewTieredFS(mem, durable)
	m.stores[id] = kv
	m.log.Info().Str("volume_id", id).Msg("volume loaded")
	return actor.New(id, fs, m.metrics, false, opts...), nil
}

// hydrate loads every file from durable into mem, run once at volume
// construction before the volume accepts any request.
func hydrate(ctx context.Context, mem *volumefs.MemFS, durable *volumefs.DurableFS) error {
	paths, err := durable.Readdir(ctx, "")
	if err != nil {
		return err
	}
	files := make(map[string]string, len(paths))
	for _, p := range paths {
		content, err := durable.ReadFile(ctx, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		files[p] = content
	}
	mem.Seed(files)
	return nil
}
