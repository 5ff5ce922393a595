package volumefs

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// TieredFS is a write-through composite: reads go to the fastest
// (first) tier only; writes, unlinks, and clears fan out to every tier
// concurrently, surfacing the first error encountered, if any.
type TieredFS struct {
	tiers []FS
}

// NewTieredFS builds a TieredFS from fastest to slowest. At least one
// tier must be supplied.
func NewTieredFS(tiers ...FS) *TieredFS {
	if len(tiers) == 0 {
		panic("volumefs: TieredFS requires at least one tier")
	}
	return &TieredFS{tiers: tiers}
}

func (t *TieredFS) fastest() FS { return t.tiers[0] }

func (t *TieredFS) ReadFile(ctx context.Context, path string) (string, error) {
	return t.fastest().ReadFile(ctx, path)
}

func (t *TieredFS) Readdir(ctx context.Context, prefix string) ([]string, error) {
	return t.fastest().Readdir(ctx, prefix)
}

func (t *TieredFS) WriteFile(ctx context.Context, path string, content string) error {
	p := pool.New().WithErrors()
	for _, tier := range t.tiers {
		tier := tier
		p.Go(func() error { return tier.WriteFile(ctx, path, content) })
	}
	return p.Wait()
}

func (t *TieredFS) Unlink(ctx context.Context, path string) error {
	p := pool.New().WithErrors()
	for _, tier := range t.tiers {
		tier := tier
		p.Go(func() error { return tier.Unlink(ctx, path) })
	}
	return p.Wait()
}

func (t *TieredFS) Clear(ctx context.Context) error {
	p := pool.New().WithErrors()
	for _, tier := range t.tiers {
		tier := tier
		p.Go(func() error { return tier.Clear(ctx) })
	}
	return p.Wait()
}
