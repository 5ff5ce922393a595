// Package volumefs implements the uniform file store: MemFS (fast,
// in-memory), DurableFS (chunked, backed by a kvstore.KVStore), and
// TieredFS (write-through composite reading from the fastest tier).
//
// Paths are flat keys with a leading '/'; there are no directory
// entities. Readdir(prefix) returns every key that starts with prefix.
package volumefs

import "context"

// FS is the uniform interface implemented by every tier.
type FS interface {
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path string, content string) error
	Unlink(ctx context.Context, path string) error
	Readdir(ctx context.Context, prefix string) ([]string, error)
	Clear(ctx context.Context) error
}
