package volumefs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/styrainc/rtvolume/internal/kvstore"
)

// MaxChunkBytes is the largest number of bytes stored under a single
// chunk key, matching the underlying KV value-size budget described in
// the wire/on-disk layout.
const MaxChunkBytes = 131072

const (
	metaPrefix  = "meta::"
	chunkPrefix = "chunk::"
)

type fileMeta struct {
	Chunks []string `json:"chunks"`
}

// DurableFS stores each file as a meta record (the ordered list of chunk
// keys) plus one key per <=MaxChunkBytes chunk, on top of a
// kvstore.KVStore.
type DurableFS struct {
	kv kvstore.KVStore
}

// NewDurableFS wraps kv as a DurableFS.
func NewDurableFS(kv kvstore.KVStore) *DurableFS {
	return &DurableFS{kv: kv}
}

func metaKey(path string) string { return metaPrefix + path }

func chunkKey(path string, i int) string { return fmt.Sprintf("%s%s::%d", chunkPrefix, path, i) }

func (d *DurableFS) ReadFile(ctx context.Context, path string) (string, error) {
	raw, err := d.kv.Get(ctx, metaKey(path))
	if err != nil {
		return "", err
	}
	var meta fileMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return "", err
	}
	if len(meta.Chunks) == 0 {
		return "", nil
	}
	chunks, err := d.kv.GetMany(ctx, meta.Chunks)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, k := range meta.Chunks {
		c, ok := chunks[k]
		if !ok {
			return "", kvstore.NotFound(k)
		}
		b.Write(c)
	}
	return b.String(), nil
}

func (d *DurableFS) WriteFile(ctx context.Context, path string, content string) error {
	body := []byte(content)
	var keys []string
	values := map[string][]byte{}
	for off := 0; off < len(body); off += MaxChunkBytes {
		end := off + MaxChunkBytes
		if end > len(body) {
			end = len(body)
		}
		k := chunkKey(path, len(keys))
		values[k] = body[off:end]
		keys = append(keys, k)
	}

	// Remember the previous version's chunk keys, so that chunks the new,
	// shorter content no longer covers are deleted once meta is rewritten.
	prevKeys, _ := d.previousChunkKeys(ctx, path)

	if err := d.kv.PutMany(ctx, values); err != nil {
		return err
	}
	meta, err := json.Marshal(fileMeta{Chunks: keys})
	if err != nil {
		return err
	}
	if err := d.kv.Put(ctx, metaKey(path), meta); err != nil {
		return err
	}
	if stale := staleChunks(prevKeys, keys); len(stale) > 0 {
		_ = d.kv.DeleteMany(ctx, stale)
	}
	return nil
}

func (d *DurableFS) previousChunkKeys(ctx context.Context, path string) ([]string, error) {
	raw, err := d.kv.Get(ctx, metaKey(path))
	if err != nil {
		return nil, err
	}
	var meta fileMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return meta.Chunks, nil
}

func staleChunks(prev, next []string) []string {
	keep := make(map[string]bool, len(next))
	for _, k := range next {
		keep[k] = true
	}
	var stale []string
	for _, k := range prev {
		if !keep[k] {
			stale = append(stale, k)
		}
	}
	return stale
}

func (d *DurableFS) Unlink(ctx context.Context, path string) error {
	raw, err := d.kv.Get(ctx, metaKey(path))
	if err != nil {
		if kvstore.IsNotFound(err) {
			return nil
		}
		return err
	}
	var meta fileMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return err
	}
	if err := d.kv.Delete(ctx, metaKey(path)); err != nil {
		return err
	}
	if len(meta.Chunks) > 0 {
		return d.kv.DeleteMany(ctx, meta.Chunks)
	}
	return nil
}

func (d *DurableFS) Readdir(ctx context.Context, prefix string) ([]string, error) {
	metas, err := d.kv.List(ctx, metaPrefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(metas))
	for k := range metas {
		out = append(out, strings.TrimPrefix(k, metaPrefix))
	}
	return out, nil
}

func (d *DurableFS) Clear(ctx context.Context) error {
	return d.kv.DeleteAll(ctx)
}
