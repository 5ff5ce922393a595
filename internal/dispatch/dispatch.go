// Package dispatch implements the apply phase of a PATCH batch:
// classifying each patch by kind and applying it against a read view of
// the volume's files, with no side effects outside the BIT sessions and
// an in-memory staging map local to the batch.
package dispatch

import (
	"context"
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/styrainc/rtvolume/internal/bit"
	"github.com/styrainc/rtvolume/internal/kvstore"
	"github.com/styrainc/rtvolume/internal/textcrdt"
	"github.com/styrainc/rtvolume/internal/volumefs"
	"github.com/styrainc/rtvolume/pkg/api"
)

// Sessions is the subset of the volume actor's session store the
// dispatcher needs: looking up the BIT baseline for a text-patch
// timestamp, and committing accumulated drift back into it on success.
type Sessions interface {
	Get(timestamp uint64) (*bit.Tree, bool)
	Commit(timestamp uint64, tree *bit.Tree)
}

type stagedEntry struct {
	content string
	deleted bool
}

// Apply runs every patch in the batch, in order, against fs and sessions,
// returning exactly one result per input patch (§3 I5). It never returns
// an error for per-patch problems — those are reflected as
// accepted:false entries — only for conditions that make the whole batch
// impossible to evaluate (none currently exist, but the signature leaves
// room for e.g. a context cancellation check per iteration).
func Apply(ctx context.Context, fs volumefs.FS, sessions Sessions, patches []api.FilePatch) ([]api.FilePatchResult, error) {
	staged := map[string]stagedEntry{}
	results := make([]api.FilePatchResult, 0, len(patches))

	read := func(path string) (content string, exists bool, err error) {
		if se, ok := staged[path]; ok {
			if se.deleted {
				return "", false, nil
			}
			return se.content, true, nil
		}
		c, err := fs.ReadFile(ctx, path)
		if err != nil {
			if kvstore.IsNotFound(err) {
				return "", false, nil
			}
			return "", false, err
		}
		return c, true, nil
	}

	for _, p := range patches {
		switch p.Kind {
		case api.KindJSON:
			results = append(results, applyJSON(p, read, staged))
		case api.KindTextSet:
			results = append(results, applyTextSet(p, staged))
		case api.KindTextPatch:
			results = append(results, applyTextPatch(p, read, sessions, staged))
		default:
			cur, _, _ := read(p.Path)
			results = append(results, rejected(p.Kind, p.Path, cur))
		}
	}
	return results, nil
}

func rejected(kind api.PatchKind, path, content string) api.FilePatchResult {
	return api.FilePatchResult{Kind: kind, Path: path, Accepted: false, Content: &content}
}

func applyJSON(p api.FilePatch, read func(string) (string, bool, error), staged map[string]stagedEntry) api.FilePatchResult {
	current, exists, err := read(p.Path)
	if err != nil {
		return rejected(p.Kind, p.Path, "")
	}
	if !exists {
		current = "{}"
	}

	newContent, err := applyJSONPatch(current, p.JSONPatches)
	if err != nil {
		return rejected(p.Kind, p.Path, current)
	}

	deleted := newContent == "null"
	staged[p.Path] = stagedEntry{content: newContent, deleted: deleted}
	return api.FilePatchResult{Kind: p.Kind, Path: p.Path, Accepted: true, Content: &newContent, Deleted: deleted}
}

func applyTextSet(p api.FilePatch, staged map[string]stagedEntry) api.FilePatchResult {
	content := ""
	if p.Content != nil {
		content = *p.Content
	}
	staged[p.Path] = stagedEntry{content: content}
	return api.FilePatchResult{Kind: p.Kind, Path: p.Path, Accepted: true, Content: &content}
}

func applyTextPatch(p api.FilePatch, read func(string) (string, bool, error), sessions Sessions, staged map[string]stagedEntry) api.FilePatchResult {
	current, _, err := read(p.Path)
	if err != nil {
		return rejected(p.Kind, p.Path, "")
	}

	session, ok := sessions.Get(p.Timestamp)
	if !ok {
		return rejected(p.Kind, p.Path, current)
	}

	ops := make([]textcrdt.Op, len(p.Operations))
	for i, o := range p.Operations {
		if o.IsInsert() {
			ops[i] = textcrdt.Ins(o.At, *o.Text)
		} else {
			length := 0
			if o.Length != nil {
				length = *o.Length
			}
			ops[i] = textcrdt.Del(o.At, length)
		}
	}

	newDoc, newSession, err := textcrdt.Apply(current, ops, session)
	if err != nil {
		return rejected(p.Kind, p.Path, current)
	}
	sessions.Commit(p.Timestamp, newSession)
	staged[p.Path] = stagedEntry{content: newDoc}
	return api.FilePatchResult{Kind: p.Kind, Path: p.Path, Accepted: true, Content: &newDoc}
}

// applyJSONPatch applies an RFC 6902 patch sequence to current, the
// file's parsed-JSON content (or "{}" for a missing file, per caller).
// Removing the document root ({"op":"remove","path":""}) is special
// cased to yield the JSON literal "null", since the underlying library
// operates on JSON objects/arrays and rejects removing the root value
// outright.
func applyJSONPatch(current string, ops []json.RawMessage) (string, error) {
	opsJSON, err := json.Marshal(ops)
	if err != nil {
		return current, err
	}
	patch, err := jsonpatch.DecodePatch(opsJSON)
	if err != nil {
		return current, err
	}

	out, err := patch.Apply([]byte(current))
	if err != nil {
		if isRootRemoval(ops) {
			return "null", nil
		}
		return current, err
	}
	return string(out), nil
}

func isRootRemoval(ops []json.RawMessage) bool {
	if len(ops) != 1 {
		return false
	}
	var op struct {
		Op   string `json:"op"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(ops[0], &op); err != nil {
		return false
	}
	return op.Op == "remove" && op.Path == ""
}
