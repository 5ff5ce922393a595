package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/styrainc/rtvolume/internal/bit"
	"github.com/styrainc/rtvolume/internal/volumefs"
	"github.com/styrainc/rtvolume/pkg/api"
)

type fakeSessions struct {
	m map[uint64]*bit.Tree
}

func newFakeSessions() *fakeSessions { return &fakeSessions{m: map[uint64]*bit.Tree{}} }

func (f *fakeSessions) Get(ts uint64) (*bit.Tree, bool) {
	t, ok := f.m[ts]
	return t, ok
}

func (f *fakeSessions) Commit(ts uint64, t *bit.Tree) { f.m[ts] = t }

func strp(s string) *string { return &s }

func TestApplyCreatesThreeFilesInOneBatch(t *testing.T) {
	ctx := context.Background()
	fs := volumefs.NewMemFS()
	sessions := newFakeSessions()

	patches := []api.FilePatch{
		api.NewJSONPatch("/home.json", []json.RawMessage{[]byte(`{"op":"add","path":"","value":{"title":"home"}}`)}),
		api.NewJSONPatch("/pdp.json", []json.RawMessage{[]byte(`{"op":"add","path":"","value":{"title":"pdp"}}`)}),
		api.NewTextSetPatch("/sections/ProductShelf.tsx", strp("BC")),
	}

	results, err := Apply(ctx, fs, sessions, patches)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := []api.FilePatchResult{
		{Kind: api.KindJSON, Path: "/home.json", Accepted: true, Content: strp(`{"title":"home"}`)},
		{Kind: api.KindJSON, Path: "/pdp.json", Accepted: true, Content: strp(`{"title":"pdp"}`)},
		{Kind: api.KindTextSet, Path: "/sections/ProductShelf.tsx", Accepted: true, Content: strp("BC")},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyTextPatchInsertion(t *testing.T) {
	ctx := context.Background()
	fs := volumefs.NewMemFS()
	_ = fs.WriteFile(ctx, "/sections/ProductShelf.tsx", "BC")
	sessions := newFakeSessions()
	sessions.Commit(10, bit.New())

	text := "A"
	patches := []api.FilePatch{
		api.NewTextPatch("/sections/ProductShelf.tsx", 10, []api.TextOp{{At: 0, Text: &text}}),
	}
	results, err := Apply(ctx, fs, sessions, patches)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := api.FilePatchResult{Kind: api.KindTextPatch, Path: "/sections/ProductShelf.tsx", Accepted: true, Content: strp("ABC")}
	if diff := cmp.Diff(want, results[0]); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyTextPatchStaleSessionRejected(t *testing.T) {
	ctx := context.Background()
	fs := volumefs.NewMemFS()
	_ = fs.WriteFile(ctx, "/f.txt", "hi")
	sessions := newFakeSessions() // no session installed for ts 99

	text := "x"
	patches := []api.FilePatch{
		api.NewTextPatch("/f.txt", 99, []api.TextOp{{At: 0, Text: &text}}),
	}
	results, err := Apply(ctx, fs, sessions, patches)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if results[0].Accepted {
		t.Fatal("expected rejection for stale session")
	}
	if *results[0].Content != "hi" {
		t.Fatalf("content = %s, want unchanged", *results[0].Content)
	}
}

func TestApplyConflictingJSONTestOp(t *testing.T) {
	ctx := context.Background()
	fs := volumefs.NewMemFS()
	_ = fs.WriteFile(ctx, "/home.json", `{"title":"home"}`)
	sessions := newFakeSessions()

	ops := []json.RawMessage{
		[]byte(`{"op":"test","path":"/title","value":"not home"}`),
		[]byte(`{"op":"replace","path":"/title","value":"nope"}`),
	}
	results, err := Apply(ctx, fs, sessions, []api.FilePatch{api.NewJSONPatch("/home.json", ops)})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if results[0].Accepted {
		t.Fatal("expected test-op failure to reject the patch")
	}
	if *results[0].Content != `{"title":"home"}` {
		t.Fatalf("content = %s, want unchanged", *results[0].Content)
	}
}

func TestApplyDeleteViaJSONPatch(t *testing.T) {
	ctx := context.Background()
	fs := volumefs.NewMemFS()
	_ = fs.WriteFile(ctx, "/home/home.json", `{"hello":"world"}`)
	sessions := newFakeSessions()

	ops := []json.RawMessage{[]byte(`{"op":"remove","path":""}`)}
	results, err := Apply(ctx, fs, sessions, []api.FilePatch{api.NewJSONPatch("/home/home.json", ops)})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := api.FilePatchResult{Kind: api.KindJSON, Path: "/home/home.json", Accepted: true, Deleted: true, Content: strp("null")}
	if diff := cmp.Diff(want, results[0]); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestApplySamePathLastTextSetWinsWithoutWriteThrough(t *testing.T) {
	ctx := context.Background()
	fs := volumefs.NewMemFS()
	sessions := newFakeSessions()

	patches := []api.FilePatch{
		api.NewTextSetPatch("/f.txt", strp("first")),
		api.NewTextSetPatch("/f.txt", strp("second")),
	}
	results, err := Apply(ctx, fs, sessions, patches)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if *results[1].Content != "second" {
		t.Fatalf("second result content = %s", *results[1].Content)
	}
	// fs itself must remain untouched until commit.
	if _, err := fs.ReadFile(ctx, "/f.txt"); err == nil {
		t.Fatal("Apply must not write through to fs before commit")
	}
}
