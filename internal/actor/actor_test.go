package actor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/styrainc/rtvolume/internal/metrics"
	"github.com/styrainc/rtvolume/internal/subscriber"
	"github.com/styrainc/rtvolume/internal/volumefs"
	"github.com/styrainc/rtvolume/pkg/api"
)

func newTestVolume(t *testing.T) *Volume {
	t.Helper()
	return New("V", volumefs.NewMemFS(), metrics.New(), true)
}

func strp(s string) *string { return &s }

type recordingSink struct {
	events []api.ServerEvent
}

func (r *recordingSink) Send(e api.ServerEvent) error {
	r.events = append(r.events, e)
	return nil
}

func TestPatchCreatesThreeFilesAndListReturnsThem(t *testing.T) {
	ctx := context.Background()
	v := newTestVolume(t)

	req := api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewJSONPatch("/home.json", []json.RawMessage{[]byte(`{"op":"add","path":"","value":{"title":"home"}}`)}),
		api.NewJSONPatch("/pdp.json", []json.RawMessage{[]byte(`{"op":"add","path":"","value":{"title":"pdp"}}`)}),
		api.NewTextSetPatch("/sections/ProductShelf.tsx", strp("BC")),
	}}

	resp, err := v.Patch(ctx, req)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	for _, r := range resp.Results {
		if !r.Accepted {
			t.Fatalf("result for %s rejected", r.Path)
		}
	}

	listed, err := v.List(ctx, "/", "true")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if listed.Timestamp != resp.Timestamp {
		t.Fatalf("list timestamp = %d, want %d", listed.Timestamp, resp.Timestamp)
	}
	if len(listed.FS) != 3 {
		t.Fatalf("len(FS) = %d, want 3", len(listed.FS))
	}
	if *listed.FS["/home.json"].Content != `{"title":"home"}` {
		t.Fatalf("home.json content = %v", listed.FS["/home.json"].Content)
	}
}

func TestListWithoutContentOmitsBytes(t *testing.T) {
	ctx := context.Background()
	v := newTestVolume(t)
	_, err := v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewTextSetPatch("/a.txt", strp("x")),
	}})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}

	listed, err := v.List(ctx, "/", "false")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	entry, ok := listed.FS["/a.txt"]
	if !ok {
		t.Fatal("expected /a.txt present")
	}
	if entry.Content != nil {
		t.Fatalf("expected nil content, got %v", *entry.Content)
	}
}

func TestPatchRejectedBatchLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	v := newTestVolume(t)
	_, err := v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewJSONPatch("/home.json", []json.RawMessage{[]byte(`{"op":"add","path":"","value":{"title":"home"}}`)}),
	}})
	if err != nil {
		t.Fatalf("seed Patch: %v", err)
	}

	ops := []json.RawMessage{
		[]byte(`{"op":"test","path":"/title","value":"not home"}`),
		[]byte(`{"op":"replace","path":"/title","value":"nope"}`),
	}
	resp, err := v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewJSONPatch("/home.json", ops),
	}})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if resp.Results[0].Accepted {
		t.Fatal("expected rejection")
	}

	listed, err := v.List(ctx, "/", "true")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if *listed.FS["/home.json"].Content != `{"title":"home"}` {
		t.Fatalf("home.json content changed: %v", *listed.FS["/home.json"].Content)
	}
}

func TestPatchTimestampMonotonicAcrossSuccessAndFailure(t *testing.T) {
	ctx := context.Background()
	v := newTestVolume(t)

	resp1, err := v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewTextSetPatch("/a.txt", strp("x")),
	}})
	if err != nil {
		t.Fatalf("Patch 1: %v", err)
	}

	ops := []json.RawMessage{[]byte(`{"op":"test","path":"/x","value":1}`)}
	resp2, err := v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewJSONPatch("/missing.json", ops),
	}})
	if err != nil {
		t.Fatalf("Patch 2: %v", err)
	}
	if resp2.Timestamp <= resp1.Timestamp {
		t.Fatalf("timestamp did not advance: %d -> %d", resp1.Timestamp, resp2.Timestamp)
	}
}

func TestPatchDeleteViaJSONPatchBroadcastsDeletedEvent(t *testing.T) {
	ctx := context.Background()
	v := newTestVolume(t)
	_, err := v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewJSONPatch("/home/home.json", []json.RawMessage{[]byte(`{"op":"add","path":"","value":{"hello":"world"}}`)}),
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	sink := &recordingSink{}
	sub := v.Subscribe(sink)
	defer v.Unsubscribe(sub)

	resp, err := v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewJSONPatch("/home/home.json", []json.RawMessage{[]byte(`{"op":"remove","path":""}`)}),
	}})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	wantResult := api.FilePatchResult{Kind: api.KindJSON, Path: "/home/home.json", Accepted: true, Deleted: true, Content: strp("null")}
	if diff := cmp.Diff(wantResult, resp.Results[0]); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	if len(sink.events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(sink.events))
	}
	wantEvent := api.ServerEvent{Path: "/home/home.json", Timestamp: resp.Timestamp, Deleted: true}
	if diff := cmp.Diff(wantEvent, sink.events[0]); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}

	listed, err := v.List(ctx, "/", "true")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, ok := listed.FS["/home/home.json"]; ok {
		t.Fatal("expected /home/home.json absent after delete")
	}
}

func TestSubscribeNoBroadcastOnRejectedBatch(t *testing.T) {
	ctx := context.Background()
	v := newTestVolume(t)
	sink := &recordingSink{}
	sub := v.Subscribe(sink)
	defer v.Unsubscribe(sub)

	ops := []json.RawMessage{[]byte(`{"op":"test","path":"/x","value":1}`)}
	_, err := v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewJSONPatch("/missing.json", ops),
	}})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events, got %d", len(sink.events))
	}
}

func TestPutReplacesVolumeContents(t *testing.T) {
	ctx := context.Background()
	v := newTestVolume(t)
	_, err := v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewTextSetPatch("/old.txt", strp("gone")),
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = v.Put(ctx, api.PutRequest{
		"/new.txt": api.FileEntry{Content: strp("fresh")},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	listed, err := v.List(ctx, "/", "true")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed.FS) != 1 {
		t.Fatalf("len(FS) = %d, want 1", len(listed.FS))
	}
	if *listed.FS["/new.txt"].Content != "fresh" {
		t.Fatalf("content = %v", *listed.FS["/new.txt"].Content)
	}
}

var _ subscriber.Sink = (*recordingSink)(nil)
