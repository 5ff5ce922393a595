package volumemanager

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/styrainc/rtvolume/internal/metrics"
	"github.com/styrainc/rtvolume/pkg/api"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return New(Config{
		DataDir: t.TempDir(),
		Metrics: metrics.New(),
		Logger:  zerolog.Nop(),
	})
}

func TestGetIsLazyAndMemoized(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	v1, err := m.Get(ctx, "ephemeral:scratch")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	v2, err := m.Get(ctx, "ephemeral:scratch")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v1 != v2 {
		t.Fatal("expected the same *actor.Volume on repeat Get")
	}
	if !v1.Ephemeral() {
		t.Fatal("expected ephemeral:-prefixed id to produce an ephemeral volume")
	}
}

func TestDurableVolumeIsNotEphemeral(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	v, err := m.Get(ctx, "project-42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Ephemeral() {
		t.Fatal("expected non-prefixed id to produce a durable volume")
	}
}

func TestHydrationSurvivesManagerRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m1 := New(Config{DataDir: dir, Metrics: metrics.New(), Logger: zerolog.Nop()})
	v, err := m1.Get(ctx, "proj")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	content := "hello"
	_, err = v.Patch(ctx, api.VolumePatchRequest{Patches: []api.FilePatch{
		api.NewTextSetPatch("/a.txt", &content),
	}})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}

	if err := m1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2 := New(Config{DataDir: dir, Metrics: metrics.New(), Logger: zerolog.Nop()})
	v2, err := m2.Get(ctx, "proj")
	if err != nil {
		t.Fatalf("Get after restart: %v", err)
	}
	listed, err := v2.List(ctx, "/", "true")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if *listed.FS["/a.txt"].Content != "hello" {
		t.Fatalf("content after rehydration = %v", listed.FS["/a.txt"].Content)
	}
}
