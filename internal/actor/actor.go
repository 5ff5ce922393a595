// Package actor implements the Volume Actor: the single-writer
// concurrency boundary that serialises PATCH/LIST/PUT requests for one
// volume, orchestrating the file locker, patch dispatcher, tiered
// store, session registry, and subscriber broadcast.
package actor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/styrainc/rtvolume/internal/bit"
	"github.com/styrainc/rtvolume/internal/dispatch"
	"github.com/styrainc/rtvolume/internal/filelock"
	"github.com/styrainc/rtvolume/internal/metrics"
	"github.com/styrainc/rtvolume/internal/sessions"
	"github.com/styrainc/rtvolume/internal/subscriber"
	"github.com/styrainc/rtvolume/internal/volumefs"
	"github.com/styrainc/rtvolume/pkg/api"
)

// Volume is one collaborative filesystem, identified by its id. Patch,
// List and Put serialise against each other via mu, implementing
// the single-writer requirement; external readers never observe an
// in-flight batch's staged state because staging lives in dispatch's
// local variables until the commit gate runs.
type Volume struct {
	id        string
	ephemeral bool

	fs       volumefs.FS
	locker   *filelock.Locker
	sessions *sessions.Store
	subs     *subscriber.Registry
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu        sync.Mutex
	timestamp uint64
}

// Option configures a Volume at construction.
type Option func(*Volume)

// WithSessionCapacity overrides the default text-session LRU capacity.
func WithSessionCapacity(capacity int) Option {
	return func(v *Volume) {
		v.sessions = sessions.New(capacity, v.onSessionEvicted)
	}
}

// WithLogger attaches a base logger; the actor adds a volume_id field.
func WithLogger(logger zerolog.Logger) Option {
	return func(v *Volume) { v.log = logger }
}

// New constructs a Volume backed by fs. The caller supplies fs already
// composed to the right tiering; volumemanager passes a
// volumefs.NewTieredFS of a MemFS over a DurableFS for every volume,
// with the DurableFS on an in-memory store for ephemeral ones.
func New(id string, fs volumefs.FS, m *metrics.Metrics, ephemeral bool, opts ...Option) *Volume {
	v := &Volume{
		id:        id,
		ephemeral: ephemeral,
		fs:        fs,
		locker:    filelock.New(),
		subs:      subscriber.New(),
		metrics:   m,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.sessions == nil {
		v.sessions = sessions.New(sessions.DefaultCapacity, v.onSessionEvicted)
	}
	v.log = v.log.With().Str("volume_id", id).Logger()
	v.sessions.Commit(0, bit.New())
	return v
}

func (v *Volume) onSessionEvicted() {
	if v.metrics != nil {
		v.metrics.SessionsEvicted.Inc()
	}
}

func (v *Volume) nextTimestamp() uint64 {
	now := uint64(time.Now().UnixMilli())
	if now <= v.timestamp {
		now = v.timestamp + 1
	}
	v.timestamp = now
	return now
}

// Patch runs one PATCH batch to completion: lock, apply, advance
// session, commit, broadcast. It implements the Idle -> Locked ->
// Applied -> {Committed -> Broadcast -> Idle | Rejected -> Idle} state
// machine; every step after lock acquisition runs to completion even
// if ctx is cancelled mid-flight, per the commit window's
// uninterruptibility requirement.
func (v *Volume) Patch(ctx context.Context, req api.VolumePatchRequest) (api.VolumePatchResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	start := time.Now()
	paths := make([]string, len(req.Patches))
	for i, p := range req.Patches {
		paths[i] = p.Path
	}
	guard := v.locker.LockMany(paths)
	defer guard.Release()

	results, err := dispatch.Apply(ctx, v.fs, v.sessions, req.Patches)
	if err != nil {
		v.log.Error().Err(err).Msg("patch apply phase failed")
		return api.VolumePatchResponse{}, err
	}

	timestamp := v.nextTimestamp()
	v.sessions.Commit(timestamp, bit.New())

	allAccepted := true
	for _, r := range results {
		if !r.Accepted {
			allAccepted = false
			break
		}
	}

	if allAccepted {
		v.commit(ctx, results)
		for _, r := range results {
			if !r.Accepted {
				allAccepted = false
			}
		}
	}

	if allAccepted {
		v.broadcast(req.MessageID, timestamp, results)
		v.metrics.PatchBatches.WithLabelValues("committed").Inc()
	} else {
		v.metrics.PatchBatches.WithLabelValues("rejected").Inc()
	}
	for _, r := range results {
		v.metrics.PatchResults.WithLabelValues(r.Kind.String(), acceptedLabel(r.Accepted)).Inc()
	}
	v.metrics.CommitDuration.Observe(time.Since(start).Seconds())

	return api.VolumePatchResponse{Timestamp: timestamp, Results: results}, nil
}

// commit writes every accepted result to the tiered store. A per-file
// failure flips that result's Accepted to false and is logged; it does
// not abort the remaining writes, matching the "data already written to
// faster tiers is tolerated" failure semantics.
func (v *Volume) commit(ctx context.Context, results []api.FilePatchResult) {
	for i := range results {
		r := &results[i]
		if !r.Accepted {
			continue
		}
		var err error
		if r.Deleted {
			err = v.fs.Unlink(ctx, r.Path)
		} else {
			content := ""
			if r.Content != nil {
				content = *r.Content
			}
			err = v.fs.WriteFile(ctx, r.Path, content)
		}
		if err != nil {
			v.log.Warn().Err(err).Str("path", r.Path).Msg("commit write failed")
			r.Accepted = false
		}
	}
}

func (v *Volume) broadcast(messageID *string, timestamp uint64, results []api.FilePatchResult) {
	for _, r := range results {
		v.subs.Broadcast(api.ServerEvent{
			MessageID: messageID,
			Path:      r.Path,
			Timestamp: timestamp,
			Deleted:   r.Deleted,
		})
		v.metrics.BroadcastEvents.Inc()
	}
}

func acceptedLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}

// List returns a snapshot of the volume's files under path, including
// content for keys selected by the content selector: "true" (all),
// "false"/empty (none), or any other string treated as a prefix.
func (v *Volume) List(ctx context.Context, path, content string) (api.VolumeListResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	keys, err := v.fs.Readdir(ctx, path)
	if err != nil {
		return api.VolumeListResponse{}, fmt.Errorf("actor: readdir: %w", err)
	}

	fs := make(map[string]api.FileEntry, len(keys))
	for _, key := range keys {
		entry := api.FileEntry{}
		if includesContent(content, key) {
			body, err := v.fs.ReadFile(ctx, key)
			if err != nil {
				return api.VolumeListResponse{}, fmt.Errorf("actor: read %s: %w", key, err)
			}
			entry.Content = &body
		}
		fs[key] = entry
	}

	return api.VolumeListResponse{Timestamp: v.timestamp, VolumeID: v.id, FS: fs}, nil
}

func includesContent(selector, path string) bool {
	switch selector {
	case "true":
		return true
	case "false", "":
		return false
	default:
		return strings.HasPrefix(path, selector)
	}
}

// Put replaces the entire volume contents. No text-session invalidation
// is required: no text-patch can meaningfully refer to a pre-clear
// session once every file is gone.
func (v *Volume) Put(ctx context.Context, req api.PutRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.fs.Clear(ctx); err != nil {
		return fmt.Errorf("actor: clear: %w", err)
	}

	p := pool.New().WithErrors()
	for path, entry := range req {
		path, entry := path, entry
		p.Go(func() error {
			content := ""
			if entry.Content != nil {
				content = *entry.Content
			}
			return v.fs.WriteFile(ctx, path, content)
		})
	}
	if err := p.Wait(); err != nil {
		return fmt.Errorf("actor: put: %w", err)
	}
	return nil
}

// Subscribe registers sink to receive this volume's ServerEvents until
// unsubscribed.
func (v *Volume) Subscribe(sink subscriber.Sink) subscriber.Subscription {
	sub := v.subs.Subscribe(sink)
	if v.metrics != nil {
		v.metrics.SubscribersGauge.Inc()
	}
	return sub
}

// Unsubscribe removes sub and updates the connected-subscriber gauge.
func (v *Volume) Unsubscribe(sub subscriber.Subscription) {
	sub.Unsubscribe()
	if v.metrics != nil {
		v.metrics.SubscribersGauge.Dec()
	}
}

// ID returns the volume's identifier.
func (v *Volume) ID() string { return v.id }

// Ephemeral reports whether this volume has no durable tier.
func (v *Volume) Ephemeral() bool { return v.ephemeral }
