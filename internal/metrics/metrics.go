// Package metrics defines the prometheus instruments emitted by the
// volume actor and HTTP surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the counters/histograms/gauges a Volume reports.
// Construct one with New and register it with a prometheus.Registerer;
// volumes share a single process-wide Metrics value. No instrument
// carries a volume_id label.
type Metrics struct {
	PatchBatches     *prometheus.CounterVec
	PatchResults     *prometheus.CounterVec
	CommitDuration   prometheus.Histogram
	SessionsEvicted  prometheus.Counter
	SubscribersGauge prometheus.Gauge
	BroadcastEvents  prometheus.Counter
}

// New constructs a Metrics bundle without registering it.
func New() *Metrics {
	return &Metrics{
		PatchBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtvolume_patch_batches_total",
			Help: "PATCH batches processed, labeled by outcome.",
		}, []string{"result"}),
		PatchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtvolume_patch_results_total",
			Help: "Per-patch results, labeled by patch kind and acceptance.",
		}, []string{"kind", "accepted"}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtvolume_commit_duration_seconds",
			Help:    "Time spent on one PATCH batch: lock acquisition, apply, commit gate and broadcast.",
			Buckets: prometheus.DefBuckets,
		}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtvolume_sessions_evicted_total",
			Help: "Text sessions evicted from the per-volume LRU before use.",
		}),
		SubscribersGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtvolume_subscribers_connected",
			Help: "Currently connected subscribers, summed across volumes.",
		}),
		BroadcastEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtvolume_broadcast_events_total",
			Help: "ServerEvents broadcast to subscribers after a committed batch.",
		}),
	}
}

// MustRegister registers every instrument with reg, panicking on
// duplicate registration (mirrors prometheus.MustRegister's contract,
// intended for process startup).
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.PatchBatches,
		m.PatchResults,
		m.CommitDuration,
		m.SessionsEvicted,
		m.SubscribersGauge,
		m.BroadcastEvents,
	)
}
