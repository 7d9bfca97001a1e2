// Package metrics exposes terminal activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records backend request, poll and chat activity.
type Recorder struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	staleDrops  *prometheus.CounterVec
	chatTotal   *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	snapshotAge prometheus.Gauge
}

// New registers the metrics with reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration against the default registry.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldtracer_backend_requests_total",
				Help: "Backend requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goldtracer_backend_request_duration_seconds",
				Help:    "Backend request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		staleDrops: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldtracer_stale_responses_total",
				Help: "Responses discarded because a newer request was already applied",
			},
			[]string{"kind"},
		),
		chatTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldtracer_chat_requests_total",
				Help: "Chat generation requests by outcome",
			},
			[]string{"outcome"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "goldtracer_last_price",
				Help: "Last price seen in the dashboard snapshot",
			},
			[]string{"symbol"},
		),
		snapshotAge: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "goldtracer_snapshot_applied_timestamp_seconds",
				Help: "Unix time the current snapshot was applied",
			},
		),
	}
}

// ObserveRequest records one backend request.
func (r *Recorder) ObserveRequest(op, outcome string, d time.Duration) {
	r.requests.WithLabelValues(op, outcome).Inc()
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordStale records a discarded stale response of the given kind.
func (r *Recorder) RecordStale(kind string) {
	r.staleDrops.WithLabelValues(kind).Inc()
}

// RecordChat records a chat outcome.
func (r *Recorder) RecordChat(outcome string) {
	r.chatTotal.WithLabelValues(outcome).Inc()
}

// RecordPrice records the last price for a symbol.
func (r *Recorder) RecordPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordSnapshotApplied stamps the time a snapshot was applied.
func (r *Recorder) RecordSnapshotApplied(at time.Time) {
	r.snapshotAge.Set(float64(at.Unix()))
}
