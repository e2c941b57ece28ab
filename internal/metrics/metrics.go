// Package metrics exposes Prometheus instrumentation for the feed pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "feedformatter"

// Cache outcomes.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheBypass = "bypass"
)

type Metrics struct {
	requests       *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	upstream       *prometheus.CounterVec
	upstreamTime   prometheus.Histogram
	renderDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Feed requests by feed and HTTP status",
		}, []string{"feed", "status"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by outcome",
		}, []string{"outcome"}),
		upstream: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fetches_total",
			Help:      "Upstream playlist fetches by outcome",
		}, []string{"outcome"}),
		upstreamTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_seconds",
			Help:      "Time spent fetching upstream playlists",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_seconds",
			Help:      "Time spent rendering feed templates",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"template"}),
	}
}

// A nil *Metrics is valid and records nothing.

func (m *Metrics) ObserveRequest(feed string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(feed, statusLabel(status)).Inc()
}

func (m *Metrics) ObserveCache(outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveUpstream(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(outcome).Inc()
	m.upstreamTime.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRender(template string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(template).Observe(elapsed.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300:
		return "2xx"
	default:
		return "other"
	}
}
