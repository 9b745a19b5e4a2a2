// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlItemsTotal       *prometheus.CounterVec
	crawlBytesTotal       *prometheus.CounterVec
	crawlUnitsTotal       prometheus.Counter
	crawlTargetsTotal     *prometheus.CounterVec
	rateLimitWaitSeconds  prometheus.Histogram
	searchRequestsSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redsift_items_total",
				Help: "Total number of items written, labeled by target and kind.",
			},
			[]string{"target", "kind"},
		)

		crawlBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redsift_bytes_flushed_total",
				Help: "Total number of bytes flushed to output units, labeled by target.",
			},
			[]string{"target"},
		)

		crawlUnitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "redsift_units_total",
				Help: "Total number of output units flushed.",
			},
		)

		crawlTargetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redsift_targets_total",
				Help: "Total number of targets processed, labeled by validation status.",
			},
			[]string{"status"},
		)

		rateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "redsift_rate_limit_wait_seconds",
				Help:    "Histogram of durations spent waiting on the shared rate limiter.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		searchRequestsSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redsift_search_request_duration_seconds",
				Help:    "Histogram of search request latencies, labeled by route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem counts one written item of a given kind ("post" or "comment").
func ObserveItem(target, kind string) {
	if crawlItemsTotal == nil {
		return
	}
	crawlItemsTotal.WithLabelValues(target, kind).Inc()
}

// ObserveFlush records a completed flush for target.
func ObserveFlush(target string, bytes int64) {
	if crawlBytesTotal == nil {
		return
	}
	crawlBytesTotal.WithLabelValues(target).Add(float64(bytes))
	crawlUnitsTotal.Inc()
}

// ObserveTarget counts a target outcome ("valid" or "invalid").
func ObserveTarget(status string) {
	if crawlTargetsTotal == nil {
		return
	}
	crawlTargetsTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimitWait records time spent blocked on the rate limiter.
func ObserveRateLimitWait(d time.Duration) {
	if rateLimitWaitSeconds == nil {
		return
	}
	rateLimitWaitSeconds.Observe(d.Seconds())
}

// ObserveSearchRequest records the latency of one search request.
func ObserveSearchRequest(route string, d time.Duration) {
	if searchRequestsSeconds == nil {
		return
	}
	searchRequestsSeconds.WithLabelValues(route).Observe(d.Seconds())
}
