// Package metrics exposes Prometheus collectors for the crawler and API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal            *prometheus.CounterVec
	fetchBytesTotal         prometheus.Counter
	rateLimitWaitSeconds    prometheus.Histogram
	threadsVisitedTotal     *prometheus.CounterVec
	crawlCyclesTotal        *prometheus.CounterVec
	crawlCycleDurationSecs  prometheus.Histogram
	crawlInFlight           prometheus.Gauge
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDurationSecs *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamilarr_fetches_total",
				Help: "Total number of forum fetch attempts, labeled by result.",
			},
			[]string{"result"},
		)

		fetchBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tamilarr_fetch_bytes_total",
				Help: "Total number of bytes fetched from the forum.",
			},
		)

		rateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tamilarr_rate_limit_wait_seconds",
				Help:    "Histogram of time spent waiting on the global request throttle.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		threadsVisitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamilarr_threads_visited_total",
				Help: "Total number of thread visits, labeled by result.",
			},
			[]string{"result"},
		)

		crawlCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamilarr_crawl_cycles_total",
				Help: "Total number of crawl cycles, labeled by result.",
			},
			[]string{"result"},
		)

		crawlCycleDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tamilarr_crawl_cycle_duration_seconds",
				Help:    "Histogram of full crawl cycle durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		crawlInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tamilarr_crawl_in_flight",
				Help: "Number of thread visits currently in flight.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tamilarr_http_requests_total",
				Help: "Total number of API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tamilarr_http_request_duration_seconds",
				Help:    "Histogram of API request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch increments the fetch counters.
func ObserveFetch(result string, bytesFetched int) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(result).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.Add(float64(bytesFetched))
	}
}

// ObserveRateLimitWait records the duration of a throttle wait.
func ObserveRateLimitWait(duration time.Duration) {
	if rateLimitWaitSeconds == nil {
		return
	}
	rateLimitWaitSeconds.Observe(duration.Seconds())
}

// ObserveVisit increments the thread visit counter for the given result.
func ObserveVisit(result string) {
	if threadsVisitedTotal == nil {
		return
	}
	threadsVisitedTotal.WithLabelValues(result).Inc()
}

// ObserveCycle records one finished crawl cycle.
func ObserveCycle(result string, duration time.Duration) {
	if crawlCyclesTotal == nil {
		return
	}
	crawlCyclesTotal.WithLabelValues(result).Inc()
	crawlCycleDurationSecs.Observe(duration.Seconds())
}

// IncInFlight increments the in-flight visits gauge.
func IncInFlight() {
	if crawlInFlight == nil {
		return
	}
	crawlInFlight.Inc()
}

// DecInFlight decrements the in-flight visits gauge.
func DecInFlight() {
	if crawlInFlight == nil {
		return
	}
	crawlInFlight.Dec()
}

// ObserveHTTPRequest increments the API request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(duration.Seconds())
}
