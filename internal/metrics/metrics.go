// Package metrics exposes Prometheus collectors for the preview service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	previewResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_responses_total",
			Help: "Crawler preview responses, labeled by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	previewLookupDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_lookup_duration_seconds",
			Help:    "Histogram of pet point-lookup latencies, labeled by result.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	previewImageBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_image_bytes_total",
			Help: "Total image bytes streamed by the preview image proxy.",
		},
	)

	previewCrawlerHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_crawler_hits_total",
			Help: "Pet page requests classified as crawler traffic, labeled by matched pattern.",
		},
		[]string{"pattern"},
	)

	previewRateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_rate_limited_total",
			Help: "Crawler preview requests refused by the lookup rate limit, labeled by limiter key.",
		},
		[]string{"key"},
	)

	previewRateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_rate_limit_delay_seconds",
			Help:    "Time image fetches spent waiting on the per-host rate limiter.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"host"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePreview counts a preview response.
func ObservePreview(strategy, outcome string) {
	previewResponsesTotal.WithLabelValues(strategy, outcome).Inc()
}

// ObserveLookup records the latency of a pet point lookup.
func ObserveLookup(result string, duration time.Duration) {
	previewLookupDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveImageBytes adds streamed proxy bytes.
func ObserveImageBytes(n int64) {
	if n > 0 {
		previewImageBytesTotal.Add(float64(n))
	}
}

// ObserveCrawlerHit counts a crawler request by the pattern that matched it.
func ObserveCrawlerHit(pattern string) {
	if pattern == "" {
		pattern = "unknown"
	}
	previewCrawlerHitsTotal.WithLabelValues(pattern).Inc()
}

// ObserveRateLimited counts a request refused by a rate limiter.
func ObserveRateLimited(key string) {
	previewRateLimitedTotal.WithLabelValues(key).Inc()
}

// ObserveRateLimitDelay records time spent waiting for a rate limiter token.
func ObserveRateLimitDelay(host string, d time.Duration) {
	previewRateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
