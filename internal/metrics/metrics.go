// Package metrics exposes Prometheus collectors for the page image pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	imageOutcomesTotal        *prometheus.CounterVec
	imageBytesTotal           *prometheus.CounterVec
	imageAttemptsTotal        *prometheus.CounterVec
	manifestFetchesTotal      *prometheus.CounterVec
	issuesTotal               *prometheus.CounterVec
	driftRecoveriesTotal      prometheus.Counter
	rateLimitDelaysSeconds    *prometheus.HistogramVec
	imageFetchDurationSeconds prometheus.Histogram
	httpRequestsTotal         *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		imageOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kbscrape_image_outcomes_total",
				Help: "Page image fetch outcomes, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		imageBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kbscrape_image_bytes_total",
				Help: "Bytes written for page images, labeled by site.",
			},
			[]string{"site"},
		)

		imageAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kbscrape_image_attempts_total",
				Help: "Individual HTTP attempts made for page images, labeled by result.",
			},
			[]string{"result"},
		)

		manifestFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kbscrape_manifest_fetches_total",
				Help: "Manifest fetches, labeled by result.",
			},
			[]string{"result"},
		)

		issuesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kbscrape_issues_total",
				Help: "Issues processed, labeled by final state.",
			},
			[]string{"state"},
		)

		driftRecoveriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kbscrape_navigation_drift_recoveries_total",
				Help: "Times the browser was returned to the search listing after drifting.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kbscrape_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		imageFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kbscrape_image_fetch_duration_seconds",
				Help:    "Wall time spent per page image including retries.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kbscrape_http_requests_total",
				Help: "Requests served by the status endpoint, labeled by method, route and status.",
			},
			[]string{"method", "route", "status"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveImageOutcome records the final outcome of one page image.
func ObserveImageOutcome(address, outcome string, bytesWritten int64, dur time.Duration) {
	Init()
	site := SanitizeSite(address)
	imageOutcomesTotal.WithLabelValues(site, outcome).Inc()
	if bytesWritten > 0 {
		imageBytesTotal.WithLabelValues(site).Add(float64(bytesWritten))
	}
	if dur > 0 {
		imageFetchDurationSeconds.Observe(dur.Seconds())
	}
}

// ObserveImageAttempt records a single HTTP attempt ("ok" or "error").
func ObserveImageAttempt(result string) {
	Init()
	imageAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveManifestFetch records a manifest fetch result.
func ObserveManifestFetch(result string) {
	Init()
	manifestFetchesTotal.WithLabelValues(result).Inc()
}

// ObserveIssue records the final state of an issue.
func ObserveIssue(state string) {
	Init()
	issuesTotal.WithLabelValues(state).Inc()
}

// ObserveDriftRecovery increments the drift recovery counter.
func ObserveDriftRecovery() {
	Init()
	driftRecoveriesTotal.Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one request served by the status endpoint.
func ObserveHTTPRequest(method, route string, status int) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
