// Package metrics provides Prometheus metrics for the MediaShelf server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashelf_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediashelf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Library metrics
	entriesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashelf_entries_created_total",
			Help: "Total entries created by folder creation or upload",
		},
		[]string{"kind"},
	)

	libraryEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashelf_library_events_total",
			Help: "Total library state changes by reason",
		},
		[]string{"reason"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashelf_uploads_total",
			Help: "Total simulated uploads by outcome",
		},
		[]string{"status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediashelf_upload_bytes_total",
			Help: "Total bytes declared by ingested files",
		},
	)

	// Session metrics
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediashelf_sessions_active",
			Help: "Number of live library sessions",
		},
	)

	sessionsEvictedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediashelf_sessions_evicted_total",
			Help: "Total sessions removed",
		},
		[]string{"reason"},
	)

	// Websocket metrics
	wsConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediashelf_ws_connections_active",
			Help: "Number of active websocket connections",
		},
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediashelf_rate_limit_hits_total",
			Help: "Total rate limit rejections (429s)",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			RecordHTTPRequest(c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEntryCreated counts a new entry of the given kind.
func RecordEntryCreated(kind string) {
	entriesCreatedTotal.WithLabelValues(kind).Inc()
}

// RecordLibraryEvent counts a state change.
func RecordLibraryEvent(reason string) {
	libraryEventsTotal.WithLabelValues(reason).Inc()
}

// RecordUpload counts a finished upload and the bytes it declared.
func RecordUpload(status string, bytes int64) {
	uploadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		uploadBytesTotal.Add(float64(bytes))
	}
}

// SetActiveSessions sets the live session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordSessionEvicted counts a removed session.
func RecordSessionEvicted(reason string) {
	sessionsEvictedTotal.WithLabelValues(reason).Inc()
}

// WSConnected increments the websocket gauge.
func WSConnected() {
	wsConnectionsActive.Inc()
}

// WSDisconnected decrements the websocket gauge.
func WSDisconnected() {
	wsConnectionsActive.Dec()
}

// RecordRateLimitHit counts a 429 response.
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}
