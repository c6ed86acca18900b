package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sample outcomes for LocationSamples.
const (
	SamplePublished         = "published"
	SampleRejectedAccuracy  = "rejected_accuracy"
	SampleSuppressedPrivate = "suppressed_private"
	SampleWriteFailed       = "write_failed"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendmap_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "friendmap_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	locationSamples = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendmap_location_samples_total",
		Help: "Position samples received, by outcome.",
	}, []string{"result"})

	feedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendmap_feed_events_total",
		Help: "Change-feed events published.",
	}, []string{"table", "type"})

	feedDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendmap_feed_dropped_total",
		Help: "Change-feed events dropped because a subscriber queue was full.",
	}, []string{"table"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "friendmap_active_sessions",
		Help: "Signed-in sessions with a running publisher and live view.",
	})
)

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveSample(result string) {
	locationSamples.WithLabelValues(result).Inc()
}

func ObserveFeedEvent(table, eventType string) {
	feedEvents.WithLabelValues(table, eventType).Inc()
}

func ObserveFeedDrop(table string) {
	feedDropped.WithLabelValues(table).Inc()
}

func SessionOpened() { activeSessions.Inc() }
func SessionClosed() { activeSessions.Dec() }
