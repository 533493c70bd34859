// Package metrics exposes Prometheus instrumentation for the API and
// the scoring pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ckd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ckd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ckd_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Scoring metrics
	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ckd_predictions_total",
			Help: "Total number of risk predictions by risk level",
		},
		[]string{"risk_level"},
	)

	predictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ckd_prediction_duration_seconds",
			Help:    "Time spent scoring a single patient input",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01},
		},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ckd_cache_lookups_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordPrediction counts a completed prediction and its latency.
func RecordPrediction(riskLevel string, elapsed time.Duration) {
	predictionsTotal.WithLabelValues(riskLevel).Inc()
	predictionDuration.Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a cache lookup. Outcome is "hit" or "miss".
func RecordCacheLookup(outcome string) {
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// Middleware instruments each request with count, duration and in-flight
// gauges. The route template is used as the path label so IDs do not
// explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		c.Next()

		httpRequestsInFlight.Dec()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics scrape endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
