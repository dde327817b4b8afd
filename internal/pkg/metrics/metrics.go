package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routefinder",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	// Route-finding metrics
	RouteAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "session",
		Name:      "attempts_total",
		Help:      "Route-finding attempts by outcome (ready, invalid_place, no_route, transport)",
	}, []string{"outcome"})

	RejectedTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "session",
		Name:      "rejected_triggers_total",
		Help:      "Find-route triggers rejected without a state change",
	}, []string{"reason"})

	AttemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "routefinder",
		Subsystem: "session",
		Name:      "attempt_duration_seconds",
		Help:      "Wall time from trigger to Ready or Failed",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routefinder",
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions currently held in memory",
	})

	GeocodeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "geocoder",
		Name:      "lookups_total",
		Help:      "Place resolutions by result (resolved, no_match, malformed, error)",
	}, []string{"result"})

	DroppedWaypoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "geocoder",
		Name:      "dropped_waypoints_total",
		Help:      "Waypoints dropped because they did not resolve",
	})

	DroppedPoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "normalizer",
		Name:      "dropped_points_total",
		Help:      "Coordinate pairs dropped as malformed or out of range",
	})

	SkippedFeatures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "normalizer",
		Name:      "skipped_features_total",
		Help:      "Features that did not become a candidate route",
	}, []string{"reason"})

	CandidatesPerResponse = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "routefinder",
		Subsystem: "normalizer",
		Name:      "candidates_per_response",
		Help:      "Candidate routes produced per routing response",
		Buckets:   []float64{0, 1, 2, 3, 5, 8},
	})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routefinder",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of geocoding and routing calls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routefinder",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
