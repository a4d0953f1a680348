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

// Acquisition outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gymmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Viewport metrics
	PositionAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymmap",
		Subsystem: "viewport",
		Name:      "position_acquisitions_total",
		Help:      "One-shot position acquisitions by outcome",
	}, []string{"outcome"})

	PositionAcquisitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gymmap",
		Subsystem: "viewport",
		Name:      "position_acquisition_duration_seconds",
		Help:      "Time from acquisition start until it settled",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	})

	SettleEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gymmap",
		Subsystem: "viewport",
		Name:      "settle_events_total",
		Help:      "Viewport settle events turned into boundary changes",
	})

	WatchUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gymmap",
		Subsystem: "geolocation",
		Name:      "watch_updates_total",
		Help:      "Live position updates delivered to overlays",
	})

	WatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymmap",
		Subsystem: "geolocation",
		Name:      "watch_errors_total",
		Help:      "Errors reported by continuous position watches",
	}, []string{"kind"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gymmap",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Map sessions currently mounted",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gymmap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymmap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymmap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})
)

// ObserveAcquisition records the outcome and latency of one acquisition.
func ObserveAcquisition(outcome string, started time.Time) {
	PositionAcquisitions.WithLabelValues(outcome).Inc()
	PositionAcquisitionDuration.Observe(time.Since(started).Seconds())
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
