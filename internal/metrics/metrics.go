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

const namespace = "interview"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})

	securityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "security_events_total",
		Help:      "Security events received, by type and outcome",
	}, []string{"event_type", "outcome"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Session state transitions, by target status",
	}, []string{"status"})

	versionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_version_conflicts_total",
		Help:      "Session writes rejected because the row changed since it was read",
	})

	finalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_finalizations_total",
		Help:      "Finalized score breakdowns, by score status",
	}, []string{"score_status"})

	sessionsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_scheduled_total",
		Help:      "Sessions created by scheduling",
	})

	sweptSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swept_sessions_total",
		Help:      "Sessions handled by the reconciliation sweeper, by action",
	}, []string{"action"})
)

// Middleware records request metrics. The path label is the route template to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"path":   path,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func SecurityEvent(eventType, outcome string) {
	securityEvents.WithLabelValues(eventType, outcome).Inc()
}

func SessionTransition(status string) {
	sessionTransitions.WithLabelValues(status).Inc()
}

func VersionConflict() {
	versionConflicts.Inc()
}

func Finalized(scoreStatus string) {
	finalizations.WithLabelValues(scoreStatus).Inc()
}

func SessionsScheduled(n int) {
	sessionsScheduled.Add(float64(n))
}

func Swept(action string) {
	sweptSessions.WithLabelValues(action).Inc()
}
