package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskhub_login_total",
			Help: "Total number of login attempts",
		},
	)

	TenantRegistrationCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskhub_tenant_registrations_total",
			Help: "Total number of tenant registration attempts",
		},
	)

	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // "invalid_credentials", "tenant_suspended", "invalid_token", ...
	)

	QuotaDeniedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_quota_denied_total",
			Help: "Total number of creations denied by subscription quota",
		},
		[]string{"resource"}, // "users" or "projects"
	)

	EntityOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_entity_operations_total",
			Help: "Total number of CRUD operations by entity and operation",
		},
		[]string{"entity", "operation"},
	)

	AuditFailureCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskhub_audit_failures_total",
			Help: "Total number of audit log writes that failed outside a transaction",
		},
	)

	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhub_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Histogram metrics
var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskhub_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskhub_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskhub_info",
			Help: "Information about the taskhub service",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(TenantRegistrationCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(QuotaDeniedCounter)
	prometheus.MustRegister(EntityOperationCounter)
	prometheus.MustRegister(AuditFailureCounter)
	prometheus.MustRegister(HTTPRequestCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	prometheus.MustRegister(InfoGauge)
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures a database operation duration:
//
//	defer prometheus.TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(time.Time) {
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(time.Since(startTime).Seconds())
	}
}

// MetricsMiddleware captures request count and duration for each route.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordQuotaDenied records a quota denial by resource kind
func RecordQuotaDenied(resource string) {
	QuotaDeniedCounter.With(prometheus.Labels{"resource": resource}).Inc()
}

// RecordEntityOperation records a CRUD operation by entity and operation
func RecordEntityOperation(entity, operation string) {
	EntityOperationCounter.With(prometheus.Labels{"entity": entity, "operation": operation}).Inc()
}
