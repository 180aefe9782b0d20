package observability

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginDeactivated        = "deactivated"
	LoginError              = "error"
)

// Session validation outcomes
const (
	SessionValid   = "valid"
	SessionMissing = "missing"
	SessionInvalid = "invalid"
	SessionError   = "error"
)

// Metrics holds all Prometheus metrics. All Record methods are safe on a nil
// receiver.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics
	LoginAttemptsTotal      *prometheus.CounterVec
	SessionValidationsTotal *prometheus.CounterVec
	PasswordResetsTotal     *prometheus.CounterVec
	RateLimitedTotal        *prometheus.CounterVec

	// Maintenance metrics
	PurgedRowsTotal    *prometheus.CounterVec
	JanitorRunsTotal   *prometheus.CounterVec
	JanitorRunDuration prometheus.Histogram

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge

	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cantor_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cantor_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cantor_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cantor_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		SessionValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cantor_session_validations_total",
				Help: "Bearer token validations by outcome",
			},
			[]string{"outcome"},
		),
		PasswordResetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cantor_password_resets_total",
				Help: "Password reset requests and completions",
			},
			[]string{"stage", "outcome"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cantor_rate_limited_requests_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),

		PurgedRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cantor_purged_rows_total",
				Help: "Expired rows removed by the janitor",
			},
			[]string{"table"},
		),
		JanitorRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cantor_janitor_runs_total",
				Help: "Janitor runs by status",
			},
			[]string{"status"},
		),
		JanitorRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cantor_janitor_run_duration_seconds",
				Help:    "Janitor run duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30},
			},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cantor_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cantor_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cantor_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.LoginAttemptsTotal,
		m.SessionValidationsTotal,
		m.PasswordResetsTotal,
		m.RateLimitedTotal,
		m.PurgedRowsTotal,
		m.JanitorRunsTotal,
		m.JanitorRunDuration,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
	)

	return m
}

// SetOTel mirrors auth counters to OpenTelemetry instruments
func (m *Metrics) SetOTel(o *OTelMetrics) {
	if m != nil {
		m.otel = o
	}
}

// RecordLogin counts a login attempt
func (m *Metrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	m.otel.RecordLogin(ctx, outcome)
}

// RecordSessionValidation counts a bearer token check
func (m *Metrics) RecordSessionValidation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.SessionValidationsTotal.WithLabelValues(outcome).Inc()
	m.otel.RecordSessionValidation(ctx, outcome)
}

// RecordPasswordReset counts a reset request ("requested") or completion
// ("completed")
func (m *Metrics) RecordPasswordReset(stage, outcome string) {
	if m == nil {
		return
	}
	m.PasswordResetsTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordRateLimited counts a rejected request
func (m *Metrics) RecordRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// RecordPurge adds n purged rows for table
func (m *Metrics) RecordPurge(ctx context.Context, table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.PurgedRowsTotal.WithLabelValues(table).Add(float64(n))
	m.otel.RecordPurge(ctx, table, n)
}

// RecordJanitorRun records one janitor pass
func (m *Metrics) RecordJanitorRun(duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.JanitorRunsTotal.WithLabelValues(status).Inc()
	m.JanitorRunDuration.Observe(duration.Seconds())
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the mux route template so ids in paths do not explode
// label cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Install it with mux.Router.Use so the route template is available.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			route := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
			metrics.otel.RecordHTTPRequest(r.Context(), r.Method, route, rw.statusCode, duration)
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", MetricsHandler(registry)).Methods(http.MethodGet)
}
