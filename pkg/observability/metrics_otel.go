package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/platinummonkey/cantor"

// OTelMetrics holds OpenTelemetry metric instruments. Methods are no-ops on
// a nil receiver.
type OTelMetrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	loginAttempts      metric.Int64Counter
	sessionValidations metric.Int64Counter
	purgedRows         metric.Int64Counter
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return newOTelMetrics(otel.Meter(meterName))
}

func newOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	m.loginAttempts, err = meter.Int64Counter(
		"cantor.auth.login.attempts",
		metric.WithDescription("Login attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login counter: %w", err)
	}

	m.sessionValidations, err = meter.Int64Counter(
		"cantor.auth.session.validations",
		metric.WithDescription("Bearer token validations by outcome"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session validation counter: %w", err)
	}

	m.purgedRows, err = meter.Int64Counter(
		"cantor.maintenance.purged_rows",
		metric.WithDescription("Expired rows removed by the janitor"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create purge counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLogin counts a login attempt
func (m *OTelMetrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSessionValidation counts a bearer token check
func (m *OTelMetrics) RecordSessionValidation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.sessionValidations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordPurge adds n purged rows for table
func (m *OTelMetrics) RecordPurge(ctx context.Context, table string, n int64) {
	if m == nil {
		return
	}
	m.purgedRows.Add(ctx, n, metric.WithAttributes(attribute.String("table", table)))
}
