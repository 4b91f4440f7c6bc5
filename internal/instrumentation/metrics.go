package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrReason    = "reason"
	attrResult    = "result"
	attrEventType = "event_type"
	attrGrantType = "grant_type"
)

// Metrics records observability metrics for the client, the token
// lifecycle, and the webhook pipeline. The zero value is a no-op.
type Metrics struct {
	apiRequestsTotal   metric.Int64Counter
	apiRequestDuration metric.Float64Histogram
	apiRetriesTotal    metric.Int64Counter

	tokenRefreshTotal  metric.Int64Counter
	tokenExchangeTotal metric.Int64Counter

	webhookEventsTotal     metric.Int64Counter
	webhookRejectionsTotal metric.Int64Counter
	webhookHandlerDuration metric.Float64Histogram
}

// NewMetrics registers all instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.apiRequestsTotal, err = meter.Int64Counter(
		"api_requests_total",
		metric.WithDescription("Total number of Meetwire API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api_requests_total counter: %w", err)
	}

	m.apiRequestDuration, err = meter.Float64Histogram(
		"api_request_duration_seconds",
		metric.WithDescription("Meetwire API request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api_request_duration_seconds histogram: %w", err)
	}

	m.apiRetriesTotal, err = meter.Int64Counter(
		"api_request_retries_total",
		metric.WithDescription("Total number of retried API attempts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api_request_retries_total counter: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_refresh_total counter: %w", err)
	}

	m.tokenExchangeTotal, err = meter.Int64Counter(
		"token_exchange_total",
		metric.WithDescription("Total number of OAuth token grant exchanges"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_exchange_total counter: %w", err)
	}

	m.webhookEventsTotal, err = meter.Int64Counter(
		"webhook_events_total",
		metric.WithDescription("Total number of accepted webhook deliveries"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook_events_total counter: %w", err)
	}

	m.webhookRejectionsTotal, err = meter.Int64Counter(
		"webhook_rejections_total",
		metric.WithDescription("Total number of rejected webhook deliveries"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook_rejections_total counter: %w", err)
	}

	m.webhookHandlerDuration, err = meter.Float64Histogram(
		"webhook_handler_duration_seconds",
		metric.WithDescription("Webhook handler execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook_handler_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordAPIRequest records one completed API request.
func (m *Metrics) RecordAPIRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.apiRequestsTotal == nil || m.apiRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.apiRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.apiRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAPIRetry records one retried attempt. Reason is "rate_limited",
// "server_error", or "transport".
func (m *Metrics) RecordAPIRetry(ctx context.Context, reason string) {
	if m.apiRetriesTotal == nil {
		return
	}
	m.apiRetriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordTokenRefresh records a refresh attempt. Result is "success" or
// "failure".
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m.tokenRefreshTotal == nil {
		return
	}
	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordTokenExchange records a grant exchange by grant type
// ("authorization_code", "client_credentials") and result.
func (m *Metrics) RecordTokenExchange(ctx context.Context, grantType, result string) {
	if m.tokenExchangeTotal == nil {
		return
	}
	m.tokenExchangeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrGrantType, grantType),
		attribute.String(attrResult, result),
	))
}

// RecordWebhookEvent records an accepted delivery and its handler time.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType string, duration time.Duration) {
	if m.webhookEventsTotal == nil || m.webhookHandlerDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String(attrEventType, eventType)}
	m.webhookEventsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.webhookHandlerDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordWebhookRejection records a rejected delivery. Reason is a stable
// code such as "signature_mismatch" or "decode_failed".
func (m *Metrics) RecordWebhookRejection(ctx context.Context, reason string) {
	if m.webhookRejectionsTotal == nil {
		return
	}
	m.webhookRejectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}
