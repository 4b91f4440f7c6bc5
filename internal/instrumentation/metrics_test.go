package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			out[metric.Name] = metric
		}
	}
	return out
}

func TestRecordAPIRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAPIRequest(ctx, "GET", "/meetings", 200, 120*time.Millisecond)
	m.RecordAPIRequest(ctx, "GET", "/meetings", 200, 80*time.Millisecond)
	m.RecordAPIRequest(ctx, "POST", "/meetings", 429, 10*time.Millisecond)

	metrics := collect(t, reader)
	require.Contains(t, metrics, "api_requests_total")
	require.Contains(t, metrics, "api_request_duration_seconds")

	sum, ok := metrics["api_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
}

func TestRecordTokenRefresh(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTokenRefresh(ctx, ResultSuccess)
	m.RecordTokenRefresh(ctx, ResultFailure)
	m.RecordTokenRefresh(ctx, ResultFailure)

	metrics := collect(t, reader)
	sum, ok := metrics["token_refresh_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	// One data point per result label.
	assert.Len(t, sum.DataPoints, 2)
}

func TestRecordWebhookEvent(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordWebhookEvent(ctx, "meeting.created", 5*time.Millisecond)
	m.RecordWebhookRejection(ctx, "signature_mismatch")

	metrics := collect(t, reader)
	assert.Contains(t, metrics, "webhook_events_total")
	assert.Contains(t, metrics, "webhook_rejections_total")
	assert.Contains(t, metrics, "webhook_handler_duration_seconds")
}

func TestZeroValueMetricsAreNoOp(t *testing.T) {
	m := &Metrics{}
	ctx := context.Background()

	// No instruments registered: every recorder returns without panicking.
	m.RecordAPIRequest(ctx, "GET", "/meetings", 200, time.Millisecond)
	m.RecordAPIRetry(ctx, "server_error")
	m.RecordTokenRefresh(ctx, ResultSuccess)
	m.RecordTokenExchange(ctx, "authorization_code", ResultSuccess)
	m.RecordWebhookEvent(ctx, "meeting.created", time.Millisecond)
	m.RecordWebhookRejection(ctx, "decode_failed")
}
