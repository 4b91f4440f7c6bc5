// Package instrumentation provides OpenTelemetry instrumentation for the
// meetwire webhook receiver and API client.
//
// # Metrics
//
// API client:
//   - api_requests_total: Counter of API requests by method, path, and status
//   - api_request_duration_seconds: Histogram of API request durations
//   - api_request_retries_total: Counter of retried attempts by reason
//
// Token lifecycle:
//   - token_refresh_total: Counter of token refresh attempts by result
//   - token_exchange_total: Counter of authorization code exchanges by result
//
// Webhook ingestion:
//   - webhook_events_total: Counter of accepted deliveries by event type
//   - webhook_rejections_total: Counter of rejected deliveries by reason
//   - webhook_handler_duration_seconds: Histogram of handler execution time
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: enable/disable (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP collector endpoint
//   - OTEL_TRACES_SAMPLER_ARG: sampling rate 0.0 to 1.0 (default: 0.1)
//   - OTEL_SERVICE_NAME: service name (default: meetwire)
package instrumentation
