package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for this module.
const TracerName = "github.com/meetwire/meetwire-go"

// Span attribute keys.
const (
	// SpanAttrEventType is the webhook event type attribute.
	SpanAttrEventType = "meetwire.event_type"

	// SpanAttrEventID is the webhook delivery id attribute.
	SpanAttrEventID = "meetwire.event_id"

	// SpanAttrOperation is the API or token operation attribute.
	SpanAttrOperation = "meetwire.operation"
)

// StartSpan starts a span with the given name and attributes. The caller
// ends it with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartWebhookSpan starts a server span for one webhook delivery.
func StartWebhookSpan(ctx context.Context, eventType, eventID string) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "webhook."+eventType,
		trace.WithAttributes(
			attribute.String(SpanAttrEventType, eventType),
			attribute.String(SpanAttrEventID, eventID),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SetSpanError records an error on the span and marks it failed.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks the span OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// TraceID returns the trace id of the span in ctx, or "" if none.
func TraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
