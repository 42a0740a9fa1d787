// Package otel holds span helpers and shared attribute keys for sync tracing.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by sync spans.
const (
	AttrOwnerID     = attribute.Key("sync.owner_id")
	AttrTrigger     = attribute.Key("sync.trigger")
	AttrEventCount  = attribute.Key("sync.event_count")
	AttrRecordID    = attribute.Key("record.id")
	AttrAction      = attribute.Key("record.action")
	AttrResultCount = attribute.Key("result.count")
)

// StartSpan starts a span on tracer, or returns the span already in ctx when
// tracer is nil.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed. The status text stays
// generic; the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
