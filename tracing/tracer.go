// Package tracing provides OpenTelemetry spans around telemetry-enabled
// transport operations.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// Span names.
const (
	SpanOpen  = "telemetry.open"
	SpanSend  = "telemetry.send"
	SpanClose = "telemetry.close"
)

// Attribute keys.
const (
	AttrContact   = attribute.Key("kad.contact")
	AttrPeer      = attribute.Key("kad.peer")
	AttrMethod    = attribute.Key("kad.method")
	AttrMessageID = attribute.Key("kad.message_id")
	AttrMetrics   = attribute.Key("kad.metrics")
	AttrHooks     = attribute.Key("kad.hooks")
	AttrLocator   = attribute.Key("kad.locator")
)

// Tracer starts spans for transport operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer(serviceName string) *Tracer {
	return &Tracer{tracer: otel.Tracer(serviceName)}
}

// NewTracerWithProvider creates a tracer using a specific TracerProvider.
func NewTracerWithProvider(serviceName string, provider trace.TracerProvider) *Tracer {
	return &Tracer{tracer: provider.Tracer(serviceName)}
}

// NewNopTracer creates a tracer whose spans are never recorded.
func NewNopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
}

// StartOpen starts the span covering hook registration and the base open.
func (t *Tracer) StartOpen(ctx context.Context, local types.Contact, locator string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanOpen, trace.WithAttributes(
		AttrContact.String(local.Key()),
		AttrLocator.String(locator),
	))
}

// StartSend starts the span covering one outgoing message.
func (t *Tracer) StartSend(ctx context.Context, to types.Contact, method, messageID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSend,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrPeer.String(to.Key()),
			AttrMethod.String(method),
			AttrMessageID.String(messageID),
		),
	)
}

// StartClose starts the span covering transport and persistence shutdown.
func (t *Tracer) StartClose(ctx context.Context, local types.Contact) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanClose, trace.WithAttributes(
		AttrContact.String(local.Key()),
	))
}

// End records err on the span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
