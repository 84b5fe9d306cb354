package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Meta identifies the operation being observed.
type Meta struct {
	Component string // Emitting component, e.g. "gateway" or "correlation"
	Name      string // Operation or registry name, e.g. "getTimetable" (required)
	Endpoint  string // Upstream endpoint (optional)
}

// SpanName returns the deterministic span name for this operation.
// Format: railops.<component>.<name> or railops.<name>
func (m Meta) SpanName() string {
	if m.Component != "" {
		return "railops." + m.Component + "." + m.Name
	}
	return "railops." + m.Name
}

// ID returns the qualified operation identifier.
func (m Meta) ID() string {
	if m.Component != "" {
		return m.Component + "." + m.Name
	}
	return m.Name
}

// Validate reports whether the metadata is usable.
func (m Meta) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with operation-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for the operation.
	StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a client span annotated with the operation metadata.
func (t *tracerImpl) StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("railops.op", meta.ID()),
		attribute.Bool("railops.error", false),
	}
	if meta.Endpoint != "" {
		attrs = append(attrs, attribute.String("url.full", meta.Endpoint))
	}

	kind := trace.SpanKindInternal
	if meta.Endpoint != "" {
		kind = trace.SpanKindClient
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("railops.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
