package observe

import (
	"context"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes recorded for registry completions.
const (
	OutcomeResolved = "resolved"
	OutcomeFailed   = "failed"
	OutcomeTimedOut = "timed_out"
)

// Metrics records gateway calls and correlation registry activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records one gateway call with its duration and error.
	RecordCall(ctx context.Context, meta Meta, duration time.Duration, err error)

	// AddPending adjusts the number of pending entries of a registry.
	AddPending(ctx context.Context, registry string, delta int64)

	// RecordCompletion records how a pending entry left the registry and how
	// long its waiters were suspended.
	RecordCompletion(ctx context.Context, registry, outcome string, waited time.Duration)

	// RecordCacheForward records a value handed to the cache by a registry.
	RecordCacheForward(ctx context.Context, registry string, err error)
}

type metricsImpl struct {
	callTotal    metric.Int64Counter
	callErrors   metric.Int64Counter
	callDuration metric.Float64Histogram
	pending      metric.Int64UpDownCounter
	completions  metric.Int64Counter
	waitDuration metric.Float64Histogram
	cacheForward metric.Int64Counter
}

// NewMetrics creates the railops instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.callTotal, err = meter.Int64Counter(
		"railops.gateway.calls",
		metric.WithDescription("Total number of gateway calls"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.callErrors, err = meter.Int64Counter(
		"railops.gateway.errors",
		metric.WithDescription("Total number of failed gateway calls"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.callDuration, err = meter.Float64Histogram(
		"railops.gateway.duration_ms",
		metric.WithDescription("Gateway call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.pending, err = meter.Int64UpDownCounter(
		"railops.registry.pending",
		metric.WithDescription("Pending correlation entries"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.completions, err = meter.Int64Counter(
		"railops.registry.completions",
		metric.WithDescription("Correlation entries completed, by outcome"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.waitDuration, err = meter.Float64Histogram(
		"railops.registry.wait_ms",
		metric.WithDescription("Time between entry creation and completion"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.cacheForward, err = meter.Int64Counter(
		"railops.registry.cache_forwards",
		metric.WithDescription("Values forwarded to the cache"),
		metric.WithUnit("{value}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta Meta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("railops.op", meta.ID()),
	}
	opt := metric.WithAttributes(attrs...)

	m.callTotal.Add(ctx, 1, opt)
	if err != nil {
		m.callErrors.Add(ctx, 1, metric.WithAttributes(
			append(attrs, attribute.String("error.code", string(perrors.GetCode(err))))...,
		))
	}
	m.callDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) AddPending(ctx context.Context, registry string, delta int64) {
	m.pending.Add(ctx, delta, metric.WithAttributes(attribute.String("registry", registry)))
}

func (m *metricsImpl) RecordCompletion(ctx context.Context, registry, outcome string, waited time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("registry", registry),
		attribute.String("outcome", outcome),
	)
	m.completions.Add(ctx, 1, opt)
	m.waitDuration.Record(ctx, float64(waited.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheForward(ctx context.Context, registry string, err error) {
	m.cacheForward.Add(ctx, 1, metric.WithAttributes(
		attribute.String("registry", registry),
		attribute.Bool("error", err != nil),
	))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordCall(context.Context, Meta, time.Duration, error)          {}
func (noopMetrics) AddPending(context.Context, string, int64)                       {}
func (noopMetrics) RecordCompletion(context.Context, string, string, time.Duration) {}
func (noopMetrics) RecordCacheForward(context.Context, string, error)               {}
