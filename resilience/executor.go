package resilience

import (
	"context"
	"errors"
	"time"
)

// Executor runs an operation through a fixed chain of stages:
//
//	rate limit -> bulkhead -> breaker -> retry -> timeout -> operation
//
// Unconfigured stages are skipped. Primitives may be shared between
// executors; an Executor holds no state of its own.
type Executor struct {
	name           string
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithName labels rejections produced by the chain.
func WithName(name string) ExecutorOption {
	return func(e *Executor) { e.name = name }
}

// WithCircuitBreaker adds a circuit breaker stage.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry adds a retry stage.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithRateLimiter adds a rate limit stage.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithBulkhead adds a concurrency limit stage.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithTimeout bounds each attempt by timeout.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout}) }
}

// WithTimeoutConfig adds a preconfigured timeout stage.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) { e.timeout = t }
}

// Name returns the chain label.
func (e *Executor) Name() string { return e.name }

// CircuitBreaker returns the configured breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker { return e.circuitBreaker }

// RateLimiter returns the configured limiter, or nil.
func (e *Executor) RateLimiter() *RateLimiter { return e.rateLimiter }

// Bulkhead returns the configured bulkhead, or nil.
func (e *Executor) Bulkhead() *Bulkhead { return e.bulkhead }

// Retry returns the configured retry handler, or nil.
func (e *Executor) Retry() *Retry { return e.retry }

type layer struct {
	stage Stage
	// refusal is the sentinel this stage returns when it gives up on a call.
	// Nil for stages that only pass inner results through.
	refusal error
	run     func(ctx context.Context, op func(context.Context) error) error
}

// chain lists the configured stages, outermost first.
func (e *Executor) chain() []layer {
	var ls []layer
	if e.rateLimiter != nil {
		ls = append(ls, layer{StageRateLimit, ErrRateLimitExceeded, e.rateLimiter.Execute})
	}
	if e.bulkhead != nil {
		ls = append(ls, layer{StageBulkhead, ErrBulkheadFull, e.bulkhead.Execute})
	}
	if e.circuitBreaker != nil {
		ls = append(ls, layer{StageBreaker, ErrCircuitOpen, e.circuitBreaker.Execute})
	}
	if e.retry != nil {
		ls = append(ls, layer{StageRetry, nil, e.retry.Execute})
	}
	if e.timeout != nil {
		ls = append(ls, layer{StageTimeout, ErrTimeout, e.timeout.Execute})
	}
	return ls
}

// Stages returns the configured stages, outermost first.
func (e *Executor) Stages() []Stage {
	ls := e.chain()
	out := make([]Stage, len(ls))
	for i, l := range ls {
		out[i] = l.stage
	}
	return out
}

// Execute runs op through every configured stage. A stage that refuses the
// call reports a *RejectedError naming itself; the first stage to refuse
// keeps the attribution.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	ls := e.chain()
	execute := op
	for i := len(ls) - 1; i >= 0; i-- {
		l, inner := ls[i], execute
		execute = func(ctx context.Context) error {
			return e.attribute(l, l.run(ctx, inner))
		}
	}
	return execute(ctx)
}

func (e *Executor) attribute(l layer, err error) error {
	if err == nil || l.refusal == nil || !errors.Is(err, l.refusal) {
		return err
	}
	if _, ok := RejectedBy(err); ok {
		return err
	}
	return &RejectedError{Chain: e.name, Stage: l.stage, Err: err}
}
