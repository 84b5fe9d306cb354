package resilience

import (
	"context"
	"errors"
	"time"

	perrors "github.com/jmgilman/go/errors"
)

// TimeoutConfig configures the per-attempt deadline.
type TimeoutConfig struct {
	// Timeout bounds a single attempt.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout bounds each attempt with its own deadline, independent of any
// deadline the caller's context already carries.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a per-attempt deadline stage.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op under the attempt deadline. When the attempt deadline
// expires, whether op notices it first or not, the result is ErrTimeout
// with the retryable CodeTimeout classification. Cancellation or expiry of
// the caller's ctx is returned as is. op keeps running in its goroutine
// until it observes the deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && t.attemptExpired(ctx, attemptCtx) {
			return t.timeoutError()
		}
		return err
	case <-attemptCtx.Done():
		if t.attemptExpired(ctx, attemptCtx) {
			return t.timeoutError()
		}
		return ctx.Err()
	}
}

// attemptExpired reports whether the attempt deadline, not the caller's
// context, ended the attempt.
func (t *Timeout) attemptExpired(parent, attempt context.Context) bool {
	return parent.Err() == nil && errors.Is(attempt.Err(), context.DeadlineExceeded)
}

func (t *Timeout) timeoutError() error {
	return perrors.Wrap(ErrTimeout, perrors.CodeTimeout, "attempt exceeded "+t.config.Timeout.String())
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}
