package resilience

import (
	"errors"
	"fmt"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when max retry attempts are exhausted.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// Stage names one layer of an Executor chain.
type Stage string

// Stages, outermost first.
const (
	StageRateLimit Stage = "rate_limit"
	StageBulkhead  Stage = "bulkhead"
	StageBreaker   Stage = "breaker"
	StageRetry     Stage = "retry"
	StageTimeout   Stage = "timeout"
)

// RejectedError reports the stage that refused or abandoned a call before
// the operation produced a result of its own.
type RejectedError struct {
	Chain string
	Stage Stage
	Err   error
}

func (e *RejectedError) Error() string {
	if e.Chain == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Chain, e.Stage, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// RejectedBy returns the stage that rejected err, if any.
func RejectedBy(err error) (Stage, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Stage, true
	}
	return "", false
}
