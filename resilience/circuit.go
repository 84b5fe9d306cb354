package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
//
// The circuit opens when either trip condition holds: MaxFailures
// consecutive failures, or a failure rate of at least FailureRateThreshold
// over the last WindowSize calls once MinimumCalls have been recorded.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs and health reports.
	Name string

	// MaxFailures is the number of consecutive failures before opening.
	// Default: 5
	MaxFailures int

	// FailureRateThreshold is the failure percentage (0-100] that opens the
	// circuit. Zero disables rate-based tripping.
	// Default: 0
	FailureRateThreshold float64

	// WindowSize is the number of most recent calls the failure rate is
	// computed over.
	// Default: 100
	WindowSize int

	// MinimumCalls is the number of calls required before the failure rate
	// is evaluated.
	// Default: 10
	MinimumCalls int

	// ResetTimeout is how long to wait before attempting recovery.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of probes allowed in half-open
	// state. All of them must succeed for the circuit to close.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called when the circuit state changes. It runs with
	// the breaker lock held and must not call back into the breaker.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors except context.Canceled.
	IsFailure func(err error) bool
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu             sync.Mutex
	state          State
	generation     uint64 // bumped on every transition
	failures       int // consecutive
	successes      int // half-open probe successes
	lastFailure    time.Time
	halfOpenCount  int
	window         []bool // ring of outcomes; true = failure
	windowNext     int
	windowFilled   int
	windowFailures int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.WindowSize <= 0 {
		config.WindowSize = 100
	}
	if config.MinimumCalls <= 0 {
		config.MinimumCalls = 10
	}
	if config.MinimumCalls > config.WindowSize {
		config.MinimumCalls = config.WindowSize
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		window: make([]bool, config.WindowSize),
	}
}

// Name returns the configured breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	gen, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.afterRequest(gen, err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.clearLocked()
	// Calls in flight across a reset must not count against the new window.
	cb.generation++
	cb.transitionLocked(StateClosed)
}

// beforeRequest admits a call and returns the generation it belongs to.
func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return 0, ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			return 0, ErrCircuitOpen
		}
		cb.halfOpenCount++
	}

	return cb.generation, nil
}

// afterRequest records the outcome of a call admitted in generation gen.
// Outcomes from an earlier generation are dropped: a call admitted while
// closed says nothing about a half-open probe.
func (cb *CircuitBreaker) afterRequest(gen uint64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		return
	}
	isFailure := cb.config.IsFailure(err)

	switch cb.state {
	case StateClosed:
		cb.recordLocked(isFailure)
		if isFailure {
			cb.failures++
			cb.lastFailure = time.Now()
		} else {
			cb.failures = 0
		}
		if cb.shouldTripLocked() {
			cb.transitionLocked(StateOpen)
		}

	case StateHalfOpen:
		if isFailure {
			cb.lastFailure = time.Now()
			cb.transitionLocked(StateOpen)
			break
		}
		cb.successes++
		if cb.successes >= cb.config.HalfOpenMaxRequests {
			cb.clearLocked()
			cb.transitionLocked(StateClosed)
		}
	}
}

// transitionLocked moves the breaker to state to and starts a new generation.
func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.generation++
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

func (cb *CircuitBreaker) shouldTripLocked() bool {
	if cb.failures >= cb.config.MaxFailures {
		return true
	}
	if cb.config.FailureRateThreshold <= 0 || cb.windowFilled < cb.config.MinimumCalls {
		return false
	}
	return cb.failureRateLocked() >= cb.config.FailureRateThreshold
}

func (cb *CircuitBreaker) recordLocked(failure bool) {
	if cb.windowFilled == len(cb.window) {
		if cb.window[cb.windowNext] {
			cb.windowFailures--
		}
	} else {
		cb.windowFilled++
	}
	cb.window[cb.windowNext] = failure
	if failure {
		cb.windowFailures++
	}
	cb.windowNext = (cb.windowNext + 1) % len(cb.window)
}

func (cb *CircuitBreaker) failureRateLocked() float64 {
	if cb.windowFilled == 0 {
		return 0
	}
	return float64(cb.windowFailures) * 100 / float64(cb.windowFilled)
}

func (cb *CircuitBreaker) clearLocked() {
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenCount = 0
	cb.windowNext = 0
	cb.windowFilled = 0
	cb.windowFailures = 0
	for i := range cb.window {
		cb.window[i] = false
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.halfOpenCount = 0
		cb.successes = 0
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		Name:        cb.config.Name,
		State:       cb.currentStateLocked(),
		Failures:    cb.failures,
		Successes:   cb.successes,
		Calls:       cb.windowFilled,
		FailureRate: cb.failureRateLocked(),
		LastFailure: cb.lastFailure,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	Name        string
	State       State
	Failures    int     // consecutive failures while closed
	Successes   int     // successful half-open probes
	Calls       int     // calls in the sliding window
	FailureRate float64 // percentage over the sliding window
	LastFailure time.Time
}
