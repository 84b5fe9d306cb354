// Package resilience provides the admission and fault-isolation primitives
// the gateway composes around upstream calls.
//
//   - RateLimiter: token bucket on golang.org/x/time/rate.
//   - CircuitBreaker: opens on consecutive failures or on a failure rate over
//     a sliding window of recent calls; recovers through half-open probes.
//   - Retry: bounded attempts with backoff. By default only errors classified
//     retryable by github.com/jmgilman/go/errors are retried.
//   - Bulkhead: caps concurrent calls.
//   - Timeout: bounds a single attempt.
//
// Executor composes them in a fixed order, outermost first: rate limiter,
// bulkhead, circuit breaker, retry, timeout. Retry sits inside the breaker so
// the breaker records one outcome per logical call.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 5, Burst: 5})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 5})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(5*time.Second),
//	)
//	err := exec.Execute(ctx, fetchTimetable)
package resilience
