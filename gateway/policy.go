package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonwraymond/railops/resilience"
	"github.com/jonwraymond/railops/upstream"
)

// PolicyConfig holds the thresholds of one operation. Zero values fall back
// to the resilience package defaults.
type PolicyConfig struct {
	// Endpoint names the upstream in errors and spans when the failure
	// itself does not carry a URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	Rate        float64       `mapstructure:"rate" yaml:"rate,omitempty"`
	Burst       int           `mapstructure:"burst" yaml:"burst,omitempty"`
	WaitOnLimit bool          `mapstructure:"wait_on_limit" yaml:"wait_on_limit,omitempty"`
	MaxWait     time.Duration `mapstructure:"max_wait" yaml:"max_wait,omitempty"`

	MaxFailures    int           `mapstructure:"max_failures" yaml:"max_failures,omitempty"`
	FailureRate    float64       `mapstructure:"failure_rate" yaml:"failure_rate,omitempty"`
	Window         int           `mapstructure:"window" yaml:"window,omitempty"`
	MinimumCalls   int           `mapstructure:"minimum_calls" yaml:"minimum_calls,omitempty"`
	ResetTimeout   time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout,omitempty"`
	HalfOpenProbes int           `mapstructure:"half_open_probes" yaml:"half_open_probes,omitempty"`

	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts,omitempty"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay,omitempty"`
	Multiplier   float64       `mapstructure:"multiplier" yaml:"multiplier,omitempty"`

	// AttemptTimeout bounds each attempt. Zero disables it.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout,omitempty"`

	// MaxConcurrent enables a bulkhead when positive.
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent,omitempty"`
}

// merge fills zero fields of c from def.
func (c PolicyConfig) merge(def PolicyConfig) PolicyConfig {
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
	}
	if c.Rate == 0 {
		c.Rate = def.Rate
	}
	if c.Burst == 0 {
		c.Burst = def.Burst
	}
	if !c.WaitOnLimit {
		c.WaitOnLimit = def.WaitOnLimit
	}
	if c.MaxWait == 0 {
		c.MaxWait = def.MaxWait
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = def.MaxFailures
	}
	if c.FailureRate == 0 {
		c.FailureRate = def.FailureRate
	}
	if c.Window == 0 {
		c.Window = def.Window
	}
	if c.MinimumCalls == 0 {
		c.MinimumCalls = def.MinimumCalls
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = def.ResetTimeout
	}
	if c.HalfOpenProbes == 0 {
		c.HalfOpenProbes = def.HalfOpenProbes
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = def.Multiplier
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = def.MaxConcurrent
	}
	return c
}

// Policy is the resilience chain bound to one named operation.
type Policy struct {
	name     string
	config   PolicyConfig
	executor *resilience.Executor
}

func newPolicy(name string, cfg PolicyConfig, retryable func(error) bool, onState func(name string, from, to resilience.State)) *Policy {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:                 name,
		MaxFailures:          cfg.MaxFailures,
		FailureRateThreshold: cfg.FailureRate,
		WindowSize:           cfg.Window,
		MinimumCalls:         cfg.MinimumCalls,
		ResetTimeout:         cfg.ResetTimeout,
		HalfOpenMaxRequests:  cfg.HalfOpenProbes,
		IsFailure:            countsAsFailure,
		OnStateChange: func(from, to resilience.State) {
			if onState != nil {
				onState(name, from, to)
			}
		},
	})
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		Jitter:       true,
		RetryIf:      retryable,
	})

	opts := []resilience.ExecutorOption{
		resilience.WithName(name),
		resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:        name,
			Rate:        cfg.Rate,
			Burst:       cfg.Burst,
			WaitOnLimit: cfg.WaitOnLimit,
			MaxWait:     cfg.MaxWait,
		})),
		resilience.WithCircuitBreaker(breaker),
		resilience.WithRetry(retry),
	}
	if cfg.MaxConcurrent > 0 {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          name,
			MaxConcurrent: cfg.MaxConcurrent,
		})))
	}
	if cfg.AttemptTimeout > 0 {
		opts = append(opts, resilience.WithTimeout(cfg.AttemptTimeout))
	}

	return &Policy{
		name:     name,
		config:   cfg,
		executor: resilience.NewExecutor(opts...),
	}
}

// Name returns the operation name.
func (p *Policy) Name() string { return p.name }

// Config returns the effective thresholds.
func (p *Policy) Config() PolicyConfig { return p.config }

// Breaker returns the policy's shared circuit breaker.
func (p *Policy) Breaker() *resilience.CircuitBreaker { return p.executor.CircuitBreaker() }

// Limiter returns the policy's shared rate limiter.
func (p *Policy) Limiter() *resilience.RateLimiter { return p.executor.RateLimiter() }

// countsAsFailure keeps client errors out of the breaker window: a 4xx other
// than 408 or 429 says nothing about upstream health.
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *upstream.StatusError
	if errors.As(err, &se) && se.Status >= 400 && se.Status < 500 {
		return se.Status == http.StatusRequestTimeout || se.Status == http.StatusTooManyRequests
	}
	return true
}
