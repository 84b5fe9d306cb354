package gateway

import (
	"context"
	"sort"
	"sync"

	"github.com/jonwraymond/railops/observe"
	"github.com/jonwraymond/railops/resilience"
)

// Config configures a Gateway.
type Config struct {
	// Default supplies thresholds for fields a policy leaves zero and for
	// operations without an entry in Policies.
	Default PolicyConfig `mapstructure:"default" yaml:"default"`

	// Policies maps operation names to their thresholds.
	Policies map[string]PolicyConfig `mapstructure:"policies" yaml:"policies"`

	// Retryable decides which failures are retried.
	// Default: resilience.IsTransient
	Retryable func(error) bool `mapstructure:"-" yaml:"-"`

	// Middleware instruments every call. Nil disables instrumentation.
	Middleware *observe.Middleware `mapstructure:"-" yaml:"-"`
}

// Gateway holds the named policies shared by all callers.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: Call returns only *apierr.Error failures.
type Gateway struct {
	config Config
	mw     *observe.Middleware
	logger observe.Logger

	mu       sync.Mutex
	policies map[string]*Policy
}

// New creates a Gateway.
func New(config Config) *Gateway {
	if config.Retryable == nil {
		config.Retryable = resilience.IsTransient
	}
	mw := config.Middleware
	if mw == nil {
		mw = observe.NewMiddleware(nil, nil, nil)
	}
	return &Gateway{
		config:   config,
		mw:       mw,
		logger:   mw.Logger().With(observe.Meta{Component: "gateway", Name: "policies"}),
		policies: make(map[string]*Policy),
	}
}

// Policy returns the policy for name, creating it on first use.
func (g *Gateway) Policy(name string) *Policy {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.policies[name]; ok {
		return p
	}
	cfg := g.config.Policies[name].merge(g.config.Default)
	p := newPolicy(name, cfg, g.config.Retryable, g.onStateChange)
	g.policies[name] = p
	return p
}

// Policies returns every policy created so far, sorted by name.
func (g *Gateway) Policies() []*Policy {
	g.mu.Lock()
	out := make([]*Policy, 0, len(g.policies))
	for _, p := range g.policies {
		out = append(out, p)
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Warm creates the policies for every configured operation so health
// reports list them before their first call.
func (g *Gateway) Warm() {
	for name := range g.config.Policies {
		g.Policy(name)
	}
}

func (g *Gateway) onStateChange(name string, from, to resilience.State) {
	fields := []observe.Field{
		observe.F("policy", name),
		observe.F("from", from.String()),
		observe.F("to", to.String()),
	}
	// Runs under the breaker lock; logging only.
	if to == resilience.StateOpen {
		g.logger.Warn(context.Background(), "circuit breaker opened", fields...)
		return
	}
	g.logger.Info(context.Background(), "circuit breaker state changed", fields...)
}

// Call runs raw under the named policy. The returned error, if any, is an
// *apierr.Error.
func Call[T any](ctx context.Context, g *Gateway, policy string, raw func(context.Context) (T, error)) (T, error) {
	p := g.Policy(policy)
	meta := observe.Meta{Component: "gateway", Name: policy, Endpoint: p.config.Endpoint}

	// An attempt abandoned by the attempt timeout may still return later, so
	// the result slot is sealed once the chain has returned.
	var (
		mu     sync.Mutex
		result T
		sealed bool
	)
	err := g.mw.Wrap(func(ctx context.Context, _ observe.Meta) error {
		return p.executor.Execute(ctx, func(ctx context.Context) error {
			v, err := raw(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			if !sealed {
				result = v
			}
			mu.Unlock()
			return nil
		})
	})(ctx, meta)

	mu.Lock()
	sealed = true
	out := result
	mu.Unlock()

	if err != nil {
		var zero T
		return zero, Translate(err, p.config.Endpoint)
	}
	return out, nil
}
