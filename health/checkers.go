package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/railops/gateway"
	"github.com/jonwraymond/railops/resilience"
)

// GatewayChecker reports the circuit breakers of a gateway. Any open breaker
// degrades the service: its operation fails fast while the rest keep working.
type GatewayChecker struct {
	gw *gateway.Gateway
}

// NewGatewayChecker creates a GatewayChecker.
func NewGatewayChecker(gw *gateway.Gateway) *GatewayChecker {
	return &GatewayChecker{gw: gw}
}

// Name implements Checker.
func (c *GatewayChecker) Name() string { return "gateway" }

// Check implements Checker.
func (c *GatewayChecker) Check(context.Context) Result {
	states := make(map[string]any)
	var open []string
	for _, p := range c.gw.Policies() {
		s := p.Breaker().State()
		states[p.Name()] = s.String()
		if s == resilience.StateOpen {
			open = append(open, p.Name())
		}
	}

	if len(open) > 0 {
		return Degraded(fmt.Sprintf("circuit open for %v", open)).WithDetails(states)
	}
	return Healthy("all circuits closed").WithDetails(states)
}

// RedisChecker pings a Redis server.
type RedisChecker struct {
	name string
	rdb  redis.UniversalClient
}

// NewRedisChecker creates a RedisChecker reported under name.
func NewRedisChecker(name string, rdb redis.UniversalClient) *RedisChecker {
	return &RedisChecker{name: name, rdb: rdb}
}

// Name implements Checker.
func (c *RedisChecker) Name() string { return c.name }

// Check implements Checker.
func (c *RedisChecker) Check(ctx context.Context) Result {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return Unhealthy("redis unreachable", err)
	}
	return Healthy("redis reachable")
}

// Backlog is a queue of pending work, such as a correlation registry.
type Backlog interface {
	Name() string
	Pending() int
	Oldest() time.Duration
}

// BacklogConfig sets the thresholds of a BacklogChecker.
type BacklogConfig struct {
	// MaxPending degrades the service when exceeded.
	// Default: 1000
	MaxPending int

	// MaxAge degrades the service when the oldest entry is older.
	// Default: 1 minute
	MaxAge time.Duration
}

// BacklogChecker degrades the service while a backlog is too long or its
// oldest entry is too old, which happens when responders stop answering.
type BacklogChecker struct {
	backlog Backlog
	config  BacklogConfig
}

// NewBacklogChecker creates a BacklogChecker.
func NewBacklogChecker(b Backlog, config BacklogConfig) *BacklogChecker {
	if config.MaxPending <= 0 {
		config.MaxPending = 1000
	}
	if config.MaxAge <= 0 {
		config.MaxAge = time.Minute
	}
	return &BacklogChecker{backlog: b, config: config}
}

// Name implements Checker.
func (c *BacklogChecker) Name() string { return "backlog." + c.backlog.Name() }

// Check implements Checker.
func (c *BacklogChecker) Check(context.Context) Result {
	pending, oldest := c.backlog.Pending(), c.backlog.Oldest()
	details := map[string]any{
		"pending": pending,
		"oldest":  oldest.String(),
	}

	switch {
	case pending > c.config.MaxPending:
		return Degraded(fmt.Sprintf("%d requests pending", pending)).WithDetails(details)
	case oldest > c.config.MaxAge:
		return Degraded(fmt.Sprintf("oldest request pending for %s", oldest.Round(time.Second))).WithDetails(details)
	default:
		return Healthy("backlog within limits").WithDetails(details)
	}
}
