package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validate reports every problem with the configuration, joined.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Service.Addr == "" {
		fail("service.addr is required")
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalid, err))
	}

	switch c.Bus.Transport {
	case TransportNone, TransportMemory:
	case TransportRedis:
		if c.Redis.Addr == "" {
			fail("bus.transport redis requires redis.addr")
		}
	default:
		fail("bus.transport %q must be one of none, memory, redis", c.Bus.Transport)
	}
	if c.Bus.Workers < 0 {
		fail("bus.workers must not be negative")
	}

	for name, r := range map[string]RegistryConfig{
		"coordinates": c.Registries.Coordinates,
		"weather":     c.Registries.Weather,
	} {
		if r.WaitSeconds <= 0 {
			fail("registries.%s.wait_seconds must be positive", name)
		}
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Redis.Addr == "" {
			fail("cache.backend redis requires redis.addr")
		}
	default:
		fail("cache.backend %q must be memory or redis", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 || c.Cache.EvictionInterval < 0 {
		fail("cache durations must not be negative")
	}

	for name, p := range c.Gateway.Policies {
		if p.Rate < 0 || p.Burst < 0 || p.MaxAttempts < 0 || p.MaxConcurrent < 0 {
			fail("gateway.policies.%s: limits must not be negative", name)
		}
		if p.FailureRate < 0 || p.FailureRate > 1 {
			fail("gateway.policies.%s.failure_rate must be within [0, 1]", name)
		}
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		fail("auth.jwt_secret is required when auth is enabled")
	}

	for name, raw := range map[string]string{
		"geocoding": c.Collectors.Geocoding.BaseURL,
		"weather":   c.Collectors.Weather.BaseURL,
		"timetable": c.Collectors.Timetable.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			fail("collectors.%s.base_url %q is not an absolute URL", name, raw)
		}
	}
	if _, err := time.LoadLocation(c.Collectors.Weather.Timezone); err != nil {
		fail("collectors.weather.timezone: %v", err)
	}

	return errors.Join(errs...)
}
