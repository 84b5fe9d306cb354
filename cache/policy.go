package cache

import "time"

// Policy configures how long stored values live.
type Policy struct {
	// TTL is applied to every write. Zero keeps values until they are
	// evicted.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// MaxTTL caps TTL overrides. If zero, no maximum is enforced.
	MaxTTL time.Duration `mapstructure:"max_ttl" yaml:"max_ttl"`
}

// DefaultPolicy keeps values for 12 hours, matching the weather snapshot
// lifetime.
// TTL: 12 hours, MaxTTL: 24 hours
func DefaultPolicy() Policy {
	return Policy{
		TTL:    12 * time.Hour,
		MaxTTL: 24 * time.Hour,
	}
}

// UntilEvictedPolicy keeps values until an explicit eviction, as used for
// station coordinates.
func UntilEvictedPolicy() Policy {
	return Policy{}
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.TTL
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}
