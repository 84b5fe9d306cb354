package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/railops/correlation"
	"github.com/jonwraymond/railops/observe"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Namespace prefixes every key, e.g. "coordinates".
	Namespace string

	// Policy sets the TTL of writes.
	// Default: UntilEvictedPolicy()
	Policy Policy

	// Keyer derives keys from domain keys.
	// Default: DefaultKeyer
	Keyer Keyer

	// Logger receives decode failures.
	// Default: no-op
	Logger observe.Logger
}

// Store is a typed JSON view over a Cache. It implements correlation.Sink so
// a registry can write resolved values through it.
type Store[V any] struct {
	cache  Cache
	config StoreConfig
	logger observe.Logger
}

// NewStore creates a Store over c.
func NewStore[V any](c Cache, config StoreConfig) (*Store[V], error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if config.Keyer == nil {
		config.Keyer = NewDefaultKeyer()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Store[V]{
		cache:  c,
		config: config,
		logger: config.Logger.With(observe.Meta{Component: "cache", Name: config.Namespace}),
	}, nil
}

// Namespace returns the store namespace.
func (s *Store[V]) Namespace() string { return s.config.Namespace }

// Get returns the value for key. Undecodable entries are dropped and
// reported as misses.
func (s *Store[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	k, err := s.config.Keyer.Key(s.config.Namespace, key)
	if err != nil {
		return zero, false
	}
	raw, ok := s.cache.Get(ctx, k)
	if !ok {
		return zero, false
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn(ctx, "dropping undecodable cache entry", observe.F("key", k), observe.F("error", err))
		_ = s.cache.Delete(ctx, k)
		return zero, false
	}
	return v, true
}

// Cache stores v under key.
func (s *Store[V]) Cache(ctx context.Context, key string, v V) error {
	k, err := s.config.Keyer.Key(s.config.Namespace, key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encoding %s: %w", k, err)
	}
	return s.cache.Set(ctx, k, raw, s.config.Policy.EffectiveTTL(0))
}

// Evict removes the value for key.
func (s *Store[V]) Evict(ctx context.Context, key string) error {
	k, err := s.config.Keyer.Key(s.config.Namespace, key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, k)
}

// EvictAll removes every value in the underlying cache.
func (s *Store[V]) EvictAll(ctx context.Context) error {
	return s.cache.Flush(ctx)
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. Load errors are returned and never cached; cache write failures
// are logged.
func (s *Store[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := s.Get(ctx, key); ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if err := s.Cache(ctx, key, v); err != nil {
		s.logger.Warn(ctx, "cache write failed", observe.F("key", key), observe.F("error", err))
	}
	return v, nil
}

var _ correlation.Sink[struct{}] = (*Store[struct{}])(nil)
