package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/railops/apierr"
	"github.com/jonwraymond/railops/observe"
)

// Space selects the namespace of a Key.
type Space int

const (
	// SpaceDomain keys are business identifiers such as a station code.
	SpaceDomain Space = iota
	// SpaceCorrelation keys are correlation identifiers carried in bus
	// message headers.
	SpaceCorrelation
)

// String returns the string representation of the space.
func (s Space) String() string {
	switch s {
	case SpaceDomain:
		return "domain"
	case SpaceCorrelation:
		return "correlation"
	default:
		return "unknown"
	}
}

// Key identifies a pending entry. Keys in different spaces never collide.
type Key struct {
	Space Space
	Value string
}

// DomainKey returns the domain-space key for value.
func DomainKey(value string) Key { return Key{Space: SpaceDomain, Value: value} }

// CorrelationKey returns the correlation-space key for id.
func CorrelationKey(id string) Key { return Key{Space: SpaceCorrelation, Value: id} }

func (k Key) String() string {
	return k.Space.String() + ":" + k.Value
}

// Sink receives useful domain values. Errors are logged by the registry and
// never reach waiters.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Idempotency: Cache may be called again for the same key with a newer value.
type Sink[V any] interface {
	Cache(ctx context.Context, key string, v V) error
	EvictAll(ctx context.Context) error
}

// Config configures a Registry.
type Config[V any] struct {
	// Name identifies the registry in logs, metrics and timeout errors.
	Name string

	// Timeout is how long an entry stays pending before its waiters receive
	// *apierr.CorrelationTimeoutError.
	// Default: 30 seconds
	Timeout time.Duration

	// Useful reports whether a resolved value is worth caching.
	// Default: nil, nothing is cached.
	Useful func(V) bool

	// Cache receives useful domain values. Optional.
	Cache Sink[V]

	// Logger receives lifecycle events.
	// Default: no-op
	Logger observe.Logger

	// Metrics records pending gauges and completion outcomes.
	// Default: no-op
	Metrics observe.Metrics
}

type entry[V any] struct {
	key     Key
	future  *Future[V]
	created time.Time
	timer   *time.Timer
}

// Registry tracks pending requests and completes their futures.
type Registry[V any] struct {
	config  Config[V]
	logger  observe.Logger
	metrics observe.Metrics

	mu      sync.Mutex
	pending map[Key]*entry[V]
}

// New creates a registry.
func New[V any](config Config[V]) *Registry[V] {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = observe.NopMetrics()
	}

	return &Registry[V]{
		config:  config,
		logger:  config.Logger.With(observe.Meta{Component: "correlation", Name: config.Name}),
		metrics: config.Metrics,
		pending: make(map[Key]*entry[V]),
	}
}

// Name returns the registry name.
func (r *Registry[V]) Name() string {
	return r.config.Name
}

// Timeout returns the configured wait window.
func (r *Registry[V]) Timeout() time.Duration {
	return r.config.Timeout
}

// WaitFor returns the future for a domain key, creating the entry if none
// is pending.
func (r *Registry[V]) WaitFor(key string) *Future[V] {
	f, _ := r.Attach(DomainKey(key))
	return f
}

// WaitForCorrelation returns the future for a correlation identifier,
// creating the entry if none is pending.
func (r *Registry[V]) WaitForCorrelation(id string) *Future[V] {
	f, _ := r.Attach(CorrelationKey(id))
	return f
}

// Attach returns the future pending under key. created reports whether this
// call created the entry, in which case the caller is the one expected to
// issue the upstream request.
func (r *Registry[V]) Attach(key Key) (f *Future[V], created bool) {
	r.mu.Lock()
	if e, ok := r.pending[key]; ok {
		r.mu.Unlock()
		return e.future, false
	}

	e := &entry[V]{
		key:     key,
		future:  newFuture[V](),
		created: time.Now(),
	}
	e.timer = time.AfterFunc(r.config.Timeout, func() { r.expire(e) })
	r.pending[key] = e
	r.mu.Unlock()

	r.metrics.AddPending(context.Background(), r.config.Name, 1)
	r.logger.Info(context.Background(), "waiting for response",
		observe.F("key", key.Value),
		observe.F("space", key.Space.String()),
		observe.F("timeout", r.config.Timeout.String()),
	)
	return e.future, true
}

// Resolve completes the entry pending under a domain key with v. A useful v
// is forwarded to the cache whether or not an entry was pending; an
// unsolicited value that is not useful is dropped.
func (r *Registry[V]) Resolve(ctx context.Context, key string, v V) {
	e := r.complete(DomainKey(key), nil, v, nil)
	r.logger.Info(ctx, "response received",
		observe.F("key", key),
		observe.F("space", SpaceDomain.String()),
		observe.F("awaited", e != nil),
	)
	if e != nil {
		r.recordCompletion(ctx, e, observe.OutcomeResolved)
	}

	if r.useful(v) {
		r.forward(ctx, key, v)
	}
}

// ResolveCorrelation completes the entry pending under a correlation
// identifier with v. Values arriving with no pending entry are only logged.
func (r *Registry[V]) ResolveCorrelation(ctx context.Context, id string, v V) {
	e := r.complete(CorrelationKey(id), nil, v, nil)
	r.logger.Info(ctx, "response received",
		observe.F("key", id),
		observe.F("space", SpaceCorrelation.String()),
		observe.F("awaited", e != nil),
	)
	if e != nil {
		r.recordCompletion(ctx, e, observe.OutcomeResolved)
	}
}

// Fail completes the entry pending under a domain key with an
// *apierr.ServiceResponseError wrapping cause. Without a pending entry the
// failure is dropped.
func (r *Registry[V]) Fail(ctx context.Context, key string, cause error) {
	r.fail(ctx, DomainKey(key), cause)
}

// FailCorrelation is Fail for a correlation identifier.
func (r *Registry[V]) FailCorrelation(ctx context.Context, id string, cause error) {
	r.fail(ctx, CorrelationKey(id), cause)
}

func (r *Registry[V]) fail(ctx context.Context, key Key, cause error) {
	var zero V
	err := apierr.NewServiceResponseError(
		fmt.Sprintf("%s: responder could not provide %q", r.config.Name, key.Value), cause)

	e := r.complete(key, nil, zero, err)
	if e == nil {
		r.logger.Debug(ctx, "failure for unknown key dropped",
			observe.F("key", key.Value),
			observe.F("space", key.Space.String()),
			observe.F("error", cause),
		)
		return
	}

	r.logger.Warn(ctx, "request failed",
		observe.F("key", key.Value),
		observe.F("space", key.Space.String()),
		observe.F("error", cause),
	)
	r.recordCompletion(ctx, e, observe.OutcomeFailed)
}

func (r *Registry[V]) expire(e *entry[V]) {
	var zero V
	err := &apierr.CorrelationTimeoutError{
		Registry: r.config.Name,
		Key:      e.key.Value,
		Timeout:  r.config.Timeout,
	}
	if r.complete(e.key, e, zero, err) == nil {
		return
	}

	ctx := context.Background()
	r.logger.Warn(ctx, "response timed out",
		observe.F("key", e.key.Value),
		observe.F("space", e.key.Space.String()),
		observe.F("timeout", r.config.Timeout.String()),
	)
	r.recordCompletion(ctx, e, observe.OutcomeTimedOut)
}

// complete removes the entry under key and completes its future, all under
// one lock acquisition. When only is non-nil the entry is completed only if
// it is still the one pending. Returns the completed entry, or nil.
func (r *Registry[V]) complete(key Key, only *entry[V], v V, err error) *entry[V] {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[key]
	if !ok || (only != nil && e != only) {
		return nil
	}
	delete(r.pending, key)
	e.timer.Stop()
	e.future.complete(v, err)
	return e
}

func (r *Registry[V]) recordCompletion(ctx context.Context, e *entry[V], outcome string) {
	r.metrics.AddPending(ctx, r.config.Name, -1)
	r.metrics.RecordCompletion(ctx, r.config.Name, outcome, time.Since(e.created))
}

func (r *Registry[V]) useful(v V) bool {
	return r.config.Cache != nil && r.config.Useful != nil && r.config.Useful(v)
}

func (r *Registry[V]) forward(ctx context.Context, key string, v V) {
	err := r.config.Cache.Cache(ctx, key, v)
	r.metrics.RecordCacheForward(ctx, r.config.Name, err)
	if err != nil {
		r.logger.Error(ctx, "cache write failed", observe.F("key", key), observe.F("error", err))
	}
}

// Pending returns the number of pending entries.
func (r *Registry[V]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// IsPending reports whether a domain key has a pending entry.
func (r *Registry[V]) IsPending(key string) bool {
	return r.isPending(DomainKey(key))
}

// IsPendingCorrelation reports whether a correlation identifier has a
// pending entry.
func (r *Registry[V]) IsPendingCorrelation(id string) bool {
	return r.isPending(CorrelationKey(id))
}

func (r *Registry[V]) isPending(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[key]
	return ok
}

// Oldest returns how long the oldest pending entry has been waiting, or zero
// when nothing is pending.
func (r *Registry[V]) Oldest() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest time.Time
	for _, e := range r.pending {
		if oldest.IsZero() || e.created.Before(oldest) {
			oldest = e.created
		}
	}
	if oldest.IsZero() {
		return 0
	}
	return time.Since(oldest)
}

// Close completes every pending entry with ErrRegistryClosed. Entries
// attached afterwards behave normally.
func (r *Registry[V]) Close() {
	r.mu.Lock()
	drained := make([]*entry[V], 0, len(r.pending))
	var zero V
	for k, e := range r.pending {
		delete(r.pending, k)
		e.timer.Stop()
		e.future.complete(zero, ErrRegistryClosed)
		drained = append(drained, e)
	}
	r.mu.Unlock()

	ctx := context.Background()
	for _, e := range drained {
		r.recordCompletion(ctx, e, observe.OutcomeFailed)
	}
	if len(drained) > 0 {
		r.logger.Info(ctx, "registry closed", observe.F("discarded", len(drained)))
	}
}
