package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonwraymond/railops/observe"
)

// Flusher is anything whose contents can be evicted wholesale.
type Flusher interface {
	EvictAll(ctx context.Context) error
}

// Evictor flushes a set of stores on a fixed interval.
type Evictor struct {
	interval time.Duration
	targets  map[string]Flusher
	logger   observe.Logger
}

// NewEvictor creates an Evictor. A non-positive interval defaults to 24h.
func NewEvictor(interval time.Duration, logger observe.Logger) *Evictor {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Evictor{
		interval: interval,
		targets:  make(map[string]Flusher),
		logger:   logger.With(observe.Meta{Component: "cache", Name: "evictor"}),
	}
}

// Add registers a target under name. Add must not be called after Run.
func (e *Evictor) Add(name string, f Flusher) {
	e.targets[name] = f
}

// Names returns the registered target names, sorted.
func (e *Evictor) Names() []string {
	names := make([]string, 0, len(e.targets))
	for name := range e.targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// EvictNow flushes every target and joins their errors.
func (e *Evictor) EvictNow(ctx context.Context) error {
	var errs []error
	for name := range e.targets {
		if err := e.Evict(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Evict flushes the target registered under name.
func (e *Evictor) Evict(ctx context.Context, name string) error {
	f, ok := e.targets[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	if err := f.EvictAll(ctx); err != nil {
		e.logger.Error(ctx, "cache eviction failed", observe.F("cache", name), observe.F("error", err))
		return err
	}
	e.logger.Info(ctx, "cache evicted", observe.F("cache", name))
	return nil
}

// Run evicts on every tick until ctx is done.
func (e *Evictor) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = e.EvictNow(ctx)
		}
	}
}
