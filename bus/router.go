package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/railops/observe"
)

// Handler processes one message. Returned errors are logged by the Router.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// RouterConfig configures a Router.
type RouterConfig struct {
	// Workers bounds the number of messages handled concurrently across
	// all channels.
	// Default: 8
	Workers int

	// Logger receives dispatch failures.
	// Default: no-op
	Logger observe.Logger
}

// Router drains channel subscriptions into a bounded worker pool. Intake
// goroutines only read from the transport; handlers run on the pool.
//
// Contract:
//   - Concurrency: Handle must not be called after Start.
//   - Backpressure: when every worker is busy, intake blocks.
type Router struct {
	sub     Subscriber
	workers int
	logger  observe.Logger
	routes  map[string]Handler

	mu      sync.Mutex
	started bool
	done    chan struct{}
	err     error
}

// NewRouter creates a Router reading from sub.
func NewRouter(sub Subscriber, config RouterConfig) *Router {
	if config.Workers <= 0 {
		config.Workers = 8
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Router{
		sub:     sub,
		workers: config.Workers,
		logger:  config.Logger.With(observe.Meta{Component: "bus", Name: "router"}),
		routes:  make(map[string]Handler),
		done:    make(chan struct{}),
	}
}

// Handle routes messages of channel to h.
func (r *Router) Handle(channel string, h Handler) {
	r.routes[channel] = h
}

// Channels returns the routed channel names, sorted.
func (r *Router) Channels() []string {
	out := make([]string, 0, len(r.routes))
	for ch := range r.routes {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Start subscribes to every routed channel and begins dispatching. It
// returns once all subscriptions are established; dispatching stops when
// ctx is done.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRouterStarted
	}
	r.started = true
	r.mu.Unlock()

	type subscription struct {
		channel string
		handler Handler
		msgs    <-chan Message
	}

	subCtx, cancel := context.WithCancel(ctx)
	subs := make([]subscription, 0, len(r.routes))
	for _, ch := range r.Channels() {
		msgs, err := r.sub.Subscribe(subCtx, ch)
		if err != nil {
			cancel()
			r.finish(err)
			return fmt.Errorf("bus: router subscribe %s: %w", ch, err)
		}
		subs = append(subs, subscription{channel: ch, handler: r.routes[ch], msgs: msgs})
	}

	var intake errgroup.Group
	var pool errgroup.Group
	pool.SetLimit(r.workers)

	for _, s := range subs {
		intake.Go(func() error {
			for msg := range s.msgs {
				pool.Go(func() error {
					r.dispatch(ctx, s.channel, s.handler, msg)
					return nil
				})
			}
			return nil
		})
	}

	go func() {
		defer cancel()
		err := intake.Wait()
		_ = pool.Wait()
		r.finish(err)
	}()

	r.logger.Info(ctx, "router started", observe.F("channels", r.Channels()), observe.F("workers", r.workers))
	return nil
}

func (r *Router) finish(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	close(r.done)
}

// Wait blocks until a started Router has drained every subscription.
func (r *Router) Wait() error {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Run starts the router and waits for it to stop.
func (r *Router) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	return r.Wait()
}

func (r *Router) dispatch(ctx context.Context, channel string, h Handler, msg Message) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error(ctx, "message handler panicked",
				observe.F("channel", channel), observe.F("id", msg.Headers.ID), observe.F("panic", fmt.Sprint(p)))
		}
	}()

	r.logger.Debug(ctx, "message received",
		observe.F("channel", channel),
		observe.F("id", msg.Headers.ID),
		observe.F("correlation_id", msg.Headers.CorrelationID),
	)
	if err := h.HandleMessage(ctx, msg); err != nil {
		r.logger.Error(ctx, "message handling failed",
			observe.F("channel", channel),
			observe.F("id", msg.Headers.ID),
			observe.F("key", msg.Payload.Key),
			observe.F("error", err),
		)
	}
}
