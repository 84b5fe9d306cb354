package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/railops/observe"
)

// RedisTransport carries JSON encoded messages over Redis pub/sub.
type RedisTransport struct {
	rdb    redis.UniversalClient
	prefix string
	logger observe.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// RedisOption configures a RedisTransport.
type RedisOption func(*RedisTransport)

// WithChannelPrefix prefixes every Redis channel name.
// Default: "railops"
func WithChannelPrefix(prefix string) RedisOption {
	return func(t *RedisTransport) { t.prefix = strings.Trim(prefix, ":") }
}

// WithLogger sets the logger used for undecodable messages.
func WithLogger(l observe.Logger) RedisOption {
	return func(t *RedisTransport) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewRedisTransport creates a RedisTransport on rdb.
func NewRedisTransport(rdb redis.UniversalClient, opts ...RedisOption) *RedisTransport {
	t := &RedisTransport{
		rdb:    rdb,
		prefix: "railops",
		logger: observe.NopLogger(),
		subs:   make(map[*redis.PubSub]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(observe.Meta{Component: "bus", Name: "redis"})
	return t
}

func (t *RedisTransport) channel(name string) string {
	if t.prefix == "" {
		return name
	}
	return t.prefix + ":" + name
}

// Publish encodes msg as JSON and publishes it.
func (t *RedisTransport) Publish(ctx context.Context, channel string, msg Message) error {
	if channel == "" {
		return ErrNoChannel
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bus: encoding message %s: %w", msg.Headers.ID, err)
	}
	if err := t.rdb.Publish(ctx, t.channel(channel), body).Err(); err != nil {
		return fmt.Errorf("bus: publishing to %s: %w", channel, err)
	}
	return nil
}

// Subscribe subscribes to channel and waits for Redis to confirm the
// subscription before returning.
func (t *RedisTransport) Subscribe(ctx context.Context, channel string) (<-chan Message, error) {
	if channel == "" {
		return nil, ErrNoChannel
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	ps := t.rdb.Subscribe(ctx, t.channel(channel))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("bus: subscribing to %s: %w", channel, err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = ps.Close()
		return nil, ErrTransportClosed
	}
	t.subs[ps] = struct{}{}
	t.mu.Unlock()

	out := make(chan Message)
	go func() {
		defer close(out)
		defer t.release(ps)

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case rm, ok := <-in:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(rm.Payload), &msg); err != nil {
					t.logger.Error(ctx, "dropping undecodable message",
						observe.F("channel", channel), observe.F("error", err))
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (t *RedisTransport) release(ps *redis.PubSub) {
	t.mu.Lock()
	delete(t.subs, ps)
	t.mu.Unlock()
	_ = ps.Close()
}

// Close ends every subscription. The Redis client itself is left open.
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	subs := make([]*redis.PubSub, 0, len(t.subs))
	for ps := range t.subs {
		subs = append(subs, ps)
	}
	t.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	return nil
}

var _ Transport = (*RedisTransport)(nil)
