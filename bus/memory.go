package bus

import (
	"context"
	"sync"
)

// MemoryTransport is an in-process Transport. Publish blocks while a
// subscriber's buffer is full, until ctx is done.
type MemoryTransport struct {
	buffer int

	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

func (s *memorySub) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewMemoryTransport creates a MemoryTransport whose subscriptions buffer
// up to buffer messages. A non-positive buffer defaults to 64.
func NewMemoryTransport(buffer int) *MemoryTransport {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryTransport{
		buffer: buffer,
		subs:   make(map[string]map[*memorySub]struct{}),
	}
}

// Publish delivers msg to every current subscriber of channel.
func (t *MemoryTransport) Publish(ctx context.Context, channel string, msg Message) error {
	if channel == "" {
		return ErrNoChannel
	}

	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrTransportClosed
	}
	subs := make([]*memorySub, 0, len(t.subs[channel]))
	for s := range t.subs[channel] {
		subs = append(subs, s)
	}
	t.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- msg:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a subscription on channel.
func (t *MemoryTransport) Subscribe(ctx context.Context, channel string) (<-chan Message, error) {
	if channel == "" {
		return nil, ErrNoChannel
	}

	sub := &memorySub{ch: make(chan Message, t.buffer), done: make(chan struct{})}
	inner := make(chan Message)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	if t.subs[channel] == nil {
		t.subs[channel] = make(map[*memorySub]struct{})
	}
	t.subs[channel][sub] = struct{}{}
	t.mu.Unlock()

	go func() {
		defer close(inner)
		defer t.remove(channel, sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case msg := <-sub.ch:
				select {
				case inner <- msg:
				case <-ctx.Done():
					return
				case <-sub.done:
					return
				}
			}
		}
	}()
	return inner, nil
}

func (t *MemoryTransport) remove(channel string, sub *memorySub) {
	sub.stop()
	t.mu.Lock()
	delete(t.subs[channel], sub)
	if len(t.subs[channel]) == 0 {
		delete(t.subs, channel)
	}
	t.mu.Unlock()
}

// Subscribers returns the number of live subscriptions on channel.
func (t *MemoryTransport) Subscribers(channel string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs[channel])
}

// Close ends every subscription.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	var all []*memorySub
	for _, subs := range t.subs {
		for s := range subs {
			all = append(all, s)
		}
	}
	t.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
	return nil
}

var _ Transport = (*MemoryTransport)(nil)
