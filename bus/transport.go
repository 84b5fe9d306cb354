package bus

import "context"

// Publisher sends messages to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg Message) error
}

// Subscriber delivers the messages of a channel. The returned channel is
// closed once ctx is done or the transport is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
}

// Transport is a publish/subscribe message bus.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Delivery: at most once; a message published before a subscription
//     exists is not delivered to it.
type Transport interface {
	Publisher
	Subscriber
	Close() error
}
