package bus

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonwraymond/railops/observe"
)

// Sender publishes request events to one channel.
type Sender struct {
	pub     Publisher
	channel string
	logger  observe.Logger
}

// NewSender creates a Sender publishing to channel.
func NewSender(pub Publisher, channel string, logger observe.Logger) *Sender {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Sender{
		pub:     pub,
		channel: channel,
		logger:  logger.With(observe.Meta{Component: "bus", Name: "sender"}),
	}
}

// Channel returns the destination channel.
func (s *Sender) Channel() string { return s.channel }

// Send publishes a domain-keyed request; the response is expected to carry
// key and no correlation id.
func (s *Sender) Send(ctx context.Context, key string, data any) error {
	return s.send(ctx, key, "", data)
}

// NewCorrelationID returns a fresh correlation id. Register the wait for it
// before calling Request so the reply cannot arrive first.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Request publishes a request carrying correlationID. An empty id is
// rejected without sending.
func (s *Sender) Request(ctx context.Context, correlationID, key string, data any) error {
	if correlationID == "" {
		s.logger.Warn(ctx, "no correlation id, request not sent", observe.F("key", key))
		return ErrMissingCorrelationID
	}
	return s.send(ctx, key, correlationID, data)
}

func (s *Sender) send(ctx context.Context, key, correlationID string, data any) error {
	ev, err := NewRequest(key, data)
	if err != nil {
		return err
	}
	msg := Message{
		Headers: Headers{ID: uuid.NewString(), CorrelationID: correlationID},
		Payload: ev,
	}

	if err := s.pub.Publish(ctx, s.channel, msg); err != nil {
		s.logger.Error(ctx, "failed to send request",
			observe.F("channel", s.channel), observe.F("key", key), observe.F("correlation_id", correlationID), observe.F("error", err))
		return fmt.Errorf("bus: sending request for %q: %w", key, err)
	}
	s.logger.Info(ctx, "request sent",
		observe.F("channel", s.channel), observe.F("key", key), observe.F("correlation_id", correlationID))
	return nil
}
