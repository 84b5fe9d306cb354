package bus

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonwraymond/railops/apierr"
	"github.com/jonwraymond/railops/observe"
)

// ResponderFunc answers one request event.
type ResponderFunc func(ctx context.Context, req Event) (any, error)

// Responder answers request events and publishes the outcome as a response
// event on a reply channel, keeping the request key and correlation id.
type Responder struct {
	pub     Publisher
	replyTo string
	fn      ResponderFunc
	logger  observe.Logger
}

// NewResponder creates a Responder publishing replies to replyTo.
func NewResponder(pub Publisher, replyTo string, fn ResponderFunc, logger observe.Logger) *Responder {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Responder{
		pub:     pub,
		replyTo: replyTo,
		fn:      fn,
		logger:  logger.With(observe.Meta{Component: "bus", Name: "responder"}),
	}
}

// HandleMessage implements Handler.
func (r *Responder) HandleMessage(ctx context.Context, msg Message) error {
	req := msg.Payload
	if req.Kind != KindRequest {
		return fmt.Errorf("%w: %q", ErrUnexpectedEvent, req.Kind)
	}

	v, err := r.fn(ctx, req)

	var ev Event
	if err != nil {
		r.logger.Warn(ctx, "request failed", observe.F("key", req.Key), observe.F("error", err))
		ev, err = NewFailure(req.Key, apierr.HTTPStatus(err), apierr.Response(err).Message)
	} else {
		ev, err = NewSuccess(req.Key, v)
	}
	if err != nil {
		return err
	}

	reply := Message{
		Headers: Headers{ID: uuid.NewString(), CorrelationID: msg.Headers.CorrelationID},
		Payload: ev,
	}
	if err := r.pub.Publish(ctx, r.replyTo, reply); err != nil {
		return fmt.Errorf("bus: replying to %q: %w", req.Key, err)
	}
	return nil
}
