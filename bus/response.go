package bus

import (
	"context"

	"github.com/jonwraymond/railops/correlation"
	"github.com/jonwraymond/railops/observe"
)

// ResponseHandler feeds response events into a correlation registry.
//
// SUCCESS responses resolve and ERROR responses fail the entry named by the
// correlation id header or, without one, by the event key. When the event
// key is empty the domain key is derived from the decoded value with KeyOf.
type ResponseHandler[V any] struct {
	registry *correlation.Registry[V]
	keyOf    func(V) string
	logger   observe.Logger
}

// NewResponseHandler creates a ResponseHandler for reg. keyOf may be nil.
func NewResponseHandler[V any](reg *correlation.Registry[V], keyOf func(V) string, logger observe.Logger) *ResponseHandler[V] {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &ResponseHandler[V]{
		registry: reg,
		keyOf:    keyOf,
		logger:   logger.With(observe.Meta{Component: "bus", Name: reg.Name()}),
	}
}

// HandleMessage implements Handler.
func (h *ResponseHandler[V]) HandleMessage(ctx context.Context, msg Message) error {
	id := msg.Headers.CorrelationID
	if id != "" {
		h.logger.Info(ctx, "processing response with correlation id",
			observe.F("correlation_id", id), observe.F("created_at", msg.Payload.CreatedAt))
	} else {
		h.logger.Info(ctx, "processing response without correlation id",
			observe.F("key", msg.Payload.Key), observe.F("created_at", msg.Payload.CreatedAt))
	}

	resp, err := msg.Payload.Response()
	if err != nil {
		return err
	}

	switch resp.Type {
	case ResponseSuccess:
		var v V
		if err := resp.Decode(&v); err != nil {
			// Fail the waiter now rather than at its timeout.
			h.fail(ctx, id, resp.Key, err)
			return err
		}
		if id != "" {
			h.registry.ResolveCorrelation(ctx, id, v)
			return nil
		}
		key := resp.Key
		if key == "" && h.keyOf != nil {
			key = h.keyOf(v)
		}
		if key == "" {
			return ErrMissingKey
		}
		h.registry.Resolve(ctx, key, v)
		return nil

	case ResponseError:
		h.logger.Debug(ctx, "received an error response",
			observe.F("key", resp.Key), observe.F("status", resp.Data.Status), observe.F("message", resp.Data.Message))
		h.fail(ctx, id, resp.Key, resp.Err())
		return nil

	default:
		return ErrUnknownEventType
	}
}

func (h *ResponseHandler[V]) fail(ctx context.Context, id, key string, cause error) {
	switch {
	case id != "":
		h.registry.FailCorrelation(ctx, id, cause)
	case key != "":
		h.registry.Fail(ctx, key, cause)
	}
}
