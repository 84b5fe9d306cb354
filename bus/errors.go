package bus

import (
	"errors"
	"fmt"
)

// Sentinel errors for bus operations.
var (
	// ErrUnknownEventType is returned for a response whose type is neither
	// SUCCESS nor ERROR.
	ErrUnknownEventType = errors.New("bus: unknown event type")

	// ErrUnexpectedEvent is returned when a handler receives an event kind it
	// does not process.
	ErrUnexpectedEvent = errors.New("bus: unexpected event kind")

	// ErrTransportClosed is returned by a closed transport.
	ErrTransportClosed = errors.New("bus: transport closed")

	// ErrNoChannel is returned when a message is published without a channel.
	ErrNoChannel = errors.New("bus: channel is required")

	// ErrMissingKey is returned for a domain-keyed response whose key cannot
	// be determined.
	ErrMissingKey = errors.New("bus: response has no key")

	// ErrMissingCorrelationID is returned by Sender.Request without an id.
	ErrMissingCorrelationID = errors.New("bus: correlation id is required")

	// ErrRouterStarted is returned by Start on a running Router.
	ErrRouterStarted = errors.New("bus: router already started")
)

// RemoteError is the failure reported by an ERROR response event.
type RemoteError struct {
	Key     string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("responder failed for %q with status %d: %s", e.Key, e.Status, e.Message)
	}
	return fmt.Sprintf("responder failed for %q: %s", e.Key, e.Message)
}

// StatusCode returns the status reported by the responder.
func (e *RemoteError) StatusCode() int { return e.Status }
