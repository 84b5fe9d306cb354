package bus

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind distinguishes requests from responses.
type Kind string

const (
	KindRequest  Kind = "REQUEST"
	KindResponse Kind = "RESPONSE"
)

// ResponseType is the outcome carried by a response event.
type ResponseType string

const (
	ResponseSuccess ResponseType = "SUCCESS"
	ResponseError   ResponseType = "ERROR"
)

// Headers carry routing metadata beside the payload.
type Headers struct {
	// ID uniquely identifies the message.
	ID string `json:"id"`

	// CorrelationID ties a response to the request that caused it. Empty
	// for domain-keyed traffic.
	CorrelationID string `json:"correlationId,omitempty"`
}

// Message is the bus envelope.
type Message struct {
	Headers Headers `json:"headers"`
	Payload Event   `json:"payload"`
}

// Event is a request or response payload.
type Event struct {
	Kind Kind `json:"kind"`

	// Type is set on responses only.
	Type ResponseType `json:"type,omitempty"`

	// Key is the domain key the event concerns, e.g. a station name.
	Key string `json:"key"`

	CreatedAt time.Time       `json:"eventCreatedAt"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ResponseData is the body of a response event. On SUCCESS Message holds
// the JSON encoded value; on ERROR it holds the failure description.
type ResponseData struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ResponseEvent is the decoded form of a response Event.
type ResponseEvent struct {
	Type      ResponseType
	Key       string
	CreatedAt time.Time
	Data      ResponseData
}

// NewRequest builds a request event for key carrying data as JSON.
func NewRequest(key string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("bus: encoding request for %q: %w", key, err)
	}
	return Event{Kind: KindRequest, Key: key, CreatedAt: time.Now().UTC(), Data: raw}, nil
}

// NewSuccess builds a SUCCESS response carrying v.
func NewSuccess(key string, v any) (Event, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("bus: encoding response for %q: %w", key, err)
	}
	return newResponse(ResponseSuccess, key, ResponseData{Message: string(body), Status: 200})
}

// NewFailure builds an ERROR response.
func NewFailure(key string, status int, message string) (Event, error) {
	return newResponse(ResponseError, key, ResponseData{Message: message, Status: status})
}

func newResponse(typ ResponseType, key string, data ResponseData) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: KindResponse, Type: typ, Key: key, CreatedAt: time.Now().UTC(), Data: raw}, nil
}

// Response decodes e as a response event.
func (e Event) Response() (ResponseEvent, error) {
	if e.Kind != KindResponse {
		return ResponseEvent{}, fmt.Errorf("%w: %q", ErrUnexpectedEvent, e.Kind)
	}
	switch e.Type {
	case ResponseSuccess, ResponseError:
	default:
		return ResponseEvent{}, fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}

	var data ResponseData
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return ResponseEvent{}, fmt.Errorf("bus: decoding response data: %w", err)
		}
	}
	return ResponseEvent{Type: e.Type, Key: e.Key, CreatedAt: e.CreatedAt, Data: data}, nil
}

// Decode unmarshals the SUCCESS body into v.
func (r ResponseEvent) Decode(v any) error {
	if err := json.Unmarshal([]byte(r.Data.Message), v); err != nil {
		return fmt.Errorf("bus: decoding %s response for %q: %w", r.Type, r.Key, err)
	}
	return nil
}

// Err returns the failure described by an ERROR response, or nil.
func (r ResponseEvent) Err() error {
	if r.Type != ResponseError {
		return nil
	}
	msg := r.Data.Message
	if msg == "" {
		msg = "unexpected error response"
	}
	return &RemoteError{Key: r.Key, Status: r.Data.Status, Message: msg}
}
