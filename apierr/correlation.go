package apierr

import (
	"fmt"
	"time"
)

// CorrelationTimeoutError is returned to waiters when no resolution arrived
// within the registry's wait window.
type CorrelationTimeoutError struct {
	// Registry names the registry that gave up, e.g. "coordinates".
	Registry string
	// Key is the domain key or correlation identifier waited on.
	Key string
	// Timeout is the configured wait window.
	Timeout time.Duration
}

func (e *CorrelationTimeoutError) Error() string {
	return fmt.Sprintf("%s: no response for %q within %s", e.Registry, e.Key, e.Timeout)
}

// ServiceResponseError is returned to waiters when the responding service
// explicitly reported a failure over the bus.
type ServiceResponseError struct {
	// Message summarises what could not be obtained.
	Message string
	// Cause is the original failure descriptor.
	Cause error
}

// NewServiceResponseError wraps cause.
func NewServiceResponseError(message string, cause error) *ServiceResponseError {
	return &ServiceResponseError{Message: message, Cause: cause}
}

func (e *ServiceResponseError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

// Unwrap returns the original failure.
func (e *ServiceResponseError) Unwrap() error {
	return e.Cause
}
