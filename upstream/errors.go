package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"

	perrors "github.com/jmgilman/go/errors"

	"github.com/jonwraymond/railops/apierr"
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	Status int
	URL    string
	// Body holds at most the first KiB of the response body.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s returned status %d", e.URL, e.Status)
}

// StatusCode returns the HTTP status.
func (e *StatusError) StatusCode() int { return e.Status }

// RequestURL returns the requested URL.
func (e *StatusError) RequestURL() string { return e.URL }

// TransportError is a failure to obtain any response.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream: request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RequestURL returns the requested URL.
func (e *TransportError) RequestURL() string { return e.URL }

// DecodeError is a response body that could not be decoded.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("upstream: decoding response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RequestURL returns the requested URL.
func (e *DecodeError) RequestURL() string { return e.URL }

func statusFailure(status int, url, body string) error {
	return perrors.Wrap(&StatusError{Status: status, URL: url, Body: body},
		apierr.CodeForStatus(status), fmt.Sprintf("%s responded with status code %d", url, status))
}

func transportFailure(url string, err error) error {
	code := perrors.CodeNetwork
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		code = perrors.CodeTimeout
	}
	return perrors.Wrap(&TransportError{URL: url, Err: err}, code, "couldn't send request to "+url)
}

func decodeFailure(url string, err error) error {
	return perrors.Wrap(&DecodeError{URL: url, Err: err}, perrors.CodeSchemaFailed, "could not parse response from "+url)
}
