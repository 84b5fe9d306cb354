package apierr

import (
	"fmt"
	"net/http"

	perrors "github.com/jmgilman/go/errors"
)

// Kind discriminates the Error variants.
type Kind int

const (
	// KindInternal is a local failure: transport error, admission rejection,
	// open circuit or an unclassified error.
	KindInternal Kind = iota
	// KindExternal is a non-success status returned by the upstream.
	KindExternal
	// KindFormatMismatch is an upstream body that could not be parsed.
	KindFormatMismatch
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindExternal:
		return "external"
	case KindFormatMismatch:
		return "format_mismatch"
	default:
		return "unknown"
	}
}

// Messages used for the admission-control variants of KindInternal.
const (
	MessageRateLimitExceeded = "rate limit exceeded"
	MessageCircuitOpen       = "circuit breaker open"
	MessageBulkheadFull      = "too many concurrent requests"
	MessageTimeout           = "request timed out"
	MessageUnclassified      = "a runtime error occurred"
)

// Error is the tagged union every gateway caller observes.
type Error struct {
	Kind Kind

	// Status is the upstream HTTP status. Only set for KindExternal.
	Status int

	// URL is the upstream endpoint, when known.
	URL string

	// Message describes the failure. Empty for KindExternal.
	Message string

	// Cause is the underlying failure, if any.
	Cause error

	code perrors.ErrorCode
}

// External creates an error for a non-success upstream response.
func External(status int, url string) *Error {
	return &Error{
		Kind:   KindExternal,
		Status: status,
		URL:    url,
		code:   CodeForStatus(status),
	}
}

// Internal creates an error for a local failure.
func Internal(message, url string, cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		URL:     url,
		Message: message,
		Cause:   cause,
		code:    perrors.CodeInternal,
	}
}

// FormatMismatch creates an error for an upstream body of unexpected shape.
func FormatMismatch(message string, cause error, url string) *Error {
	return &Error{
		Kind:    KindFormatMismatch,
		URL:     url,
		Message: message,
		Cause:   cause,
		code:    perrors.CodeSchemaFailed,
	}
}

// WithCode returns a copy of e carrying code.
func (e *Error) WithCode(code perrors.ErrorCode) *Error {
	cp := *e
	cp.code = code
	return &cp
}

// Error implements error.
func (e *Error) Error() string {
	switch e.Kind {
	case KindExternal:
		return fmt.Sprintf("%s responded with status code %d", e.host(), e.Status)
	case KindFormatMismatch:
		return fmt.Sprintf("could not parse response from %s: %s", e.host(), e.Message)
	default:
		return fmt.Sprintf("couldn't send request to %s: %s", e.host(), e.Message)
	}
}

func (e *Error) host() string {
	if e.URL == "" {
		return "unknown external host"
	}
	return e.URL
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the platform error code.
func (e *Error) Code() perrors.ErrorCode {
	if e.code == "" {
		return perrors.CodeUnknown
	}
	return e.code
}

// Platform converts e into a platform error carrying its code, the public
// message and the endpoint metadata. The result wraps e.
func (e *Error) Platform() perrors.PlatformError {
	msg := e.Message
	if e.Kind == KindExternal || msg == "" {
		msg = e.Error()
	}
	ctx := map[string]interface{}{"kind": e.Kind.String()}
	if e.URL != "" {
		ctx["url"] = e.URL
	}
	if e.Status != 0 {
		ctx["status"] = e.Status
	}
	return perrors.WrapWithContext(e, e.Code(), msg, ctx)
}

// Retryable reports whether a higher layer may retry the failed operation.
func (e *Error) Retryable() bool {
	return e.Platform().Classification().IsRetryable()
}

// CodeForStatus maps an upstream HTTP status to a platform error code. 5xx,
// 429 and 408 map to retryable codes.
func CodeForStatus(status int) perrors.ErrorCode {
	switch {
	case status == http.StatusNotFound:
		return perrors.CodeNotFound
	case status == http.StatusUnauthorized:
		return perrors.CodeUnauthorized
	case status == http.StatusForbidden:
		return perrors.CodeForbidden
	case status == http.StatusConflict:
		return perrors.CodeConflict
	case status == http.StatusTooManyRequests:
		return perrors.CodeRateLimit
	case status == http.StatusRequestTimeout:
		return perrors.CodeTimeout
	case status >= 500:
		return perrors.CodeUnavailable
	case status >= 400:
		return perrors.CodeInvalidInput
	default:
		return perrors.CodeUnknown
	}
}
