package apierr

import (
	"errors"
	"net/http"

	perrors "github.com/jmgilman/go/errors"
)

// HTTPStatus maps err to the status a downstream HTTP caller sees.
//
// Upstream 5xx responses surface as 502, admission rejections as 429 or 503,
// timeouts (local or correlation) as 504 and explicit bus failures as 425.
// A ServiceResponseError is matched before the error it wraps.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var timeoutErr *CorrelationTimeoutError
	if errors.As(err, &timeoutErr) {
		return http.StatusGatewayTimeout
	}

	var svcErr *ServiceResponseError
	if errors.As(err, &svcErr) {
		return http.StatusTooEarly
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindExternal:
			if apiErr.Status >= 500 || apiErr.Status < 400 {
				return http.StatusBadGateway
			}
			return apiErr.Status
		case KindFormatMismatch:
			return http.StatusBadGateway
		default:
			switch apiErr.Code() {
			case perrors.CodeRateLimit:
				return http.StatusTooManyRequests
			case perrors.CodeUnavailable:
				return http.StatusServiceUnavailable
			case perrors.CodeTimeout:
				return http.StatusGatewayTimeout
			default:
				return http.StatusInternalServerError
			}
		}
	}

	return http.StatusInternalServerError
}

// Response renders err as the public JSON error body. The cause chain is
// never included.
func Response(err error) *perrors.ErrorResponse {
	if err == nil {
		return nil
	}

	var timeoutErr *CorrelationTimeoutError
	if errors.As(err, &timeoutErr) {
		return perrors.ToJSON(perrors.WithContextMap(
			perrors.New(perrors.CodeTimeout, "response not available in time"),
			map[string]interface{}{"registry": timeoutErr.Registry, "key": timeoutErr.Key},
		))
	}

	var svcErr *ServiceResponseError
	if errors.As(err, &svcErr) {
		return perrors.ToJSON(perrors.New(perrors.CodeUnavailable, svcErr.Message))
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return perrors.ToJSON(apiErr.Platform())
	}

	return perrors.ToJSON(perrors.New(perrors.CodeInternal, "internal error"))
}
