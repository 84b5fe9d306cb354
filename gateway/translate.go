package gateway

import (
	"context"
	"errors"
	"net"

	perrors "github.com/jmgilman/go/errors"

	"github.com/jonwraymond/railops/apierr"
	"github.com/jonwraymond/railops/resilience"
	"github.com/jonwraymond/railops/upstream"
)

// requestURLer is implemented by upstream failures that know their URL.
type requestURLer interface {
	RequestURL() string
}

// Translate maps any failure to an *apierr.Error. Translating an
// *apierr.Error returns it unchanged. url is used when err carries no
// request URL of its own.
func Translate(err error, url string) error {
	if err == nil {
		return nil
	}

	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}

	var ru requestURLer
	if errors.As(err, &ru) && ru.RequestURL() != "" {
		url = ru.RequestURL()
	}

	// Upstream outcomes take precedence over the retry wrapper.
	var se *upstream.StatusError
	if errors.As(err, &se) {
		ext := apierr.External(se.Status, url)
		ext.Cause = err
		return ext
	}

	var de *upstream.DecodeError
	if errors.As(err, &de) {
		return apierr.FormatMismatch(de.Err.Error(), err, url)
	}

	switch {
	case errors.Is(err, resilience.ErrRateLimitExceeded):
		return apierr.Internal(apierr.MessageRateLimitExceeded, url, err).WithCode(perrors.CodeRateLimit)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return apierr.Internal(apierr.MessageCircuitOpen, url, err).WithCode(perrors.CodeUnavailable)
	case errors.Is(err, resilience.ErrBulkheadFull):
		return apierr.Internal(apierr.MessageBulkheadFull, url, err).WithCode(perrors.CodeUnavailable)
	}

	var te *upstream.TransportError
	if errors.As(err, &te) {
		return apierr.Internal(te.Err.Error(), url, err).WithCode(perrors.GetCode(err))
	}

	switch {
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return apierr.Internal(apierr.MessageTimeout, url, err).WithCode(perrors.CodeTimeout)
	case errors.Is(err, context.Canceled):
		return apierr.Internal("request canceled", url, err)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return apierr.Internal(ne.Error(), url, err).WithCode(perrors.CodeNetwork)
	}

	return apierr.Internal(apierr.MessageUnclassified, url, err)
}
