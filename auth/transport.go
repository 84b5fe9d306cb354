package auth

import (
	"errors"
	"net/http"

	"github.com/jonwraymond/railops/observe"
)

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	// Authenticator validates the request credentials. Required.
	Authenticator Authenticator

	// Authorizer is consulted after authentication. Nil accepts every
	// authenticated identity.
	Authorizer Authorizer

	// OnError writes the rejection. Default: plain-text body with StatusCode(err).
	OnError func(w http.ResponseWriter, r *http.Request, err error)

	// Logger records rejections at debug and internal failures at error.
	Logger observe.Logger
}

// Middleware returns HTTP middleware that authenticates every request and
// stores the identity in the request context.
//
// Usage:
//
//	mux.Handle("GET /coordinates/{station}", auth.Middleware(cfg)(handler))
func Middleware(config MiddlewareConfig) func(http.Handler) http.Handler {
	if config.OnError == nil {
		config.OnError = func(w http.ResponseWriter, _ *http.Request, err error) {
			code := StatusCode(err)
			http.Error(w, http.StatusText(code), code)
		}
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id, err := config.Authenticator.Authenticate(ctx, r.Header)
			if err == nil && config.Authorizer != nil {
				err = config.Authorizer.Authorize(ctx, id)
			}
			if err != nil {
				if StatusCode(err) == http.StatusInternalServerError {
					config.Logger.Error(ctx, "authentication failed",
						observe.F("path", r.URL.Path), observe.F("error", err))
				} else {
					config.Logger.Debug(ctx, "request rejected",
						observe.F("path", r.URL.Path), observe.F("error", err))
				}
				config.OnError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}

// StatusCode maps an authentication or authorization error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenMalformed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
