package auth

import (
	"context"
	"net/http"
)

// Authenticator validates request credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: credential problems are reported with the package sentinels
//   (ErrMissingCredentials, ErrTokenExpired, ...) so callers can map them
//   to a status code; other errors are internal failures.
type Authenticator interface {
	Authenticate(ctx context.Context, header http.Header) (*Identity, error)
}

// AuthenticatorFunc adapts an ordinary function to an Authenticator.
type AuthenticatorFunc func(ctx context.Context, header http.Header) (*Identity, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, header http.Header) (*Identity, error) {
	return f(ctx, header)
}
