package auth

import (
	"context"
	"fmt"
	"strings"
)

// Authorizer decides whether an authenticated identity may proceed.
type Authorizer interface {
	// Authorize returns nil if permitted, or an error (typically *AuthzError).
	Authorize(ctx context.Context, id *Identity) error
}

// AuthorizerFunc adapts an ordinary function to an Authorizer.
type AuthorizerFunc func(ctx context.Context, id *Identity) error

// Authorize calls f.
func (f AuthorizerFunc) Authorize(ctx context.Context, id *Identity) error {
	return f(ctx, id)
}

// AuthzError represents an authorization failure.
type AuthzError struct {
	// Subject is the identity that was denied.
	Subject string

	// Required lists the roles any one of which would have been accepted.
	Required []string
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	return fmt.Sprintf("authorization denied: subject=%q requires one of [%s]",
		e.Subject, strings.Join(e.Required, ", "))
}

// Is reports whether this error matches the target.
func (e *AuthzError) Is(target error) bool {
	return target == ErrForbidden
}

// RoleAuthorizer permits identities holding at least one of its roles.
type RoleAuthorizer struct {
	roles []string
}

// RequireRoles returns an authorizer that accepts any of roles.
// With no roles every authenticated identity is accepted.
func RequireRoles(roles ...string) *RoleAuthorizer {
	normalized := make([]string, 0, len(roles))
	for _, r := range roles {
		normalized = append(normalized, normalizeRole(r))
	}
	return &RoleAuthorizer{roles: normalized}
}

// Authorize checks the identity's roles.
func (a *RoleAuthorizer) Authorize(_ context.Context, id *Identity) error {
	if len(a.roles) == 0 {
		return nil
	}
	if id == nil {
		return &AuthzError{Required: a.roles}
	}
	for _, r := range a.roles {
		if id.HasRole(r) {
			return nil
		}
	}
	return &AuthzError{Subject: id.Subject, Required: a.roles}
}
