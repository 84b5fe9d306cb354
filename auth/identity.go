package auth

import (
	"slices"
	"strings"
	"time"
)

// Roles understood by the API.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// rolePrefix is stripped from role claims so "ROLE_ADMIN" and "ADMIN" match.
const rolePrefix = "ROLE_"

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the token subject, usually the user name.
	Subject string

	// Roles are the caller's roles without the "ROLE_" prefix.
	Roles []string

	// Claims contains the raw claims from the token.
	Claims map[string]any

	// ExpiresAt is when the token expires.
	ExpiresAt time.Time

	// IssuedAt is when the token was issued.
	IssuedAt time.Time
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, normalizeRole(role))
}

// IsExpired reports whether the identity has expired at now.
func (id *Identity) IsExpired(now time.Time) bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return now.After(id.ExpiresAt)
}

func normalizeRole(role string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(role), rolePrefix))
}
