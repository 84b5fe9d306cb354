package auth

import (
	"context"
	"errors"
	"testing"
)

func TestRequireRoles(t *testing.T) {
	user := &Identity{Subject: "passenger", Roles: []string{RoleUser}}
	admin := &Identity{Subject: "dispatcher", Roles: []string{RoleUser, RoleAdmin}}

	tests := []struct {
		name    string
		authz   *RoleAuthorizer
		id      *Identity
		allowed bool
	}{
		{name: "no roles required", authz: RequireRoles(), id: user, allowed: true},
		{name: "admin only, admin", authz: RequireRoles(RoleAdmin), id: admin, allowed: true},
		{name: "admin only, user", authz: RequireRoles(RoleAdmin), id: user, allowed: false},
		{name: "prefixed requirement", authz: RequireRoles("ROLE_USER"), id: user, allowed: true},
		{name: "any of", authz: RequireRoles(RoleAdmin, RoleUser), id: user, allowed: true},
		{name: "nil identity", authz: RequireRoles(RoleUser), id: nil, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.authz.Authorize(context.Background(), tt.id)
			if tt.allowed && err != nil {
				t.Errorf("Authorize() error = %v, want nil", err)
			}
			if !tt.allowed && !errors.Is(err, ErrForbidden) {
				t.Errorf("Authorize() error = %v, want ErrForbidden", err)
			}
		})
	}
}

func TestAuthzError_Message(t *testing.T) {
	err := RequireRoles(RoleAdmin).Authorize(context.Background(), &Identity{Subject: "passenger"})
	var authzErr *AuthzError
	if !errors.As(err, &authzErr) {
		t.Fatalf("error = %T, want *AuthzError", err)
	}
	want := `authorization denied: subject="passenger" requires one of [ADMIN]`
	if authzErr.Error() != want {
		t.Errorf("Error() = %q, want %q", authzErr.Error(), want)
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil || SubjectFromContext(ctx) != "" {
		t.Fatal("empty context carries an identity")
	}
	ctx = WithIdentity(ctx, &Identity{Subject: "dispatcher"})
	if got := SubjectFromContext(ctx); got != "dispatcher" {
		t.Errorf("SubjectFromContext() = %q", got)
	}
}
