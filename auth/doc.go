// Package auth guards the railops HTTP API with bearer tokens.
//
// Tokens are HMAC-signed JWTs issued by the security service. The
// authenticator checks the signature, expiry, issuer and audience, then
// turns the subject and the "roles" claim into an [Identity]. The
// [Middleware] rejects requests without a valid token and, when an
// [Authorizer] is configured, requests whose identity lacks a required role.
//
//	authn := auth.NewJWTAuthenticator(auth.JWTConfig{Secret: []byte(secret)})
//	mux.Handle("POST /cache/evict", auth.Middleware(auth.MiddlewareConfig{
//		Authenticator: authn,
//		Authorizer:    auth.RequireRoles(auth.RoleAdmin),
//	})(evict))
package auth
