// Package secret resolves credentials referenced from configuration.
//
// A configuration value is first expanded strictly against the environment
// (${REDIS_PASSWORD} must be set). A value of the form
// "secretref:<provider>:<ref>" is then handed to the named provider:
//
//	secretref:file:/run/secrets/jwt_secret
//	secretref:env:GEOCODING_API_KEY
//
// Anything else is returned as expanded.
package secret
