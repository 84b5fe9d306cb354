// Package config loads the railops service configuration.
//
// Settings come from the built-in defaults, an optional YAML file and
// RAILOPS_* environment variables, in increasing precedence. Nested keys map
// to variables by replacing dots with underscores:
//
//	RAILOPS_REDIS_ADDR=redis:6379
//	RAILOPS_GATEWAY_POLICIES_GETTIMETABLE_RATE=2
//
// String values that hold credentials may use ${VAR} expansion or a
// secretref (see package secret):
//
//	auth:
//	  jwt_secret: secretref:file:/run/secrets/jwt_secret
package config
