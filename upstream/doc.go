// Package upstream is the raw HTTP client used to reach rail, weather and
// geocoding providers.
//
// Every failure is returned as one of three types, each tagged with a
// github.com/jmgilman/go/errors code so retry decisions can be made on the
// error alone:
//
//   - *StatusError for a non-2xx response (5xx, 408 and 429 are retryable);
//   - *TransportError when no response was received (always retryable);
//   - *DecodeError when the body does not have the expected shape.
//
// The client performs no retries itself; it is meant to be called through
// the gateway.
package upstream
