// Package observe provides the logging, tracing and metrics primitives shared
// by the gateway, the correlation registries and the bus router.
//
// Loggers write one JSON object per line. Tracing and metrics are backed by
// OpenTelemetry; when disabled the Observer hands out no-op implementations so
// callers never need nil checks.
package observe
