// Package apierr is the failure vocabulary shared by the gateway, the
// correlation registries and the HTTP surface.
//
// A caller of the gateway only ever sees *Error, whose Kind is one of
// KindExternal (upstream answered with a non-success status), KindInternal
// (local transport failure, admission rejection, open breaker or anything
// unclassified) or KindFormatMismatch (the body did not have the expected
// shape). Waiters on a correlation registry additionally see
// *CorrelationTimeoutError and *ServiceResponseError.
//
// *Error implements the platform error contract of
// github.com/jmgilman/go/errors, so codes and retry classification travel
// with it and Response can render it without leaking the cause chain.
package apierr
