// Package correlation turns fire-and-forget bus responses into awaitable,
// deduplicated request/response operations.
//
// A Registry holds at most one pending entry per key. Every caller waiting
// on the same key shares one Future, so a single upstream request serves all
// of them. An entry leaves the registry exactly once: when a response
// resolves it, when the responder reports a failure, or when its timer
// fires. Domain keys (e.g. a station code) and correlation identifiers live
// in disjoint namespaces of the same registry.
//
// Successful domain resolutions the configured predicate deems useful are
// forwarded to a cache Sink once, whether or not anybody was waiting.
// Correlation resolutions are never cached.
package correlation
