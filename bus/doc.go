// Package bus carries request and response events between the collectors
// and the services waiting on them.
//
// A Message is an Event plus headers. Requests are published by a Sender;
// a Responder on the collector side answers each request with a
// ResponseEvent of type SUCCESS or ERROR, copying the correlation id. On
// the waiting side a Router drains subscriptions into a bounded worker pool
// and hands response messages to a ResponseHandler, which resolves or fails
// the matching entry of a correlation.Registry. The correlation id header
// selects the registry namespace: present means ResolveCorrelation or
// FailCorrelation, absent means the domain key.
//
// Two transports are provided: MemoryTransport for a single process and
// tests, and RedisTransport on Redis pub/sub.
package bus
