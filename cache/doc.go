// Package cache stores resolved domain values (station coordinates, weather
// snapshots) so repeated lookups skip the bus and the upstream providers.
//
// Cache is the byte-level store with a memory and a Redis implementation.
// Store layers typed JSON values, key derivation and TTL policy on top and
// doubles as the write-through sink of a correlation registry. Evictor
// flushes stores on a fixed interval.
package cache
