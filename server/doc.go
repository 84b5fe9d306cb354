// Package server exposes the collectors over HTTP.
//
//	GET  /coordinates/{station}
//	GET  /weather/{station}?time=2026-10-19T08:30:00+02:00
//	GET  /timetable?from=Budapest-Nyugati&to=Szob&date=2026-10-19[&train=2013]
//	POST /cache/evict[?cache=weather]
//
// Data routes need a bearer token with the USER or ADMIN role, cache eviction
// needs ADMIN. The health routes of package health and an optional /metrics
// handler are mounted unauthenticated.
//
// Failures are rendered as {code, message, classification} bodies. Gateway and
// registry errors keep the status apierr.HTTPStatus assigns them; a station the
// geocoder cannot locate is 404.
package server
