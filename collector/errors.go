package collector

import "errors"

var (
	// ErrEmptyStation is returned when a station name is blank.
	ErrEmptyStation = errors.New("collector: station name is empty")

	// ErrNoSource is returned by a constructor given neither a bus path nor
	// a direct fetcher.
	ErrNoSource = errors.New("collector: no bus sender or direct fetcher configured")

	// ErrMissingRegistry is returned when a bus sender is configured
	// without the registry its responses are routed to.
	ErrMissingRegistry = errors.New("collector: bus sender requires a registry")

	// ErrMissingTime is returned for a weather lookup without a time.
	ErrMissingTime = errors.New("collector: time is required")

	// ErrMissingEndpoint is returned by a timetable query without both
	// stations.
	ErrMissingEndpoint = errors.New("collector: timetable needs both stations")
)
