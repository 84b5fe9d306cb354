// Package collector provides the station data services the HTTP surface and
// the bus responders are built from.
//
// Each service can obtain its value on two paths:
//
//   - over the bus: a request event is published and the caller waits on a
//     correlation.Registry that the bus.Router feeds with response events;
//   - directly: the provider is called over HTTP through a gateway.Policy.
//
// The same fetchers that serve the direct path answer bus requests on the
// collector side (see CoordinatesFetcher.Respond and WeatherFetcher.Respond),
// so one process can play both roles.
//
// Policy names match the gateway configuration:
//
//	getCoordinates  geocoding provider
//	getWeatherInfo  hourly weather forecast
//	getTimetable    GraphQL journey planner
package collector
