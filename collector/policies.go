package collector

// Gateway policy names used by the fetchers.
const (
	PolicyCoordinates = "getCoordinates"
	PolicyWeather     = "getWeatherInfo"
	PolicyTimetable   = "getTimetable"
)

// Bus channels for request and response traffic.
const (
	ChannelCoordinatesRequests  = "coordinates.requests"
	ChannelCoordinatesResponses = "coordinates.responses"
	ChannelWeatherRequests      = "weather.requests"
	ChannelWeatherResponses     = "weather.responses"
)
