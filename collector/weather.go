package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/railops/bus"
	"github.com/jonwraymond/railops/cache"
	"github.com/jonwraymond/railops/correlation"
	"github.com/jonwraymond/railops/gateway"
	"github.com/jonwraymond/railops/observe"
	"github.com/jonwraymond/railops/upstream"
)

// WeatherInfo is the weather at a station for one hour. Measurements the
// forecast did not provide are nil.
type WeatherInfo struct {
	Time      time.Time `json:"time"`
	Address   string    `json:"address"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`

	Temperature       *float64 `json:"temperature"`
	RelativeHumidity  *float64 `json:"relativeHumidity"`
	WindSpeedAt10m    *float64 `json:"windSpeedAt10m"`
	WindSpeedAt80m    *float64 `json:"windSpeedAt80m"`
	IsSnowing         *bool    `json:"isSnowing"`
	SnowFall          *float64 `json:"snowFall"`
	SnowDepth         *float64 `json:"snowDepth"`
	IsRaining         *bool    `json:"isRaining"`
	Precipitation     *float64 `json:"precipitation"`
	Rain              *float64 `json:"rain"`
	Showers           *float64 `json:"showers"`
	Visibility        *float64 `json:"visibilityInMeters"`
	CloudCoverPercent *float64 `json:"cloudCoverPercentage"`
}

// Useful reports whether w carries a located measurement.
func (w WeatherInfo) Useful() bool {
	return w.Latitude != nil && w.Longitude != nil && w.Temperature != nil
}

// WeatherRequest asks for the weather at a located station.
type WeatherRequest struct {
	Station   string    `json:"stationName"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Time      time.Time `json:"time"`
}

// WeatherKey returns the cache key for the weather at station in the hour
// containing t.
func WeatherKey(station string, t time.Time) string {
	return station + ":" + t.UTC().Truncate(time.Hour).Format(time.RFC3339)
}

var hourlyVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"snow_depth",
	"snowfall",
	"precipitation",
	"showers",
	"rain",
	"visibility",
	"wind_speed_10m",
	"wind_speed_80m",
	"cloud_cover",
}

type forecastResponse struct {
	Hourly struct {
		Time             []string   `json:"time"`
		Temperature      []*float64 `json:"temperature_2m"`
		RelativeHumidity []*float64 `json:"relative_humidity_2m"`
		SnowDepth        []*float64 `json:"snow_depth"`
		Snowfall         []*float64 `json:"snowfall"`
		Precipitation    []*float64 `json:"precipitation"`
		Showers          []*float64 `json:"showers"`
		Rain             []*float64 `json:"rain"`
		Visibility       []*float64 `json:"visibility"`
		WindSpeed10m     []*float64 `json:"wind_speed_10m"`
		WindSpeed80m     []*float64 `json:"wind_speed_80m"`
		CloudCover       []*float64 `json:"cloud_cover"`
	} `json:"hourly"`
}

// hourIndex returns the index of the first entry whose hour matches t, or -1.
func hourIndex(times []string, t time.Time) int {
	hh := fmt.Sprintf("%02d", t.Hour())
	for i, s := range times {
		_, clock, ok := strings.Cut(s, "T")
		if ok && len(clock) >= 2 && clock[:2] == hh {
			return i
		}
	}
	return -1
}

// at returns s[i], or nil when i is out of range.
func at[T any](s []*T, i int) *T {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

// following returns s[i+1], falling back to s[i] for the last entry.
// Accumulated quantities are reported for the preceding hour.
func following[T any](s []*T, i int) *T {
	if i < 0 || i >= len(s) {
		return nil
	}
	if i == len(s)-1 {
		return s[i]
	}
	return s[i+1]
}

func positive(vs ...*float64) *bool {
	var seen, yes bool
	for _, v := range vs {
		if v == nil {
			continue
		}
		seen = true
		yes = yes || *v > 0
	}
	if !seen {
		return nil
	}
	return &yes
}

func (r forecastResponse) info(req WeatherRequest, local time.Time) WeatherInfo {
	lat, lng := req.Latitude, req.Longitude
	w := WeatherInfo{Time: req.Time, Address: req.Station, Latitude: &lat, Longitude: &lng}

	h := r.Hourly
	i := hourIndex(h.Time, local)
	if i < 0 {
		return w
	}

	w.Temperature = at(h.Temperature, i)
	w.RelativeHumidity = at(h.RelativeHumidity, i)
	w.SnowDepth = at(h.SnowDepth, i)
	w.Visibility = at(h.Visibility, i)
	w.WindSpeedAt10m = at(h.WindSpeed10m, i)
	w.WindSpeedAt80m = at(h.WindSpeed80m, i)
	w.CloudCoverPercent = at(h.CloudCover, i)

	w.SnowFall = following(h.Snowfall, i)
	w.Precipitation = following(h.Precipitation, i)
	w.Rain = following(h.Rain, i)
	w.Showers = following(h.Showers, i)

	w.IsSnowing = positive(w.SnowFall)
	w.IsRaining = positive(w.Rain, w.Showers)
	return w
}

// WeatherFetcherConfig configures a WeatherFetcher.
type WeatherFetcherConfig struct {
	// Client reaches the forecast provider.
	Client *upstream.Client

	// Gateway supplies the getWeatherInfo policy.
	Gateway *gateway.Gateway

	// Path is the forecast endpoint path.
	// Default: "/v1/forecast"
	Path string

	// Timezone is the IANA zone the forecast hours are expressed in.
	// Default: "UTC"
	Timezone string
}

// WeatherFetcher reads the hourly forecast for a located station.
type WeatherFetcher struct {
	config WeatherFetcherConfig
	loc    *time.Location
}

// NewWeatherFetcher creates a WeatherFetcher.
func NewWeatherFetcher(config WeatherFetcherConfig) (*WeatherFetcher, error) {
	if config.Path == "" {
		config.Path = "/v1/forecast"
	}
	if config.Timezone == "" {
		config.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("collector: weather timezone: %w", err)
	}
	return &WeatherFetcher{config: config, loc: loc}, nil
}

// Fetch returns the weather described by req.
func (f *WeatherFetcher) Fetch(ctx context.Context, req WeatherRequest) (WeatherInfo, error) {
	if req.Time.IsZero() {
		return WeatherInfo{}, ErrMissingTime
	}
	local := req.Time.In(f.loc)
	day := local.Format(time.DateOnly)
	q := url.Values{
		"latitude":   {strconv.FormatFloat(req.Latitude, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(req.Longitude, 'f', -1, 64)},
		"hourly":     {strings.Join(hourlyVariables, ",")},
		"start_date": {day},
		"end_date":   {day},
		"timezone":   {f.config.Timezone},
	}

	return gateway.Call(ctx, f.config.Gateway, PolicyWeather, func(ctx context.Context) (WeatherInfo, error) {
		var resp forecastResponse
		if err := f.config.Client.GetJSON(ctx, f.config.Path, q, &resp); err != nil {
			return WeatherInfo{}, err
		}
		return resp.info(req, local), nil
	})
}

// Respond answers a weather request event. It is a bus.ResponderFunc.
func (f *WeatherFetcher) Respond(ctx context.Context, ev bus.Event) (any, error) {
	var req WeatherRequest
	if err := json.Unmarshal(ev.Data, &req); err != nil {
		return nil, fmt.Errorf("collector: decoding weather request: %w", err)
	}
	if strings.TrimSpace(req.Station) == "" {
		return nil, ErrEmptyStation
	}
	return f.Fetch(ctx, req)
}

// WeatherServiceConfig configures a WeatherService. Either Sender and
// Registry, or Fetcher must be set; the bus path wins when both are.
type WeatherServiceConfig struct {
	// Store is read before any request is made and written with useful
	// results. Optional.
	Store *cache.Store[WeatherInfo]

	// Registry receives routed weather responses.
	Registry *correlation.Registry[WeatherInfo]

	// Sender publishes weather requests.
	Sender *bus.Sender

	// Fetcher reads the forecast directly when no Sender is configured.
	Fetcher *WeatherFetcher

	// Logger
	// Default: no-op
	Logger observe.Logger
}

// WeatherService resolves station weather from the cache, the bus or the
// forecast provider.
type WeatherService struct {
	config WeatherServiceConfig
	logger observe.Logger
	group  singleflight.Group
}

// NewWeatherService creates a WeatherService.
func NewWeatherService(config WeatherServiceConfig) (*WeatherService, error) {
	if config.Sender != nil && config.Registry == nil {
		return nil, ErrMissingRegistry
	}
	if config.Sender == nil && config.Fetcher == nil {
		return nil, ErrNoSource
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &WeatherService{
		config: config,
		logger: config.Logger.With(observe.Meta{Component: "collector", Name: "weather"}),
	}, nil
}

// Weather returns the weather described by req.
//
// Bus requests are correlated per call, so concurrent callers each publish
// their own request. Direct fetches for the same station and hour are
// collapsed into one upstream call.
func (s *WeatherService) Weather(ctx context.Context, req WeatherRequest) (WeatherInfo, error) {
	req.Station = strings.TrimSpace(req.Station)
	if req.Station == "" {
		return WeatherInfo{}, ErrEmptyStation
	}
	if req.Time.IsZero() {
		return WeatherInfo{}, ErrMissingTime
	}
	key := WeatherKey(req.Station, req.Time)

	if s.config.Store != nil {
		if w, ok := s.config.Store.Get(ctx, key); ok && w.Useful() {
			s.logger.Debug(ctx, "weather served from cache", observe.F("key", key))
			return w, nil
		}
	}

	var (
		w   WeatherInfo
		err error
	)
	if s.config.Sender != nil {
		w, err = s.viaBus(ctx, key, req)
	} else {
		w, err = s.direct(ctx, key, req)
	}
	if err != nil {
		return WeatherInfo{}, err
	}

	if w.Useful() && s.config.Store != nil {
		if err := s.config.Store.Cache(ctx, key, w); err != nil {
			s.logger.Warn(ctx, "cache write failed", observe.F("key", key), observe.F("error", err))
		}
	}
	return w, nil
}

func (s *WeatherService) viaBus(ctx context.Context, key string, req WeatherRequest) (WeatherInfo, error) {
	id := bus.NewCorrelationID()
	f := s.config.Registry.WaitForCorrelation(id)
	if err := s.config.Sender.Request(ctx, id, key, req); err != nil {
		s.config.Registry.FailCorrelation(ctx, id, err)
	}
	return f.Await(ctx)
}

func (s *WeatherService) direct(ctx context.Context, key string, req WeatherRequest) (WeatherInfo, error) {
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.config.Fetcher.Fetch(ctx, req)
	})
	if shared {
		s.logger.Debug(ctx, "joined in-flight weather fetch", observe.F("key", key))
	}
	if err != nil {
		return WeatherInfo{}, err
	}
	return v.(WeatherInfo), nil
}
