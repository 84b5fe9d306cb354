package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonwraymond/railops/bus"
	"github.com/jonwraymond/railops/cache"
	"github.com/jonwraymond/railops/correlation"
	"github.com/jonwraymond/railops/gateway"
	"github.com/jonwraymond/railops/observe"
	"github.com/jonwraymond/railops/upstream"
)

// Coordinates locates a station. Latitude and Longitude are nil when the
// provider could not place the address.
type Coordinates struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Useful reports whether both coordinates are known.
func (c Coordinates) Useful() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// CoordinatesKey returns the domain key of c.
func CoordinatesKey(c Coordinates) string { return c.Address }

// CoordinatesRequest is the payload of a coordinates request event.
type CoordinatesRequest struct {
	Station string `json:"stationName"`
}

// geocodeResponse is the subset of the geocoding reply that is read.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (r geocodeResponse) coordinates(station string) Coordinates {
	c := Coordinates{Address: station}
	if len(r.Results) == 0 {
		return c
	}
	loc := r.Results[0].Geometry.Location
	c.Latitude, c.Longitude = &loc.Lat, &loc.Lng
	return c
}

// CoordinatesFetcherConfig configures a CoordinatesFetcher.
type CoordinatesFetcherConfig struct {
	// Client reaches the geocoding provider.
	Client *upstream.Client

	// Gateway supplies the getCoordinates policy.
	Gateway *gateway.Gateway

	// Path is the geocoding endpoint path.
	// Default: "/maps/api/geocode/json"
	Path string

	// APIKey is sent as the key query parameter.
	APIKey string

	// CountryCode narrows the search, e.g. "HU".
	CountryCode string

	// Suffix is appended to the station name to bias results towards
	// railway stations.
	// Default: "vasútállomás"
	Suffix string
}

// CoordinatesFetcher geocodes station names through the gateway.
type CoordinatesFetcher struct {
	config CoordinatesFetcherConfig
}

// NewCoordinatesFetcher creates a CoordinatesFetcher.
func NewCoordinatesFetcher(config CoordinatesFetcherConfig) *CoordinatesFetcher {
	if config.Path == "" {
		config.Path = "/maps/api/geocode/json"
	}
	if config.Suffix == "" {
		config.Suffix = "vasútállomás"
	}
	return &CoordinatesFetcher{config: config}
}

// Fetch geocodes station.
func (f *CoordinatesFetcher) Fetch(ctx context.Context, station string) (Coordinates, error) {
	address := strings.Join(strings.Fields(strings.ReplaceAll(station, ",", " ")+" "+f.config.Suffix+" "+f.config.CountryCode), " ")
	q := url.Values{"address": {address}}
	if f.config.APIKey != "" {
		q.Set("key", f.config.APIKey)
	}

	return gateway.Call(ctx, f.config.Gateway, PolicyCoordinates, func(ctx context.Context) (Coordinates, error) {
		var resp geocodeResponse
		if err := f.config.Client.GetJSON(ctx, f.config.Path, q, &resp); err != nil {
			return Coordinates{}, err
		}
		return resp.coordinates(station), nil
	})
}

// Respond answers a coordinates request event. It is a bus.ResponderFunc.
func (f *CoordinatesFetcher) Respond(ctx context.Context, req bus.Event) (any, error) {
	station := req.Key
	if len(req.Data) > 0 {
		var r CoordinatesRequest
		if err := json.Unmarshal(req.Data, &r); err != nil {
			return nil, fmt.Errorf("collector: decoding coordinates request: %w", err)
		}
		if r.Station != "" {
			station = r.Station
		}
	}
	if strings.TrimSpace(station) == "" {
		return nil, ErrEmptyStation
	}
	return f.Fetch(ctx, station)
}

// CoordinatesServiceConfig configures a CoordinatesService. Either Sender
// and Registry, or Fetcher must be set; the bus path wins when both are.
type CoordinatesServiceConfig struct {
	// Store is read before any request is made. Optional.
	Store *cache.Store[Coordinates]

	// Registry receives routed coordinates responses.
	Registry *correlation.Registry[Coordinates]

	// Sender publishes coordinates requests.
	Sender *bus.Sender

	// Fetcher geocodes directly when no Sender is configured.
	Fetcher *CoordinatesFetcher

	// Logger
	// Default: no-op
	Logger observe.Logger
}

// CoordinatesService resolves station coordinates from the cache, the bus
// or the geocoding provider.
type CoordinatesService struct {
	config CoordinatesServiceConfig
	logger observe.Logger
}

// NewCoordinatesService creates a CoordinatesService.
func NewCoordinatesService(config CoordinatesServiceConfig) (*CoordinatesService, error) {
	if config.Sender != nil && config.Registry == nil {
		return nil, ErrMissingRegistry
	}
	if config.Sender == nil && config.Fetcher == nil {
		return nil, ErrNoSource
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &CoordinatesService{
		config: config,
		logger: config.Logger.With(observe.Meta{Component: "collector", Name: "coordinates"}),
	}, nil
}

// Coordinates returns the coordinates of station.
//
// On the bus path concurrent callers for one station share a single
// request; the registry writes useful responses to the cache. On the direct
// path useful results are cached here.
func (s *CoordinatesService) Coordinates(ctx context.Context, station string) (Coordinates, error) {
	station = strings.TrimSpace(station)
	if station == "" {
		return Coordinates{}, ErrEmptyStation
	}

	if s.config.Store != nil {
		if c, ok := s.config.Store.Get(ctx, station); ok && c.Useful() {
			s.logger.Debug(ctx, "coordinates served from cache", observe.F("station", station))
			return c, nil
		}
	}

	if s.config.Sender != nil {
		return s.viaBus(ctx, station)
	}

	c, err := s.config.Fetcher.Fetch(ctx, station)
	if err != nil {
		return Coordinates{}, err
	}
	if c.Useful() && s.config.Store != nil {
		if err := s.config.Store.Cache(ctx, station, c); err != nil {
			s.logger.Warn(ctx, "cache write failed", observe.F("station", station), observe.F("error", err))
		}
	}
	return c, nil
}

func (s *CoordinatesService) viaBus(ctx context.Context, station string) (Coordinates, error) {
	f, created := s.config.Registry.Attach(correlation.DomainKey(station))
	if created {
		if err := s.config.Sender.Send(ctx, station, CoordinatesRequest{Station: station}); err != nil {
			s.config.Registry.Fail(ctx, station, err)
		}
	}
	return f.Await(ctx)
}
