// Package app assembles a railops process from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/railops/auth"
	"github.com/jonwraymond/railops/bus"
	"github.com/jonwraymond/railops/cache"
	"github.com/jonwraymond/railops/collector"
	"github.com/jonwraymond/railops/config"
	"github.com/jonwraymond/railops/correlation"
	"github.com/jonwraymond/railops/gateway"
	"github.com/jonwraymond/railops/health"
	"github.com/jonwraymond/railops/observe"
	"github.com/jonwraymond/railops/server"
	"github.com/jonwraymond/railops/upstream"
)

// Option customizes New.
type Option func(*options)

type options struct {
	redis      redis.UniversalClient
	httpClient *http.Client
}

// WithRedis uses rdb instead of dialing config.Redis. The caller keeps
// ownership of rdb.
func WithRedis(rdb redis.UniversalClient) Option {
	return func(o *options) { o.redis = rdb }
}

// WithHTTPClient sends every upstream request through c.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// App is a wired railops process.
type App struct {
	config   *config.Config
	observer observe.Observer
	logger   observe.Logger

	redis     redis.UniversalClient
	ownsRedis bool
	transport bus.Transport
	router    *bus.Router

	coordinatesRegistry *correlation.Registry[collector.Coordinates]
	weatherRegistry     *correlation.Registry[collector.WeatherInfo]

	gateway *gateway.Gateway
	evictor *cache.Evictor
	health  *health.Aggregator
	server  *server.Server

	Coordinates *collector.CoordinatesService
	Weather     *collector.WeatherService
	Timetable   *collector.TimetableService
}

// New wires every component described by cfg. Nothing runs until Start or Run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("app: observer: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, fmt.Errorf("app: middleware: %w", err)
	}

	a := &App{
		config:   cfg,
		observer: obs,
		logger:   obs.Logger(),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.Bus.Transport == config.TransportRedis || cfg.Cache.Backend == config.CacheRedis {
		a.redis = o.redis
		if a.redis == nil {
			a.redis = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			a.ownsRedis = true
		}
	}

	stores, err := a.newStores()
	if err != nil {
		return nil, err
	}

	gwConfig := cfg.Gateway
	gwConfig.Middleware = mw
	a.gateway = gateway.New(gwConfig)
	a.gateway.Warm()

	client := func(base string, timeout time.Duration) *upstream.Client {
		return upstream.New(upstream.Config{
			BaseURL:    base,
			Timeout:    timeout,
			UserAgent:  cfg.Service.Name + "/" + cfg.Service.Version,
			HTTPClient: o.httpClient,
			Logger:     a.logger,
		})
	}
	geo := cfg.Collectors.Geocoding
	geocoder := collector.NewCoordinatesFetcher(collector.CoordinatesFetcherConfig{
		Client:      client(geo.BaseURL, geo.Timeout),
		Gateway:     a.gateway,
		Path:        geo.Path,
		APIKey:      geo.APIKey,
		CountryCode: geo.CountryCode,
		Suffix:      geo.Suffix,
	})
	forecaster, err := collector.NewWeatherFetcher(collector.WeatherFetcherConfig{
		Client:   client(cfg.Collectors.Weather.BaseURL, cfg.Collectors.Weather.Timeout),
		Gateway:  a.gateway,
		Path:     cfg.Collectors.Weather.Path,
		Timezone: cfg.Collectors.Weather.Timezone,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	coordinatesConfig := collector.CoordinatesServiceConfig{Store: stores.coordinates, Logger: a.logger}
	weatherConfig := collector.WeatherServiceConfig{Store: stores.weather, Logger: a.logger}

	if cfg.Bus.Transport == config.TransportNone {
		coordinatesConfig.Fetcher = geocoder
		weatherConfig.Fetcher = forecaster
	} else {
		if err := a.wireBus(geocoder, forecaster, stores, obs.Metrics()); err != nil {
			return nil, err
		}
		coordinatesConfig.Registry = a.coordinatesRegistry
		coordinatesConfig.Sender = bus.NewSender(a.transport, collector.ChannelCoordinatesRequests, a.logger)
		weatherConfig.Registry = a.weatherRegistry
		weatherConfig.Sender = bus.NewSender(a.transport, collector.ChannelWeatherRequests, a.logger)
	}

	if a.Coordinates, err = collector.NewCoordinatesService(coordinatesConfig); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if a.Weather, err = collector.NewWeatherService(weatherConfig); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	tt := cfg.Collectors.Timetable
	a.Timetable = collector.NewTimetableService(collector.TimetableServiceConfig{
		Client:  client(tt.BaseURL, tt.Timeout),
		Gateway: a.gateway,
		Path:    tt.Path,
		Store:   stores.timetable,
		Logger:  a.logger,
	})

	a.evictor = cache.NewEvictor(cfg.Cache.EvictionInterval, a.logger)
	a.evictor.Add("coordinates", stores.coordinates)
	a.evictor.Add("weather", stores.weather)
	a.evictor.Add("timetable", stores.timetable)

	a.health = a.newHealth()

	srvConfig := server.Config{
		Coordinates: a.Coordinates,
		Weather:     a.Weather,
		Timetable:   a.Timetable,
		Caches:      a.evictor,
		Health:      a.health,
		Middleware:  mw,
		Logger:      a.logger,
	}
	if cfg.Auth.Enabled {
		srvConfig.Authenticator = auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
			Leeway:   cfg.Auth.Leeway,
		})
	}
	srvConfig.Metrics = obs.MetricsHandler()
	if a.server, err = server.New(srvConfig); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	return a, nil
}

type storeSet struct {
	coordinates *cache.Store[collector.Coordinates]
	weather     *cache.Store[collector.WeatherInfo]
	timetable   *cache.Store[collector.Timetable]
}

func (a *App) newStores() (storeSet, error) {
	var backend cache.Cache = cache.NewMemoryCache()
	if a.config.Cache.Backend == config.CacheRedis {
		backend = cache.NewRedisCache(a.redis, cache.WithRedisPrefix(a.config.Cache.KeyPrefix))
	}

	policy := func(def cache.Policy) cache.Policy {
		if ttl := a.config.Cache.TTL; ttl > 0 {
			return cache.Policy{TTL: ttl}
		}
		return def
	}

	var s storeSet
	var err error
	if s.coordinates, err = cache.NewStore[collector.Coordinates](backend, cache.StoreConfig{
		Namespace: "coordinates",
		Policy:    policy(cache.UntilEvictedPolicy()),
		Logger:    a.logger,
	}); err != nil {
		return s, fmt.Errorf("app: coordinates store: %w", err)
	}
	if s.weather, err = cache.NewStore[collector.WeatherInfo](backend, cache.StoreConfig{
		Namespace: "weather",
		Policy:    policy(cache.DefaultPolicy()),
		Logger:    a.logger,
	}); err != nil {
		return s, fmt.Errorf("app: weather store: %w", err)
	}
	if s.timetable, err = cache.NewStore[collector.Timetable](backend, cache.StoreConfig{
		Namespace: "timetable",
		Policy:    policy(cache.Policy{TTL: 6 * time.Hour}),
		Logger:    a.logger,
	}); err != nil {
		return s, fmt.Errorf("app: timetable store: %w", err)
	}
	return s, nil
}

// wireBus creates the transport, the registries and the routes that feed
// them. With Bus.Responders the request channels are served here as well.
func (a *App) wireBus(geocoder *collector.CoordinatesFetcher, forecaster *collector.WeatherFetcher, s storeSet, metrics observe.Metrics) error {
	cfg := a.config
	switch cfg.Bus.Transport {
	case config.TransportMemory:
		a.transport = bus.NewMemoryTransport(cfg.Bus.Buffer)
	case config.TransportRedis:
		a.transport = bus.NewRedisTransport(a.redis,
			bus.WithChannelPrefix(cfg.Bus.ChannelPrefix),
			bus.WithLogger(a.logger))
	default:
		return fmt.Errorf("app: unknown bus transport %q", cfg.Bus.Transport)
	}

	a.coordinatesRegistry = correlation.New(correlation.Config[collector.Coordinates]{
		Name:    "coordinates",
		Timeout: cfg.Registries.Coordinates.Timeout(),
		Useful:  collector.Coordinates.Useful,
		Cache:   s.coordinates,
		Logger:  a.logger,
		Metrics: metrics,
	})
	a.weatherRegistry = correlation.New(correlation.Config[collector.WeatherInfo]{
		Name:    "weather",
		Timeout: cfg.Registries.Weather.Timeout(),
		Useful:  collector.WeatherInfo.Useful,
		Logger:  a.logger,
		Metrics: metrics,
	})

	a.router = bus.NewRouter(a.transport, bus.RouterConfig{Workers: cfg.Bus.Workers, Logger: a.logger})
	a.router.Handle(collector.ChannelCoordinatesResponses, bus.NewResponseHandler(a.coordinatesRegistry, collector.CoordinatesKey, a.logger))
	a.router.Handle(collector.ChannelWeatherResponses, bus.NewResponseHandler(a.weatherRegistry, nil, a.logger))

	if cfg.Bus.Responders {
		a.router.Handle(collector.ChannelCoordinatesRequests,
			bus.NewResponder(a.transport, collector.ChannelCoordinatesResponses, geocoder.Respond, a.logger))
		a.router.Handle(collector.ChannelWeatherRequests,
			bus.NewResponder(a.transport, collector.ChannelWeatherResponses, forecaster.Respond, a.logger))
	}
	return nil
}

func (a *App) newHealth() *health.Aggregator {
	cfg := a.config.Health
	agg := health.NewAggregator(health.AggregatorConfig{Timeout: cfg.Timeout, Logger: a.logger})
	agg.Register(health.NewGatewayChecker(a.gateway))
	if a.redis != nil {
		agg.Register(health.NewRedisChecker("redis", a.redis))
	}
	backlog := health.BacklogConfig{MaxPending: cfg.MaxPending, MaxAge: cfg.MaxAge}
	if a.coordinatesRegistry != nil {
		agg.Register(health.NewBacklogChecker(a.coordinatesRegistry, backlog))
	}
	if a.weatherRegistry != nil {
		agg.Register(health.NewBacklogChecker(a.weatherRegistry, backlog))
	}
	return agg
}

// Handler returns the HTTP handler of the process.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Start begins consuming the bus. It returns once every subscription is in
// place; consumption stops when ctx is done.
func (a *App) Start(ctx context.Context) error {
	if a.router == nil {
		return nil
	}
	return a.router.Start(ctx)
}

// Run starts the bus, the cache evictor and the HTTP server and blocks until
// ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.evictor.Run(ctx) })
	g.Go(func() error {
		return a.server.ListenAndServe(ctx, a.config.Service.Addr, a.config.Service.ShutdownTimeout)
	})
	if a.router != nil {
		g.Go(func() error {
			<-ctx.Done()
			return a.router.Wait()
		})
	}
	return g.Wait()
}

// Close releases the registries, the bus, Redis and the telemetry providers.
func (a *App) Close(ctx context.Context) error {
	if a.coordinatesRegistry != nil {
		a.coordinatesRegistry.Close()
	}
	if a.weatherRegistry != nil {
		a.weatherRegistry.Close()
	}

	var errs []error
	if a.transport != nil {
		errs = append(errs, a.transport.Close())
	}
	if a.redis != nil && a.ownsRedis {
		errs = append(errs, a.redis.Close())
	}
	if a.observer != nil {
		errs = append(errs, a.observer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
