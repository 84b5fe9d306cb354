package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/jonwraymond/railops/auth"
	"github.com/jonwraymond/railops/collector"
	"github.com/jonwraymond/railops/health"
	"github.com/jonwraymond/railops/observe"
)

// CoordinatesSource resolves station names to coordinates.
type CoordinatesSource interface {
	Coordinates(ctx context.Context, station string) (collector.Coordinates, error)
}

// WeatherSource returns the weather at a located station.
type WeatherSource interface {
	Weather(ctx context.Context, req collector.WeatherRequest) (collector.WeatherInfo, error)
}

// TimetableSource plans journeys between two located stations.
type TimetableSource interface {
	Timetable(ctx context.Context, q collector.TimetableQuery) (collector.Timetable, error)
}

// Evicter flushes the domain caches.
type Evicter interface {
	Names() []string
	EvictNow(ctx context.Context) error
	Evict(ctx context.Context, name string) error
}

// Config wires the server to its collaborators.
type Config struct {
	Coordinates CoordinatesSource
	Weather     WeatherSource
	Timetable   TimetableSource

	// Caches backs POST /cache/evict. Optional.
	Caches Evicter

	// Health backs the probe routes. Optional.
	Health *health.Aggregator

	// Authenticator guards the data and cache routes. Nil leaves them open.
	Authenticator auth.Authenticator

	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler

	// Middleware wraps every request in a span, a call metric and a log line.
	// Default: no-op
	Middleware *observe.Middleware

	// Logger receives request failures.
	// Default: no-op
	Logger observe.Logger

	// Now returns the current time for weather lookups without ?time=.
	// Default: time.Now
	Now func() time.Time
}

// Server exposes the collectors over HTTP.
type Server struct {
	config Config
	logger observe.Logger
	mux    *http.ServeMux
}

// New creates a Server and registers its routes.
func New(config Config) (*Server, error) {
	if config.Coordinates == nil {
		return nil, ErrMissingCoordinates
	}
	if config.Middleware == nil {
		config.Middleware = observe.NewMiddleware(nil, nil, nil)
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	s := &Server{
		config: config,
		logger: config.Logger.With(observe.Meta{Component: "server", Name: "http"}),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	reader := s.guard(auth.RoleUser, auth.RoleAdmin)
	admin := s.guard(auth.RoleAdmin)

	s.mux.Handle("GET /coordinates/{station}", reader(s.handle("coordinates", s.coordinates)))
	if s.config.Weather != nil {
		s.mux.Handle("GET /weather/{station}", reader(s.handle("weather", s.weather)))
	}
	if s.config.Timetable != nil {
		s.mux.Handle("GET /timetable", reader(s.handle("timetable", s.timetable)))
	}
	if s.config.Caches != nil {
		s.mux.Handle("POST /cache/evict", admin(s.handle("evict", s.evict)))
	}
	if s.config.Health != nil {
		health.RegisterHandlers(s.mux, s.config.Health)
	}
	if s.config.Metrics != nil {
		s.mux.Handle("GET /metrics", s.config.Metrics)
	}
}

// guard requires a token carrying any of roles.
func (s *Server) guard(roles ...string) func(http.Handler) http.Handler {
	if s.config.Authenticator == nil {
		return func(h http.Handler) http.Handler { return h }
	}
	return auth.Middleware(auth.MiddlewareConfig{
		Authenticator: s.config.Authenticator,
		Authorizer:    auth.RequireRoles(roles...),
		OnError:       func(w http.ResponseWriter, r *http.Request, err error) { s.writeError(w, r, err) },
		Logger:        s.config.Logger,
	})
}

// handlerFunc is an HTTP handler that reports failures instead of writing them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle runs fn inside the observe middleware and renders its error.
func (s *Server) handle(name string, fn handlerFunc) http.Handler {
	meta := observe.Meta{Component: "server", Name: name}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exec := s.config.Middleware.Wrap(func(ctx context.Context, _ observe.Meta) error {
			return fn(w, r.WithContext(ctx))
		})
		if err := exec(r.Context(), meta); err != nil {
			s.writeError(w, r, err)
		}
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down within
// shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info(ctx, "http server listening", observe.F("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
