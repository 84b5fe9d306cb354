package config

import (
	"time"

	"github.com/jonwraymond/railops/collector"
	"github.com/jonwraymond/railops/gateway"
	"github.com/jonwraymond/railops/observe"
)

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "railops",
			Version:         "dev",
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Observe: observe.Config{
			ServiceName: "railops",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Bus: BusConfig{
			Transport:     TransportMemory,
			ChannelPrefix: "railops",
			Workers:       8,
			Buffer:        64,
			Responders:    true,
		},
		Registries: RegistriesConfig{
			Coordinates: RegistryConfig{WaitSeconds: 30},
			Weather:     RegistryConfig{WaitSeconds: 30},
		},
		Cache: CacheConfig{
			Backend:          CacheMemory,
			KeyPrefix:        "railops:cache",
			EvictionInterval: 24 * time.Hour,
		},
		Gateway: gateway.Config{
			Default: gateway.PolicyConfig{
				Rate:           10,
				Burst:          10,
				MaxFailures:    5,
				FailureRate:    0.5,
				Window:         20,
				MinimumCalls:   10,
				ResetTimeout:   30 * time.Second,
				HalfOpenProbes: 1,
				MaxAttempts:    3,
				InitialDelay:   200 * time.Millisecond,
				MaxDelay:       2 * time.Second,
				Multiplier:     2,
				AttemptTimeout: 10 * time.Second,
			},
			Policies: map[string]gateway.PolicyConfig{
				collector.PolicyCoordinates: {Endpoint: "geocoding"},
				collector.PolicyWeather:     {Endpoint: "open-meteo"},
				collector.PolicyTimetable:   {Endpoint: "planner", Rate: 5, Burst: 5},
			},
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Collectors: CollectorsConfig{
			Geocoding: GeocodingConfig{
				BaseURL:     "https://maps.googleapis.com",
				Path:        "/maps/api/geocode/json",
				CountryCode: "HU",
				Suffix:      "vasútállomás",
				Timeout:     10 * time.Second,
			},
			Weather: WeatherConfig{
				BaseURL:  "https://api.open-meteo.com",
				Path:     "/v1/forecast",
				Timezone: "Europe/Budapest",
				Timeout:  10 * time.Second,
			},
			Timetable: TimetableConfig{
				BaseURL: "https://emma.mav.hu",
				Path:    "/otp2-backend/otp/routers/default/index/graphql",
				Timeout: 15 * time.Second,
			},
		},
		Health: HealthConfig{
			Timeout:    5 * time.Second,
			MaxPending: 1000,
			MaxAge:     time.Minute,
		},
	}
}
