package config

import (
	"time"

	"github.com/jonwraymond/railops/gateway"
	"github.com/jonwraymond/railops/observe"
)

// Config is the complete railops service configuration.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service" yaml:"service"`
	Observe    observe.Config   `mapstructure:"observe" yaml:"observe"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Bus        BusConfig        `mapstructure:"bus" yaml:"bus"`
	Registries RegistriesConfig `mapstructure:"registries" yaml:"registries"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Gateway    gateway.Config   `mapstructure:"gateway" yaml:"gateway"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Collectors CollectorsConfig `mapstructure:"collectors" yaml:"collectors"`
	Health     HealthConfig     `mapstructure:"health" yaml:"health"`
}

// ServiceConfig identifies the process and its HTTP listener.
type ServiceConfig struct {
	Name            string        `mapstructure:"name" yaml:"name"`
	Version         string        `mapstructure:"version" yaml:"version"`
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// RedisConfig addresses the Redis server shared by the cache and the bus.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// Bus transports.
const (
	TransportNone   = "none"
	TransportMemory = "memory"
	TransportRedis  = "redis"
)

// BusConfig selects how coordinates and weather requests travel.
//
// With TransportNone the services call the providers directly through the
// gateway. With a bus transport requests are published and the answers are
// matched back through the correlation registries.
type BusConfig struct {
	Transport     string `mapstructure:"transport" yaml:"transport"`
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
	Workers       int    `mapstructure:"workers" yaml:"workers"`
	Buffer        int    `mapstructure:"buffer" yaml:"buffer"`

	// Responders also serves the request channels in this process.
	Responders bool `mapstructure:"responders" yaml:"responders"`
}

// RegistriesConfig holds one entry per correlation registry.
type RegistriesConfig struct {
	Coordinates RegistryConfig `mapstructure:"coordinates" yaml:"coordinates"`
	Weather     RegistryConfig `mapstructure:"weather" yaml:"weather"`
}

// RegistryConfig configures a correlation registry.
type RegistryConfig struct {
	// WaitSeconds is how long a pending request waits for its response.
	WaitSeconds int `mapstructure:"wait_seconds" yaml:"wait_seconds"`
}

// Timeout returns WaitSeconds as a duration.
func (r RegistryConfig) Timeout() time.Duration {
	return time.Duration(r.WaitSeconds) * time.Second
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig configures the domain caches.
type CacheConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// TTL bounds every entry. Zero keeps entries until eviction.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// EvictionInterval is how often every cache is flushed. Zero disables it.
	EvictionInterval time.Duration `mapstructure:"eviction_interval" yaml:"eviction_interval"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer" yaml:"issuer"`
	Audience  string        `mapstructure:"audience" yaml:"audience"`
	Leeway    time.Duration `mapstructure:"leeway" yaml:"leeway"`
}

// CollectorsConfig addresses the upstream providers.
type CollectorsConfig struct {
	Geocoding GeocodingConfig `mapstructure:"geocoding" yaml:"geocoding"`
	Weather   WeatherConfig   `mapstructure:"weather" yaml:"weather"`
	Timetable TimetableConfig `mapstructure:"timetable" yaml:"timetable"`
}

// GeocodingConfig configures the geocoding provider.
type GeocodingConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Path        string        `mapstructure:"path" yaml:"path"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	CountryCode string        `mapstructure:"country_code" yaml:"country_code"`
	Suffix      string        `mapstructure:"suffix" yaml:"suffix"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// WeatherConfig configures the forecast provider.
type WeatherConfig struct {
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	Path     string        `mapstructure:"path" yaml:"path"`
	Timezone string        `mapstructure:"timezone" yaml:"timezone"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TimetableConfig configures the journey planner.
type TimetableConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Path    string        `mapstructure:"path" yaml:"path"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// HealthConfig tunes the health checks.
type HealthConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxPending int           `mapstructure:"max_pending" yaml:"max_pending"`
	MaxAge     time.Duration `mapstructure:"max_age" yaml:"max_age"`
}
