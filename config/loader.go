package config

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/railops/collector"
	"github.com/jonwraymond/railops/gateway"
	"github.com/jonwraymond/railops/secret"
)

// EnvPrefix prefixes every environment override, e.g. RAILOPS_REDIS_ADDR.
const EnvPrefix = "RAILOPS"

// Load builds the configuration from the defaults, the YAML file at path
// (optional) and RAILOPS_* environment variables, in increasing precedence.
// Secret references are resolved and the result is validated.
func Load(ctx context.Context, path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	cfg.Gateway.Policies = canonicalPolicies(cfg.Gateway.Policies)
	if cfg.Observe.ServiceName == "" {
		cfg.Observe.ServiceName = cfg.Service.Name
	}
	if cfg.Observe.Version == "" {
		cfg.Observe.Version = cfg.Service.Version
	}

	if err := cfg.resolveSecrets(ctx, secret.NewResolver()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("%w: defaults: %w", ErrDecode, err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// canonicalPolicies restores the case of known policy names, which viper
// lowercases.
func canonicalPolicies(in map[string]gateway.PolicyConfig) map[string]gateway.PolicyConfig {
	known := []string{collector.PolicyCoordinates, collector.PolicyWeather, collector.PolicyTimetable}
	out := make(map[string]gateway.PolicyConfig, len(in))
	for name, p := range in {
		for _, k := range known {
			if strings.EqualFold(name, k) {
				name = k
				break
			}
		}
		out[name] = p
	}
	return out
}

func (c *Config) resolveSecrets(ctx context.Context, r *secret.Resolver) error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"redis.addr", &c.Redis.Addr},
		{"redis.password", &c.Redis.Password},
		{"auth.jwt_secret", &c.Auth.JWTSecret},
		{"collectors.geocoding.base_url", &c.Collectors.Geocoding.BaseURL},
		{"collectors.geocoding.api_key", &c.Collectors.Geocoding.APIKey},
		{"collectors.weather.base_url", &c.Collectors.Weather.BaseURL},
		{"collectors.timetable.base_url", &c.Collectors.Timetable.BaseURL},
	}
	for _, f := range fields {
		resolved, err := r.ResolveValue(ctx, *f.ptr)
		if err != nil {
			return fmt.Errorf("config: %s: %w", f.name, err)
		}
		*f.ptr = resolved
	}
	return nil
}

const redacted = "[REDACTED]"

// YAML renders the configuration with secrets redacted.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	for _, s := range []*string{&out.Redis.Password, &out.Auth.JWTSecret, &out.Collectors.Geocoding.APIKey} {
		if *s != "" {
			*s = redacted
		}
	}
	return yaml.Marshal(&out)
}
