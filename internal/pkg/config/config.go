package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Session   SessionConfig   `mapstructure:"session"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type GeocoderConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	UserAgent       string `mapstructure:"user_agent"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	PreferredKind   string `mapstructure:"preferred_kind"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

type RoutingConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MultiLinePolicy string `mapstructure:"multiline_policy"` // flatten | longest
}

type SessionConfig struct {
	IdleTTLSeconds int `mapstructure:"idle_ttl_seconds"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "routefinder/1.0")
	v.SetDefault("geocoder.timeout_seconds", 10)
	v.SetDefault("geocoder.preferred_kind", "city")
	v.SetDefault("geocoder.cache_ttl_seconds", 86400)
	v.SetDefault("routing.base_url", "https://shortest-path-backend-iyb8.onrender.com")
	v.SetDefault("routing.timeout_seconds", 20)
	v.SetDefault("routing.multiline_policy", "flatten")
	v.SetDefault("session.idle_ttl_seconds", 1800)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ROUTEFINDER_ROUTING_BASE_URL → routing.base_url
	v.SetEnvPrefix("ROUTEFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if !validBaseURL(c.Geocoder.BaseURL) {
		errs = append(errs, fmt.Sprintf("geocoder.base_url must be an absolute http(s) URL, got %q", c.Geocoder.BaseURL))
	}
	if c.Geocoder.UserAgent == "" {
		errs = append(errs, "geocoder.user_agent is required")
	}
	if c.Geocoder.TimeoutSeconds <= 0 {
		errs = append(errs, "geocoder.timeout_seconds must be positive")
	}
	if c.Geocoder.CacheTTLSeconds < 0 {
		errs = append(errs, "geocoder.cache_ttl_seconds must not be negative")
	}
	if !validBaseURL(c.Routing.BaseURL) {
		errs = append(errs, fmt.Sprintf("routing.base_url must be an absolute http(s) URL, got %q", c.Routing.BaseURL))
	}
	if c.Routing.TimeoutSeconds <= 0 {
		errs = append(errs, "routing.timeout_seconds must be positive")
	}
	switch c.Routing.MultiLinePolicy {
	case "flatten", "longest":
	default:
		errs = append(errs, fmt.Sprintf("routing.multiline_policy must be flatten or longest, got %q", c.Routing.MultiLinePolicy))
	}
	if c.Session.IdleTTLSeconds <= 0 {
		errs = append(errs, "session.idle_ttl_seconds must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
