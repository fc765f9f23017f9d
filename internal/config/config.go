package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Geocoder GeocoderConfig `yaml:"geocoder" mapstructure:"geocoder"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Venues   VenuesConfig   `yaml:"venues" mapstructure:"venues"`
	Area     AreaConfig     `yaml:"area" mapstructure:"area"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the venue cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocoderConfig configures the external geocoding service.
type GeocoderConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	CountryCodes  string `yaml:"country_codes" mapstructure:"country_codes"`
	Region        string `yaml:"region" mapstructure:"region"`
	MinIntervalMS int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CityFallback  bool   `yaml:"city_fallback" mapstructure:"city_fallback"`
}

// MinInterval returns the minimum delay between external calls.
func (g GeocoderConfig) MinInterval() time.Duration {
	return time.Duration(g.MinIntervalMS) * time.Millisecond
}

// Timeout returns the per-call timeout.
func (g GeocoderConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// RetryConfig configures retry behavior for transient lookup failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CacheConfig configures the freshness policy for cached entries.
type CacheConfig struct {
	// RetryIntervalHours is how long an unresolved entry suppresses
	// re-lookup. Resolved and TBA entries never expire.
	RetryIntervalHours int `yaml:"retry_interval_hours" mapstructure:"retry_interval_hours"`
}

// RetryInterval returns the unresolved re-lookup interval.
func (c CacheConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalHours) * time.Hour
}

// VenuesConfig configures venue normalization.
type VenuesConfig struct {
	// AliasFile points at a YAML file with known venue aliases and TBA
	// patterns. Optional.
	AliasFile string `yaml:"alias_file" mapstructure:"alias_file"`
	// TBAPatterns are tokens marking a venue as to-be-announced. Merged
	// with patterns from the alias file.
	TBAPatterns []string `yaml:"tba_patterns" mapstructure:"tba_patterns"`
}

// AreaConfig bounds the service area. Matches outside the box are rejected
// rather than shown on the map.
type AreaConfig struct {
	Enabled bool    `yaml:"enabled" mapstructure:"enabled"`
	MinLat  float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MinLon  float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLat  float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MaxLon  float64 `yaml:"max_lon" mapstructure:"max_lon"`
}

// ServerConfig configures the operator API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VENUEGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "SF-Events-Map/1.0 (contact@sfeventsmap.dev)")
	v.SetDefault("geocoder.country_codes", "us")
	v.SetDefault("geocoder.region", "CA")
	v.SetDefault("geocoder.min_interval_ms", 1000)
	v.SetDefault("geocoder.timeout_secs", 10)
	v.SetDefault("geocoder.city_fallback", true)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 15000)
	v.SetDefault("cache.retry_interval_hours", 24)
	v.SetDefault("venues.tba_patterns", []string{"tba", "tbd"})
	// Rough SF Bay Area box: Santa Cruz up to Santa Rosa.
	v.SetDefault("area.enabled", true)
	v.SetDefault("area.min_lat", 36.8)
	v.SetDefault("area.min_lon", -123.2)
	v.SetDefault("area.max_lat", 38.9)
	v.SetDefault("area.max_lon", -121.2)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
