// Package config assembles runtime configuration from environment
// variables, optionally overlaid by a YAML file named in PATHDASH_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from "30s" style YAML values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds everything the daemon needs to run.
type Config struct {
	Port   int    `yaml:"port" validate:"gte=1,lte=65535"`
	DBPath string `yaml:"db_path" validate:"required"`

	APIBaseURL  string `yaml:"api_base_url" validate:"url"`
	AlertsURL   string `yaml:"alerts_url" validate:"url"`
	AlertsRTURL string `yaml:"alerts_rt_url" validate:"omitempty,url"` // GTFS-RT alerts feed, optional

	ArrivalsInterval Duration `yaml:"arrivals_interval" validate:"gt=0"`
	AlertsInterval   Duration `yaml:"alerts_interval" validate:"gt=0"`
	RederiveInterval Duration `yaml:"rederive_interval" validate:"gt=0"`

	// DefaultLat/DefaultLon seed the dashboard before any location sample
	// arrives. The defaults are the World Trade Center.
	DefaultLat float64 `yaml:"default_lat" validate:"latitude"`
	DefaultLon float64 `yaml:"default_lon" validate:"longitude"`
}

// Load reads configuration from environment variables, overlays the YAML
// file named in PATHDASH_CONFIG if set, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Port:   envInt("PATHDASH_PORT", 8080),
		DBPath: envStr("PATHDASH_DB_PATH", "./pathdash.db"),

		APIBaseURL:  envStr("PATHDASH_API_URL", "https://path.api.razza.dev/v1"),
		AlertsURL:   envStr("PATHDASH_ALERTS_URL", "https://www.panynj.gov/bin/portauthority/ruby.json"),
		AlertsRTURL: envStr("PATHDASH_ALERTS_RT_URL", ""),

		ArrivalsInterval: envDur("PATHDASH_ARRIVALS_INTERVAL", 30*time.Second),
		AlertsInterval:   envDur("PATHDASH_ALERTS_INTERVAL", 2*time.Minute),
		RederiveInterval: envDur("PATHDASH_REDERIVE_INTERVAL", 5*time.Second),

		DefaultLat: envFloat("PATHDASH_DEFAULT_LAT", 40.713056),
		DefaultLon: envFloat("PATHDASH_DEFAULT_LON", -74.013333),
	}

	if path := os.Getenv("PATHDASH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configured values. Callers that mutate a loaded
// Config afterwards, such as command-line flag overrides, must call it
// again.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return Duration(d)
		}
	}
	return Duration(fallback)
}
