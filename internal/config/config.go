// Package config provides configuration for the flightboard service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/skyhub/flightboard/internal/cache"
)

// Config is the service configuration, loaded from an INI file with
// environment-variable overrides.
//
// INI format:
//
//	[flightboard]
//	listen_addr = :8080
//	schedule_base_url = https://schedules.example.com
//	tracker_base_url = https://www.flightaware.com
//	cors_origin = https://flightboard.app
//	cache_max_entries = 200
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `ini:"listen_addr"`

	// ScheduleBaseURL is the base URL of the schedule aggregator upstream.
	ScheduleBaseURL string `ini:"schedule_base_url"`

	// TrackerBaseURL is the base URL of the flight-tracking page upstream.
	TrackerBaseURL string `ini:"tracker_base_url"`

	// CORSOrigin is the one non-localhost origin the flight-times endpoint
	// accepts.
	CORSOrigin string `ini:"cors_origin"`

	// CacheMaxEntries bounds the in-memory TTL cache.
	CacheMaxEntries int `ini:"cache_max_entries"`
}

// Validation errors
var (
	ErrMissingScheduleURL = errors.New("schedule_base_url is required")
	ErrMissingTrackerURL  = errors.New("tracker_base_url is required")
	ErrInvalidCacheSize   = errors.New("cache_max_entries must be positive")
)

// New returns a Config with default values. The upstream base URLs have no
// defaults; deployments must point at real endpoints explicitly.
func New() *Config {
	return &Config{
		ListenAddr:      ":8080",
		TrackerBaseURL:  "https://www.flightaware.com",
		CORSOrigin:      "https://flightboard.app",
		CacheMaxEntries: cache.DefaultMaxEntries,
	}
}

// Load reads configuration from path, then applies environment overrides.
// A missing file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			f, err := ini.Load(path)
			if err != nil {
				return nil, fmt.Errorf("loading config %s: %w", path, err)
			}
			if err := f.Section("flightboard").MapTo(cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets FLIGHTBOARD_* environment variables override file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("FLIGHTBOARD_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("FLIGHTBOARD_SCHEDULE_URL"); v != "" {
		c.ScheduleBaseURL = v
	}
	if v := os.Getenv("FLIGHTBOARD_TRACKER_URL"); v != "" {
		c.TrackerBaseURL = v
	}
	if v := os.Getenv("FLIGHTBOARD_CORS_ORIGIN"); v != "" {
		c.CORSOrigin = v
	}
	if v := os.Getenv("FLIGHTBOARD_CACHE_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CacheMaxEntries = n
		}
	}
}

// Validate checks that the configuration can actually run the service.
func (c *Config) Validate() error {
	if c.ScheduleBaseURL == "" {
		return ErrMissingScheduleURL
	}
	if c.TrackerBaseURL == "" {
		return ErrMissingTrackerURL
	}
	if c.CacheMaxEntries <= 0 {
		return ErrInvalidCacheSize
	}
	return nil
}
