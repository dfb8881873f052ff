// Package config loads the service configuration: built-in defaults, then
// an optional YAML file, then environment variables. Variables come from the
// process environment or, failing that, a .env file; the .env file never
// modifies the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Submission modes.
const (
	SubmitSQLite  = "sqlite"
	SubmitBackend = "backend"
)

// Config holds the service configuration.
type Config struct {
	Port        int           `yaml:"port"`
	DatabaseURL string        `yaml:"database_url"`
	SubmitMode  string        `yaml:"submit_mode"`
	Backend     BackendConfig `yaml:"backend"`
	MaxUploadMB int           `yaml:"max_upload_mb"`
	Session     SessionConfig `yaml:"session"`
	CORS        CORSConfig    `yaml:"cors"`
	Logging     LoggingConfig `yaml:"logging"`
	Events      EventsConfig  `yaml:"events"`
}

// BackendConfig points at the remote listing API used in backend mode.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig bounds the lifetime of in-memory wizards.
type SessionConfig struct {
	MaxAge          time.Duration `yaml:"max_age"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig selects the log level and handler. Format is "tint"
// (colored text), "text" or "json".
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type EventsConfig struct {
	BufferSize       int `yaml:"buffer_size"`
	ActivityCapacity int `yaml:"activity_capacity"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:        8080,
		DatabaseURL: "file:listings.db?_pragma=foreign_keys(1)",
		SubmitMode:  SubmitSQLite,
		Backend:     BackendConfig{Timeout: 60 * time.Second},
		MaxUploadMB: 10,
		Session: SessionConfig{
			MaxAge:          24 * time.Hour,
			IdleTimeout:     30 * time.Minute,
			CleanupInterval: time.Minute,
		},
		CORS:    CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		Logging: LoggingConfig{Level: "info", Format: "tint"},
		Events:  EventsConfig{BufferSize: 256, ActivityCapacity: 1000},
	}
}

// Load builds the configuration. configPath may be empty; a missing file at
// configPath or envPath is not an error. An empty envPath means ".env".
func Load(configPath, envPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if envPath == "" {
		envPath = ".env"
	}
	dotenv, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envPath, err)
	}

	// The process environment wins over .env entries.
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"DATABASE_URL", &c.DatabaseURL},
		{"SUBMIT_MODE", &c.SubmitMode},
		{"BACKEND_URL", &c.Backend.URL},
		{"LOG_LEVEL", &c.Logging.Level},
		{"LOG_FORMAT", &c.Logging.Format},
	}
	for _, e := range strs {
		if v, ok := lookup(e.key); ok {
			*e.dst = v
		}
	}
	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok {
		c.CORS.AllowedOrigins = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Port},
		{"MAX_UPLOAD_MB", &c.MaxUploadMB},
		{"EVENT_BUFFER_SIZE", &c.Events.BufferSize},
		{"ACTIVITY_CAPACITY", &c.Events.ActivityCapacity},
	}
	for _, e := range ints {
		if err := setInt(lookup, e.dst, e.key); err != nil {
			return err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"BACKEND_TIMEOUT", &c.Backend.Timeout},
		{"SESSION_MAX_AGE", &c.Session.MaxAge},
		{"SESSION_IDLE_TIMEOUT", &c.Session.IdleTimeout},
		{"SESSION_CLEANUP_INTERVAL", &c.Session.CleanupInterval},
	}
	for _, e := range durations {
		if err := setDuration(lookup, e.dst, e.key); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.SubmitMode {
	case SubmitSQLite:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required in sqlite mode")
		}
	case SubmitBackend:
		if c.Backend.URL == "" {
			return errors.New("BACKEND_URL is required in backend mode")
		}
	default:
		return fmt.Errorf("unknown submit mode %q", c.SubmitMode)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size %d MB", c.MaxUploadMB)
	}
	if c.Session.IdleTimeout <= 0 || c.Session.MaxAge <= 0 || c.Session.CleanupInterval <= 0 {
		return errors.New("session durations must be positive")
	}
	switch c.Logging.Format {
	case "tint", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// MaxUploadBytes returns the per-file upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func setInt(lookup lookupFunc, dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(lookup lookupFunc, dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
