package strata

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by schema resolution, the query compiler
// and the result materializer.
type Config struct {
	// Workers bounds the number of concurrent resolution units and eager-load
	// subqueries. Zero means unbounded.
	Workers int
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// SlowQuery is the threshold above which executed statements are logged
	// as slow. Zero disables slow-query logging.
	SlowQuery time.Duration
	// DSN is the data source used by the command line tool.
	DSN string
}

// Option configures a Config.
type Option func(*Config)

// WithWorkers sets the concurrency limit. Zero or less means unbounded.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = max(n, 0)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithSlowThreshold enables slow-query logging above the given duration.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Config) {
		c.SlowQuery = d
	}
}

// WithDSN sets the data source name.
func WithDSN(dsn string) Option {
	return func(c *Config) {
		c.DSN = dsn
	}
}

// WithConfig replaces the whole configuration, typically one returned by LoadConfig.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
		if c.Logger == nil {
			c.Logger = slog.Default()
		}
	}
}

// NewConfig returns a Config with defaults applied, then the given options.
func NewConfig(opts ...Option) Config {
	c := Config{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// fileConfig is the YAML layout read by LoadConfig.
type fileConfig struct {
	Workers   int    `yaml:"workers"`
	LogLevel  string `yaml:"log_level"`
	SlowQuery string `yaml:"slow_query"`
	DSN       string `yaml:"dsn"`
}

// LoadConfig reads a YAML configuration file. Options are applied after the
// file, so they override it.
//
//	workers: 8
//	log_level: warn
//	slow_query: 200ms
//	dsn: "file:app.db?_pragma=foreign_keys(1)"
func LoadConfig(path string, opts ...Option) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("strata: read config: %w", err)
	}
	return ParseConfig(data, opts...)
}

// ParseConfig parses YAML configuration data. See LoadConfig.
func ParseConfig(data []byte, opts ...Option) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("strata: parse config: %w", err)
	}
	c := NewConfig(WithWorkers(fc.Workers), WithDSN(fc.DSN))
	if fc.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(fc.LogLevel)); err != nil {
			return Config{}, fmt.Errorf("strata: parse config: log_level: %w", err)
		}
		c.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	if fc.SlowQuery != "" {
		d, err := time.ParseDuration(fc.SlowQuery)
		if err != nil {
			return Config{}, fmt.Errorf("strata: parse config: slow_query: %w", err)
		}
		c.SlowQuery = d
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c, nil
}
