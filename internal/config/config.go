// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config holds all envdash configuration.
type Config struct {
	Source Source `yaml:"source"`
	Cache  Cache  `yaml:"cache"`
	Poll   Poll   `yaml:"poll"`
	Log    Log    `yaml:"log"`
}

// Source holds backend connection settings.
type Source struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`         // Per-request HTTP timeout
	WindowHours    int           `yaml:"window_hours"`    // Dashboard history window
	TriggerRetries int           `yaml:"trigger_retries"` // Transport retries for source refresh triggers
}

// Cache holds result cache settings.
type Cache struct {
	TTL time.Duration `yaml:"ttl"`
}

// Poll holds refresh cycle settings.
type Poll struct {
	Interval           time.Duration `yaml:"interval"`
	InitialRetryBudget int           `yaml:"initial_retry_budget"` // Attempts for initial, manual and reload refreshes
	PollRetryBudget    int           `yaml:"poll_retry_budget"`    // Attempts for timer-driven refreshes
	RetryDelay         time.Duration `yaml:"retry_delay"`          // Pause between attempts; 0 retries immediately
	SettleDelay        time.Duration `yaml:"settle_delay"`         // Wait after a source refresh before reloading
}

// Log holds logging settings.
type Log struct {
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	File  string `yaml:"file"`  // Log file for the interactive dashboard
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Source: Source{
			BaseURL:        "http://localhost:8080/api",
			Timeout:        30 * time.Second,
			WindowHours:    24,
			TriggerRetries: 2,
		},
		Cache: Cache{
			TTL: 5 * time.Minute,
		},
		Poll: Poll{
			Interval:           5 * time.Minute,
			InitialRetryBudget: 3,
			PollRetryBudget:    2,
			SettleDelay:        2 * time.Second,
		},
		Log: Log{
			Level: "info",
			File:  ".envdash/logs/envdash.log",
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	return LoadLayered(path)
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable. Every problem found is
// reported, not only the first.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if u, err := url.Parse(c.Source.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = multierror.Append(errs, fmt.Errorf("config: source.base_url must be an absolute http(s) URL, got %q", c.Source.BaseURL))
	}
	if c.Source.Timeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: source.timeout must be positive, got %v", c.Source.Timeout))
	}
	if c.Source.WindowHours <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: source.window_hours must be positive, got %d", c.Source.WindowHours))
	}
	if c.Source.TriggerRetries < 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: source.trigger_retries must be non-negative, got %d", c.Source.TriggerRetries))
	}
	if c.Cache.TTL <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: cache.ttl must be positive, got %v", c.Cache.TTL))
	}
	if c.Poll.Interval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: poll.interval must be positive, got %v", c.Poll.Interval))
	}
	if c.Poll.InitialRetryBudget < 1 {
		errs = multierror.Append(errs, fmt.Errorf("config: poll.initial_retry_budget must be at least 1, got %d", c.Poll.InitialRetryBudget))
	}
	if c.Poll.PollRetryBudget < 1 {
		errs = multierror.Append(errs, fmt.Errorf("config: poll.poll_retry_budget must be at least 1, got %d", c.Poll.PollRetryBudget))
	}
	if c.Poll.RetryDelay < 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: poll.retry_delay must be non-negative, got %v", c.Poll.RetryDelay))
	}
	if c.Poll.SettleDelay < 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: poll.settle_delay must be non-negative, got %v", c.Poll.SettleDelay))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = multierror.Append(errs, fmt.Errorf("config: log.level must be one of debug, info, warn, error; got %q", c.Log.Level))
	}

	return errs.ErrorOrNil()
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: ENVDASH_BASE_URL, ENVDASH_TIMEOUT,
// ENVDASH_POLL_INTERVAL, ENVDASH_WINDOW_HOURS, ENVDASH_LOG_LEVEL.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("ENVDASH_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := os.Getenv("ENVDASH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid ENVDASH_TIMEOUT %q: %w", v, err)
		}
		c.Source.Timeout = d
	}
	if v := os.Getenv("ENVDASH_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid ENVDASH_POLL_INTERVAL %q: %w", v, err)
		}
		c.Poll.Interval = d
	}
	if v := os.Getenv("ENVDASH_WINDOW_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid ENVDASH_WINDOW_HOURS %q: %w", v, err)
		}
		c.Source.WindowHours = n
	}
	if v := os.Getenv("ENVDASH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Source *rawSource `yaml:"source"`
	Cache  *rawCache  `yaml:"cache"`
	Poll   *rawPoll   `yaml:"poll"`
	Log    *rawLog    `yaml:"log"`
}

type rawSource struct {
	BaseURL        *string        `yaml:"base_url"`
	Timeout        *time.Duration `yaml:"timeout"`
	WindowHours    *int           `yaml:"window_hours"`
	TriggerRetries *int           `yaml:"trigger_retries"`
}

type rawCache struct {
	TTL *time.Duration `yaml:"ttl"`
}

type rawPoll struct {
	Interval           *time.Duration `yaml:"interval"`
	InitialRetryBudget *int           `yaml:"initial_retry_budget"`
	PollRetryBudget    *int           `yaml:"poll_retry_budget"`
	RetryDelay         *time.Duration `yaml:"retry_delay"`
	SettleDelay        *time.Duration `yaml:"settle_delay"`
}

type rawLog struct {
	Level *string `yaml:"level"`
	File  *string `yaml:"file"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if s := layer.Source; s != nil {
		set(&c.Source.BaseURL, s.BaseURL)
		set(&c.Source.Timeout, s.Timeout)
		set(&c.Source.WindowHours, s.WindowHours)
		set(&c.Source.TriggerRetries, s.TriggerRetries)
	}
	if layer.Cache != nil {
		set(&c.Cache.TTL, layer.Cache.TTL)
	}
	if p := layer.Poll; p != nil {
		set(&c.Poll.Interval, p.Interval)
		set(&c.Poll.InitialRetryBudget, p.InitialRetryBudget)
		set(&c.Poll.PollRetryBudget, p.PollRetryBudget)
		set(&c.Poll.RetryDelay, p.RetryDelay)
		set(&c.Poll.SettleDelay, p.SettleDelay)
	}
	if l := layer.Log; l != nil {
		set(&c.Log.Level, l.Level)
		set(&c.Log.File, l.File)
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
