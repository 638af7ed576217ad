// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// EnvVar names the environment variable read by [Load].
const EnvVar = "SENSORLINK_CONFIG"

// Config is the master configuration for sensorlink binaries.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Database  DatabaseConfig  `yaml:"database"`
	Poller    PollerConfig    `yaml:"poller"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	HTTP      HTTPConfig      `yaml:"http"`
	Ntfy      NtfyConfig      `yaml:"ntfy"`
	Mirror    MirrorConfig    `yaml:"mirror"`

	// Manifest is an optional JSONC device manifest imported at
	// daemon startup.
	Manifest string `yaml:"manifest"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides holds environment-specific values. Only non-zero
// fields replace the base configuration.
type ConfigOverrides struct {
	LogLevel string           `yaml:"log_level,omitempty"`
	Database *DatabaseConfig  `yaml:"database,omitempty"`
	Poller   *PollerConfig    `yaml:"poller,omitempty"`
	HTTP     *HTTPConfig      `yaml:"http,omitempty"`
	Ntfy     *NtfyConfig      `yaml:"ntfy,omitempty"`
	Mirror   *MirrorConfig    `yaml:"mirror,omitempty"`
	Discover *DiscoveryConfig `yaml:"discovery,omitempty"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	PoolSize int    `yaml:"pool_size"`
}

// PollerConfig controls the device poller.
type PollerConfig struct {
	// Enabled turns the scheduler loop on in the daemon.
	Enabled bool `yaml:"enabled"`

	// Interval is the scheduler tick. Each device still waits its own
	// polling interval between fetches.
	Interval Duration `yaml:"interval"`

	FetchTimeout    Duration `yaml:"fetch_timeout"`
	DefaultEndpoint string   `yaml:"default_endpoint"`
}

// DiscoveryConfig controls network scans.
type DiscoveryConfig struct {
	ProbeTimeout Duration `yaml:"probe_timeout"`
	Concurrency  int      `yaml:"concurrency"`
	MaxAddresses int      `yaml:"max_addresses"`
	NamePatterns []string `yaml:"name_patterns"`
}

// HTTPConfig controls the daemon API listener.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// NtfyConfig enables push notifications when Topic is set.
type NtfyConfig struct {
	ServerURL    string   `yaml:"server_url"`
	Topic        string   `yaml:"topic"`
	Token        string   `yaml:"token"`
	ClickBaseURL string   `yaml:"click_base_url"`
	Timeout      Duration `yaml:"timeout"`
}

// Enabled reports whether a topic is configured.
func (n NtfyConfig) Enabled() bool { return n.Topic != "" }

// MirrorConfig enables the InfluxDB reading mirror when URL is set.
type MirrorConfig struct {
	URL         string   `yaml:"url"`
	Token       string   `yaml:"token"`
	Org         string   `yaml:"org"`
	Bucket      string   `yaml:"bucket"`
	Measurement string   `yaml:"measurement"`
	Timeout     Duration `yaml:"timeout"`
}

// Enabled reports whether a mirror URL is configured.
func (m MirrorConfig) Enabled() bool { return m.URL != "" }

// Duration is a time.Duration that reads Go duration strings ("30s",
// "2m") from YAML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns a configuration with development defaults.
func Default() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Database: DatabaseConfig{
			Path:     "${SENSORLINK_ROOT:-${HOME}/.local/share/sensorlink}/sensorlink.db",
			PoolSize: 4,
		},
		Poller: PollerConfig{
			Enabled:         true,
			Interval:        Duration(30 * time.Second),
			FetchTimeout:    Duration(10 * time.Second),
			DefaultEndpoint: "/api",
		},
		Discovery: DiscoveryConfig{
			ProbeTimeout: Duration(2 * time.Second),
			Concurrency:  20,
			MaxAddresses: 512,
			NamePatterns: []string{"esp32", "fermentation", "controller", "sensor", "temp", "brewery", "fermenter"},
		},
		HTTP: HTTPConfig{
			Listen: "127.0.0.1:8470",
		},
		Ntfy: NtfyConfig{
			ServerURL: "https://ntfy.sh",
			Timeout:   Duration(10 * time.Second),
		},
		Mirror: MirrorConfig{
			Measurement: "sensor_readings",
			Timeout:     Duration(5 * time.Second),
		},
	}
}

// Load loads configuration from the SENSORLINK_CONFIG environment
// variable. There is no fallback search: if the variable is unset this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your sensorlink.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Values from
// the file are layered over [Default], then the section matching
// Environment is applied, then ${VAR} patterns in path fields are
// expanded.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: quieter logging.
		if overrides == nil {
			overrides = &ConfigOverrides{LogLevel: "warn"}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}

	if overrides.Database != nil {
		if overrides.Database.Path != "" {
			c.Database.Path = overrides.Database.Path
		}
		if overrides.Database.PoolSize > 0 {
			c.Database.PoolSize = overrides.Database.PoolSize
		}
	}

	if overrides.Poller != nil {
		// Enabled is a bool, so it always applies from an override
		// section that mentions the poller.
		c.Poller.Enabled = overrides.Poller.Enabled
		if overrides.Poller.Interval > 0 {
			c.Poller.Interval = overrides.Poller.Interval
		}
		if overrides.Poller.FetchTimeout > 0 {
			c.Poller.FetchTimeout = overrides.Poller.FetchTimeout
		}
		if overrides.Poller.DefaultEndpoint != "" {
			c.Poller.DefaultEndpoint = overrides.Poller.DefaultEndpoint
		}
	}

	if overrides.Discover != nil {
		if overrides.Discover.ProbeTimeout > 0 {
			c.Discovery.ProbeTimeout = overrides.Discover.ProbeTimeout
		}
		if overrides.Discover.Concurrency > 0 {
			c.Discovery.Concurrency = overrides.Discover.Concurrency
		}
		if overrides.Discover.MaxAddresses > 0 {
			c.Discovery.MaxAddresses = overrides.Discover.MaxAddresses
		}
		if len(overrides.Discover.NamePatterns) > 0 {
			c.Discovery.NamePatterns = overrides.Discover.NamePatterns
		}
	}

	if overrides.HTTP != nil && overrides.HTTP.Listen != "" {
		c.HTTP.Listen = overrides.HTTP.Listen
	}

	if overrides.Ntfy != nil {
		if overrides.Ntfy.ServerURL != "" {
			c.Ntfy.ServerURL = overrides.Ntfy.ServerURL
		}
		if overrides.Ntfy.Topic != "" {
			c.Ntfy.Topic = overrides.Ntfy.Topic
		}
		if overrides.Ntfy.Token != "" {
			c.Ntfy.Token = overrides.Ntfy.Token
		}
		if overrides.Ntfy.ClickBaseURL != "" {
			c.Ntfy.ClickBaseURL = overrides.Ntfy.ClickBaseURL
		}
	}

	if overrides.Mirror != nil {
		if overrides.Mirror.URL != "" {
			c.Mirror.URL = overrides.Mirror.URL
		}
		if overrides.Mirror.Token != "" {
			c.Mirror.Token = overrides.Mirror.Token
		}
		if overrides.Mirror.Org != "" {
			c.Mirror.Org = overrides.Mirror.Org
		}
		if overrides.Mirror.Bucket != "" {
			c.Mirror.Bucket = overrides.Mirror.Bucket
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// and credential fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Database.Path = expandVars(c.Database.Path, vars)
	c.Manifest = expandVars(c.Manifest, vars)
	c.Ntfy.Token = expandVars(c.Ntfy.Token, vars)
	c.Mirror.Token = expandVars(c.Mirror.Token, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-((?:[^{}]|\$\{[^}]*\})*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. A default
// may itself contain one level of ${VAR}.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		if strings.Contains(defaultValue, "${") {
			return expandVars(defaultValue, vars)
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel))
	}

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Database.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("database.pool_size must be at least 1"))
	}

	if c.Poller.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poller.interval must be positive"))
	}
	if c.Poller.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("poller.fetch_timeout must be positive"))
	}
	if !strings.HasPrefix(c.Poller.DefaultEndpoint, "/") {
		errs = append(errs, fmt.Errorf("poller.default_endpoint must start with /"))
	}

	if c.Discovery.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("discovery.probe_timeout must be positive"))
	}
	if c.Discovery.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("discovery.concurrency must be at least 1"))
	}
	if c.Discovery.MaxAddresses < 1 {
		errs = append(errs, fmt.Errorf("discovery.max_addresses must be at least 1"))
	}

	if c.HTTP.Listen == "" {
		errs = append(errs, fmt.Errorf("http.listen is required"))
	}

	if c.Ntfy.Enabled() && c.Ntfy.ServerURL == "" {
		errs = append(errs, fmt.Errorf("ntfy.server_url is required when ntfy.topic is set"))
	}
	if c.Mirror.Enabled() && (c.Mirror.Org == "" || c.Mirror.Bucket == "") {
		errs = append(errs, fmt.Errorf("mirror.org and mirror.bucket are required when mirror.url is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the database directory if it does not exist.
func (c *Config) EnsurePaths() error {
	dir := filepath.Dir(c.Database.Path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
