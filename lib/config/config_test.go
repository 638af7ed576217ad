// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensorlink.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Poller.Interval.Std() != 30*time.Second {
		t.Errorf("expected poller interval 30s, got %s", cfg.Poller.Interval)
	}
	if cfg.Poller.FetchTimeout.Std() != 10*time.Second {
		t.Errorf("expected fetch timeout 10s, got %s", cfg.Poller.FetchTimeout)
	}
	if cfg.Poller.DefaultEndpoint != "/api" {
		t.Errorf("expected default endpoint /api, got %s", cfg.Poller.DefaultEndpoint)
	}
	if cfg.Discovery.ProbeTimeout.Std() != 2*time.Second {
		t.Errorf("expected probe timeout 2s, got %s", cfg.Discovery.ProbeTimeout)
	}
	if cfg.Discovery.Concurrency != 20 || cfg.Discovery.MaxAddresses != 512 {
		t.Errorf("unexpected discovery limits: %+v", cfg.Discovery)
	}
	if cfg.Database.PoolSize != 4 {
		t.Errorf("expected pool size 4, got %d", cfg.Database.PoolSize)
	}
	if cfg.Ntfy.Enabled() || cfg.Mirror.Enabled() {
		t.Error("ntfy and mirror should be disabled by default")
	}
}

func TestLoad_RequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SENSORLINK_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "SENSORLINK_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_WithEnvVar(t *testing.T) {
	path := writeConfig(t, `
environment: production
database:
  path: /var/lib/sensorlink/db.sqlite
poller:
  enabled: true
  interval: 45s
`)
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Production {
		t.Errorf("expected environment=production, got %s", cfg.Environment)
	}
	if cfg.Database.Path != "/var/lib/sensorlink/db.sqlite" {
		t.Errorf("unexpected database path %q", cfg.Database.Path)
	}
	if cfg.Poller.Interval.Std() != 45*time.Second {
		t.Errorf("expected interval 45s, got %s", cfg.Poller.Interval)
	}
	// Unset fields keep their defaults.
	if cfg.Poller.FetchTimeout.Std() != 10*time.Second {
		t.Errorf("expected default fetch timeout, got %s", cfg.Poller.FetchTimeout)
	}
	// Production without an override section logs at warn.
	if cfg.LogLevel != "warn" {
		t.Errorf("expected production log level warn, got %s", cfg.LogLevel)
	}
}

func TestLoadFile_Sections(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
http:
  listen: 0.0.0.0:9000
discovery:
  probe_timeout: 500ms
  concurrency: 4
  name_patterns: [fermenter]
ntfy:
  topic: brewery-alerts
  token: ${NTFY_TEST_TOKEN}
  click_base_url: https://brew.example.com
mirror:
  url: http://influx:8086
  org: brewery
  bucket: sensors
`)
	t.Setenv("NTFY_TEST_TOKEN", "tk_secret")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.HTTP.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %q", cfg.HTTP.Listen)
	}
	if cfg.Discovery.ProbeTimeout.Std() != 500*time.Millisecond || cfg.Discovery.Concurrency != 4 {
		t.Errorf("discovery = %+v", cfg.Discovery)
	}
	if len(cfg.Discovery.NamePatterns) != 1 || cfg.Discovery.NamePatterns[0] != "fermenter" {
		t.Errorf("name patterns = %v", cfg.Discovery.NamePatterns)
	}
	if !cfg.Ntfy.Enabled() || cfg.Ntfy.Token != "tk_secret" {
		t.Errorf("ntfy = %+v", cfg.Ntfy)
	}
	if cfg.Ntfy.ServerURL != "https://ntfy.sh" {
		t.Errorf("ntfy server should default, got %q", cfg.Ntfy.ServerURL)
	}
	if !cfg.Mirror.Enabled() || cfg.Mirror.Measurement != "sensor_readings" {
		t.Errorf("mirror = %+v", cfg.Mirror)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFile_BadDuration(t *testing.T) {
	path := writeConfig(t, `
poller:
  interval: soon
`)
	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for unparseable duration")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error should carry the line number, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantDB      string
		wantPolling bool
		wantLevel   string
	}{
		{
			name: "development section applies",
			content: `
environment: development
database:
  path: /base.db
development:
  database:
    path: /dev.db
  poller:
    enabled: false
`,
			wantDB:      "/dev.db",
			wantPolling: false,
			wantLevel:   "info",
		},
		{
			name: "production section ignored in development",
			content: `
environment: development
database:
  path: /base.db
production:
  database:
    path: /prod.db
`,
			wantDB:      "/base.db",
			wantPolling: true,
			wantLevel:   "info",
		},
		{
			name: "explicit production section",
			content: `
environment: production
database:
  path: /base.db
production:
  log_level: error
  database:
    path: /prod.db
`,
			wantDB:      "/prod.db",
			wantPolling: true,
			wantLevel:   "error",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := LoadFile(writeConfig(t, test.content))
			if err != nil {
				t.Fatalf("LoadFile() failed: %v", err)
			}
			if cfg.Database.Path != test.wantDB {
				t.Errorf("database path = %q, want %q", cfg.Database.Path, test.wantDB)
			}
			if cfg.Poller.Enabled != test.wantPolling {
				t.Errorf("poller enabled = %v, want %v", cfg.Poller.Enabled, test.wantPolling)
			}
			if cfg.LogLevel != test.wantLevel {
				t.Errorf("log level = %q, want %q", cfg.LogLevel, test.wantLevel)
			}
		})
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("SENSORLINK_TEST_SET", "from-env")
	t.Setenv("SENSORLINK_TEST_EMPTY", "")

	vars := map[string]string{"HOME": "/home/brewer"}
	tests := []struct {
		input string
		want  string
	}{
		{"${HOME}/db", "/home/brewer/db"},
		{"${SENSORLINK_TEST_SET}/x", "from-env/x"},
		{"${SENSORLINK_TEST_EMPTY:-fallback}", "fallback"},
		{"${SENSORLINK_TEST_EMPTY:-${HOME}/share}/db", "/home/brewer/share/db"},
		{"${SENSORLINK_TEST_SET:-${HOME}}", "from-env"},
		{"plain", "plain"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestDefaultDatabasePathExpands(t *testing.T) {
	t.Setenv("HOME", "/home/brewer")
	t.Setenv("SENSORLINK_ROOT", "")

	cfg, err := LoadFile(writeConfig(t, "log_level: info\n"))
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	want := "/home/brewer/.local/share/sensorlink/sensorlink.db"
	if cfg.Database.Path != want {
		t.Errorf("database path = %q, want %q", cfg.Database.Path, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "staging" }, "invalid environment"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"empty database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"zero interval", func(c *Config) { c.Poller.Interval = 0 }, "poller.interval"},
		{"relative endpoint", func(c *Config) { c.Poller.DefaultEndpoint = "api" }, "default_endpoint"},
		{"zero concurrency", func(c *Config) { c.Discovery.Concurrency = 0 }, "discovery.concurrency"},
		{"ntfy without server", func(c *Config) {
			c.Ntfy.Topic = "alerts"
			c.Ntfy.ServerURL = ""
		}, "ntfy.server_url"},
		{"mirror without bucket", func(c *Config) { c.Mirror.URL = "http://influx:8086" }, "mirror.org"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.Path = "/tmp/sensorlink.db"
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "dir", "sensorlink.db")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() failed: %v", err)
	}
	info, err := os.Stat(filepath.Dir(cfg.Database.Path))
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}
