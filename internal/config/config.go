// Package config loads boardsnap configuration from a YAML file, environment
// overrides and built-in defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "boardsnap.yaml"

// Config holds all boardsnap configuration.
type Config struct {
	// Board API
	NBC NBCConfig `yaml:"nbc"`

	// Browser automation
	Browser BrowserConfig `yaml:"browser"`

	// Replay settle delays
	Timing TimingConfig `yaml:"timing"`

	// Control panel
	Panel PanelConfig `yaml:"panel"`

	// Snapshot storage
	Store StoreConfig `yaml:"store"`

	// Run history
	Ledger LedgerConfig `yaml:"ledger"`

	// HTTP control API
	Server ServerConfig `yaml:"server"`

	Telemetry TelemetryConfig `yaml:"telemetry"`

	Logging LoggingConfig `yaml:"logging"`
}

// NBCConfig configures the board's REST API used for tool identity lookups.
type NBCConfig struct {
	BaseURL        string `yaml:"base_url" env:"BOARDSNAP_NBC_BASE_URL"`
	Token          string `yaml:"token" env:"BOARDSNAP_NBC_TOKEN"`
	RequestTimeout string `yaml:"request_timeout" env:"BOARDSNAP_NBC_REQUEST_TIMEOUT"`
}

// BrowserConfig configures the rod browser session.
type BrowserConfig struct {
	// DebuggerURL attaches to a running browser instead of launching one.
	DebuggerURL       string   `yaml:"debugger_url" env:"BOARDSNAP_BROWSER_DEBUGGER_URL"`
	Launch            []string `yaml:"launch" env:"BOARDSNAP_BROWSER_LAUNCH" envSeparator:" "`
	Headless          bool     `yaml:"headless" env:"BOARDSNAP_BROWSER_HEADLESS"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout" env:"BOARDSNAP_BROWSER_NAVIGATION_TIMEOUT"`
	// SessionStore persists cookies between runs so a login survives.
	SessionStore string `yaml:"session_store" env:"BOARDSNAP_BROWSER_SESSION_STORE"`
}

// PanelConfig configures the in-page control panel.
type PanelConfig struct {
	Interval string `yaml:"interval"`
}

// StoreConfig configures where snapshots are written and read.
type StoreConfig struct {
	// OutputDir is a local directory or an s3://bucket/prefix location.
	OutputDir string   `yaml:"output_dir" env:"BOARDSNAP_OUTPUT"`
	S3        S3Config `yaml:"s3"`
}

// S3Config configures the S3 snapshot store. Empty keys fall back to the
// default AWS credential chain.
type S3Config struct {
	Endpoint        string `yaml:"endpoint" env:"BOARDSNAP_S3_ENDPOINT"`
	Region          string `yaml:"region" env:"BOARDSNAP_S3_REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"BOARDSNAP_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"BOARDSNAP_S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"BOARDSNAP_S3_PATH_STYLE"`
}

// LedgerConfig configures the SQLite run ledger.
type LedgerConfig struct {
	Path string `yaml:"path" env:"BOARDSNAP_LEDGER"`
}

// ServerConfig configures the HTTP control API.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"BOARDSNAP_ADDR"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		NBC: NBCConfig{
			BaseURL:        "https://niedersachsen.cloud",
			RequestTimeout: "30s",
		},

		Browser: BrowserConfig{
			Headless:          false,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: "60s",
			SessionStore:      filepath.Join(".boardsnap", "cookies.json"),
		},

		Timing: DefaultTiming(),

		Panel: PanelConfig{
			Interval: "3s",
		},

		Store: StoreConfig{
			OutputDir: ".",
		},

		Ledger: LedgerConfig{
			Path: filepath.Join(".boardsnap", "runs.db"),
		},

		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},

		Telemetry: TelemetryConfig{
			ServiceName: "boardsnap",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies BOARDSNAP_* environment variables. Unset
// variables leave the loaded values alone.
func (c *Config) applyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// GetRequestTimeout returns the API request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.NBC.RequestTimeout, 30*time.Second)
}

// GetNavigationTimeout returns the page navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 60*time.Second)
}

// GetPanelInterval returns how often the control panel is re-ensured.
func (c *Config) GetPanelInterval() time.Duration {
	return parseDuration(c.Panel.Interval, 3*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// ValidFormats lists the supported log formats.
var ValidFormats = []string{"json", "console", "text"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.NBC.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid nbc.base_url %q", c.NBC.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("nbc.base_url must be http or https, got %q", u.Scheme)
	}

	for name, v := range map[string]string{
		"nbc.request_timeout":        c.NBC.RequestTimeout,
		"browser.navigation_timeout": c.Browser.NavigationTimeout,
		"panel.interval":             c.Panel.Interval,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if err := c.Timing.Validate(); err != nil {
		return err
	}

	if strings.HasPrefix(c.Store.OutputDir, "s3://") && strings.TrimPrefix(c.Store.OutputDir, "s3://") == "" {
		return fmt.Errorf("store.output_dir %q names no bucket", c.Store.OutputDir)
	}

	validFormat := false
	for _, f := range ValidFormats {
		if strings.EqualFold(c.Logging.Format, f) {
			validFormat = true
			break
		}
	}
	if !validFormat {
		return fmt.Errorf("invalid logging format: %s (valid: %v)", c.Logging.Format, ValidFormats)
	}

	return nil
}
