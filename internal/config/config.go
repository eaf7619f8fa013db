// Package config handles configuration for jamf-uptime.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const appName = "jamf-uptime"

// ErrMissingCredentials is returned by Validate when no usable Jamf
// credentials are configured.
var ErrMissingCredentials = errors.New("missing Jamf credentials")

// Config holds all jamf-uptime configuration. It is built once at start-up
// and not modified afterwards.
type Config struct {
	Jamf    JamfConfig    `yaml:"jamf" toml:"jamf"`
	Report  ReportConfig  `yaml:"report" toml:"report"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// JamfConfig holds the Jamf Pro connection settings. Either Username and
// Password or ClientID and ClientSecret must be set.
type JamfConfig struct {
	URL                string        `yaml:"url" toml:"url"`
	Username           string        `yaml:"username,omitempty" toml:"username"`
	Password           string        `yaml:"password,omitempty" toml:"password"`
	ClientID           string        `yaml:"client_id,omitempty" toml:"client_id"`
	ClientSecret       string        `yaml:"client_secret,omitempty" toml:"client_secret"`
	Timeout            time.Duration `yaml:"timeout" toml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
}

// ReportConfig holds the ranking and cache settings.
type ReportConfig struct {
	AttributeName   string        `yaml:"attribute_name" toml:"attribute_name"`
	MaxAgeDays      int           `yaml:"max_age_days" toml:"max_age_days"`
	CacheTopN       int           `yaml:"cache_top_n" toml:"cache_top_n"`
	DisplayTopK     int           `yaml:"display_top_k" toml:"display_top_k"`
	CachePath       string        `yaml:"cache_path" toml:"cache_path"`
	RequestInterval time.Duration `yaml:"request_interval" toml:"request_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" toml:"fetch_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Jamf: JamfConfig{
			Timeout: 30 * time.Second,
		},
		Report: ReportConfig{
			AttributeName:   "Uptime",
			MaxAgeDays:      14,
			CacheTopN:       50,
			DisplayTopK:     25,
			CachePath:       DefaultCachePath(),
			RequestInterval: 100 * time.Millisecond,
			FetchTimeout:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", appName+".yaml")
	}
	return filepath.Join(dir, appName, "config.yaml")
}

// DefaultCachePath returns the default ranked cache location.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "."+appName+".cache")
	}
	return filepath.Join(dir, appName, "top.cache")
}

// Load builds the configuration from defaults, the config file at path and
// the environment, in increasing precedence. An empty path loads
// DefaultPath if that file exists. Files ending in .toml are decoded as
// TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		if p := DefaultPath(); fileExists(p) {
			path = p
		}
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

// LoadFile builds the configuration from defaults and the file at path
// only, ignoring the environment. Use it to check a file that will be read
// by a process without the current shell's JAMF_* variables.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides connection settings from JAMF_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Jamf.URL, "JAMF_URL")
	set(&c.Jamf.Username, "JAMF_USERNAME")
	set(&c.Jamf.Password, "JAMF_PASSWORD")
	set(&c.Jamf.ClientID, "JAMF_CLIENT_ID")
	set(&c.Jamf.ClientSecret, "JAMF_CLIENT_SECRET")
	set(&c.Report.CachePath, "JAMF_UPTIME_CACHE")
}

// UsesClientCredentials reports whether an API client is configured.
func (j JamfConfig) UsesClientCredentials() bool {
	return j.ClientID != ""
}

// Validate checks that the configuration can drive a report run.
func (c *Config) Validate() error {
	if c.Jamf.URL == "" {
		return fmt.Errorf("%w: JAMF_URL (or jamf.url) is required", ErrMissingCredentials)
	}
	if !strings.HasPrefix(c.Jamf.URL, "https://") && !strings.HasPrefix(c.Jamf.URL, "http://") {
		return fmt.Errorf("jamf.url must start with https:// or http://, got %q", c.Jamf.URL)
	}
	if c.Jamf.UsesClientCredentials() {
		if c.Jamf.ClientSecret == "" {
			return fmt.Errorf("%w: JAMF_CLIENT_SECRET is required with JAMF_CLIENT_ID", ErrMissingCredentials)
		}
	} else if c.Jamf.Username == "" || c.Jamf.Password == "" {
		return fmt.Errorf("%w: set JAMF_USERNAME and JAMF_PASSWORD, or JAMF_CLIENT_ID and JAMF_CLIENT_SECRET", ErrMissingCredentials)
	}

	if c.Jamf.Timeout <= 0 {
		return fmt.Errorf("jamf.timeout must be positive, got %s", c.Jamf.Timeout)
	}
	if c.Report.AttributeName == "" {
		return fmt.Errorf("report.attribute_name must not be empty")
	}
	if c.Report.MaxAgeDays < 1 {
		return fmt.Errorf("report.max_age_days must be at least 1, got %d", c.Report.MaxAgeDays)
	}
	if c.Report.CacheTopN < 1 {
		return fmt.Errorf("report.cache_top_n must be at least 1, got %d", c.Report.CacheTopN)
	}
	if c.Report.DisplayTopK < 1 {
		return fmt.Errorf("report.display_top_k must be at least 1, got %d", c.Report.DisplayTopK)
	}
	if c.Report.CachePath == "" {
		return fmt.Errorf("report.cache_path must not be empty")
	}
	if c.Report.RequestInterval < 0 {
		return fmt.Errorf("report.request_interval must not be negative, got %s", c.Report.RequestInterval)
	}
	if c.Report.FetchTimeout <= 0 {
		return fmt.Errorf("report.fetch_timeout must be positive, got %s", c.Report.FetchTimeout)
	}
	return nil
}

// Write stores cfg as YAML at path, creating the directory. Secrets are
// written as configured, so the file is created with mode 0600.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
