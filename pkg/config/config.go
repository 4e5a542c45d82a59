// Package config loads the panel client configuration and keeps the
// signed-in session on disk.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"narrate/pkg/logx"
)

// Files under the config directory.
const (
	ConfigDir   = ".narrate"
	ConfigFile  = "config.json"
	SessionFile = "session.enc"
	JournalFile = "journal.db"
)

// EnvPrefix prefixes environment overrides, e.g. NARRATE_POLL_INTERVAL_MS.
const EnvPrefix = "NARRATE_"

// Defaults.
const (
	DefaultRequestTimeoutSec  = 30
	DefaultNavigateDelayMs    = 2000
	DefaultSignInDelayMs      = 250
	DefaultSuccessDismissMs   = 2000
	DefaultPollIntervalMs     = 500
	DefaultMaxNetworkFailures = 10
	DefaultMaxFiles           = 10
)

// Config is the client configuration.
type Config struct {
	BaseURL           string      `json:"base_url"`
	RequestTimeoutSec int         `json:"request_timeout_sec"`
	NavigateDelayMs   int         `json:"navigate_delay_ms"`
	SignInDelayMs     int         `json:"sign_in_delay_ms"`
	SuccessDismissMs  int         `json:"success_dismiss_ms"`
	Poll              PollConfig  `json:"poll"`
	Media             MediaConfig `json:"media"`
	JournalPath       string      `json:"journal_path"`
	FormsPath         string      `json:"forms_path"`
}

// PollConfig tunes the reset-status poll.
type PollConfig struct {
	IntervalMs         int `json:"interval_ms"`
	MaxNetworkFailures int `json:"max_network_failures"`
}

// MediaConfig constrains uploads.
type MediaConfig struct {
	MinWidth    int    `json:"min_width"`
	MinHeight   int    `json:"min_height"`
	MaxFiles    int    `json:"max_files"`
	MediaTypeID string `json:"media_type_id"`
}

// Default returns a config with every default applied and no base URL.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, "")
	return cfg
}

// FromEnv is the configuration used when dir holds no config file: defaults
// plus NARRATE_* overrides. It is not validated.
func FromEnv(dir string) *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg, dir)
	return cfg
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads a JSON config file, substitutes ${VAR} placeholders, applies
// NARRATE_* overrides and defaults, then validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		if value := os.Getenv(match[2 : len(match)-1]); value != "" {
			return value
		}
		return match
	})

	var cfg Config
	if err := json.Unmarshal([]byte(dataStr), &cfg); err != nil {
		return nil, logx.Errorf("failed to parse config JSON: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg, filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, logx.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg as indented JSON, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem(), EnvPrefix)
}

func applyEnvOverridesRecursive(v reflect.Value, prefix string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		jsonTag := t.Field(i).Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		envKey := strings.ToUpper(prefix + strings.Split(jsonTag, ",")[0])

		if field.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(field, envKey+"_")
			continue
		}
		if envValue := os.Getenv(envKey); envValue != "" {
			setFieldFromEnv(field, envValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		if val, err := strconv.Atoi(strings.TrimSpace(envValue)); err == nil {
			field.SetInt(int64(val))
		}
	}
}

// applyDefaults fills zero values. Relative journal and forms paths are
// resolved against dir.
func applyDefaults(cfg *Config, dir string) {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.RequestTimeoutSec == 0 {
		cfg.RequestTimeoutSec = DefaultRequestTimeoutSec
	}
	if cfg.NavigateDelayMs == 0 {
		cfg.NavigateDelayMs = DefaultNavigateDelayMs
	}
	if cfg.SignInDelayMs == 0 {
		cfg.SignInDelayMs = DefaultSignInDelayMs
	}
	if cfg.SuccessDismissMs == 0 {
		cfg.SuccessDismissMs = DefaultSuccessDismissMs
	}
	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = DefaultPollIntervalMs
	}
	if cfg.Poll.MaxNetworkFailures == 0 {
		cfg.Poll.MaxNetworkFailures = DefaultMaxNetworkFailures
	}
	if cfg.Media.MaxFiles == 0 {
		cfg.Media.MaxFiles = DefaultMaxFiles
	}
	if cfg.JournalPath == "" && dir != "" {
		cfg.JournalPath = JournalFile
	}
	if dir != "" {
		if cfg.JournalPath != "" && !filepath.IsAbs(cfg.JournalPath) {
			cfg.JournalPath = filepath.Join(dir, cfg.JournalPath)
		}
		if cfg.FormsPath != "" && !filepath.IsAbs(cfg.FormsPath) {
			cfg.FormsPath = filepath.Join(dir, cfg.FormsPath)
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url %q has no host", c.BaseURL)
	}

	for _, setting := range []struct {
		key   string
		value int
	}{
		{"request_timeout_sec", c.RequestTimeoutSec},
		{"navigate_delay_ms", c.NavigateDelayMs},
		{"sign_in_delay_ms", c.SignInDelayMs},
		{"success_dismiss_ms", c.SuccessDismissMs},
		{"poll.interval_ms", c.Poll.IntervalMs},
		{"poll.max_network_failures", c.Poll.MaxNetworkFailures},
		{"media.max_files", c.Media.MaxFiles},
	} {
		if setting.value < 0 {
			return fmt.Errorf("%s must not be negative (got %d)", setting.key, setting.value)
		}
	}
	if c.Media.MinWidth < 0 || c.Media.MinHeight < 0 {
		return fmt.Errorf("media minimum dimensions must not be negative")
	}
	return nil
}

// RequestTimeout is the per-request transport timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// NavigateDelay is the pause before a success navigation.
func (c *Config) NavigateDelay() time.Duration { return ms(c.NavigateDelayMs) }

// SignInDelay is the pause before following a login redirect.
func (c *Config) SignInDelay() time.Duration { return ms(c.SignInDelayMs) }

// SuccessDismiss is how long success notices stay visible.
func (c *Config) SuccessDismiss() time.Duration { return ms(c.SuccessDismissMs) }

// PollInterval is the reset-status tick interval.
func (c *Config) PollInterval() time.Duration { return ms(c.Poll.IntervalMs) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
