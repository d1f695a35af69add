// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete freeroute configuration.
type Config struct {
	// API holds the OpenRouter connection settings.
	API APIConfig `toml:"api"`

	// Model selects the model and sampling settings.
	Model ModelConfig `toml:"model"`

	// Prompts locates the prompt files.
	Prompts PromptsConfig `toml:"prompts"`

	// Output locates the reply artifacts and the audit log.
	Output OutputConfig `toml:"output"`

	// Logging controls diagnostic output on stderr.
	Logging LoggingConfig `toml:"logging"`

	// History controls the local run ledger.
	History HistoryConfig `toml:"history"`
}

// APIConfig contains OpenRouter connection settings.
type APIConfig struct {
	// BaseURL is the OpenRouter API root.
	BaseURL string `toml:"base_url"`
	// APIKey is the OpenRouter key. OPENROUTER_API_KEY takes precedence.
	APIKey string `toml:"api_key"`
	// SiteURL is sent as HTTP-Referer when set.
	SiteURL string `toml:"site_url"`
	// AppName is sent as X-Title when set.
	AppName string `toml:"app_name"`
	// TimeoutSecs bounds each request.
	TimeoutSecs int `toml:"timeout_secs"`
}

// ModelConfig contains model selection settings.
type ModelConfig struct {
	// Default is the model requested when --model is not given.
	Default string `toml:"default"`
	// FreeOnly always picks the best free model.
	FreeOnly bool `toml:"free_only"`
	// Temperature is sent only when set.
	Temperature *float64 `toml:"temperature"`
}

// PromptsConfig locates the system and user prompt files.
type PromptsConfig struct {
	Dir    string `toml:"dir"`
	System string `toml:"system"`
	User   string `toml:"user"`
}

// OutputConfig locates persisted state.
type OutputConfig struct {
	// Dir receives one YYYY-MM-DD_HH-MM-SS.txt file per reply.
	Dir string `toml:"dir"`
	// AuditLog is the append-only fallback/error log.
	AuditLog string `toml:"audit_log"`
}

// LoggingConfig controls the diagnostic logger.
type LoggingConfig struct {
	// Level is a logrus level name: panic, fatal, error, warn, info, debug, trace.
	Level string `toml:"level"`
}

// HistoryConfig controls the SQLite run ledger.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "openrouter/auto"
	DefaultTimeoutSecs = 120
	DefaultSystemFile  = "system_prompt.txt"
	DefaultUserFile    = "user_prompt.txt"
	DefaultOutputDir   = "generated_texts"
	DefaultAuditLog    = "logs.txt"
	DefaultLogLevel    = "warn"

	// MaxTimeoutSecs caps api.timeout_secs.
	MaxTimeoutSecs = 600

	// LocalConfigFile is looked up in the working directory.
	LocalConfigFile = "freeroute.toml"
)

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     DefaultBaseURL,
			TimeoutSecs: DefaultTimeoutSecs,
		},
		Model: ModelConfig{
			Default: DefaultModel,
		},
		Prompts: PromptsConfig{
			Dir:    ".",
			System: DefaultSystemFile,
			User:   DefaultUserFile,
		},
		Output: OutputConfig{
			Dir:      DefaultOutputDir,
			AuditLog: DefaultAuditLog,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath(),
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the freeroute configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".freeroute"), nil
}

// ConfigPath returns the path to the per-user TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultHistoryPath returns ~/.freeroute/history.db, or a path relative to
// the working directory when the home directory is unknown.
func DefaultHistoryPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(".freeroute", "history.db")
	}
	return filepath.Join(dir, "history.db")
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables already set are left alone and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration. An explicit path must exist; otherwise
// ./freeroute.toml and then ~/.freeroute/config.toml are tried, falling back
// to the built-in defaults. Environment overrides are applied last. The
// returned string is the file that was read, or "" for defaults only.
func Load(explicitPath string) (*Config, string, error) {
	cfg := Default()

	path, err := resolvePath(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, nil
}

func resolvePath(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}

	candidates := []string{LocalConfigFile}
	if userPath, err := ConfigPath(); err == nil {
		candidates = append(candidates, userPath)
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// LoadTOML decodes path on top of cfg. Keys absent from the file keep the
// values already in cfg. Unknown keys are rejected.
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// fillDefaults fills in values a config file blanked out.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	cfg.API.BaseURL = strings.TrimSuffix(cfg.API.BaseURL, "/")
	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = defaults.API.TimeoutSecs
	}

	if cfg.Model.Default == "" {
		cfg.Model.Default = defaults.Model.Default
	}

	if cfg.Prompts.Dir == "" {
		cfg.Prompts.Dir = defaults.Prompts.Dir
	}
	if cfg.Prompts.System == "" {
		cfg.Prompts.System = defaults.Prompts.System
	}
	if cfg.Prompts.User == "" {
		cfg.Prompts.User = defaults.Prompts.User
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = defaults.Output.Dir
	}
	if cfg.Output.AuditLog == "" {
		cfg.Output.AuditLog = defaults.Output.AuditLog
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}

	if cfg.History.Path == "" {
		cfg.History.Path = defaults.History.Path
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidateErrors listing
// every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http(s) URL", c.API.BaseURL),
		})
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > MaxTimeoutSecs {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxTimeoutSecs, c.API.TimeoutSecs),
		})
	}

	// Model
	if strings.ContainsAny(c.Model.Default, " \t\r\n") {
		errs = append(errs, ValidationError{
			Field:   "model.default",
			Message: fmt.Sprintf("model ID '%s' must not contain whitespace", c.Model.Default),
		})
	}
	if t := c.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, ValidationError{
			Field:   "model.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", *t),
		})
	}

	// Logging
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Timeout returns api.timeout_secs as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OPENROUTER_API_KEY: overrides api.api_key
//   - OPENROUTER_SITE_URL: overrides api.site_url
//   - OPENROUTER_APP_NAME: overrides api.app_name
//   - FREEROUTE_BASE_URL: overrides api.base_url
//   - FREEROUTE_MODEL: overrides model.default
//   - FREEROUTE_OUTPUT_DIR: overrides output.dir
//   - FREEROUTE_LOG_FILE: overrides output.audit_log
//   - FREEROUTE_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"OPENROUTER_API_KEY", &c.API.APIKey},
		{"OPENROUTER_SITE_URL", &c.API.SiteURL},
		{"OPENROUTER_APP_NAME", &c.API.AppName},
		{"FREEROUTE_BASE_URL", &c.API.BaseURL},
		{"FREEROUTE_MODEL", &c.Model.Default},
		{"FREEROUTE_OUTPUT_DIR", &c.Output.Dir},
		{"FREEROUTE_LOG_FILE", &c.Output.AuditLog},
		{"FREEROUTE_LOG_LEVEL", &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// String renders the configuration as TOML with the API key masked.
func (c *Config) String() string {
	clone := *c
	if clone.API.APIKey != "" {
		clone.API.APIKey = "[REDACTED]"
	}
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(clone); err != nil {
		return fmt.Sprintf("config encode error: %v", err)
	}
	return b.String()
}
