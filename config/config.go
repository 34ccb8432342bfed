// Package config provides configuration loading and management for crucible.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/crucible/arbiter"
	"github.com/c360studio/crucible/model"
	"github.com/c360studio/crucible/watch"
	"gopkg.in/yaml.v3"
)

// Config represents the complete crucible configuration
type Config struct {
	Paths    PathsConfig           `yaml:"paths"`
	Model    ModelConfig           `yaml:"model"`
	Registry *model.RegistryConfig `yaml:"registry,omitempty"`
	Arbiter  ArbiterConfig         `yaml:"arbiter"`
	Batch    BatchConfig           `yaml:"batch"`
	Storage  StorageConfig         `yaml:"storage"`
	NATS     NATSConfig            `yaml:"nats"`
	Log      LogConfig             `yaml:"log"`
	Watch    watch.Config          `yaml:"watch"`

	// Root is the project directory relative paths resolve against. It is
	// set by the Loader, never read from YAML.
	Root string `yaml:"-"`
}

// PathsConfig locates the project directories
type PathsConfig struct {
	Rules     string `yaml:"rules"`
	Ideas     string `yaml:"ideas"`
	Reports   string `yaml:"reports"`
	Templates string `yaml:"templates"`
}

// ModelConfig configures the single judge model. It is also the format of
// config/model.yaml and config/model.local.yaml.
type ModelConfig struct {
	Provider  string            `yaml:"provider"`
	Model     string            `yaml:"model"`
	BaseURL   string            `yaml:"base_url"`
	APIKey    string            `yaml:"api_key"`
	APIKeyEnv string            `yaml:"api_key_env"`
	Headers   map[string]string `yaml:"headers"`
	// Temperature is a pointer so an explicit 0 survives merging
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	// TimeoutS is the older seconds form of Timeout
	TimeoutS int    `yaml:"timeout_s"`
	Retries  *int   `yaml:"retries"`
	Language string `yaml:"language"`
}

// ArbiterConfig selects the arbitration mode
type ArbiterConfig struct {
	Mode string `yaml:"mode"`
}

// BatchConfig bounds batch evaluation
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
	// RatePerSecond limits judge calls across workers; 0 disables the limit
	RatePerSecond float64 `yaml:"rate_per_second"`
	Pattern       string  `yaml:"pattern"`
}

// StorageConfig configures the evaluation history database
type StorageConfig struct {
	// DSN is the SQLite path; "off" disables history
	DSN string `yaml:"dsn"`
}

// NATSConfig configures verdict publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url"`
}

// LogConfig configures logging output
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	temp := 0.2
	retries := 2
	return &Config{
		Paths: PathsConfig{
			Rules:   filepath.Join("config", "rules", "core"),
			Ideas:   "ideas",
			Reports: "reports",
		},
		Model: ModelConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: &temp,
			MaxTokens:   800,
			Timeout:     30 * time.Second,
			Retries:     &retries,
			Language:    "auto",
		},
		Arbiter: ArbiterConfig{Mode: string(arbiter.ModeLLM)},
		Batch: BatchConfig{
			Concurrency:   4,
			RatePerSecond: 2,
			Pattern:       "**/*.yaml",
		},
		Storage: StorageConfig{DSN: filepath.Join(".crucible", "history.db")},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Watch: watch.DefaultConfig(),
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if _, err := arbiter.ParseMode(c.Arbiter.Mode); err != nil {
		return fmt.Errorf("arbiter.mode: %w", err)
	}
	if c.Registry == nil {
		if c.Model.Provider == "" {
			return fmt.Errorf("model.provider is required")
		}
		if c.Model.Model == "" {
			return fmt.Errorf("model.model is required")
		}
	} else if err := c.Registry.Validate(); err != nil {
		return err
	}
	if t := c.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("model.max_tokens must be positive")
	}
	if c.Model.Retries != nil && *c.Model.Retries < 0 {
		return fmt.Errorf("model.retries must not be negative")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model.timeout must be positive")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1")
	}
	if c.Batch.RatePerSecond < 0 {
		return fmt.Errorf("batch.rate_per_second must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// ArbiterMode returns the parsed arbitration mode.
func (c *Config) ArbiterMode() arbiter.Mode {
	m, err := arbiter.ParseMode(c.Arbiter.Mode)
	if err != nil {
		return arbiter.ModeLLM
	}
	return m
}

// TemperatureValue returns the configured temperature.
func (c *Config) TemperatureValue() float64 {
	if c.Model.Temperature == nil {
		return 0.2
	}
	return *c.Model.Temperature
}

// RetriesValue returns the configured retry count.
func (c *Config) RetriesValue() int {
	if c.Model.Retries == nil {
		return 2
	}
	return *c.Model.Retries
}

// Path resolves a configured path against Root.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// HistoryEnabled reports whether evaluation history is stored.
func (c *Config) HistoryEnabled() bool {
	return c.Storage.DSN != "" && c.Storage.DSN != "off"
}

// HistoryDSN returns the storage DSN, resolved against Root for file paths.
func (c *Config) HistoryDSN() string {
	if c.Storage.DSN == ":memory:" || strings.HasPrefix(c.Storage.DSN, "file:") {
		return c.Storage.DSN
	}
	return c.Path(c.Storage.DSN)
}

// BuildRegistry returns the model registry for judge calls. An explicit
// registry section wins; otherwise the single model becomes the only endpoint.
func (c *Config) BuildRegistry() (*model.Registry, error) {
	if c.Registry != nil {
		if err := c.Registry.Validate(); err != nil {
			return nil, err
		}
		return model.FromConfig(c.Registry), nil
	}
	return model.SingleEndpoint(c.Model.Model, &model.EndpointConfig{
		Provider:  c.Model.Provider,
		URL:       c.Model.BaseURL,
		Model:     c.Model.Model,
		APIKey:    c.Model.APIKey,
		APIKeyEnv: c.Model.APIKeyEnv,
		Headers:   c.Model.Headers,
		MaxTokens: c.Model.MaxTokens,
	}), nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	config.Model.normalize()

	return config, nil
}

// LoadModelFile loads a flat model config (config/model.yaml).
func LoadModelFile(path string) (*ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}
	mc := &ModelConfig{}
	if err := yaml.Unmarshal(data, mc); err != nil {
		return nil, fmt.Errorf("failed to parse model config %s: %w", path, err)
	}
	mc.normalize()
	return mc, nil
}

func (m *ModelConfig) normalize() {
	if m.Timeout == 0 && m.TimeoutS > 0 {
		m.Timeout = time.Duration(m.TimeoutS) * time.Second
	}
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Paths
	if other.Paths.Rules != "" {
		c.Paths.Rules = other.Paths.Rules
	}
	if other.Paths.Ideas != "" {
		c.Paths.Ideas = other.Paths.Ideas
	}
	if other.Paths.Reports != "" {
		c.Paths.Reports = other.Paths.Reports
	}
	if other.Paths.Templates != "" {
		c.Paths.Templates = other.Paths.Templates
	}

	c.Model.Merge(&other.Model)
	if other.Registry != nil {
		c.Registry = other.Registry
	}

	if other.Arbiter.Mode != "" {
		c.Arbiter.Mode = other.Arbiter.Mode
	}

	// Batch
	if other.Batch.Concurrency != 0 {
		c.Batch.Concurrency = other.Batch.Concurrency
	}
	if other.Batch.RatePerSecond != 0 {
		c.Batch.RatePerSecond = other.Batch.RatePerSecond
	}
	if other.Batch.Pattern != "" {
		c.Batch.Pattern = other.Batch.Pattern
	}

	if other.Storage.DSN != "" {
		c.Storage.DSN = other.Storage.DSN
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.File != "" {
		c.Log.File = other.Log.File
	}
	if other.Log.MaxSizeMB != 0 {
		c.Log.MaxSizeMB = other.Log.MaxSizeMB
	}
	if other.Log.MaxBackups != 0 {
		c.Log.MaxBackups = other.Log.MaxBackups
	}

	// Watch
	if other.Watch.DebounceDelay != "" {
		c.Watch.DebounceDelay = other.Watch.DebounceDelay
	}
	if len(other.Watch.FileExtensions) > 0 {
		c.Watch.FileExtensions = other.Watch.FileExtensions
	}
}

// Merge merges another model config into this one.
func (m *ModelConfig) Merge(other *ModelConfig) {
	if other == nil {
		return
	}
	if other.Provider != "" {
		m.Provider = other.Provider
	}
	if other.Model != "" {
		m.Model = other.Model
	}
	if other.BaseURL != "" {
		m.BaseURL = other.BaseURL
	}
	if other.APIKey != "" {
		m.APIKey = other.APIKey
	}
	if other.APIKeyEnv != "" {
		m.APIKeyEnv = other.APIKeyEnv
	}
	if len(other.Headers) > 0 {
		m.Headers = other.Headers
	}
	if other.Temperature != nil {
		t := *other.Temperature
		m.Temperature = &t
	}
	if other.MaxTokens != 0 {
		m.MaxTokens = other.MaxTokens
	}
	if other.Timeout != 0 {
		m.Timeout = other.Timeout
	}
	if other.Retries != nil {
		r := *other.Retries
		m.Retries = &r
	}
	if other.Language != "" {
		m.Language = other.Language
	}
}
