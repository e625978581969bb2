// Package config loads and validates the q configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rfushimi/q/internal/llm"
	"gopkg.in/yaml.v3"
)

// Supported provider names
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Providers lists every supported provider
var Providers = []string{ProviderOpenAI, ProviderGemini, ProviderAnthropic, ProviderOllama}

// Environment variables consulted when a key is missing from the file
var keyEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

var defaultModels = map[string]string{
	ProviderOpenAI:    llm.DefaultOpenAIModel,
	ProviderGemini:    llm.DefaultGeminiModel,
	ProviderAnthropic: "claude-sonnet-4-5-20250929",
	ProviderOllama:    llm.DefaultOllamaModel,
}

// Cache backends
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
)

// Config is the on-disk configuration
type Config struct {
	DefaultProvider string            `yaml:"default_provider"`
	APIKeys         map[string]string `yaml:"api_keys"`
	Models          map[string]string `yaml:"models"`
	BaseURLs        map[string]string `yaml:"base_urls"`
	Query           QueryConfig       `yaml:"query"`
	Cache           CacheConfig       `yaml:"cache"`
	Context         ContextConfig     `yaml:"context"`
	Server          ServerConfig      `yaml:"server"`
	Usage           UsageConfig       `yaml:"usage"`
}

// QueryConfig controls retries, caching and streaming for queries
type QueryConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	MaxRetryDelay   time.Duration `yaml:"max_retry_delay"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	MaxCacheEntries int           `yaml:"max_cache_entries"`
	Stream          bool          `yaml:"stream"`
	Temperature     float64       `yaml:"temperature"`
	Detail          string        `yaml:"detail"`
}

// CacheConfig selects the response cache implementation
type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	Path          string        `yaml:"path"`           // sqlite only; empty means <config dir>/cache.db
	PurgeInterval time.Duration `yaml:"purge_interval"` // q serve only; 0 disables the janitor
}

// ContextConfig bounds what context providers collect
type ContextConfig struct {
	MaxSize       int64    `yaml:"max_size"`
	MaxDepth      int      `yaml:"max_depth"`
	IncludeHidden bool     `yaml:"include_hidden"`
	Exclude       []string `yaml:"exclude"`
}

// ServerConfig configures `q serve`
type ServerConfig struct {
	Port int `yaml:"port"`
}

// UsageConfig limits daily spend
type UsageConfig struct {
	DailyMaxUSD float64 `yaml:"daily_max_usd"` // 0 = unlimited
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	models := make(map[string]string, len(defaultModels))
	for p, m := range defaultModels {
		models[p] = m
	}

	return &Config{
		DefaultProvider: ProviderGemini,
		APIKeys:         map[string]string{},
		Models:          models,
		BaseURLs:        map[string]string{ProviderOllama: llm.DefaultOllamaURL},
		Query: QueryConfig{
			MaxRetries:      3,
			RetryDelay:      time.Second,
			MaxRetryDelay:   30 * time.Second,
			CacheTTL:        time.Hour,
			MaxCacheEntries: 1000,
			Stream:          true,
			Temperature:     llm.DefaultTemperature,
			Detail:          string(llm.VerbosityConcise),
		},
		Cache: CacheConfig{
			Backend:       CacheSQLite,
			PurgeInterval: 10 * time.Minute,
		},
		Context: ContextConfig{
			MaxSize:  1 << 20,
			MaxDepth: 3,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Dir returns the configuration directory: $XDG_CONFIG_HOME/q, falling back
// to the platform user config directory.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "q"), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, "q"), nil
}

// DefaultPath returns the config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path (DefaultPath when empty), expands ${VAR}
// references, fills API keys from the environment and validates the result.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := load(path, true)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func load(path string, expand bool) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if expand {
		data = []byte(os.ExpandEnv(string(data)))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.APIKeys == nil {
		c.APIKeys = map[string]string{}
	}
	for provider, env := range keyEnv {
		if c.APIKeys[provider] == "" {
			if v := os.Getenv(env); v != "" {
				c.APIKeys[provider] = v
			}
		}
	}
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var errs []string

	if err := ValidateProvider(c.DefaultProvider); err != nil {
		errs = append(errs, "default_provider: "+err.Error())
	}

	if c.Query.MaxRetries < 0 {
		errs = append(errs, "query.max_retries must not be negative")
	}
	if c.Query.RetryDelay <= 0 {
		errs = append(errs, "query.retry_delay must be positive")
	}
	if c.Query.MaxRetryDelay < c.Query.RetryDelay {
		errs = append(errs, "query.max_retry_delay must be at least query.retry_delay")
	}
	if c.Query.CacheTTL <= 0 {
		errs = append(errs, "query.cache_ttl must be positive")
	}
	if c.Query.MaxCacheEntries < 0 {
		errs = append(errs, "query.max_cache_entries must not be negative")
	}
	if c.Query.Temperature < 0 || c.Query.Temperature > 2 {
		errs = append(errs, "query.temperature must be between 0 and 2")
	}
	if _, err := llm.ParseVerbosity(c.Query.Detail); err != nil {
		errs = append(errs, "query.detail: "+err.Error())
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheSQLite:
	default:
		errs = append(errs, fmt.Sprintf("cache.backend %q is not supported (memory, sqlite)", c.Cache.Backend))
	}
	if c.Cache.PurgeInterval < 0 {
		errs = append(errs, "cache.purge_interval must not be negative")
	}

	if c.Context.MaxSize <= 0 {
		errs = append(errs, "context.max_size must be positive")
	}
	if c.Context.MaxDepth <= 0 {
		errs = append(errs, "context.max_depth must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if c.Usage.DailyMaxUSD < 0 {
		errs = append(errs, "usage.daily_max_usd must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

// APIKey returns the key configured for provider.
func (c *Config) APIKey(provider string) string {
	return c.APIKeys[provider]
}

// Model returns the model configured for provider, or its default.
func (c *Config) Model(provider string) string {
	if m := c.Models[provider]; m != "" {
		return m
	}
	return defaultModels[provider]
}

// BaseURL returns the base URL override for provider, if any.
func (c *Config) BaseURL(provider string) string {
	return c.BaseURLs[provider]
}

// CachePath returns the sqlite cache location.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// ValidateProvider rejects unknown provider names.
func ValidateProvider(provider string) error {
	for _, p := range Providers {
		if p == provider {
			return nil
		}
	}
	return fmt.Errorf("unknown provider %q (supported: %s)", provider, strings.Join(Providers, ", "))
}

// ValidateAPIKey checks the format of a key for provider without contacting it.
func ValidateAPIKey(provider, key string) error {
	if err := ValidateProvider(provider); err != nil {
		return err
	}

	key = strings.TrimSpace(key)

	switch provider {
	case ProviderOpenAI:
		if !strings.HasPrefix(key, "sk-") || len(key) < 40 {
			return errors.New("invalid OpenAI API key format: must start with 'sk-' and be at least 40 characters")
		}
	case ProviderGemini:
		if len(key) < 20 {
			return errors.New("invalid Gemini API key format: must be at least 20 characters")
		}
	case ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid Anthropic API key format: must start with 'sk-ant-'")
		}
	case ProviderOllama:
		return errors.New("ollama does not use an API key")
	}

	return nil
}
