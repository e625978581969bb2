// Package factory builds backends, caches and engine settings from configuration.
//
// Provider and store construction lives here so the CLI, the HTTP server and the
// MCP server all wire dependencies the same way.
package factory

import (
	"fmt"
	"net/http"

	"github.com/rfushimi/q/internal/cache"
	"github.com/rfushimi/q/internal/config"
	contextbuilder "github.com/rfushimi/q/internal/context"
	"github.com/rfushimi/q/internal/engine"
	"github.com/rfushimi/q/internal/llm"
	"github.com/rs/zerolog"
)

// BackendConfig holds everything needed to construct one backend
type BackendConfig struct {
	Provider    string // "openai" | "gemini" | "anthropic" | "ollama"
	APIKey      string
	Model       string
	BaseURL     string
	Verbosity   llm.Verbosity
	Temperature float64
	HTTPClient  *http.Client
}

// Overrides are per-invocation choices that take precedence over the file
type Overrides struct {
	Provider string
	Model    string
	Detail   string
}

// ResolveBackend merges cfg with overrides into a BackendConfig.
func ResolveBackend(cfg *config.Config, o Overrides) (BackendConfig, error) {
	provider := cfg.DefaultProvider
	if o.Provider != "" {
		provider = o.Provider
	}
	if err := config.ValidateProvider(provider); err != nil {
		return BackendConfig{}, err
	}

	model := cfg.Model(provider)
	if o.Model != "" {
		model = o.Model
	}

	detail := cfg.Query.Detail
	if o.Detail != "" {
		detail = o.Detail
	}
	verbosity, err := llm.ParseVerbosity(detail)
	if err != nil {
		return BackendConfig{}, err
	}

	return BackendConfig{
		Provider:    provider,
		APIKey:      cfg.APIKey(provider),
		Model:       model,
		BaseURL:     cfg.BaseURL(provider),
		Verbosity:   verbosity,
		Temperature: cfg.Query.Temperature,
	}, nil
}

// NewBackend creates the backend named by cfg.Provider.
// This is the single place backends are constructed.
func NewBackend(cfg BackendConfig, logger zerolog.Logger) (llm.Backend, error) {
	opts := llm.Options{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Verbosity:   cfg.Verbosity,
		Temperature: cfg.Temperature,
		HTTPClient:  cfg.HTTPClient,
	}

	if cfg.Provider != config.ProviderOllama && cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for %s (run `q set-key %s <key>`)", cfg.Provider, cfg.Provider)
	}

	var (
		backend llm.Backend
		err     error
	)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		backend, err = llm.NewOpenAIBackend(opts, logger)
	case config.ProviderGemini:
		backend, err = llm.NewGeminiBackend(opts, logger)
	case config.ProviderAnthropic:
		backend, err = llm.NewAnthropicBackend(opts, logger)
	case config.ProviderOllama:
		backend, err = llm.NewOllamaBackend(opts, logger)
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: openai, gemini, anthropic, ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.Provider, err)
	}

	logger.Debug().
		Str("provider", cfg.Provider).
		Str("model", backend.ModelName()).
		Msg("Created backend")

	return backend, nil
}

// NewStore opens the response cache selected by cfg.Cache.
func NewStore(cfg *config.Config, logger zerolog.Logger) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		return cache.NewMemory(cfg.Query.MaxCacheEntries, cfg.Query.CacheTTL), nil

	case config.CacheSQLite:
		path, err := cfg.CachePath()
		if err != nil {
			return nil, err
		}

		store, err := cache.NewSQLite(path, cfg.Query.MaxCacheEntries, cfg.Query.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}

		logger.Debug().Str("path", path).Msg("Opened SQLite cache")
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported cache backend: %s (supported: memory, sqlite)", cfg.Cache.Backend)
	}
}

// EngineConfig converts the query section of the file into engine settings.
func EngineConfig(q config.QueryConfig) engine.Config {
	ec := engine.DefaultConfig()
	ec.MaxRetries = q.MaxRetries
	ec.RetryDelay = q.RetryDelay
	ec.MaxRetryDelay = q.MaxRetryDelay
	ec.Stream = q.Stream
	return ec
}

// ContextConfig converts the context section of the file into provider limits.
func ContextConfig(c config.ContextConfig) contextbuilder.Config {
	return contextbuilder.Config{
		MaxSize:       c.MaxSize,
		MaxDepth:      c.MaxDepth,
		IncludeHidden: c.IncludeHidden,
		Exclude:       c.Exclude,
	}
}
