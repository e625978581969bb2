package main

import (
	"github.com/rfushimi/q/internal/cache"
	"github.com/rfushimi/q/internal/config"
	"github.com/rfushimi/q/internal/engine"
	"github.com/rfushimi/q/internal/factory"
	"github.com/rfushimi/q/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalOptions are flags shared by every command
type globalOptions struct {
	configPath string
	provider   string
	model      string
	debug      bool
	verbose    bool
}

func (o *globalOptions) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "path to config file (default $XDG_CONFIG_HOME/q/config.yaml)")
	flags.StringVarP(&o.provider, "provider", "P", "", "LLM provider: openai, gemini, anthropic, ollama")
	flags.StringVarP(&o.model, "model", "M", "", "model name (default from config)")
	flags.BoolVar(&o.debug, "debug", false, "enable debug logging")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "enable info logging")
}

func (o *globalOptions) logger(cmd *cobra.Command, defaultLevel zerolog.Level) zerolog.Logger {
	return newLogger(cmd.ErrOrStderr(), defaultLevel, o.debug, o.verbose)
}

// app holds the wired components for one invocation
type app struct {
	cfg     *config.Config
	backend factory.BackendConfig
	engine  *engine.Engine
	store   cache.Store
	tracker *telemetry.UsageTracker
	logger  zerolog.Logger
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close cache")
	}
}

// newApp loads configuration and builds the backend, cache and engine.
// adjust, when set, edits the engine settings derived from the file.
// A cache that cannot be opened is logged and queries run uncached.
func newApp(o *globalOptions, detail string, adjust func(*engine.Config), logger zerolog.Logger) (*app, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	bc, err := factory.ResolveBackend(cfg, factory.Overrides{
		Provider: o.provider,
		Model:    o.model,
		Detail:   detail,
	})
	if err != nil {
		return nil, err
	}

	backend, err := factory.NewBackend(bc, logger)
	if err != nil {
		return nil, err
	}

	store, err := factory.NewStore(cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Cache unavailable, continuing without it")
	}

	tracker := telemetry.NewUsageTracker(cfg.Usage.DailyMaxUSD, logger)

	ec := factory.EngineConfig(cfg.Query)
	if adjust != nil {
		adjust(&ec)
	}

	eng := engine.New(backend, store, ec, logger)
	eng.SetTracker(tracker)

	return &app{
		cfg:     cfg,
		backend: bc,
		engine:  eng,
		store:   store,
		tracker: tracker,
		logger:  logger,
	}, nil
}
