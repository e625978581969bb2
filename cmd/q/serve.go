package main

import (
	"github.com/rfushimi/q/internal/cache"
	"github.com/rfushimi/q/internal/commands"
	"github.com/rfushimi/q/internal/engine"
	mcpserver "github.com/rfushimi/q/internal/mcp"
	"github.com/rfushimi/q/internal/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// serverEngine turns off terminal progress for long-running servers
func serverEngine(ec *engine.Config) {
	ec.ShowProgress = false
}

func newServeCmd(global *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := global.logger(cmd, zerolog.InfoLevel)

			a, err := newApp(global, "", serverEngine, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("port") {
				port = a.cfg.Server.Port
			}

			if a.store != nil && a.cfg.Cache.PurgeInterval > 0 {
				janitor := cache.NewJanitor(a.store, a.cfg.Cache.PurgeInterval, logger)
				janitor.Start(cmd.Context())
				defer janitor.Stop()
			}

			srv := server.New(server.Deps{
				Engine:   a.engine,
				Store:    a.store,
				Tracker:  a.tracker,
				Matcher:  commands.NewMatcher(commands.NewDatabase()),
				Provider: a.backend.Provider,
				Version:  version,
			}, port, logger)

			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (default from config)")
	return cmd
}

func newMCPCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve query and suggest_command as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the MCP protocol; logs stay on stderr
			logger := global.logger(cmd, zerolog.InfoLevel)

			a, err := newApp(global, "", serverEngine, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			s := mcpserver.New(a.engine, commands.NewMatcher(commands.NewDatabase()), version, logger)
			return s.ServeStdio(cmd.Context())
		},
	}
}
