package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rfushimi/q/internal/config"
	"github.com/rfushimi/q/internal/factory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// validateTimeout bounds a live key check
const validateTimeout = 30 * time.Second

func newSetKeyCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <provider> <key>",
		Short: "Store an API key in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.NewManager(global.configPath)
			if err != nil {
				return err
			}
			if err := m.SetKey(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key for %s saved to %s\n", args[0], m.Path())
			return nil
		},
	}
}

func newSetProviderCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "set-provider <provider>",
		Short:     "Set the default provider",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Providers,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.NewManager(global.configPath)
			if err != nil {
				return err
			}
			if err := m.SetProvider(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default provider set to %s\n", args[0])
			return nil
		},
	}
}

func newSetModelCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-model <provider> <model>",
		Short: "Set the model used for a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.NewManager(global.configPath)
			if err != nil {
				return err
			}
			if err := m.SetModel(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model for %s set to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newValidateKeyCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-key [provider]",
		Short: "Check an API key against the provider",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := global.logger(cmd, zerolog.WarnLevel)

			cfg, err := config.Load(global.configPath)
			if err != nil {
				return err
			}

			overrides := factory.Overrides{Provider: global.provider, Model: global.model}
			if len(args) == 1 {
				overrides.Provider = args[0]
			}

			bc, err := factory.ResolveBackend(cfg, overrides)
			if err != nil {
				return err
			}
			if bc.Provider != config.ProviderOllama {
				if err := config.ValidateAPIKey(bc.Provider, bc.APIKey); err != nil {
					return err
				}
			}

			backend, err := factory.NewBackend(bc, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), validateTimeout)
			defer cancel()

			if err := backend.ValidateKey(ctx); err != nil {
				return fmt.Errorf("%s key check failed: %w", bc.Provider, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s API key is valid\n", bc.Provider)
			return nil
		},
	}
}
