package main

import (
	"fmt"

	"github.com/rfushimi/q/internal/config"
	"github.com/rfushimi/q/internal/factory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newCacheCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(global.configPath)
			if err != nil {
				return err
			}
			store, err := factory.NewStore(cfg, global.logger(cmd, zerolog.WarnLevel))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:  %s\n", stats.Backend)
			if cfg.Cache.Backend == config.CacheSQLite {
				if path, err := cfg.CachePath(); err == nil {
					fmt.Fprintf(out, "Path:     %s\n", path)
				}
			}
			fmt.Fprintf(out, "Entries:  %d / %d\n", stats.Entries, stats.Capacity)
			fmt.Fprintf(out, "TTL:      %s\n", stats.TTL)
			if cfg.Usage.DailyMaxUSD > 0 {
				fmt.Fprintf(out, "Limit:    $%.2f per day\n", cfg.Usage.DailyMaxUSD)
			}
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(global.configPath)
			if err != nil {
				return err
			}
			store, err := factory.NewStore(cfg, global.logger(cmd, zerolog.WarnLevel))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if expiredOnly {
				n, err := store.ClearExpired()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired cache entries.\n", n)
				return nil
			}

			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All cache entries cleared.")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
