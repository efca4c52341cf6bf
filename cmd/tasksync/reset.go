package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appctx "github.com/bassista/tasksync/internal/app"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every task from the local store",
	Long: `Delete every task from the configured local store.

The simulated remote service lives in the serving process, so only the
local store is affected when this runs on its own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		app, err := appctx.NewFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("cannot init app: %w", err)
		}
		defer app.Shutdown()

		ctx := cmd.Context()
		if _, err := app.Repository(ctx); err != nil {
			return fmt.Errorf("cannot open storage: %w", err)
		}
		if err := app.Locator.Reset(ctx); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s store at %s\n", cfg.Storage.Engine, cfg.Storage.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
