package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cellar/internal/logging"
	"cellar/internal/recovery"
	"cellar/internal/store"
)

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Check the store for an unclean shutdown and repair it",
		Long: "Runs the same preflight recovery step cellard performs at startup. " +
			"The daemon must not be running; a held store lock fails the check.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return err
			}

			task := recovery.NewPreflightTask(cfg, store.EnvOverrides(os.Environ()), logger)
			ok, err := task.Run(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("recovery did not complete for %s", cfg.StoreLocation())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "store at %s is consistent\n", cfg.StoreLocation())
			return nil
		},
	}
}
