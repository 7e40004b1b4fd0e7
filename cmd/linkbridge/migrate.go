package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := commonRun(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			store, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			store.Close()
			log.Info("migrations applied")
			return nil
		},
	}
}
