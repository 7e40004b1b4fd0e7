package main

import (
	"fmt"
	"time"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/middleware"

	"github.com/spf13/cobra"
)

func tokenCommand() *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			token, err := middleware.MintOperatorToken(cfg.JWTSecret, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "operator name stored as the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
