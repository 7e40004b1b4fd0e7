package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/config"
	"github.com/ahmadisoggg/XDiscordUltimate-sub000/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const programName = "linkbridge"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

type configKey struct{}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(configKey{}).(*config.Config)
	return cfg
}

func commonRun(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if globalFlags.debug {
		level = "debug"
	}
	log, err := logger.NewLogger(level, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log.With(zap.String("program", programName)), nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Minecraft and Discord account linking and moderation sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(tokenCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
