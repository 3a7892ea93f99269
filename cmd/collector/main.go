package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"recycling-bins/internal/config"
	"recycling-bins/internal/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:           "collector",
	Short:         "Collect recycling bin locations from municipal sources",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logger.Init(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs", "Directory containing app.yaml")
	rootCmd.AddCommand(runCmd, importCmd, sourcesCmd, migrateCmd, parseCmd)
}

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("collector failed")
		stop()
		os.Exit(1)
	}
}
