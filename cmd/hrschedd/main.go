package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hr-scheduling-backend/config"
	"hr-scheduling-backend/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hrschedd",
	Short: "Interview slot scheduling service",
	Long: `hrschedd books, reschedules and cancels interview slots for candidate
applications and serves them over HTTP.

Examples:
  hrschedd serve                       # Start the HTTP API
  hrschedd migrate                     # Create or update the schema
  hrschedd token --role recruiter      # Mint a bearer token for local testing`,
	SilenceUsage: true,
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w, zap.String("path", configPath))
	}
	logger.Info("configuration loaded", zap.String("path", configPath), zap.String("env", cfg.Env))
	return cfg, logger, nil
}
