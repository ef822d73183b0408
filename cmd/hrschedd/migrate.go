package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hr-scheduling-backend/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		gormDB, err := db.Init(&cfg.Database, cfg.Env, logger)
		if err != nil {
			logger.Error("migration failed", zap.Error(err))
			return err
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
		return nil
	},
}
