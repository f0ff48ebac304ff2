package main

import (
	"academy/internal/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info("migration complete", zap.Int("tables", len(database.Models())))
			return nil
		},
	}
}
