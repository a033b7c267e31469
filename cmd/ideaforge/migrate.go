package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/ideaforge-backend/internal/data/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := db.NewService(log, cfg.DB)
		if err != nil {
			return err
		}
		defer svc.Close()
		if err := svc.AutoMigrateAll(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("Schema up to date", "driver", svc.Driver())
		return nil
	},
}
