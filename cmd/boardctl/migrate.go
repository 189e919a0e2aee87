package main

import (
	"fmt"

	"taskBoard/internal/repository/document/postgres"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Миграции схемы PostgreSQL",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Применить все миграции",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			return postgres.MigrateUp(url)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Откатить все миграции",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			return postgres.MigrateDown(url)
		},
	})
	return cmd
}

func databaseURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Repository.Type != "postgres" {
		return "", fmt.Errorf("миграции нужны только для repository.type=postgres, сейчас %q", cfg.Repository.Type)
	}
	return cfg.Database.URL, nil
}
