package main

import (
	"fmt"
	"time"

	"taskBoard/internal/app"
	"taskBoard/internal/realtime"
	"taskBoard/internal/seed"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [fixture.yml]",
		Short: "Загрузить пользователей, проекты и задачи из YAML",
		Long: `Загружает фикстуру в хранилище из конфига.

Пример:
  boardctl seed deploy/seed.yml --config config.yml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := seed.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Repository.Type != "postgres" {
				return fmt.Errorf("хранилище в памяти не переживёт выход из boardctl, нужен repository.type=postgres")
			}

			store, closeStore, err := app.OpenStore(cmd.Context(), cfg, realtime.NewLocalFeed())
			if err != nil {
				return err
			}
			defer closeStore()

			sum, err := seed.Apply(cmd.Context(), store, fixture, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users: %d, projects: %d, tasks: %d\n", sum.Users, sum.Projects, sum.Tasks)
			return nil
		},
	}
}
