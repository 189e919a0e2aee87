package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"taskBoard/internal/app"
	"taskBoard/internal/identity"
	"taskBoard/internal/models/user"
	"taskBoard/internal/notify"
	"taskBoard/internal/realtime"
	"taskBoard/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	var (
		uid   string
		email string
		token string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Проверить сроки задач пользователя",
		Long: `Один проход проверки сроков для пользователя, либо с --watch
периодическая проверка до Ctrl+C с интервалом scan.interval.

Пользователь задаётся через --uid/--email или через --token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			u := user.Identity{UID: uid, Email: email}
			if token != "" {
				u, err = identity.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Leeway).Verify(token)
				if err != nil {
					return err
				}
			}
			if u.Empty() {
				return errors.New("нужен --token или пара --uid и --email")
			}

			ctx := cmd.Context()
			var client *redis.Client
			var feed realtime.Feed = realtime.NewLocalFeed()
			if cfg.Redis.Addr != "" {
				client, err = app.OpenRedis(ctx, cfg.Redis)
				if err != nil {
					return err
				}
				defer client.Close()
				feed = realtime.NewRedisFeed(client)
			}

			store, closeStore, err := app.OpenStore(ctx, cfg, feed)
			if err != nil {
				return err
			}
			defer closeStore()

			scanner := app.NewScanner(cfg, store, notify.NewDispatcher(store), client)
			if !watch {
				report, err := scanner.Scan(ctx, u)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "projects: %d, tasks: %d, due soon: %d, overdue: %d, created: %d, failed: %d\n",
					report.Projects, report.Tasks, report.DueSoon, report.Overdue, report.Created, report.Failed)
				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session := identity.NewSession()
			loops := worker.NewSupervisor(ctx, scanner)
			defer loops.Stop()
			unwatch := loops.Watch(session)
			defer unwatch()

			session.SignIn(u)
			fmt.Fprintf(cmd.OutOrStdout(), "проверка сроков для %s каждые %s, Ctrl+C для выхода\n", u.Email, scanner.Interval())
			<-ctx.Done()
			session.SignOut()
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "uid пользователя")
	cmd.Flags().StringVar(&email, "email", "", "email пользователя")
	cmd.Flags().StringVar(&token, "token", "", "токен доступа вместо --uid/--email")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "проверять периодически")
	return cmd
}
