package main

import (
	"fmt"
	"time"

	"taskBoard/internal/identity"
	"taskBoard/internal/models/user"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		uid   string
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Выпустить токен доступа для пользователя",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, err := identity.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer).Issue(user.Identity{UID: uid, Email: email}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "uid пользователя")
	cmd.Flags().StringVar(&email, "email", "", "email пользователя")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "срок действия (по умолчанию auth.token_ttl)")
	_ = cmd.MarkFlagRequired("uid")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
