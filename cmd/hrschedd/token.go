package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hr-scheduling-backend/config"
	"hr-scheduling-backend/internal/mw"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not set; authentication is disabled")
		}
		switch tokenRole {
		case mw.RoleAdmin, mw.RoleRecruiter, mw.RoleCandidate:
		default:
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		token, err := mw.IssueToken(cfg.Auth.JWTSecret, tokenSubject, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "local-dev", "token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", mw.RoleRecruiter, "admin, recruiter or candidate")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
