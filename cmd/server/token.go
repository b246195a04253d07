package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	apiMiddleware "github.com/dimaystinov/bot-hnushka/internal/api/middleware"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <owner>",
	Short: "Print a bearer token for an owner, signed with auth.jwt_secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := initializeApp(os.Stderr)
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is not set; the API accepts the owner header instead")
		}

		token, err := apiMiddleware.SignToken(cfg.Auth.JWTSecret, args[0], tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
