package ctl

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/server/auth"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint bearer tokens",
	}

	var (
		subject string
		ttl     time.Duration
	)
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Mint an admin token for the delete endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" {
				return errors.New("--subject is required")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			secret, err := readSecret(cmd.ErrOrStderr(), common.AdminTokenSecretEnv, "Admin token secret")
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(subject, auth.RoleAdmin, []byte(secret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	admin.Flags().StringVar(&subject, "subject", "", "token subject, e.g. the operator's email")
	admin.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	cmd.AddCommand(admin)
	return cmd
}
