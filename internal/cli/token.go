package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gotogether/internal/auth"
	"gotogether/internal/config"
	"gotogether/internal/domain"
)

// NewTokenCommand creates the token command, which mints a signed access
// token for local development in jwt auth mode.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a development access token (jwt auth mode only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			if cfg.Auth.Mode != config.AuthModeJWT {
				return errors.New("tokens can only be minted in jwt auth mode")
			}

			v := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
			token, err := v.Issue(args[0], domain.ParseRole(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(domain.RoleRider), "role claim (rider|driver|operator)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
