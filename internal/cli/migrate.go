package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gotogether/internal/app"
	"gotogether/internal/repository/postgres"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded PostgreSQL schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			db, err := app.OpenDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", len(applied))
			return nil
		},
	}
}
