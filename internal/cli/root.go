// Package cli holds the gotogether command tree.
package cli

import (
	"github.com/spf13/cobra"

	"gotogether/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// load reads the configuration named by --config, overlaid with the environment.
func (o *RootOptions) load() (*config.Config, error) {
	return config.Load(o.ConfigPath)
}

// NewRootCommand creates the root command for the gotogether server.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gotogether",
		Short: "GoTogether shared-ride coordination server",
		Long: `GoTogether groups riders heading the same way into shared rides,
collects their acceptance, and gives every ride a live group chat.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file (environment variables override it)")

	serve := NewServeCommand(opts)
	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	// Running the binary bare starts the server.
	cmd.RunE = serve.RunE

	return cmd
}
