package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' subcommand, which runs the HTTP server until SIGINT/SIGTERM.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the preview server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			svc, err := newService(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			if err := svc.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run server: %w", err)
			}
			return nil
		},
	}
}
