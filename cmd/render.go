package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/pet-preview/internal/preview"
)

// newRenderCmd creates the 'render' subcommand. It prints the document a crawler would receive for a pet,
// which is handy when checking a new deployment's backend credentials.
func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render <pet-id>",
		Short: "Prints the preview document for a pet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if !preview.ValidID(id) {
				return fmt.Errorf("invalid pet id %q", id)
			}
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			svc, err := newService(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer svc.Close()

			doc, err := svc.RenderPreview(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("render %s (%s): %w", id, preview.Outcome(err), err)
			}
			_, err = cmd.OutOrStdout().Write(doc)
			return err //nolint:wrapcheck // stdout write
		},
	}
}
