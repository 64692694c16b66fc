// Package cmd defines and implements the CLI commands for the petpreview executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/pet-preview/internal/config"
	"github.com/JakeFAU/pet-preview/internal/server"
)

// configKeyType is the key for storing the loaded Config in the command context.
type configKeyType string

const configKey configKeyType = "config"

// Service is the slice of the application the commands use. Tests replace newService with a fake.
type Service interface {
	Run(ctx context.Context) error
	RenderPreview(ctx context.Context, id string) ([]byte, error)
	Close()
}

// newService is the application factory.
var newService = func(ctx context.Context, cfg *config.Config) (Service, error) {
	return server.Build(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "petpreview",
		Short: "Serves link previews of pet pages to social and search crawlers.",
		Long: `petpreview fronts the pet adoption site. Requests for /pet/{id} from known crawlers
(WhatsApp, Facebook, Twitter, Slack, Discord, ...) receive an Open Graph document built
from the pet record; every other request is passed through to the application unchanged.`,
		SilenceUsage: true,

		// Config is loaded once here so every subcommand sees the same validated values.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, &cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); PREVIEW_* env vars override it")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newClassifyCmd())

	return cmd
}

func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
