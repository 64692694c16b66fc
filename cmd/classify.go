package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/pet-preview/internal/config"
	"github.com/JakeFAU/pet-preview/internal/useragent"
)

// newClassifyCmd creates the 'classify' subcommand, which reports whether a User-Agent would be intercepted.
func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <user-agent>",
		Short: "Reports whether a User-Agent is treated as a crawler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			c, err := classifierFor(cfg.Crawlers)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if pattern, ok := c.Match(args[0]); ok {
				_, err = fmt.Fprintf(out, "crawler (matched %q)\n", pattern)
			} else {
				_, err = fmt.Fprintln(out, "not a crawler")
			}
			return err //nolint:wrapcheck // stdout write
		},
	}
}

func classifierFor(c config.CrawlersConfig) (*useragent.Classifier, error) {
	switch {
	case c.File != "":
		cl, err := useragent.LoadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("load crawler list: %w", err)
		}
		return cl, nil
	case len(c.Patterns) > 0:
		return useragent.New(c.Patterns), nil
	default:
		return useragent.New(useragent.DefaultPatterns), nil
	}
}
