package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ralphtool/ralph/internal/change"
	"github.com/ralphtool/ralph/internal/mcp"
)

func markVerifiedCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "mark-verified [change] [story]",
		Short:        "Check off every task of a story in the tasks document",
		SilenceUsage: true,
		Args:         cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return mcp.ErrSessionRequired
			}
			if len(args) < 2 {
				return mcp.ErrStoryRequired
			}
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			changed, err := change.NewProvider(repoRoot, args[0]).MarkStoryVerified(args[1])
			if err != nil {
				return err
			}
			if changed {
				log.Info().Str("change", args[0]).Str("story", args[1]).Msg("story marked verified")
			} else {
				log.Info().Str("change", args[0]).Str("story", args[1]).Msg("story was already verified")
			}
			return nil
		},
	}
}
