package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ralphtool/ralph/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "mcp",
		Short:        "Serve verify_context and mark_verified tools over stdio",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			return mcp.NewServer(repoRoot, version).Run(cmd.Context())
		},
	}
}
