package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralphtool/ralph/internal/learnings"
)

func learningsCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:          "learnings <change>",
		Short:        "Show the accumulated learnings of a change",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}

			store := learnings.NewStore(cfg.Learnings.Dir)
			content, ok, err := store.Read(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("no learnings recorded for %s (%s)\n", args[0], store.Path(args[0]))
				return nil
			}
			if raw {
				fmt.Print(content)
				return nil
			}
			return printMarkdown(content)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the file without terminal rendering")
	return cmd
}
