package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ralphtool/ralph/internal/change"
	"github.com/ralphtool/ralph/internal/mcp"
)

func contextCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:          "context [change]",
		Short:        "Print the verification context of a change",
		Long:         "Print every story with its task state, completed tasks, proposal and design excerpts, scenarios and inferred verification commands.",
		SilenceUsage: true,
		Args:         cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return mcp.ErrSessionRequired
			}
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			report, err := change.NewProvider(repoRoot, args[0]).Report()
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			case "yaml":
				enc := yaml.NewEncoder(os.Stdout)
				defer enc.Close()
				return enc.Encode(report)
			case "markdown", "md":
				return printMarkdown(reportMarkdown(report))
			default:
				return fmt.Errorf("unknown format %q (markdown, json, yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown, json or yaml")
	return cmd
}

func reportMarkdown(r change.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Change)
	fmt.Fprintf(&b, "Stories %d/%d · Tasks %d/%d\n\n", r.StoriesDone, r.StoriesTotal, r.TasksDone, r.TasksTotal)

	for _, story := range r.Stories {
		marker := " "
		if story.Done {
			marker = "x"
		}
		fmt.Fprintf(&b, "## [%s] %s. %s\n\n", marker, story.ID, story.Title)
		for _, t := range story.Tasks {
			tm := " "
			if t.Done {
				tm = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s %s\n", tm, t.ID, t.Description)
		}
		b.WriteString("\n")
	}

	if len(r.Scenarios) > 0 {
		b.WriteString("## Scenarios\n\n")
		for _, sc := range r.Scenarios {
			fmt.Fprintf(&b, "### %s (%s)\n\n", sc.Name, sc.Source)
			for _, step := range sc.Steps {
				fmt.Fprintf(&b, "- %s\n", step)
			}
			b.WriteString("\n")
		}
	}

	if r.Verify.Check != "" || r.Verify.Lint != "" || r.Verify.Test != "" {
		b.WriteString("## Verification\n\n")
		for _, pair := range [][2]string{{"check", r.Verify.Check}, {"lint", r.Verify.Lint}, {"test", r.Verify.Test}} {
			if pair[1] != "" {
				fmt.Fprintf(&b, "- %s: `%s`\n", pair[0], pair[1])
			}
		}
	}
	return b.String()
}

func printMarkdown(md string) error {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Print(md)
		return nil
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return nil
	}
	fmt.Print(out)
	return nil
}
