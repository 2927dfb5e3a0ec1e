// Package prompt renders the self-contained instruction payload handed to a
// coding-agent backend for one iteration.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ralphtool/ralph/internal/change"
)

// RetryContext summarizes a prior failed attempt for the next prompt.
type RetryContext struct {
	Attempt        int
	FailureSummary string
}

const excerptLimit = 4000

// Build renders the prompt for a work context. The retry section appears
// only when retry is non-nil; the learnings section appears only when
// learningsContent is non-empty, and then exactly once.
func Build(wc change.WorkContext, retry *RetryContext, learningsPath, learningsContent string) string {
	var b strings.Builder

	b.WriteString("You are an autonomous coding agent working on the change ")
	fmt.Fprintf(&b, "%q located at %s.\n\n", wc.Change, wc.Dir)

	fmt.Fprintf(&b, "## Current story: %s. %s\n\n", wc.Story.ID, wc.Story.Title)
	b.WriteString("Tasks (checkbox state is authoritative):\n")
	for _, t := range wc.Story.Tasks {
		mark := " "
		if t.Done {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s %s\n", mark, t.ID, t.Description)
	}
	b.WriteString("\n")

	if wc.Proposal != "" {
		b.WriteString("## Proposal\n\n")
		b.WriteString(excerpt(wc.Proposal))
		b.WriteString("\n\n")
	}
	if wc.Design != "" {
		b.WriteString("## Design\n\n")
		b.WriteString(excerpt(wc.Design))
		b.WriteString("\n\n")
	}

	if len(wc.Scenarios) > 0 {
		b.WriteString("## Scenarios to satisfy\n\n")
		for _, sc := range wc.Scenarios {
			fmt.Fprintf(&b, "### %s\n", sc.Name)
			for _, step := range sc.Steps {
				fmt.Fprintf(&b, "- %s\n", step)
			}
			b.WriteString("\n")
		}
	}

	if !wc.Verify.Empty() {
		b.WriteString("## Verification commands\n\n")
		if wc.Verify.Check != "" {
			fmt.Fprintf(&b, "- check: `%s`\n", wc.Verify.Check)
		}
		if wc.Verify.Lint != "" {
			fmt.Fprintf(&b, "- lint: `%s`\n", wc.Verify.Lint)
		}
		if wc.Verify.Test != "" {
			fmt.Fprintf(&b, "- test: `%s`\n", wc.Verify.Test)
		}
		b.WriteString("\n")
	}

	if retry != nil {
		b.WriteString("## Previous attempt failed\n\n")
		fmt.Fprintf(&b, "Attempt %d failed: %s\n", retry.Attempt, retry.FailureSummary)
		b.WriteString("Address this failure before re-attempting the remaining tasks.\n\n")
	}

	if learningsContent != "" {
		b.WriteString("## Learnings from earlier iterations\n\n")
		b.WriteString(learningsContent)
		b.WriteString("\n")
		fmt.Fprintf(&b, "Append new discoveries, decisions and pitfalls to %s.\n\n", learningsPath)
	}

	b.WriteString("## Instructions\n\n")
	b.WriteString("- Work only on the tasks of the current story, in order.\n")
	fmt.Fprintf(&b, "- Mark a task complete by editing %s and flipping its checkbox to [x]. There is no other completion mechanism.\n", wc.TasksPath)
	b.WriteString("- Run the verification commands before marking a task complete.\n")
	b.WriteString("- Do not touch tasks of other stories.\n")

	return b.String()
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= excerptLimit {
		return s
	}
	return s[:excerptLimit] + "\n[... truncated]"
}
