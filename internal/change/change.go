// Package change reads the on-disk specification of a change — proposal,
// design, tasks document and scenarios — and assembles per-iteration work
// context for the orchestrator.
package change

import (
	"fmt"

	"github.com/ralphtool/ralph/internal/task"
)

// Scenario is a behavioral example tied to the change, used for verification.
type Scenario struct {
	Name   string
	Steps  []string
	Source string // spec file the scenario came from, relative to the change dir
}

// VerifyCommands are the ecosystem-specific commands an agent should run to
// verify its work. Every field is optional.
type VerifyCommands struct {
	Check string
	Lint  string
	Test  string
}

// Empty reports whether no verification command was inferred.
func (v VerifyCommands) Empty() bool {
	return v.Check == "" && v.Lint == "" && v.Test == ""
}

// WorkContext is the immutable snapshot an agent needs to act on a story.
// Built once per iteration.
type WorkContext struct {
	Change    string
	Dir       string
	TasksPath string
	Story     task.Story
	Proposal  string
	Design    string
	Scenarios []Scenario
	Verify    VerifyCommands
}

// WorkStatus carries progress counters for a change.
type WorkStatus struct {
	StoriesDone  int
	StoriesTotal int
	TasksDone    int
	TasksTotal   int
}

// StoryNotFoundError reports a story identifier that matches no parsed story.
type StoryNotFoundError struct {
	Change  string
	StoryID string
}

func (e *StoryNotFoundError) Error() string {
	return fmt.Sprintf("story %s not found in change %s", e.StoryID, e.Change)
}
