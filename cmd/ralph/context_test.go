package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ralphtool/ralph/internal/change"
)

func TestReportMarkdown(t *testing.T) {
	md := reportMarkdown(change.Report{
		Change:       "add-auth",
		StoriesDone:  1,
		StoriesTotal: 2,
		TasksDone:    2,
		TasksTotal:   3,
		Stories: []change.ReportStory{
			{ID: "1", Title: "Setup", Done: true, Tasks: []change.ReportTask{
				{ID: "1.1", Description: "Init", Done: true},
			}},
			{ID: "2", Title: "Ship", Tasks: []change.ReportTask{
				{ID: "2.1", Description: "Release"},
			}},
		},
		Scenarios: []change.ReportScenario{
			{Name: "Login works", Steps: []string{"open page"}, Source: "specs/auth.md"},
		},
		Verify: change.ReportVerify{Test: "go test ./..."},
	})

	assert.Contains(t, md, "# add-auth")
	assert.Contains(t, md, "Stories 1/2 · Tasks 2/3")
	assert.Contains(t, md, "## [x] 1. Setup")
	assert.Contains(t, md, "- [ ] 2.1 Release")
	assert.Contains(t, md, "### Login works (specs/auth.md)")
	assert.Contains(t, md, "- test: `go test ./...`")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "done", firstLine("  done\nmore\n"))
	assert.Equal(t, "done", firstLine("done"))
}
