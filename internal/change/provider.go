package change

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ralphtool/ralph/internal/task"
)

// Provider assembles work context and status from a change directory laid
// out as {root}/changes/{name}/ with proposal.md, tasks.md, optional
// design.md and specs/ holding scenario blocks.
type Provider struct {
	root string
	name string
}

// NewProvider creates a provider for the named change under the project root.
func NewProvider(projectRoot, name string) *Provider {
	return &Provider{root: projectRoot, name: name}
}

// Name returns the change identity.
func (p *Provider) Name() string { return p.name }

// Dir returns the change directory.
func (p *Provider) Dir() string {
	return filepath.Join(p.root, "changes", p.name)
}

// TasksPath returns the path of the tasks document.
func (p *Provider) TasksPath() string {
	return filepath.Join(p.Dir(), "tasks.md")
}

// Document re-reads and parses the tasks document. The document is the only
// authoritative completion state, so callers parse fresh every iteration.
func (p *Provider) Document() (task.Document, error) {
	data, err := os.ReadFile(p.TasksPath())
	if err != nil {
		return task.Document{}, fmt.Errorf("read tasks document: %w", err)
	}
	doc, err := task.Parse(string(data))
	if err != nil {
		return task.Document{}, fmt.Errorf("parse %s: %w", p.TasksPath(), err)
	}
	return doc, nil
}

// Context builds the immutable per-iteration snapshot for a story.
func (p *Provider) Context(storyID string) (WorkContext, error) {
	doc, err := p.Document()
	if err != nil {
		return WorkContext{}, err
	}
	story, ok := doc.Story(storyID)
	if !ok {
		return WorkContext{}, &StoryNotFoundError{Change: p.name, StoryID: storyID}
	}

	scenarios, err := loadScenarios(p.Dir())
	if err != nil {
		return WorkContext{}, err
	}

	return WorkContext{
		Change:    p.name,
		Dir:       p.Dir(),
		TasksPath: p.TasksPath(),
		Story:     story,
		Proposal:  readOptional(filepath.Join(p.Dir(), "proposal.md")),
		Design:    readOptional(filepath.Join(p.Dir(), "design.md")),
		Scenarios: scenarios,
		Verify:    InferVerifyCommands(p.root),
	}, nil
}

// Status recomputes progress counters from the tasks document.
func (p *Provider) Status() (WorkStatus, error) {
	doc, err := p.Document()
	if err != nil {
		return WorkStatus{}, err
	}
	storiesDone, storiesTotal := doc.Progress()
	tasksDone, tasksTotal := doc.TaskTotals()
	return WorkStatus{
		StoriesDone:  storiesDone,
		StoriesTotal: storiesTotal,
		TasksDone:    tasksDone,
		TasksTotal:   tasksTotal,
	}, nil
}

// MarkStoryVerified checks off every task of the story in the tasks
// document. Returns whether anything changed; a fully checked story is a
// no-op.
func (p *Provider) MarkStoryVerified(storyID string) (bool, error) {
	doc, err := p.Document()
	if err != nil {
		return false, err
	}
	if _, ok := doc.Story(storyID); !ok {
		return false, &StoryNotFoundError{Change: p.name, StoryID: storyID}
	}

	data, err := os.ReadFile(p.TasksPath())
	if err != nil {
		return false, fmt.Errorf("read tasks document: %w", err)
	}
	updated, changed := task.MarkStoryDone(string(data), storyID)
	if !changed {
		return false, nil
	}
	if err := os.WriteFile(p.TasksPath(), []byte(updated), 0o644); err != nil {
		return false, fmt.Errorf("write tasks document: %w", err)
	}
	return true, nil
}

func readOptional(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
