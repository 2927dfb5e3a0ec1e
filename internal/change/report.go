package change

import "path/filepath"

// Report is the full verification view of a change: every story with its
// tasks, the completed-task list, the supporting documents and the inferred
// verification commands. It is what `ralph context` prints and what the
// verify_context tool returns, so the field names are part of the output
// contract.
type Report struct {
	Change         string           `json:"change" yaml:"change"`
	Dir            string           `json:"dir" yaml:"dir"`
	StoriesDone    int              `json:"stories_done" yaml:"stories_done"`
	StoriesTotal   int              `json:"stories_total" yaml:"stories_total"`
	TasksDone      int              `json:"tasks_done" yaml:"tasks_done"`
	TasksTotal     int              `json:"tasks_total" yaml:"tasks_total"`
	Stories        []ReportStory    `json:"stories" yaml:"stories"`
	CompletedTasks []string         `json:"completed_tasks,omitempty" yaml:"completed_tasks,omitempty"`
	Proposal       string           `json:"proposal,omitempty" yaml:"proposal,omitempty"`
	Design         string           `json:"design,omitempty" yaml:"design,omitempty"`
	Scenarios      []ReportScenario `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
	Verify         ReportVerify     `json:"verify" yaml:"verify"`
}

// ReportStory is a story with per-task completion state.
type ReportStory struct {
	ID    string       `json:"id" yaml:"id"`
	Title string       `json:"title" yaml:"title"`
	Done  bool         `json:"done" yaml:"done"`
	Tasks []ReportTask `json:"tasks" yaml:"tasks"`
}

// ReportTask mirrors a single checkbox line.
type ReportTask struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Done        bool   `json:"done" yaml:"done"`
}

// ReportScenario is a named scenario with its source spec file.
type ReportScenario struct {
	Name   string   `json:"name" yaml:"name"`
	Steps  []string `json:"steps" yaml:"steps"`
	Source string   `json:"source" yaml:"source"`
}

// ReportVerify lists inferred verification commands.
type ReportVerify struct {
	Check string `json:"check,omitempty" yaml:"check,omitempty"`
	Lint  string `json:"lint,omitempty" yaml:"lint,omitempty"`
	Test  string `json:"test,omitempty" yaml:"test,omitempty"`
}

// Report assembles the verification view from the change directory.
func (p *Provider) Report() (Report, error) {
	doc, err := p.Document()
	if err != nil {
		return Report{}, err
	}
	scenarios, err := loadScenarios(p.Dir())
	if err != nil {
		return Report{}, err
	}

	storiesDone, storiesTotal := doc.Progress()
	tasksDone, tasksTotal := doc.TaskTotals()
	verify := InferVerifyCommands(p.root)

	r := Report{
		Change:       p.name,
		Dir:          p.Dir(),
		StoriesDone:  storiesDone,
		StoriesTotal: storiesTotal,
		TasksDone:    tasksDone,
		TasksTotal:   tasksTotal,
		Proposal:     readOptional(filepath.Join(p.Dir(), "proposal.md")),
		Design:       readOptional(filepath.Join(p.Dir(), "design.md")),
		Verify:       ReportVerify{Check: verify.Check, Lint: verify.Lint, Test: verify.Test},
	}
	for _, story := range doc.Stories {
		rs := ReportStory{ID: story.ID, Title: story.Title, Done: story.Done()}
		for _, tsk := range story.Tasks {
			rs.Tasks = append(rs.Tasks, ReportTask{ID: tsk.ID, Description: tsk.Description, Done: tsk.Done})
			if tsk.Done {
				r.CompletedTasks = append(r.CompletedTasks, tsk.ID)
			}
		}
		r.Stories = append(r.Stories, rs)
	}
	for _, sc := range scenarios {
		r.Scenarios = append(r.Scenarios, ReportScenario{Name: sc.Name, Steps: sc.Steps, Source: sc.Source})
	}
	return r, nil
}
