// Package tui renders a live view of an orchestrator run in the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ralphtool/ralph/internal/loop"
)

const maxOutputLines = 8

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

type eventMsg struct{ ev loop.Event }

type closedMsg struct{}

// Model is the bubbletea model following a run's event stream. It is a
// pure consumer: all state transitions originate from loop events.
type Model struct {
	change string
	events <-chan loop.Event

	spinner  spinner.Model
	progress progress.Model

	done     int
	total    int
	outputs  []string
	finished bool
}

// NewModel creates a follower for the given change and event stream.
func NewModel(change string, events <-chan loop.Event) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	return Model{
		change:   change,
		events:   events,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// Follow runs the follower until the event stream closes or the user quits.
func Follow(change string, events <-chan loop.Event) error {
	_, err := tea.NewProgram(NewModel(change, events)).Run()
	return err
}

func waitForEvent(events <-chan loop.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.progress.Width = min(msg.Width-4, 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case eventMsg:
		var cmd tea.Cmd
		switch ev := msg.ev.(type) {
		case loop.StoryProgressEvent:
			m.done, m.total = ev.Completed, ev.Total
			if ev.Total > 0 {
				cmd = m.progress.SetPercent(float64(ev.Completed) / float64(ev.Total))
			}
		case loop.AgentOutputEvent:
			m.outputs = append(m.outputs, summarize(ev.Output.Result))
			if len(m.outputs) > maxOutputLines {
				m.outputs = m.outputs[len(m.outputs)-maxOutputLines:]
			}
		case loop.CompleteEvent:
			m.finished = true
		}
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case closedMsg:
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ralph") + dimStyle.Render(" • "+m.change) + "\n\n")

	if m.finished {
		b.WriteString(doneStyle.Render("✓ all stories complete") + "\n")
	} else {
		b.WriteString(m.spinner.View() + " running\n")
	}

	b.WriteString(fmt.Sprintf("\n%s %s\n", m.progress.View(),
		dimStyle.Render(fmt.Sprintf("%d/%d stories", m.done, m.total))))

	if len(m.outputs) > 0 {
		b.WriteString("\n")
		for _, line := range m.outputs {
			b.WriteString(outputStyle.Render("› "+line) + "\n")
		}
	}

	b.WriteString("\n" + dimStyle.Render("q to quit") + "\n")
	return b.String()
}

func summarize(result string) string {
	line := strings.TrimSpace(result)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if len(line) > 120 {
		line = line[:117] + "..."
	}
	return line
}
