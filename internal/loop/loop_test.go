package loop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ralphtool/ralph/internal/agent"
	"github.com/ralphtool/ralph/internal/change"
	"github.com/ralphtool/ralph/internal/learnings"
	"github.com/ralphtool/ralph/internal/proc"
	"github.com/ralphtool/ralph/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend scripts agent behavior per call and records prompts.
type fakeBackend struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	fn      func(call int, prompt string) (agent.Output, error)
}

func (f *fakeBackend) Run(_ context.Context, prompt string, _ agent.Config) (agent.Output, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.fn(call, prompt)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) prompt(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[i]
}

type testEnv struct {
	provider *change.Provider
	store    *learnings.Store
	tasks    string
}

func newTestEnv(t *testing.T, tasksDoc string) testEnv {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "changes", "test-change")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	tasks := filepath.Join(dir, "tasks.md")
	require.NoError(t, os.WriteFile(tasks, []byte(tasksDoc), 0o644))
	return testEnv{
		provider: change.NewProvider(root, "test-change"),
		store:    learnings.NewStore(filepath.Join(t.TempDir(), "learnings")),
		tasks:    tasks,
	}
}

func (e testEnv) checkAll(t *testing.T, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.tasks, []byte(doc), 0o644))
}

// runLoop drains the event stream and returns events plus the run error.
func runLoop(t *testing.T, o *Orchestrator, ctx context.Context) ([]Event, error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	var events []Event
	for ev := range o.Events() {
		events = append(events, ev)
	}
	select {
	case err := <-done:
		return events, err
	case <-time.After(10 * time.Second):
		t.Fatal("orchestrator did not finish")
		return nil, nil
	}
}

const twoTaskDoc = "## 1. Only story\n- [ ] 1.1 First task\n- [ ] 1.2 Second task\n"
const twoTaskDone = "## 1. Only story\n- [x] 1.1 First task\n- [x] 1.2 Second task\n"

func TestRunSingleStoryToComplete(t *testing.T) {
	env := newTestEnv(t, twoTaskDoc)
	backend := &fakeBackend{fn: func(call int, _ string) (agent.Output, error) {
		env.checkAll(t, twoTaskDone)
		return agent.Output{Result: "both tasks done", SessionID: "s-1"}, nil
	}}

	o := New(env.provider, backend, env.store, Options{})
	events, err := runLoop(t, o, context.Background())
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, StoryProgressEvent{Completed: 0, Total: 1}, events[0])
	out, ok := events[1].(AgentOutputEvent)
	require.True(t, ok)
	assert.Equal(t, "both tasks done", out.Output.Result)
	assert.Equal(t, StoryProgressEvent{Completed: 1, Total: 1}, events[2])
	assert.Equal(t, CompleteEvent{}, events[3])
	assert.Equal(t, 1, backend.callCount())
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	env := newTestEnv(t, twoTaskDoc)
	backend := &fakeBackend{fn: func(call int, _ string) (agent.Output, error) {
		if call <= 2 {
			return agent.Output{}, &proc.ExitError{Program: "claude", ExitCode: 1, Stderr: "transient"}
		}
		env.checkAll(t, twoTaskDone)
		return agent.Output{Result: "third time lucky"}, nil
	}}

	o := New(env.provider, backend, env.store, Options{MaxRetries: 3})
	events, err := runLoop(t, o, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, backend.callCount())

	// Only the successful attempt emits output.
	var outputs []AgentOutputEvent
	for _, ev := range events {
		if out, ok := ev.(AgentOutputEvent); ok {
			outputs = append(outputs, out)
		}
	}
	require.Len(t, outputs, 1)
	assert.Equal(t, "third time lucky", outputs[0].Output.Result)
	assert.Equal(t, CompleteEvent{}, events[len(events)-1])

	// Retry prompts carry the prior failure summary.
	assert.Contains(t, backend.prompt(1), "Previous attempt failed")
	assert.Contains(t, backend.prompt(1), "transient")
}

func TestRunExhaustsRetries(t *testing.T) {
	env := newTestEnv(t, twoTaskDoc)
	backend := &fakeBackend{fn: func(int, string) (agent.Output, error) {
		return agent.Output{}, &proc.TimeoutError{Program: "claude", Timeout: time.Second}
	}}

	o := New(env.provider, backend, env.store, Options{MaxRetries: 2})
	events, err := runLoop(t, o, context.Background())

	var failed *StoryFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "1", failed.StoryID)
	assert.Equal(t, 3, failed.Attempts) // initial attempt + 2 retries
	assert.Equal(t, 3, backend.callCount())

	for _, ev := range events {
		_, isComplete := ev.(CompleteEvent)
		assert.False(t, isComplete, "Failed run must not emit Complete")
	}
}

func TestRunSoftStallRetries(t *testing.T) {
	env := newTestEnv(t, twoTaskDoc)
	backend := &fakeBackend{fn: func(call int, _ string) (agent.Output, error) {
		if call == 1 {
			// Claims success but edits nothing.
			return agent.Output{Result: "I am sure I did it"}, nil
		}
		env.checkAll(t, twoTaskDone)
		return agent.Output{Result: "actually did it"}, nil
	}}

	o := New(env.provider, backend, env.store, Options{})
	events, err := runLoop(t, o, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, backend.callCount())
	assert.Contains(t, backend.prompt(1), "remain incomplete")
	assert.Equal(t, CompleteEvent{}, events[len(events)-1])
}

func TestRunAgentReportedErrorRetries(t *testing.T) {
	env := newTestEnv(t, twoTaskDoc)
	backend := &fakeBackend{fn: func(call int, _ string) (agent.Output, error) {
		if call == 1 {
			return agent.Output{Result: "ran out of turns", IsError: true}, nil
		}
		env.checkAll(t, twoTaskDone)
		return agent.Output{Result: "done"}, nil
	}}

	o := New(env.provider, backend, env.store, Options{})
	_, err := runLoop(t, o, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, backend.callCount())
	assert.Contains(t, backend.prompt(1), "ran out of turns")
}

func TestRunMultipleStoriesInOrder(t *testing.T) {
	doc := "## 1. First\n- [ ] 1.1 A\n## 2. Second\n- [ ] 2.1 B\n"
	env := newTestEnv(t, doc)
	backend := &fakeBackend{fn: func(call int, _ string) (agent.Output, error) {
		switch call {
		case 1:
			env.checkAll(t, "## 1. First\n- [x] 1.1 A\n## 2. Second\n- [ ] 2.1 B\n")
		default:
			env.checkAll(t, "## 1. First\n- [x] 1.1 A\n## 2. Second\n- [x] 2.1 B\n")
		}
		return agent.Output{Result: "ok"}, nil
	}}

	o := New(env.provider, backend, env.store, Options{})
	events, err := runLoop(t, o, context.Background())
	require.NoError(t, err)

	// Story order is document order and progress never regresses.
	assert.Contains(t, backend.prompt(0), "1. First")
	assert.Contains(t, backend.prompt(1), "2. Second")
	last := -1
	for _, ev := range events {
		if p, ok := ev.(StoryProgressEvent); ok {
			assert.GreaterOrEqual(t, p.Completed, last)
			last = p.Completed
			assert.Equal(t, 2, p.Total)
		}
	}
	assert.Equal(t, 2, last)
	assert.Equal(t, CompleteEvent{}, events[len(events)-1])
}

func TestRunBackendNotFoundIsTerminal(t *testing.T) {
	env := newTestEnv(t, twoTaskDoc)
	backend := &fakeBackend{fn: func(int, string) (agent.Output, error) {
		return agent.Output{}, &proc.NotFoundError{Program: "claude"}
	}}

	o := New(env.provider, backend, env.store, Options{MaxRetries: 5})
	_, err := runLoop(t, o, context.Background())

	var nf *proc.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 1, backend.callCount(), "missing executable must not be retried")
}

func TestRunStopSignalBetweenIterations(t *testing.T) {
	doc := "## 1. First\n- [ ] 1.1 A\n## 2. Second\n- [ ] 2.1 B\n"
	env := newTestEnv(t, doc)
	ctx, cancel := context.WithCancel(context.Background())
	backend := &fakeBackend{fn: func(call int, _ string) (agent.Output, error) {
		if call == 1 {
			env.checkAll(t, "## 1. First\n- [x] 1.1 A\n## 2. Second\n- [ ] 2.1 B\n")
			return agent.Output{Result: "ok"}, nil
		}
		// The stop request lands while the second invocation is in flight;
		// the loop observes it after this attempt returns.
		cancel()
		return agent.Output{Result: "ok"}, nil
	}}

	o := New(env.provider, backend, env.store, Options{})
	events, err := runLoop(t, o, ctx)
	require.ErrorIs(t, err, context.Canceled)
	for _, ev := range events {
		_, isComplete := ev.(CompleteEvent)
		assert.False(t, isComplete)
	}
}

func TestRunLearningsFlowIntoPrompt(t *testing.T) {
	env := newTestEnv(t, twoTaskDoc)
	require.NoError(t, env.store.Ensure("test-change"))
	f, err := os.OpenFile(env.store.Path("test-change"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("- always regenerate mocks first\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	backend := &fakeBackend{fn: func(int, string) (agent.Output, error) {
		env.checkAll(t, twoTaskDone)
		return agent.Output{Result: "ok"}, nil
	}}

	o := New(env.provider, backend, env.store, Options{})
	_, err = runLoop(t, o, context.Background())
	require.NoError(t, err)
	assert.Contains(t, backend.prompt(0), "always regenerate mocks first")
}

func TestRunMalformedDocumentFailsFast(t *testing.T) {
	env := newTestEnv(t, "- [ ] 1.1 Orphan before any story\n")
	backend := &fakeBackend{fn: func(int, string) (agent.Output, error) {
		t.Fatal("backend must not be called")
		return agent.Output{}, nil
	}}

	o := New(env.provider, backend, env.store, Options{})
	_, err := runLoop(t, o, context.Background())
	require.ErrorIs(t, err, task.ErrMalformedDocument)
	assert.Equal(t, 0, backend.callCount())
}

type notFoundSource struct {
	*change.Provider
}

func (s notFoundSource) Context(string) (change.WorkContext, error) {
	return change.WorkContext{}, &change.StoryNotFoundError{Change: "test-change", StoryID: "1"}
}

func TestRunContextErrorIsTerminal(t *testing.T) {
	env := newTestEnv(t, twoTaskDoc)
	backend := &fakeBackend{fn: func(int, string) (agent.Output, error) {
		return agent.Output{Result: "ok"}, nil
	}}

	o := New(notFoundSource{env.provider}, backend, env.store, Options{MaxRetries: 5})
	_, err := runLoop(t, o, context.Background())

	var nf *change.StoryNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 0, backend.callCount())
}

func TestRunAlreadyCompleteEmitsCompleteImmediately(t *testing.T) {
	env := newTestEnv(t, twoTaskDone)
	backend := &fakeBackend{fn: func(int, string) (agent.Output, error) {
		t.Fatal("backend must not be called")
		return agent.Output{}, nil
	}}

	o := New(env.provider, backend, env.store, Options{})
	events, err := runLoop(t, o, context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, StoryProgressEvent{Completed: 1, Total: 1}, events[0])
	assert.Equal(t, CompleteEvent{}, events[1])
	assert.Equal(t, 0, backend.callCount())
}

func TestFailureSummaryStripsClassification(t *testing.T) {
	assert.Equal(t, "boom", failureSummary(errors.New(ErrRetryable.Error()+": boom")))
	assert.Equal(t, "plain", failureSummary(errors.New("plain")))
}
