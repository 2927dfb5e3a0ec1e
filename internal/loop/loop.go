// Package loop implements the orchestration engine: it drives a coding-agent
// backend story by story through a change's tasks document, retries bounded
// failures, and streams typed progress events.
package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ralphtool/ralph/internal/agent"
	"github.com/ralphtool/ralph/internal/change"
	"github.com/ralphtool/ralph/internal/learnings"
	"github.com/ralphtool/ralph/internal/proc"
	"github.com/ralphtool/ralph/internal/prompt"
	"github.com/ralphtool/ralph/internal/task"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Source abstracts the specification store the loop reads from, so a
// non-document-based tracker can be substituted for the change directory.
type Source interface {
	Name() string
	Document() (task.Document, error)
	Context(storyID string) (change.WorkContext, error)
	Status() (change.WorkStatus, error)
}

// DefaultMaxRetries bounds attempts per story when not configured.
const DefaultMaxRetries = 3

// Options tunes a single orchestrator instance.
type Options struct {
	MaxRetries  int          // retries per story after the first attempt
	Agent       agent.Config // passed through to every backend invocation
	EventBuffer int          // loop event channel capacity
}

// StoryFailedError is the terminal error of a run that exhausted the retry
// budget on one story. No Complete event precedes it.
type StoryFailedError struct {
	StoryID  string
	Attempts int
	Err      error
}

func (e *StoryFailedError) Error() string {
	return fmt.Sprintf("story %s failed after %d attempts: %v", e.StoryID, e.Attempts, e.Err)
}

func (e *StoryFailedError) Unwrap() error { return e.Err }

// ErrRetryable marks failures that feed RetryContext and consume the story's
// retry budget: timeouts, non-zero exits, malformed output, agent-reported
// failures and soft stalls. Everything else aborts the story immediately.
var ErrRetryable = errors.New("retryable agent failure")

// errStall marks an iteration where the agent reported success but the
// targeted story still has unchecked tasks.
var errStall = errors.New("agent reported success but story tasks remain incomplete")

// Orchestrator is the control loop. One instance drives at most one agent
// invocation at a time; stories execute strictly sequentially.
type Orchestrator struct {
	source  Source
	backend agent.Runner
	store   *learnings.Store
	opts    Options
	events  chan Event
	logger  zerolog.Logger
}

// New constructs an orchestrator. The event channel is created here and
// closed when Run returns.
func New(source Source, backend agent.Runner, store *learnings.Store, opts Options) *Orchestrator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.EventBuffer < 0 {
		opts.EventBuffer = 0
	}
	return &Orchestrator{
		source:  source,
		backend: backend,
		store:   store,
		opts:    opts,
		events:  make(chan Event, opts.EventBuffer),
		logger:  log.With().Str("component", "loop").Str("change", source.Name()).Logger(),
	}
}

// Events returns the FIFO event stream for this run.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Run executes stories until all are complete, the retry budget of one story
// is exhausted, or ctx is canceled. Cancellation is observed between
// iterations; an in-flight agent invocation finishes or times out first.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.events)

	if err := o.store.Ensure(o.source.Name()); err != nil {
		// Learnings are an enhancement, not a correctness requirement.
		o.logger.Warn().Err(err).Msg("learnings file unavailable, continuing without")
	}

	doc, err := o.source.Document()
	if err != nil {
		return err
	}
	completed, total := doc.Progress()
	if !o.emit(ctx, StoryProgressEvent{Completed: completed, Total: total}) {
		return ctx.Err()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		story, ok := doc.NextStory()
		if !ok {
			o.emit(ctx, CompleteEvent{})
			o.logger.Info().Int("stories", total).Msg("run complete")
			return nil
		}

		doc, err = o.runStory(ctx, story)
		if err != nil {
			return err
		}
		completed, total = doc.Progress()
		if !o.emit(ctx, StoryProgressEvent{Completed: completed, Total: total}) {
			return ctx.Err()
		}
	}
}

// runStory drives one story through bounded attempts and returns the
// re-parsed document after the story's tasks are all checked off.
func (o *Orchestrator) runStory(ctx context.Context, story task.Story) (task.Document, error) {
	var retry *prompt.RetryContext
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return task.Document{}, err
		}

		out, err := o.attempt(ctx, story.ID, retry)
		if err == nil {
			doc, derr := o.source.Document()
			if derr != nil {
				return task.Document{}, derr
			}
			updated, ok := doc.Story(story.ID)
			if ok && updated.Done() {
				if !o.emit(ctx, AgentOutputEvent{Output: out}) {
					return task.Document{}, ctx.Err()
				}
				o.logger.Info().Str("story", story.ID).Int("attempt", attempt).Msg("story complete")
				return doc, nil
			}
			// Soft stall: the agent claimed success without checking off the
			// story. Shares the retry budget with hard failures.
			err = fmt.Errorf("%w: %w", ErrRetryable, errStall)
		}

		if !errors.Is(err, ErrRetryable) {
			// Context/parse errors and a missing backend executable abort the
			// story; retrying cannot fix them.
			return task.Document{}, err
		}

		attempt++
		o.logger.Warn().
			Str("story", story.ID).
			Int("attempt", attempt).
			Int("max_retries", o.opts.MaxRetries).
			Err(err).
			Msg("story attempt failed")
		if attempt > o.opts.MaxRetries {
			return task.Document{}, &StoryFailedError{StoryID: story.ID, Attempts: attempt, Err: err}
		}
		retry = &prompt.RetryContext{Attempt: attempt, FailureSummary: failureSummary(err)}
	}
}

// attempt performs one agent invocation for a story.
func (o *Orchestrator) attempt(ctx context.Context, storyID string, retry *prompt.RetryContext) (agent.Output, error) {
	wc, err := o.source.Context(storyID)
	if err != nil {
		return agent.Output{}, err
	}

	content, _, lerr := o.store.Read(o.source.Name())
	if lerr != nil {
		o.logger.Warn().Err(lerr).Msg("reading learnings failed, continuing without")
		content = ""
	}

	p := prompt.Build(wc, retry, o.store.Path(o.source.Name()), content)
	out, err := o.backend.Run(ctx, p, o.opts.Agent)
	if err != nil {
		var nf *proc.NotFoundError
		if errors.As(err, &nf) {
			// A missing executable will not heal on retry.
			return agent.Output{}, err
		}
		return agent.Output{}, fmt.Errorf("%w: %w", ErrRetryable, err)
	}
	if out.IsError {
		return agent.Output{}, fmt.Errorf("%w: agent reported failure: %s", ErrRetryable, firstLine(out.Result))
	}
	return out, nil
}

// emit delivers an event in FIFO order, giving up only on cancellation.
func (o *Orchestrator) emit(ctx context.Context, ev Event) bool {
	select {
	case o.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// failureSummary strips the classification prefix so prompts carry only the
// underlying failure text.
func failureSummary(err error) string {
	return strings.TrimPrefix(err.Error(), ErrRetryable.Error()+": ")
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
