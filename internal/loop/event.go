package loop

import "github.com/ralphtool/ralph/internal/agent"

// Event is the tagged union streamed over the orchestrator's channel.
// Events are emitted in strict causal order: a consumer never sees story
// progress regress, nor anything after Complete.
type Event interface {
	isEvent()
}

// AgentOutputEvent carries the result text of a successful agent invocation.
// Failed attempts never emit output; only the attempt that succeeded does.
type AgentOutputEvent struct {
	Output agent.Output
}

// StoryProgressEvent reports completed versus total stories.
type StoryProgressEvent struct {
	Completed int
	Total     int
}

// CompleteEvent is the final event of a run that exhausted all stories.
type CompleteEvent struct{}

func (AgentOutputEvent) isEvent()   {}
func (StoryProgressEvent) isEvent() {}
func (CompleteEvent) isEvent()      {}
