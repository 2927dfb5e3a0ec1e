// Package agent defines the coding-agent backend contract and its
// implementations. Backends receive a fully rendered prompt and return a
// structured result; they never own orchestration decisions.
package agent

import (
	"context"
	"fmt"
	"time"
)

// Config tunes a single backend invocation.
type Config struct {
	AllowedTools      []string      // tool allow-list, empty means backend default
	MaxTurns          int           // conversation turn limit, 0 means backend default
	Timeout           time.Duration // hard wall-clock bound on the invocation
	BypassPermissions bool          // must be opted into explicitly
}

// Usage summarizes the resources an invocation consumed.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Output is the normalized result of a backend invocation.
type Output struct {
	Result    string
	SessionID string
	Usage     Usage
	IsError   bool
}

// Runner is the backend contract. Implementations must honor ctx and the
// configured timeout and translate backend responses into Output.
type Runner interface {
	Run(ctx context.Context, prompt string, cfg Config) (Output, error)
}

// OutputParseError reports a well-executed backend whose response could not
// be decoded. Distinct from process-execution failures so the orchestrator
// can tell "agent crashed" from "agent talked nonsense".
type OutputParseError struct {
	Backend string
	Reason  string
}

func (e *OutputParseError) Error() string {
	return fmt.Sprintf("%s returned malformed output: %s", e.Backend, e.Reason)
}
