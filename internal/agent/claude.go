package agent

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ralphtool/ralph/internal/proc"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed claude_output_schema.json
var claudeOutputSchema string

// Claude shells out to the claude CLI in non-interactive mode. All process
// execution routes through proc.Runner; this type owns no blocking call.
type Claude struct {
	Program string
	runner  *proc.Runner
}

// NewClaude creates the reference CLI backend.
func NewClaude(runner *proc.Runner) *Claude {
	return &Claude{Program: "claude", runner: runner}
}

// claudeResult is the CLI's JSON envelope for --output-format json.
type claudeResult struct {
	Type      string  `json:"type"`
	Result    string  `json:"result"`
	SessionID string  `json:"session_id"`
	IsError   bool    `json:"is_error"`
	CostUSD   float64 `json:"total_cost_usd"`
	Usage     struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Run invokes the CLI with the prompt and decodes its structured response.
func (c *Claude) Run(ctx context.Context, prompt string, cfg Config) (Output, error) {
	args := []string{"-p", prompt, "--output-format", "json"}
	if len(cfg.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(cfg.AllowedTools, ","))
	}
	if cfg.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(cfg.MaxTurns))
	}
	if cfg.BypassPermissions {
		// Never emitted on the default path.
		args = append(args, "--dangerously-skip-permissions")
	}

	out, err := c.runner.RunTimeout(ctx, c.Program, cfg.Timeout, args...)
	if err != nil {
		return Output{}, err
	}
	return c.parse(out.Stdout)
}

func (c *Claude) parse(stdout []byte) (Output, error) {
	payload := bytes.TrimSpace(stdout)
	if !json.Valid(payload) {
		// Some CLI versions prepend banner text before the envelope.
		recovered, ok := extractJSON(payload)
		if !ok {
			return Output{}, &OutputParseError{Backend: c.Program, Reason: "stdout is not valid JSON"}
		}
		payload = recovered
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(claudeOutputSchema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return Output{}, &OutputParseError{Backend: c.Program, Reason: err.Error()}
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, schemaErr := range result.Errors() {
			reasons = append(reasons, schemaErr.String())
		}
		return Output{}, &OutputParseError{Backend: c.Program, Reason: strings.Join(reasons, "; ")}
	}

	var envelope claudeResult
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Output{}, &OutputParseError{Backend: c.Program, Reason: fmt.Sprintf("decode envelope: %v", err)}
	}

	log.Debug().
		Str("session_id", envelope.SessionID).
		Int("input_tokens", envelope.Usage.InputTokens).
		Int("output_tokens", envelope.Usage.OutputTokens).
		Bool("is_error", envelope.IsError).
		Msg("claude response parsed")

	return Output{
		Result:    envelope.Result,
		SessionID: envelope.SessionID,
		IsError:   envelope.IsError,
		Usage: Usage{
			InputTokens:  envelope.Usage.InputTokens,
			OutputTokens: envelope.Usage.OutputTokens,
			CostUSD:      envelope.CostUSD,
		},
	}, nil
}

func extractJSON(data []byte) ([]byte, bool) {
	start := bytes.IndexByte(data, '{')
	end := bytes.LastIndexByte(data, '}')
	if start == -1 || end == -1 || start >= end {
		return nil, false
	}
	candidate := data[start : end+1]
	if !json.Valid(candidate) {
		return nil, false
	}
	return candidate, true
}
