package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini is an API-backed alternative to the CLI backend. It proves the
// Runner contract is pluggable: the orchestrator never knows which backend
// produced an Output.
type Gemini struct {
	Model  string
	client *genai.Client
}

// NewGemini creates a Gemini backend. Credentials come from the environment
// (GEMINI_API_KEY), loaded in main via the project's .env file.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{Model: model, client: client}, nil
}

// Run sends the prompt as a single generation request.
func (g *Gemini) Run(ctx context.Context, prompt string, cfg Config) (Output, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.Model, genai.Text(prompt), nil)
	if err != nil {
		return Output{}, fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return Output{}, &OutputParseError{Backend: "gemini", Reason: "empty response"}
	}

	out := Output{Result: text, SessionID: resp.ResponseID}
	if resp.UsageMetadata != nil {
		out.Usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.Usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
