// Package mcp exposes change verification over the Model Context Protocol
// so that agents can query work state and mark stories verified without
// shelling out to the CLI.
package mcp

import (
	"context"
	"errors"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/ralphtool/ralph/internal/change"
)

// Error codes surfaced to the calling agent. Stable strings: agents
// branch on them.
var (
	ErrSessionRequired = errors.New("SESSION_REQUIRED: no change session given; pass the change name")
	ErrStoryRequired   = errors.New("STORY_REQUIRED: no story given; pass the story id to mark verified")
)

// Server hosts the verify_context and mark_verified tools over stdio.
type Server struct {
	root    string
	version string
}

// NewServer creates an MCP server rooted at the given project directory.
func NewServer(projectRoot, version string) *Server {
	return &Server{root: projectRoot, version: version}
}

// Run serves tool calls on stdin/stdout until the context is canceled or
// the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.build().Run(ctx, &sdk.StdioTransport{})
}

func (s *Server) build() *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{Name: "ralph", Version: s.version}, nil)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "verify_context",
		Description: "Return the verification view of a change: stories with task state, completed tasks, proposal and design excerpts, scenarios, and verification commands.",
	}, s.verifyContext)
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "mark_verified",
		Description: "Mark every task of a story as done in the tasks document. Idempotent.",
	}, s.markVerified)
	return srv
}

type verifyContextInput struct {
	Session string `json:"session" jsonschema:"the change name identifying the work session"`
}

type markVerifiedInput struct {
	Session string `json:"session" jsonschema:"the change name identifying the work session"`
	Story   string `json:"story" jsonschema:"the story id to mark verified, e.g. 2"`
}

type markVerifiedOutput struct {
	Story   string `json:"story"`
	Changed bool   `json:"changed"`
}

func (s *Server) verifyContext(ctx context.Context, req *sdk.CallToolRequest, in verifyContextInput) (*sdk.CallToolResult, change.Report, error) {
	if in.Session == "" {
		return nil, change.Report{}, ErrSessionRequired
	}
	report, err := change.NewProvider(s.root, in.Session).Report()
	if err != nil {
		return nil, change.Report{}, err
	}
	log.Debug().Str("change", in.Session).Int("stories", report.StoriesTotal).Msg("served verify_context")
	return nil, report, nil
}

func (s *Server) markVerified(ctx context.Context, req *sdk.CallToolRequest, in markVerifiedInput) (*sdk.CallToolResult, markVerifiedOutput, error) {
	if in.Session == "" {
		return nil, markVerifiedOutput{}, ErrSessionRequired
	}
	if in.Story == "" {
		return nil, markVerifiedOutput{}, ErrStoryRequired
	}

	changed, err := change.NewProvider(s.root, in.Session).MarkStoryVerified(in.Story)
	if err != nil {
		return nil, markVerifiedOutput{}, err
	}
	log.Info().Str("change", in.Session).Str("story", in.Story).Bool("changed", changed).Msg("marked story verified")
	return nil, markVerifiedOutput{Story: in.Story, Changed: changed}, nil
}
