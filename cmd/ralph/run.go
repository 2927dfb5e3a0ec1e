package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ralphtool/ralph/internal/agent"
	"github.com/ralphtool/ralph/internal/change"
	"github.com/ralphtool/ralph/internal/config"
	"github.com/ralphtool/ralph/internal/db"
	"github.com/ralphtool/ralph/internal/git"
	"github.com/ralphtool/ralph/internal/learnings"
	"github.com/ralphtool/ralph/internal/loop"
	"github.com/ralphtool/ralph/internal/proc"
	"github.com/ralphtool/ralph/internal/tui"
)

func runCmd() *cobra.Command {
	var follow bool
	var requireClean bool
	var verify bool
	cmd := &cobra.Command{
		Use:          "run <change>",
		Short:        "Drive the agent through a change until every story is complete",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			storeDB, repoRoot, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}

			if requireClean {
				if !git.Available(ctx, repoRoot) {
					return fmt.Errorf("--require-clean needs a git repository")
				}
				dirty, err := git.Dirty(ctx, repoRoot)
				if err != nil {
					return err
				}
				if dirty {
					return fmt.Errorf("work tree has uncommitted changes; commit or stash before running")
				}
			}

			provider := change.NewProvider(repoRoot, args[0])
			backend, err := newBackend(ctx, repoRoot, cfg)
			if err != nil {
				return err
			}

			orch := loop.New(provider, backend, learnings.NewStore(cfg.Learnings.Dir), loop.Options{
				MaxRetries:  cfg.Loop.MaxRetries,
				EventBuffer: cfg.Loop.EventBuffer,
				Agent: agent.Config{
					AllowedTools:      cfg.Agent.AllowedTools,
					MaxTurns:          cfg.Agent.MaxTurns,
					Timeout:           cfg.Agent.Timeout,
					BypassPermissions: cfg.Agent.BypassPermissions,
				},
			})

			runID, err := newRunID()
			if err != nil {
				return err
			}
			journal := db.NewStore(storeDB)
			if err := journal.CreateRun(ctx, runID, provider.Name()); err != nil {
				return err
			}
			log.Info().Str("run", runID).Str("change", provider.Name()).Msg("run started")

			errCh := make(chan error, 1)
			go func() { errCh <- orch.Run(ctx) }()

			events := journalEvents(journal, runID, orch.Events())
			if follow {
				if err := tui.Follow(provider.Name(), events); err != nil {
					log.Warn().Err(err).Msg("follower exited")
				}
				for range events {
					// keep journaling after the follower quits
				}
			} else {
				for ev := range events {
					logEvent(ev)
					if _, ok := ev.(loop.AgentOutputEvent); ok && verify {
						runVerifyCommands(ctx, repoRoot)
					}
				}
			}

			runErr := <-errCh
			status := "complete"
			switch {
			case errors.Is(runErr, context.Canceled):
				status = "canceled"
			case runErr != nil:
				status = "failed"
			}
			if err := journal.FinishRun(context.Background(), runID, status); err != nil {
				log.Warn().Err(err).Msg("finishing run journal failed")
			}
			log.Info().Str("run", runID).Str("status", status).Msg("run finished")
			return runErr
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "show a live terminal view of the run")
	cmd.Flags().BoolVar(&requireClean, "require-clean", false, "refuse to run with uncommitted changes")
	cmd.Flags().BoolVar(&verify, "verify", false, "run inferred verification commands after each completed story")
	return cmd
}

// runVerifyCommands executes the ecosystem's verification commands after a
// story lands. Failures are reported, never fatal: the tasks document stays
// the only completion authority.
func runVerifyCommands(ctx context.Context, repoRoot string) {
	commands := change.InferVerifyCommands(repoRoot)
	if commands.Empty() {
		return
	}
	runner := &proc.Runner{Dir: repoRoot}
	for _, cmdLine := range []string{commands.Check, commands.Lint, commands.Test} {
		if cmdLine == "" {
			continue
		}
		out, err := runner.RunTimeout(ctx, "sh", 10*time.Minute, "-c", cmdLine)
		if err != nil {
			log.Warn().Err(err).Str("command", cmdLine).Str("stderr", firstLine(string(out.Stderr))).Msg("verification failed")
			continue
		}
		log.Info().Str("command", cmdLine).Msg("verification passed")
	}
}

func newBackend(ctx context.Context, repoRoot string, cfg config.Config) (agent.Runner, error) {
	switch cfg.Agent.Backend {
	case "", "claude":
		return agent.NewClaude(&proc.Runner{Dir: repoRoot}), nil
	case "gemini":
		return agent.NewGemini(ctx, cfg.Agent.Model)
	default:
		return nil, fmt.Errorf("unknown agent backend %q", cfg.Agent.Backend)
	}
}

// journalEvents persists every loop event and forwards it unchanged.
// Journaling uses a background context so a canceled run still records its
// trailing events.
func journalEvents(journal *db.Store, runID string, in <-chan loop.Event) <-chan loop.Event {
	out := make(chan loop.Event, 1)
	go func() {
		defer close(out)
		ctx := context.Background()
		for ev := range in {
			switch ev := ev.(type) {
			case loop.StoryProgressEvent:
				if err := journal.RecordProgress(ctx, runID, ev.Completed, ev.Total); err != nil {
					log.Warn().Err(err).Msg("journaling progress failed")
				}
			case loop.AgentOutputEvent:
				if err := journal.RecordEvent(ctx, runID, "agent_output", firstLine(ev.Output.Result)); err != nil {
					log.Warn().Err(err).Msg("journaling agent output failed")
				}
			}
			out <- ev
		}
	}()
	return out
}

func logEvent(ev loop.Event) {
	switch ev := ev.(type) {
	case loop.StoryProgressEvent:
		log.Info().Int("done", ev.Completed).Int("total", ev.Total).Msg("story progress")
	case loop.AgentOutputEvent:
		log.Info().
			Str("session", ev.Output.SessionID).
			Int("input_tokens", ev.Output.Usage.InputTokens).
			Int("output_tokens", ev.Output.Usage.OutputTokens).
			Msg(firstLine(ev.Output.Result))
	case loop.CompleteEvent:
		log.Info().Msg("all stories complete")
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
