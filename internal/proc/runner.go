// Package proc runs external processes with mandatory timeouts and a
// failure taxonomy that lets callers tell a slow process from a crashed one.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds process execution when the caller does not.
const DefaultTimeout = 30 * time.Second

// Output carries the captured result of a finished process.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// NotFoundError reports a missing executable.
type NotFoundError struct {
	Program string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("executable not found: %s", e.Program)
}

// TimeoutError reports a process killed for exceeding its deadline.
type TimeoutError struct {
	Program string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Program, e.Timeout)
}

// ExitError reports a non-zero exit with the captured stderr text, so the
// caller can diagnose the failure without re-running the process.
type ExitError struct {
	Program  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Program, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Program, e.ExitCode, e.Stderr)
}

// Runner executes external commands in a fixed working directory.
type Runner struct {
	Dir string
	Env []string // extra KEY=VALUE entries appended to the environment
}

// Run executes the program under DefaultTimeout.
func (r *Runner) Run(ctx context.Context, program string, args ...string) (Output, error) {
	return r.RunTimeout(ctx, program, DefaultTimeout, args...)
}

// RunTimeout executes the program and kills it once the timeout elapses.
// The subprocess is reaped on a dedicated goroutine; the calling goroutine
// only parks on a channel, so the scheduler keeps servicing other work.
func (r *Runner) RunTimeout(ctx context.Context, program string, timeout time.Duration, args ...string) (Output, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, program, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("program", program).Strs("args", args).Dur("timeout", timeout).Msg("running command")

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Output{}, &NotFoundError{Program: program}
		}
		return Output{}, fmt.Errorf("start %s: %w", program, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	err := <-done

	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	if err == nil {
		return out, nil
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return out, &TimeoutError{Program: program, Timeout: timeout}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitError{
			Program:  program,
			ExitCode: out.ExitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return out, fmt.Errorf("run %s: %w", program, err)
}
