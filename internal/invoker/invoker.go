// Package invoker hands a URL to the platform opener (open, xdg-open, ...)
// and reports exactly one outcome per call, bounded by a deadline.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/worldnine/textwell-mcp/internal/common"
)

const DefaultDeadline = 5000 * time.Millisecond

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTimedOut
	OutcomeExecutionFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeExecutionFailed:
		return "execution_failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one invocation. Deadline is set for
// OutcomeTimedOut, Reason for OutcomeExecutionFailed.
type Outcome struct {
	Kind     OutcomeKind
	Deadline time.Duration
	Reason   string
}

func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

func TimedOut(deadline time.Duration) Outcome {
	return Outcome{Kind: OutcomeTimedOut, Deadline: deadline}
}

func ExecutionFailed(reason string) Outcome {
	return Outcome{Kind: OutcomeExecutionFailed, Reason: reason}
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Err returns nil for success, otherwise an *OutcomeError.
func (o Outcome) Err() error {
	if o.Kind == OutcomeSuccess {
		return nil
	}
	return &OutcomeError{Outcome: o}
}

// OutcomeError describes a failed invocation. It unwraps to ErrTimeout or
// ErrOperationFailed.
type OutcomeError struct {
	Outcome Outcome
}

func (e *OutcomeError) Error() string {
	if e.Outcome.Kind == OutcomeTimedOut {
		return fmt.Sprintf("URL scheme execution timed out after %dms", e.Outcome.Deadline.Milliseconds())
	}
	return "URL scheme execution failed: " + e.Outcome.Reason
}

func (e *OutcomeError) Unwrap() error {
	if e.Outcome.Kind == OutcomeTimedOut {
		return common.ErrTimeout
	}
	return common.ErrOperationFailed
}

// Process is a started opener command.
type Process interface {
	Wait() error
}

// Launcher starts the opener command without waiting for it.
type Launcher interface {
	Launch(name string, args ...string) (Process, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(name string, args ...string) (Process, error)

func (f LauncherFunc) Launch(name string, args ...string) (Process, error) {
	return f(name, args...)
}

// ExecLauncher runs the command with os/exec. The child is not bound to any
// context, so a timed out opener keeps running and is reaped by Wait later.
type ExecLauncher struct{}

func (ExecLauncher) Launch(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(p.stderr.String()); msg != "" {
		return fmt.Errorf("%w: %s", err, msg)
	}
	return err
}

type Options struct {
	// Opener is the platform command, "open" on macOS.
	Opener string
	// OpenerArgs are placed before the URL.
	OpenerArgs []string
	// DefaultDeadline applies when Invoke is given a non-positive deadline.
	DefaultDeadline time.Duration
	Launcher        Launcher
	Sink            common.Sink
}

type Invoker struct {
	opener          string
	openerArgs      []string
	defaultDeadline time.Duration
	launcher        Launcher
	sink            common.Sink
}

func New(opts Options) *Invoker {
	if opts.Opener == "" {
		opts.Opener = "open"
	}
	if opts.DefaultDeadline <= 0 {
		opts.DefaultDeadline = DefaultDeadline
	}
	if opts.Launcher == nil {
		opts.Launcher = ExecLauncher{}
	}
	if opts.Sink == nil {
		opts.Sink = common.Discard
	}
	return &Invoker{
		opener:          opts.Opener,
		openerArgs:      append([]string(nil), opts.OpenerArgs...),
		defaultDeadline: opts.DefaultDeadline,
		launcher:        opts.Launcher,
		sink:            opts.Sink,
	}
}

// Invoke opens url with the platform opener. The url must already be
// percent-encoded; it is passed as a single argument without a shell.
//
// Whichever of completion, deadline or ctx cancellation happens first
// decides the outcome. Later results are discarded.
func (inv *Invoker) Invoke(ctx context.Context, url string, deadline time.Duration) Outcome {
	if deadline <= 0 {
		deadline = inv.defaultDeadline
	}
	id := uuid.New().String()

	inv.logf(common.LogLevelInfo, id, "Executing URL scheme: %s", url)

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	args := make([]string, 0, len(inv.openerArgs)+1)
	args = append(args, inv.openerArgs...)
	args = append(args, url)

	// Buffered so the waiter can always deliver and exit, even when nobody
	// is listening anymore.
	done := make(chan error, 1)
	go func() {
		proc, err := inv.launcher.Launch(inv.opener, args...)
		if err != nil {
			done <- err
			return
		}
		done <- proc.Wait()
	}()

	var outcome Outcome
	select {
	case err := <-done:
		if err != nil {
			outcome = ExecutionFailed(err.Error())
		} else {
			outcome = Success()
		}
	case <-timer.C:
		outcome = TimedOut(deadline)
	case <-ctx.Done():
		outcome = ExecutionFailed(ctxReason(ctx.Err()))
	}

	switch outcome.Kind {
	case OutcomeSuccess:
		inv.logf(common.LogLevelInfo, id, "URL scheme executed successfully")
	case OutcomeTimedOut:
		inv.logf(common.LogLevelError, id, "URL scheme execution timed out after %dms", deadline.Milliseconds())
	default:
		inv.logf(common.LogLevelError, id, "Failed to execute URL scheme: %s", outcome.Reason)
	}
	return outcome
}

func (inv *Invoker) logf(level common.LogLevel, id, format string, args ...interface{}) {
	inv.sink.Log(level, fmt.Sprintf("[%s] ", id[:8])+fmt.Sprintf(format, args...))
}

func ctxReason(err error) string {
	if errors.Is(err, context.Canceled) {
		return "invocation cancelled"
	}
	return err.Error()
}
