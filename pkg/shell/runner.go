// Package shell runs external processes on behalf of the provisioning collaborators.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/provisionkit/provision/pkg/util/console"
)

// Command is a single process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is the complete environment of the process. Nil inherits the current one.
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner starts processes. Tests substitute a recording implementation.
type Runner interface {
	// Run executes cmd, streaming its output to the console, and fails on a nonzero exit.
	Run(ctx context.Context, cmd Command) error
	// Output executes cmd and returns its trimmed stdout.
	Output(ctx context.Context, cmd Command) (string, error)
}

// ExitError reports a process that ran but exited unsuccessfully.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%q exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// waitDelay bounds how long Wait keeps output pipes open after the process is gone.
const waitDelay = 2 * time.Second

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := newCmd(ctx, c)

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	console.Debug("$ " + c.String())
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("Failed to start %q: %w", c.String(), err)
	}

	var g errgroup.Group
	g.Go(func() error { return PipeTo(stdoutR, console.Stream) })
	g.Go(func() error { return PipeTo(stderrR, console.Stream) })

	waitErr := cmd.Wait()
	stdoutW.Close()
	stderrW.Close()
	pipeErr := g.Wait()

	if waitErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%q was interrupted: %w", c.String(), ctx.Err())
		}
		return wrapExitError(c, waitErr, "")
	}
	return pipeErr
}

func (r *ExecRunner) Output(ctx context.Context, c Command) (string, error) {
	cmd := newCmd(ctx, c)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	console.Debug("$ " + c.String())
	if err := cmd.Run(); err != nil {
		return "", wrapExitError(c, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func newCmd(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.WaitDelay = waitDelay
	configure(cmd, c)
	return cmd
}

func wrapExitError(c Command, err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: c.String(), ExitCode: exitErr.ExitCode(), Stderr: stderr}
	}
	return fmt.Errorf("Failed to run %q: %w", c.String(), err)
}

// CommandExists reports whether bin resolves on PATH.
func CommandExists(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}

// Interpreter returns the platform shell used to run a command line, e.g. ["sh", "-c"].
func Interpreter(goos string) (string, []string) {
	if goos == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}

// cmdLine builds the raw Windows command line for an Interpreter invocation.
// cmd.exe does not understand the backslash escaping Go applies to arguments,
// so the line is passed through verbatim inside one pair of quotes that /S strips.
func cmdLine(c Command) (string, bool) {
	if !strings.EqualFold(c.Name, "cmd") || len(c.Args) != 2 || !strings.EqualFold(c.Args[0], "/C") {
		return "", false
	}
	return `cmd /S /C "` + c.Args[1] + `"`, true
}
