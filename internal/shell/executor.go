// Package shell runs the external commands of a build.
//
// Every command carries its own working directory and environment, so the
// host process state is never mutated between steps.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external invocation. Exactly one of Args or
// Script must be set: Args runs an executable directly, Script is handed
// to the platform shell and may use pipes, redirection or globbing.
type Command struct {
	Args   []string
	Script string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is the complete child environment. Nil inherits the host's.
	Env []string
}

// String renders the command the way it is echoed before running. Args
// are quoted for the platform shell, so the line can be pasted into it.
func (c Command) String() string {
	if c.Script != "" {
		return c.Script
	}
	return quoteCommand(c.Args)
}

// Runner executes commands. Implementations block until the command exits.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", e.Command, e.Code)
}

// Executor runs commands as child processes, streaming their output.
type Executor struct {
	stdout io.Writer
	stderr io.Writer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithOutput redirects the command echo and child stdout/stderr.
func WithOutput(stdout, stderr io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// NewExecutor creates an Executor writing to the process stdout/stderr.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run echoes the command prefixed with "+ " and executes it.
func (e *Executor) Run(ctx context.Context, c Command) error {
	cmd, err := e.build(ctx, c)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "+ %s\n", c.String())

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Command: c.String(), Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run %q: %w", c.String(), err)
	}

	return nil
}

func (e *Executor) build(ctx context.Context, c Command) (*exec.Cmd, error) {
	var cmd *exec.Cmd
	switch {
	case c.Script != "" && len(c.Args) > 0:
		return nil, fmt.Errorf("command has both script and args")
	case c.Script != "":
		cmd = shellCommand(ctx, c.Script)
	case len(c.Args) > 0:
		if strings.TrimSpace(c.Args[0]) == "" {
			return nil, fmt.Errorf("command has an empty executable name")
		}
		cmd = exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	default:
		return nil, fmt.Errorf("command is empty")
	}

	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	return cmd, nil
}
