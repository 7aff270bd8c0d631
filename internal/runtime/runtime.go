// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"
)

// ErrEnvironment is the sentinel error wrapped by EnvironmentError.
var ErrEnvironment = errors.New("missing prerequisite")

type (
	// Command describes one subprocess invocation.
	Command struct {
		// Argv is the executable followed by its arguments (NativeRunner).
		Argv []string
		// Script is the shell source to run (VirtualRunner).
		Script string
		// Dir is the working directory; empty means the current directory.
		Dir string
		// Env holds variables layered over the inherited environment.
		Env map[string]string
		// Timeout bounds the run; zero means no timeout.
		Timeout time.Duration
		// Output, when set, receives a live copy of the merged output.
		Output io.Writer
	}

	// Result is the outcome of a Command.
	Result struct {
		// ExitCode is the process exit code.
		ExitCode ExitCode
		// Output is the merged stdout and stderr text.
		Output string
		// TimedOut is true when the process was terminated by its timeout.
		TimedOut bool
		// Error holds infrastructure failures (the process could not run).
		Error error
	}

	// Runner executes commands. Implementations block until the process exits
	// or its timeout elapses.
	Runner interface {
		Run(ctx context.Context, cmd *Command) *Result
	}

	// RunnerFunc adapts a function to the Runner interface.
	RunnerFunc func(ctx context.Context, cmd *Command) *Result

	// EnvironmentError reports a missing external tool or prerequisite.
	EnvironmentError struct {
		// Tool names the missing prerequisite.
		Tool string
		// Cause is the lookup failure.
		Cause error
	}
)

// Run calls f(ctx, cmd).
func (f RunnerFunc) Run(ctx context.Context, cmd *Command) *Result { return f(ctx, cmd) }

func (e *EnvironmentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("required tool %q is not available: %v", e.Tool, e.Cause)
	}
	return fmt.Sprintf("required tool %q is not available", e.Tool)
}

// Unwrap returns ErrEnvironment so callers can use errors.Is.
func (e *EnvironmentError) Unwrap() error { return ErrEnvironment }

// String renders the command line for logs.
func (c *Command) String() string {
	if c.Script != "" {
		return "sh -c " + fmt.Sprintf("%q", c.Script)
	}
	return strings.Join(c.Argv, " ")
}

// withTimeout derives the run context for a command.
func (c *Command) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// EnvToSlice converts an environment map to KEY=VALUE pairs sorted by key.
func EnvToSlice(env map[string]string) []string {
	keys := slices.Sorted(maps.Keys(env))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
