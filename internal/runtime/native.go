// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// defaultWaitDelay bounds how long Run waits for output pipes after the
// process has been killed on timeout.
const defaultWaitDelay = 5 * time.Second

// NativeRunner executes commands as host processes.
type NativeRunner struct {
	// WaitDelay overrides the delay granted to I/O after a timeout kill.
	WaitDelay time.Duration
	// LookPath resolves executables; nil uses exec.LookPath.
	LookPath func(file string) (string, error)
}

// NewNativeRunner creates a native runner with default settings.
func NewNativeRunner() *NativeRunner {
	return &NativeRunner{}
}

// Run executes cmd.Argv, capturing stdout and stderr merged.
func (r *NativeRunner) Run(ctx context.Context, cmd *Command) *Result {
	if len(cmd.Argv) == 0 {
		return NewErrorResult(1, errors.New("no executable given"))
	}

	path, err := r.lookPath(cmd.Argv[0])
	if err != nil {
		return NewErrorResult(ExitCodeNotFound, &EnvironmentError{Tool: cmd.Argv[0], Cause: err})
	}

	runCtx, cancel := cmd.withTimeout(ctx)
	defer cancel()

	proc := exec.CommandContext(runCtx, path, cmd.Argv[1:]...)
	proc.WaitDelay = r.waitDelay()
	if cmd.Dir != "" {
		proc.Dir = cmd.Dir
	}
	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), EnvToSlice(cmd.Env)...)
	}

	var captured bytes.Buffer
	var out io.Writer = &captured
	if cmd.Output != nil {
		out = io.MultiWriter(&captured, cmd.Output)
	}
	// Same writer for both streams: exec serializes the writes.
	proc.Stdout = out
	proc.Stderr = out

	err = proc.Run()
	output := captured.String()

	if cmd.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return NewTimeoutResult(output)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return NewExitCodeResult(exitCodeFromProcess(exitErr.ExitCode()), output)
		}
		return &Result{ExitCode: 1, Output: output, Error: fmt.Errorf("failed to execute %s: %w", cmd.Argv[0], err)}
	}

	return NewExitCodeResult(0, output)
}

func (r *NativeRunner) lookPath(file string) (string, error) {
	if r.LookPath != nil {
		return r.LookPath(file)
	}
	return exec.LookPath(file)
}

func (r *NativeRunner) waitDelay() time.Duration {
	if r.WaitDelay > 0 {
		return r.WaitDelay
	}
	return defaultWaitDelay
}
