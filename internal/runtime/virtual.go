// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRunner executes shell scripts with the embedded mvdan/sh interpreter.
type VirtualRunner struct {
	// Params are positional parameters ($1, $2, ...) passed to every script.
	Params []string
	// Builtins runs the utilities listed by BuiltinNames in-process instead
	// of looking them up on the host.
	Builtins bool
}

// NewVirtualRunner creates a virtual runner with builtin utilities enabled.
func NewVirtualRunner() *VirtualRunner {
	return &VirtualRunner{Builtins: true}
}

// Validate parses the script without running it.
func (r *VirtualRunner) Validate(script string) error {
	if strings.TrimSpace(script) == "" {
		return errors.New("script has no content to execute")
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "script"); err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

// Run executes cmd.Script. Argv is ignored.
func (r *VirtualRunner) Run(ctx context.Context, cmd *Command) *Result {
	if strings.TrimSpace(cmd.Script) == "" {
		return NewErrorResult(2, errors.New("script has no content to execute"))
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd.Script), "script")
	if err != nil {
		return NewErrorResult(2, fmt.Errorf("script syntax error: %w", err))
	}

	runCtx, cancel := cmd.withTimeout(ctx)
	defer cancel()

	var captured bytes.Buffer
	var out io.Writer = &captured
	if cmd.Output != nil {
		out = io.MultiWriter(&captured, cmd.Output)
	}

	env := append(os.Environ(), EnvToSlice(cmd.Env)...)
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, out, out),
	}
	if cmd.Dir != "" {
		opts = append(opts, interp.Dir(cmd.Dir))
	}
	if r.Builtins {
		opts = append(opts, interp.ExecHandlers(execBuiltins))
	}
	if len(r.Params) > 0 {
		// "--" stops interp.Params from reading args like "-v" as shell options.
		opts = append(opts, interp.Params(append([]string{"--"}, r.Params...)...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to create interpreter: %w", err))
	}

	err = runner.Run(runCtx, prog)
	output := captured.String()

	if cmd.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return NewTimeoutResult(output)
	}
	if err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return NewExitCodeResult(ExitCode(status), output)
		}
		return &Result{ExitCode: 1, Output: output, Error: fmt.Errorf("script execution failed: %w", err)}
	}
	return NewExitCodeResult(0, output)
}
