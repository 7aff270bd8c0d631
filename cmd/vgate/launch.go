// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/syntax"

	"github.com/vgate/vgate/internal/runtime"
)

type launchFlags struct {
	run         bool
	entries     bool
	extraVMArgs []string
}

func newLaunchCommand(app *App) *cobra.Command {
	var flags launchFlags
	cmd := &cobra.Command{
		Use:   "launch [flags] -- [runtime arguments...]",
		Short: "Assemble a runtime command line",
		Long: `Assemble the runtime command line for the given arguments, placing the
configured deployment artifacts on the class path or module path.

Without --run the command line is printed in shell-quoted form.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd, app, flags, args)
		},
	}
	cmd.Flags().BoolVar(&flags.run, "run", false, "run the assembled command")
	cmd.Flags().BoolVar(&flags.entries, "entries", false, "list class and module path entries with their provenance")
	cmd.Flags().StringArrayVar(&flags.extraVMArgs, "extra-vm-argument", nil, "extra runtime arguments (may be repeated)")
	return cmd
}

func runLaunch(cmd *cobra.Command, app *App, flags launchFlags, args []string) error {
	ctx := cmd.Context()
	l, err := app.load(ctx)
	if err != nil {
		return configError(err, app.configPath)
	}
	extra, err := runtime.ParseArgsList(flags.extraVMArgs)
	if err != nil {
		return suiteError(err)
	}
	s, err := app.suite(l, extra)
	if err != nil {
		return suiteError(err)
	}
	argv, assembled, err := s.AssembleVM(args)
	if err != nil {
		return suiteError(err)
	}
	for _, w := range assembled.Warnings {
		fmt.Fprintln(app.stderr, WarningStyle.Render("warning: ")+w)
	}

	if !flags.run {
		line, err := shellQuote(argv)
		if err != nil {
			return err
		}
		fmt.Fprintln(app.stdout, line)
		if flags.entries {
			fmt.Fprint(app.stdout, renderEntries(assembled.Entries))
		}
		return nil
	}

	res := app.Runner.Run(ctx, &runtime.Command{Argv: argv, Dir: l.baseDir, Output: app.stdout})
	if res.Error != nil {
		return &ExitError{Code: res.ExitCode, Err: suiteError(res.Error)}
	}
	if !res.Success() {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

// shellQuote renders argv as a single command line a POSIX shell reads back
// into the same words.
func shellQuote(argv []string) (string, error) {
	words := make([]string, 0, len(argv))
	for _, a := range argv {
		q, err := syntax.Quote(a, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote %q: %w", a, err)
		}
		words = append(words, q)
	}
	return strings.Join(words, " "), nil
}
