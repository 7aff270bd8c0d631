// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vgate/vgate/internal/dag"
	"github.com/vgate/vgate/internal/gate"
	"github.com/vgate/vgate/internal/issue"
	"github.com/vgate/vgate/internal/launch"
	"github.com/vgate/vgate/internal/runtime"
	"github.com/vgate/vgate/internal/verify"
	"github.com/vgate/vgate/internal/watch"
)

type gateFlags struct {
	tags        []string
	failFast    bool
	dryRun      bool
	extraVMArgs []string
	reportFile  string
	capture     bool
	watch       bool
}

func newGateCommand(app *App) *cobra.Command {
	var flags gateFlags
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Run the verification gate",
		Long: `Run the configured verification tasks in declaration order.

Tasks are selected with --tags; a task runs when it carries at least one of
the given tags. Tag groups such as "bootstrap" or "test" expand to the tags
they stand for. The command exits non-zero when any selected task fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGate(cmd, app, flags)
		},
	}
	cmd.Flags().StringSliceVarP(&flags.tags, "tags", "t", nil, "only run tasks carrying one of these tags")
	cmd.Flags().BoolVar(&flags.failFast, "fail-fast", false, "stop after the first failing task")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "list selected tasks without running them")
	cmd.Flags().StringArrayVar(&flags.extraVMArgs, "extra-vm-argument", nil, "extra runtime arguments for every launch (may be repeated)")
	cmd.Flags().StringVar(&flags.reportFile, "report-file", "", "write a TOML report to this file")
	cmd.Flags().BoolVar(&flags.capture, "capture", false, "capture task output into the report instead of streaming it")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rerun the gate whenever a deployment artifact changes")
	return cmd
}

func runGate(cmd *cobra.Command, app *App, flags gateFlags) error {
	ctx := cmd.Context()
	l, err := app.load(ctx)
	if err != nil {
		return configError(err, app.configPath)
	}

	extra, err := runtime.ParseArgsList(flags.extraVMArgs)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("parse --extra-vm-argument").
			WithIssue(issue.InvalidLaunchArgsId).
			Wrap(err).
			BuildError()
	}
	s, err := app.suite(l, extra)
	if err != nil {
		return suiteError(err)
	}
	g, err := s.Gate()
	if err != nil {
		return suiteError(err)
	}

	opts := gate.RunOptions{
		Filter:         gate.TagFilter(flags.tags),
		FailFast:       flags.failFast || l.cfg.Gate.FailFast,
		Logger:         app.logger().WithPrefix("gate"),
		DryRun:         flags.dryRun,
		DefaultTimeout: l.cfg.Gate.DefaultTimeout,
		Output:         app.stderr,
	}
	if flags.capture {
		opts.Resources = append(opts.Resources, gate.OutputCapture{})
		opts.Output = io.Discard
	}
	if flags.watch {
		return watchGate(ctx, app, l, func(ctx context.Context) {
			_ = reportGate(app, g.Run(ctx, opts), flags)
		})
	}
	return reportGate(app, g.Run(ctx, opts), flags)
}

// reportGate prints rep and turns failures into an exit error.
func reportGate(app *App, rep *gate.Report, flags gateFlags) error {
	fmt.Fprint(app.stdout, renderReport(rep))
	if flags.capture && app.verbose {
		for _, r := range rep.Results {
			if r.Status == gate.Failed && r.Output != "" {
				fmt.Fprintf(app.stdout, "%s\n%s\n", ErrorStyle.Render("--- "+r.Name), strings.TrimRight(r.Output, "\n"))
			}
		}
	}
	if flags.reportFile != "" {
		if err := writeReport(rep, flags.reportFile); err != nil {
			return err
		}
	}

	if len(rep.Selected()) == 0 {
		msg := "no tasks configured"
		if len(flags.tags) > 0 {
			msg = "no tasks matched tags " + strings.Join(flags.tags, ",")
		}
		fmt.Fprintln(app.stderr, WarningStyle.Render(msg))
		if app.verbose {
			if out, err := issue.Get(issue.NoTasksMatchedId).Render("auto"); err == nil {
				fmt.Fprint(app.stderr, out)
			}
		}
	}
	if err := rep.Err(); err != nil {
		ctx := issue.NewErrorContext().
			WithOperation("run gate").
			WithResource(rep.Gate).
			Wrap(err)
		var missing *runtime.EnvironmentError
		if errors.As(err, &missing) {
			ctx.WithIssue(issue.ToolNotFoundId).
				WithSuggestion("install " + missing.Tool + " or point gate.java at an existing launcher")
		} else {
			ctx.WithIssue(issue.GateFailedId).
				WithSuggestion("rerun a single task with --tags and --verbose to see its output")
		}
		return &ExitError{Code: 1, Err: ctx.BuildError()}
	}
	return nil
}

func writeReport(rep *gate.Report, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report file: %w", cerr)
		}
	}()
	return rep.WriteTOML(f)
}

func configError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("run 'vgate config show' to inspect the effective configuration").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// suiteError attaches a suggestion to failures building the task suite.
func suiteError(err error) error {
	ctx := issue.NewErrorContext().WithOperation("prepare gate").Wrap(err)
	var cycle *dag.CycleError
	switch {
	case errors.As(err, &cycle):
		ctx.WithIssue(issue.DependencyCycleId).
			WithSuggestion("remove one of the requires entries of: " + strings.Join(cycle.Cycle, ", "))
	case errors.Is(err, runtime.ErrEnvironment):
		ctx.WithIssue(issue.ToolNotFoundId)
	case errors.Is(err, launch.ErrConfiguration):
		ctx.WithIssue(issue.InvalidLaunchArgsId)
	case errors.Is(err, verify.ErrInvalidPattern):
		ctx.WithSuggestion("check the success_pattern of the task; it must be a valid regular expression")
	}
	return ctx.BuildError()
}

// watchGate runs once and again after every batch of changes to the
// configured artifacts until ctx is canceled.
func watchGate(ctx context.Context, app *App, l *loaded, run func(ctx context.Context)) error {
	var patterns []string
	for _, a := range l.cfg.Artifacts {
		if rel, ok := relativeTo(l.baseDir, a.Path); ok {
			patterns = append(patterns, rel)
		}
		for _, dir := range a.OutputDirs {
			if rel, ok := relativeTo(l.baseDir, dir); ok {
				patterns = append(patterns, rel+"/**")
			}
		}
	}
	logger := app.logger().WithPrefix("watch")
	w, err := watch.New(watch.Options{
		BaseDir:  l.baseDir,
		Patterns: patterns,
		Logger:   logger,
		OnChange: func(ctx context.Context, changed []string) {
			logger.Info("rerunning gate", "changed", strings.Join(changed, ", "))
			run(ctx)
		},
	})
	if err != nil {
		return err
	}
	run(ctx)
	logger.Info("watching for changes", "dir", l.baseDir)
	return w.Run(ctx)
}

// relativeTo returns p as a slash-separated path below base.
func relativeTo(base, p string) (string, bool) {
	rel, err := filepath.Rel(base, resolvePath(base, p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return globEscaper.Replace(filepath.ToSlash(rel)), true
}

// globEscaper quotes doublestar metacharacters so a path matches only itself.
var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"?", `\?`,
	"[", `\[`,
	"]", `\]`,
	"{", `\{`,
	"}", `\}`,
)
