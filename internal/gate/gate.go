// SPDX-License-Identifier: MPL-2.0

package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vgate/vgate/internal/runtime"
)

type (
	// Gate is an immutable, ordered list of tasks.
	Gate struct {
		name  string
		tasks []Task
	}

	// RunOptions control one gate run.
	RunOptions struct {
		Filter   TagFilter
		FailFast bool
		Logger   *log.Logger
		// Resources are acquired for every task, in order.
		Resources []ResourceFactory
		// DryRun reports selected tasks as skipped without running them.
		DryRun bool
		// DefaultTimeout applies to tasks without their own timeout.
		DefaultTimeout time.Duration
		// Output receives task output that is not captured.
		Output io.Writer
		// Now is the clock used for durations; nil uses time.Now.
		Now func() time.Time
	}
)

// New creates a gate. Task names must be unique and every task needs tags.
func New(name string, tasks ...Task) (*Gate, error) {
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
		}
		seen[t.Name] = true
	}
	return &Gate{name: name, tasks: append([]Task(nil), tasks...)}, nil
}

// Name returns the gate name.
func (g *Gate) Name() string { return g.name }

// Tasks returns the tasks in declaration order.
func (g *Gate) Tasks() []Task { return append([]Task(nil), g.tasks...) }

// Run executes the selected tasks and returns the complete report.
func (g *Gate) Run(ctx context.Context, opts RunOptions) *Report {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("gate")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	output := opts.Output
	if output == nil {
		output = io.Discard
	}

	report := &Report{Gate: g.name, Filter: append(TagFilter(nil), opts.Filter...), Started: now()}
	stop := ""
	for _, t := range g.tasks {
		r := Result{Name: t.Name, Tags: append([]string(nil), t.Tags...), Status: Pending}
		switch {
		case !opts.Filter.Matches(t.Tags):
			r.finish(Skipped, ReasonNotSelected)
		case stop != "":
			r.Selected = true
			r.finish(Skipped, stop)
		case ctx.Err() != nil:
			r.Selected = true
			r.finish(Skipped, ReasonCancelled)
		case opts.DryRun:
			r.Selected = true
			r.finish(Skipped, ReasonDryRun)
			logger.Info("would run", "task", t.Name)
		default:
			r.Selected = true
			err := g.runTask(ctx, t, &r, opts, logger, output, now)
			switch {
			case r.Status == Failed && errors.Is(err, runtime.ErrEnvironment):
				report.Fatal = err
				stop = ReasonAborted
				logger.Error("missing prerequisite, skipping remaining tasks", "task", t.Name, "error", err)
			case r.Status == Failed && opts.FailFast:
				stop = ReasonFailFast
			}
		}
		report.Results = append(report.Results, r)
	}
	report.Duration = now().Sub(report.Started)

	if len(report.Selected()) == 0 {
		report.Warnings = append(report.Warnings, "no tasks matched filter")
		logger.Warn("no tasks matched filter", "filter", opts.Filter)
	}
	return report
}

// runTask runs t and records its outcome in r. The returned error is the one
// the task body failed with, if any.
func (g *Gate) runTask(ctx context.Context, t Task, r *Result, opts RunOptions, logger *log.Logger, output io.Writer, now func() time.Time) error {
	r.transition(Running)
	logger.Info("running", "task", t.Name)
	start := now()

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = opts.DefaultTimeout
	}
	var (
		taskCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		taskCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	tc := &TaskContext{
		Context:   taskCtx,
		Name:      t.Name,
		Tags:      r.Tags,
		Output:    output,
		Logger:    logger.WithPrefix(t.Name),
		resources: make(map[string]any, len(opts.Resources)),
	}

	outcome, err := execute(tc, t, opts.Resources)
	if outcome.Status != Skipped && errors.Is(taskCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		outcome = Fail(ReasonTimeout)
	}
	if tc.captured != nil {
		r.Output = tc.captured.String()
	}
	r.Duration = now().Sub(start)
	r.finish(outcome.Status, outcome.Reason)

	switch outcome.Status {
	case Passed:
		logger.Info("passed", "task", t.Name, "duration", r.Duration)
	case Skipped:
		logger.Info("skipped", "task", t.Name, "reason", outcome.Reason)
	default:
		logger.Error("failed", "task", t.Name, "reason", outcome.Reason, "duration", r.Duration)
	}
	return err
}

// execute acquires the resources, runs the body and releases the resources
// in reverse order. Panics are recovered into a failure.
func execute(tc *TaskContext, t Task, factories []ResourceFactory) (outcome Outcome, err error) {
	var releases []func()
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			outcome, err = Fail(fmt.Sprintf("panic: %v", p)), nil
		}
	}()

	for _, f := range factories {
		value, release, err := f.Acquire(tc)
		if release != nil {
			releases = append(releases, release)
		}
		if err != nil {
			return Fail(fmt.Sprintf("resource %s: %v", f.Name(), err)), err
		}
		tc.resources[f.Name()] = value
	}

	err = t.Run(tc)
	var skip *SkipError
	switch {
	case err == nil:
		return Pass(), nil
	case errors.As(err, &skip):
		return Outcome{Status: Skipped, Reason: skip.Reason}, nil
	default:
		return Fail(err.Error()), err
	}
}
