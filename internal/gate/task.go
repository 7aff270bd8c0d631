// SPDX-License-Identifier: MPL-2.0

package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// Pending is the initial state of every task.
	Pending Status = iota
	// Running means the task body is executing.
	Running
	// Passed means the task body returned without error.
	Passed
	// Failed means the task body returned an error, panicked, or timed out.
	Failed
	// Skipped means the task was not selected or did not get to run.
	Skipped
)

// Reasons recorded by the gate itself.
const (
	// ReasonNotSelected marks tasks that did not match the tag filter.
	ReasonNotSelected = "not selected"
	// ReasonFailFast marks tasks skipped after a failure in a fail-fast run.
	ReasonFailFast = "fail-fast"
	// ReasonDryRun marks selected tasks of a dry run.
	ReasonDryRun = "dry run"
	// ReasonTimeout marks tasks still running when their deadline passed.
	ReasonTimeout = "timeout"
	// ReasonCancelled marks tasks not started because the run was canceled.
	ReasonCancelled = "cancelled"
	// ReasonAborted marks tasks skipped after a missing prerequisite.
	ReasonAborted = "aborted: missing prerequisite"
)

var (
	// ErrDuplicateTask is returned by New when two tasks share a name.
	ErrDuplicateTask = errors.New("duplicate task name")
	// ErrEmptyTags is returned by New for a task without tags.
	ErrEmptyTags = errors.New("task has no tags")
	// ErrInvalidTask is returned by New for an unnamed or bodiless task.
	ErrInvalidTask = errors.New("invalid task")
)

type (
	// Status is the lifecycle state of a task.
	Status int

	// Outcome is the terminal status of a task with its reason.
	Outcome struct {
		Status Status
		// Reason is empty for Passed.
		Reason string
	}

	// Task is one verification step. Tags must be non-empty.
	Task struct {
		Name string
		Tags []string
		// Run executes the task. A nil error passes the task; an error
		// returned by Skip skips it; any other error or a panic fails it.
		Run func(tc *TaskContext) error
		// Timeout bounds Run; zero falls back to RunOptions.DefaultTimeout.
		Timeout time.Duration
	}

	// TaskContext is handed to a running task.
	TaskContext struct {
		context.Context
		Name string
		Tags []string
		// Output receives task output. It is the captured buffer when an
		// OutputCapture resource is active.
		Output io.Writer
		Logger *log.Logger

		resources map[string]any
		captured  *strings.Builder
	}

	// SkipError marks a task as skipped from inside its body.
	SkipError struct {
		Reason string
	}

	// TagFilter selects tasks that carry at least one of its tags. An empty
	// filter selects every task.
	TagFilter []string
)

var statusNames = map[Status]string{
	Pending: "pending",
	Running: "running",
	Passed:  "passed",
	Failed:  "failed",
	Skipped: "skipped",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	return s == Passed || s == Failed || s == Skipped
}

// allowedTransition reports whether a task may move from one state to another.
func allowedTransition(from, to Status) bool {
	switch from {
	case Pending:
		return to == Running || to == Skipped
	case Running:
		return to.IsTerminal()
	default:
		return false
	}
}

// Pass returns a passed outcome.
func Pass() Outcome { return Outcome{Status: Passed} }

// Fail returns a failed outcome with reason.
func Fail(reason string) Outcome { return Outcome{Status: Failed, Reason: reason} }

// Skip returns an error that makes the running task skipped.
func Skip(reason string) error { return &SkipError{Reason: reason} }

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Status.String()
	}
	return fmt.Sprintf("%s (%s)", o.Status, o.Reason)
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// ParseTagFilter splits a comma-separated tag list. Blank entries are dropped.
func ParseTagFilter(s string) TagFilter {
	var f TagFilter
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			f = append(f, tag)
		}
	}
	return f
}

// Matches reports whether a task with tags is selected.
func (f TagFilter) Matches(tags []string) bool {
	if len(f) == 0 {
		return true
	}
	for _, tag := range tags {
		if slices.Contains(f, tag) {
			return true
		}
	}
	return false
}

// Validate checks the task definition.
func (t Task) Validate() error {
	switch {
	case strings.TrimSpace(t.Name) == "":
		return fmt.Errorf("%w: missing name", ErrInvalidTask)
	case t.Run == nil:
		return fmt.Errorf("%w: %s has no body", ErrInvalidTask, t.Name)
	case len(t.Tags) == 0:
		return fmt.Errorf("%w: %s", ErrEmptyTags, t.Name)
	}
	return nil
}

// Resource returns the value acquired by the named resource factory.
func (tc *TaskContext) Resource(name string) (any, bool) {
	v, ok := tc.resources[name]
	return v, ok
}
