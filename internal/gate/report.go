// SPDX-License-Identifier: MPL-2.0

package gate

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrTaskFailed is the sentinel error wrapped by TaskFailure.
var ErrTaskFailed = errors.New("gate task failed")

type (
	// Result is the record of one task in a gate run.
	Result struct {
		Name string
		Tags []string
		// Selected is true when the task matched the filter.
		Selected bool
		Status   Status
		Reason   string
		Duration time.Duration
		// Output holds captured output when an OutputCapture resource was used.
		Output string
	}

	// Report is the complete outcome of a gate run.
	Report struct {
		Gate     string
		Filter   TagFilter
		Started  time.Time
		Duration time.Duration
		// Results are in declaration order.
		Results  []Result
		Warnings []string
		// Fatal is the missing prerequisite that stopped the run early.
		Fatal error
	}

	// TaskFailure aggregates the failed tasks of a report.
	TaskFailure struct {
		Gate   string
		Failed []Result
		// Cause is the error that aborted the run, if any.
		Cause error
	}

	tomlReport struct {
		Gate     string     `toml:"gate"`
		Verdict  string     `toml:"verdict"`
		Filter   []string   `toml:"filter,omitempty"`
		Started  time.Time  `toml:"started"`
		Seconds  float64    `toml:"duration_seconds"`
		Warnings []string   `toml:"warnings,omitempty"`
		Aborted  string     `toml:"aborted,omitempty"`
		Tasks    []tomlTask `toml:"task"`
	}

	tomlTask struct {
		Name     string   `toml:"name"`
		Tags     []string `toml:"tags"`
		Status   string   `toml:"status"`
		Reason   string   `toml:"reason,omitempty"`
		Seconds  float64  `toml:"duration_seconds"`
		Selected bool     `toml:"selected"`
	}
)

// transition moves the result to a new status. Disallowed transitions are
// programming errors.
func (r *Result) transition(to Status) {
	if !allowedTransition(r.Status, to) {
		panic(fmt.Sprintf("gate: task %s cannot move from %s to %s", r.Name, r.Status, to))
	}
	r.Status = to
}

func (r *Result) finish(to Status, reason string) {
	r.transition(to)
	r.Reason = reason
}

// Outcome returns the terminal status and reason of the task.
func (r Result) Outcome() Outcome { return Outcome{Status: r.Status, Reason: r.Reason} }

// Verdict is Failed if any task failed, Passed otherwise.
func (rep *Report) Verdict() Status {
	for _, r := range rep.Results {
		if r.Status == Failed {
			return Failed
		}
	}
	return Passed
}

// Selected returns the results of tasks that matched the filter.
func (rep *Report) Selected() []Result {
	var out []Result
	for _, r := range rep.Results {
		if r.Selected {
			out = append(out, r)
		}
	}
	return out
}

// Count returns how many results have status s.
func (rep *Report) Count(s Status) int {
	n := 0
	for _, r := range rep.Results {
		if r.Status == s {
			n++
		}
	}
	return n
}

// Result returns the result of the named task.
func (rep *Report) Result(name string) (Result, bool) {
	for _, r := range rep.Results {
		if r.Name == name {
			return r, true
		}
	}
	return Result{}, false
}

// Err returns a *TaskFailure listing the failed tasks, or nil. When the run
// was aborted the failure also wraps Fatal.
func (rep *Report) Err() error {
	var failed []Result
	for _, r := range rep.Results {
		if r.Status == Failed {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 && rep.Fatal == nil {
		return nil
	}
	return &TaskFailure{Gate: rep.Gate, Failed: failed, Cause: rep.Fatal}
}

// WriteTOML exports the report as a TOML document.
func (rep *Report) WriteTOML(w io.Writer) error {
	doc := tomlReport{
		Gate:     rep.Gate,
		Verdict:  rep.Verdict().String(),
		Filter:   rep.Filter,
		Started:  rep.Started,
		Seconds:  rep.Duration.Seconds(),
		Warnings: rep.Warnings,
		Tasks:    make([]tomlTask, 0, len(rep.Results)),
	}
	if rep.Fatal != nil {
		doc.Aborted = rep.Fatal.Error()
	}
	for _, r := range rep.Results {
		doc.Tasks = append(doc.Tasks, tomlTask{
			Name:     r.Name,
			Tags:     r.Tags,
			Status:   r.Status.String(),
			Reason:   r.Reason,
			Seconds:  r.Duration.Seconds(),
			Selected: r.Selected,
		})
	}
	enc := toml.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode gate report: %w", err)
	}
	return nil
}

func (e *TaskFailure) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s (%s)", r.Name, r.Reason))
	}
	noun := "tasks"
	if len(e.Failed) == 1 {
		noun = "task"
	}
	msg := fmt.Sprintf("gate %s: %d %s failed: %s", e.Gate, len(e.Failed), noun, strings.Join(parts, ", "))
	if e.Cause != nil {
		msg += "; run aborted"
	}
	return msg
}

// Unwrap returns ErrTaskFailed and the abort cause so callers can use
// errors.Is for programmatic detection.
func (e *TaskFailure) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrTaskFailed, e.Cause}
	}
	return []error{ErrTaskFailed}
}
