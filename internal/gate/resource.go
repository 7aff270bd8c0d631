// SPDX-License-Identifier: MPL-2.0

package gate

import "strings"

type (
	// ResourceFactory provides a resource scoped to one task. Acquire runs
	// before the task body; release runs after it on every exit path.
	ResourceFactory interface {
		Name() string
		Acquire(tc *TaskContext) (value any, release func(), err error)
	}

	// OutputCapture redirects the task output into a buffer that is kept in
	// the task result.
	OutputCapture struct{}
)

// Name implements ResourceFactory.
func (OutputCapture) Name() string { return "output" }

// Acquire implements ResourceFactory.
func (OutputCapture) Acquire(tc *TaskContext) (any, func(), error) {
	buf := &strings.Builder{}
	prev := tc.Output
	tc.Output = buf
	tc.captured = buf
	return buf, func() { tc.Output = prev }, nil
}
