// SPDX-License-Identifier: MPL-2.0

package runtime

// Success returns true if the process exited with code 0, did not time out and
// no infrastructure error occurred.
func (r *Result) Success() bool {
	return r.ExitCode.IsSuccess() && !r.TimedOut && r.Error == nil
}

// NewErrorResult creates a Result with the given exit code and error.
func NewErrorResult(code ExitCode, err error) *Result {
	return &Result{ExitCode: code, Error: err}
}

// NewExitCodeResult creates a Result with the given exit code, captured output and no error.
// Use this for non-zero exits that represent normal process termination
// rather than infrastructure failures.
func NewExitCodeResult(code ExitCode, output string) *Result {
	return &Result{ExitCode: code, Output: output}
}

// NewTimeoutResult creates a Result for a process terminated by its timeout.
func NewTimeoutResult(output string) *Result {
	return &Result{ExitCode: ExitCodeTimeout, Output: output, TimedOut: true}
}
