// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"testing"
)

func TestResultConstructors(t *testing.T) {
	t.Parallel()

	testErr := errors.New("test error")
	tests := []struct {
		name        string
		result      *Result
		wantCode    ExitCode
		wantOutput  string
		wantTimeout bool
		wantErr     error
		wantSuccess bool
	}{
		{
			name:     "error result",
			result:   NewErrorResult(ExitCodeNotFound, testErr),
			wantCode: ExitCodeNotFound,
			wantErr:  testErr,
		},
		{
			name:        "zero code without error",
			result:      NewErrorResult(0, nil),
			wantSuccess: true,
		},
		{
			name:       "nonzero exit",
			result:     NewExitCodeResult(42, "boom\n"),
			wantCode:   42,
			wantOutput: "boom\n",
		},
		{
			name:        "clean exit",
			result:      NewExitCodeResult(0, "ok\n"),
			wantOutput:  "ok\n",
			wantSuccess: true,
		},
		{
			name:        "timeout",
			result:      NewTimeoutResult("partial"),
			wantCode:    ExitCodeTimeout,
			wantOutput:  "partial",
			wantTimeout: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := tt.result
			if r.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", r.ExitCode, tt.wantCode)
			}
			if r.Output != tt.wantOutput {
				t.Errorf("Output = %q, want %q", r.Output, tt.wantOutput)
			}
			if r.TimedOut != tt.wantTimeout {
				t.Errorf("TimedOut = %v, want %v", r.TimedOut, tt.wantTimeout)
			}
			if !errors.Is(r.Error, tt.wantErr) {
				t.Errorf("Error = %v, want %v", r.Error, tt.wantErr)
			}
			if r.Success() != tt.wantSuccess {
				t.Errorf("Success() = %v, want %v", r.Success(), tt.wantSuccess)
			}
		})
	}
}
