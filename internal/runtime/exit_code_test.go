// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"testing"
)

func TestExitCodeValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   ExitCode
		wantErr bool
	}{
		{name: "zero is valid", value: 0},
		{name: "timeout code is valid", value: ExitCodeTimeout},
		{name: "255 is valid", value: 255},
		{name: "negative is invalid", value: -1, wantErr: true},
		{name: "256 is invalid", value: 256, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.value.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExitCode(%d).Validate() = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidExitCode) {
				t.Errorf("error does not wrap ErrInvalidExitCode: %v", err)
			}
		})
	}
}

func TestExitCodeFromProcess(t *testing.T) {
	t.Parallel()

	if got := exitCodeFromProcess(-1); got != 1 {
		t.Errorf("signal exit mapped to %d, want 1", got)
	}
	if got := exitCodeFromProcess(42); got != 42 {
		t.Errorf("exitCodeFromProcess(42) = %d", got)
	}
	if ExitCode(0).String() != "0" || !ExitCode(0).IsSuccess() {
		t.Error("zero exit code should be success and render as 0")
	}
}
