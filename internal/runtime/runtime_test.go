// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"
)

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell required")
	}
}

func TestNativeRunner_MergedOutputAndExitCode(t *testing.T) {
	t.Parallel()
	requirePOSIX(t)

	var live bytes.Buffer
	res := NewNativeRunner().Run(context.Background(), &Command{
		Argv:   []string{"sh", "-c", "echo out; echo err 1>&2; exit 3"},
		Output: &live,
	})

	if res.Error != nil {
		t.Fatalf("unexpected error: %v", res.Error)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Output, "out") || !strings.Contains(res.Output, "err") {
		t.Errorf("Output = %q, want both streams", res.Output)
	}
	if live.String() != res.Output {
		t.Errorf("live output %q differs from captured %q", live.String(), res.Output)
	}
	if res.Success() {
		t.Error("Success() = true for exit code 3")
	}
}

func TestNativeRunner_EnvAndDir(t *testing.T) {
	t.Parallel()
	requirePOSIX(t)

	dir := t.TempDir()
	res := NewNativeRunner().Run(context.Background(), &Command{
		Argv: []string{"sh", "-c", "printf '%s %s' \"$VGATE_MARKER\" \"$(basename \"$PWD\")\""},
		Dir:  dir,
		Env:  map[string]string{"VGATE_MARKER": "hello"},
	})
	if !res.Success() {
		t.Fatalf("run failed: %+v", res)
	}
	if want := "hello " + filepath.Base(dir); res.Output != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}
}

func TestNativeRunner_Timeout(t *testing.T) {
	t.Parallel()
	requirePOSIX(t)

	start := time.Now()
	res := NewNativeRunner().Run(context.Background(), &Command{
		Argv:    []string{"sh", "-c", "echo started; sleep 10"},
		Timeout: 200 * time.Millisecond,
	})
	if !res.TimedOut {
		t.Fatalf("TimedOut = false, result %+v", res)
	}
	if res.ExitCode != ExitCodeTimeout {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitCodeTimeout)
	}
	if time.Since(start) > 8*time.Second {
		t.Errorf("timeout did not terminate the process promptly")
	}
}

func TestNativeRunner_MissingTool(t *testing.T) {
	t.Parallel()

	res := NewNativeRunner().Run(context.Background(), &Command{
		Argv: []string{"vgate-definitely-not-installed-tool"},
	})
	var envErr *EnvironmentError
	if !errors.As(res.Error, &envErr) {
		t.Fatalf("expected EnvironmentError, got %v", res.Error)
	}
	if !errors.Is(res.Error, ErrEnvironment) {
		t.Error("EnvironmentError does not wrap ErrEnvironment")
	}
	if envErr.Tool != "vgate-definitely-not-installed-tool" {
		t.Errorf("Tool = %q", envErr.Tool)
	}
	if res.ExitCode != ExitCodeNotFound {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitCodeNotFound)
	}
}

func TestNativeRunner_EmptyArgv(t *testing.T) {
	t.Parallel()

	res := NewNativeRunner().Run(context.Background(), &Command{})
	if res.Error == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestVirtualRunner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		script   string
		env      map[string]string
		wantCode ExitCode
		wantOut  string
		wantErr  bool
	}{
		{name: "echo", script: "echo hello", wantOut: "hello\n"},
		{name: "exit status", script: "echo partial; exit 4", wantCode: 4, wantOut: "partial\n"},
		{name: "env overlay", script: `echo "$GREETING"`, env: map[string]string{"GREETING": "hi"}, wantOut: "hi\n"},
		{name: "syntax error", script: "if then fi (", wantCode: 2, wantErr: true},
		{name: "empty", script: "  ", wantCode: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := NewVirtualRunner().Run(context.Background(), &Command{Script: tt.script, Env: tt.env})
			if (res.Error != nil) != tt.wantErr {
				t.Fatalf("Error = %v, wantErr %v", res.Error, tt.wantErr)
			}
			if res.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantCode)
			}
			if !tt.wantErr && res.Output != tt.wantOut {
				t.Errorf("Output = %q, want %q", res.Output, tt.wantOut)
			}
		})
	}
}

func TestVirtualRunner_Params(t *testing.T) {
	t.Parallel()

	r := &VirtualRunner{Params: []string{"-v", "two"}}
	res := r.Run(context.Background(), &Command{Script: `echo "$1 $2 $#"`})
	if res.Output != "-v two 2\n" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestParseArgs(t *testing.T) {
	t.Parallel()

	got, err := ParseArgs(`-Dfoo=bar "-Dmsg=hello world" '-XX:+UseJVMCICompiler'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"-Dfoo=bar", "-Dmsg=hello world", "-XX:+UseJVMCICompiler"}
	if !slices.Equal(got, want) {
		t.Errorf("ParseArgs = %q, want %q", got, want)
	}

	list, err := ParseArgsList([]string{"-esa", "-Xmx1g -Xss2m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"-esa", "-Xmx1g", "-Xss2m"}; !slices.Equal(list, want) {
		t.Errorf("ParseArgsList = %q, want %q", list, want)
	}

	if _, err := ParseArgs(`"unterminated`); err == nil {
		t.Error("expected error for unterminated quote")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := "# settings\nA=1\nexport B=\"two\\tparts\"\nC='$raw' \nD=plain # comment\n"
	second := "A=override\n"
	if err := os.WriteFile(filepath.Join(dir, "one.env"), []byte(first), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "two.env"), []byte(second), 0o644); err != nil {
		t.Fatal(err)
	}

	env, err := LoadEnvFiles(dir, []string{"one.env", "two.env", "missing.env?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"A": "override", "B": "two\tparts", "C": "$raw", "D": "plain"}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("env[%s] = %q, want %q", k, env[k], v)
		}
	}

	if _, err := LoadEnvFiles(dir, []string{"missing.env"}); err == nil {
		t.Error("expected error for required missing file")
	}
}

func TestParseEnv_Errors(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"NOEQUALS", "=value", `K="open`, `K='open`} {
		if err := ParseEnv(map[string]string{}, []byte(content), "bad.env"); err == nil {
			t.Errorf("ParseEnv(%q) expected error", content)
		}
	}
}

func TestEnvToSlice_Sorted(t *testing.T) {
	t.Parallel()

	got := EnvToSlice(map[string]string{"B": "2", "A": "1"})
	if want := []string{"A=1", "B=2"}; !slices.Equal(got, want) {
		t.Errorf("EnvToSlice = %v, want %v", got, want)
	}
}
