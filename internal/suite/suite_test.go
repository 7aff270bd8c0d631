// SPDX-License-Identifier: MPL-2.0

package suite

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vgate/vgate/internal/config"
	"github.com/vgate/vgate/internal/gate"
	"github.com/vgate/vgate/internal/launch"
	"github.com/vgate/vgate/internal/runtime"
	"github.com/vgate/vgate/internal/verify"
)

// recorder is a runtime.Runner that records commands and answers with a
// canned result per executable (or "script" for scripts).
type recorder struct {
	mu       sync.Mutex
	commands []runtime.Command
	results  map[string]*runtime.Result
}

func (r *recorder) Run(_ context.Context, cmd *runtime.Command) *runtime.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, *cmd)
	key := "script"
	if len(cmd.Argv) > 0 {
		key = cmd.Argv[0]
	}
	if res, ok := r.results[key]; ok {
		if cmd.Output != nil {
			_, _ = io.WriteString(cmd.Output, res.Output)
		}
		return res
	}
	return runtime.NewExitCodeResult(0, "")
}

func quiet() *log.Logger { return log.New(io.Discard) }

func baseConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Artifacts = []config.ArtifactConfig{
		{ID: "compiler", Path: "dist/compiler.jar", OutputDirs: []string{"compiler/bin"}, Requires: []string{"sdk"}},
		{ID: "sdk", Path: "dist/sdk.jar", BootAppend: true},
	}
	return cfg
}

func runGate(t *testing.T, s *Suite, filter gate.TagFilter) *gate.Report {
	t.Helper()
	g, err := s.Gate()
	if err != nil {
		t.Fatalf("Gate() error = %v", err)
	}
	return g.Run(context.Background(), gate.RunOptions{Filter: filter, Logger: quiet()})
}

func TestVMCommand_Flat(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	cfg := baseConfig()
	cfg.Gate.ExtraVMArgs = []string{"", "-Xmx1g"}
	s, err := New(cfg, base, WithExtraVMArgs("-esa", ""), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	user := filepath.Join(base, "lib", "user.jar")
	redundant := filepath.Join(base, "compiler", "bin")
	argv, err := s.VMCommand([]string{"-cp", redundant + ":" + user + ":" + user, "Main"})
	if err != nil {
		t.Fatalf("VMCommand() error = %v", err)
	}

	want := []string{
		"java",
		"-Djvmci.class.path.append=" + filepath.Join(base, "dist", "compiler.jar"),
		"-Xbootclasspath/a:" + filepath.Join(base, "dist", "sdk.jar"),
		"-Xmx1g", "-esa",
		"-cp", user,
		"Main",
	}
	if !slices.Equal(argv, want) {
		t.Errorf("VMCommand() =\n  %q\nwant\n  %q", argv, want)
	}
}

func TestVMCommand_JVMCIDisabled(t *testing.T) {
	t.Parallel()

	s, err := New(baseConfig(), "/work", WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name     string
		args     []string
		injected bool
	}{
		{name: "default", args: []string{"-version"}, injected: true},
		{name: "disabled", args: []string{"-XX:-EnableJVMCI", "-version"}},
		{name: "re-enabled", args: []string{"-XX:-EnableJVMCI", "-XX:+EnableJVMCI", "-version"}, injected: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			argv, l, err := s.AssembleVM(tt.args)
			if err != nil {
				t.Fatalf("AssembleVM() error = %v", err)
			}
			injected := slices.ContainsFunc(argv, func(a string) bool { return strings.HasPrefix(a, "-Djvmci.class.path.append=") })
			if injected != tt.injected {
				t.Errorf("argv = %q, artifacts injected = %v, want %v", argv, injected, tt.injected)
			}
			if JVMCIEnabled(tt.args) != tt.injected {
				t.Errorf("JVMCIEnabled(%q) = %v", tt.args, !tt.injected)
			}
			if !tt.injected && (len(l.Warnings) != 1 || !slices.Equal(argv[1:], tt.args)) {
				t.Errorf("disabled launch = %q, warnings %q", argv, l.Warnings)
			}
		})
	}
}

func TestTask_CommandClasspathFiltered(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	cfg := baseConfig()
	user := filepath.Join(base, "lib", "junit.jar")
	cp := strings.Join([]string{filepath.Join(base, "compiler", "bin"), user, filepath.Join(base, "dist", "sdk.jar")}, string(os.PathListSeparator))
	cfg.Tasks = []config.TaskConfig{
		{Name: "UnitTests", Tags: []string{"test"}, Kind: config.TaskCommand, Args: []string{"/opt/image/bin/java", "-cp", cp, "org.junit.runner.JUnitCore"}},
	}
	native := &recorder{}
	s, err := New(cfg, base, WithRunner(native), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if rep := runGate(t, s, nil); rep.Verdict() != gate.Passed {
		t.Fatalf("Verdict() = %s", rep.Verdict())
	}
	want := []string{"/opt/image/bin/java", "-cp", user, "org.junit.runner.JUnitCore"}
	if len(native.commands) != 1 || !slices.Equal(native.commands[0].Argv, want) {
		t.Errorf("commands = %+v, want argv %q", native.commands, want)
	}
	if !strings.Contains(cfg.Tasks[0].Args[2], "sdk.jar") {
		t.Error("configured task arguments were modified")
	}
}

func TestVMCommand_Modular(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Deployment.Model = config.ModelModular
	cfg.Deployment.BaseModules = []string{"jdk.internal.vm.compiler"}
	cfg.Artifacts[0].Module = "jdk.internal.vm.compiler"
	cfg.Artifacts[1].Module = "org.graalvm.sdk"
	cfg.Gate.Java = "/opt/jdk/bin/java"

	s, err := New(cfg, "/work", WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := s.LaunchEnvironment().Model().(launch.Modular); !ok {
		t.Fatalf("Model() = %T, want launch.Modular", s.LaunchEnvironment().Model())
	}

	argv, err := s.VMCommand([]string{"--module-path", "/work/app.jar", "-m", "app/app.Main"})
	if err != nil {
		t.Fatalf("VMCommand() error = %v", err)
	}
	want := []string{
		"/opt/jdk/bin/java",
		"--upgrade-module-path=/work/dist/compiler.jar",
		"--module-path", "/work/app.jar:/work/dist/sdk.jar",
		"-m", "app/app.Main",
	}
	if !slices.Equal(argv, want) {
		t.Errorf("VMCommand() =\n  %q\nwant\n  %q", argv, want)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	t.Run("dependency cycle", func(t *testing.T) {
		t.Parallel()
		cfg := baseConfig()
		cfg.Artifacts[1].Requires = []string{"compiler"}
		cfg.Artifacts[1].BootAppend = false
		if _, err := New(cfg, "", WithLogger(quiet())); !errors.Is(err, launch.ErrConfiguration) {
			t.Errorf("New() error = %v, want ErrConfiguration", err)
		}
	})

	t.Run("missing env file", func(t *testing.T) {
		t.Parallel()
		cfg := baseConfig()
		cfg.Gate.EnvFiles = []string{"absent.env"}
		if _, err := New(cfg, t.TempDir(), WithLogger(quiet())); err == nil {
			t.Error("New() error = nil, want missing env file")
		}
	})

	t.Run("invalid pattern", func(t *testing.T) {
		t.Parallel()
		cfg := baseConfig()
		cfg.Tasks = []config.TaskConfig{{Name: "b", Tags: []string{"x"}, Kind: config.TaskBenchmark, SuccessPattern: "("}}
		s, err := New(cfg, "", WithLogger(quiet()))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, err := s.Gate(); !errors.Is(err, verify.ErrInvalidPattern) {
			t.Errorf("Gate() error = %v, want ErrInvalidPattern", err)
		}
	})
}

func TestGate_Kinds(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "gate.env"), []byte("SHARED=1\nOVERRIDE=env-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig()
	cfg.Gate.Name = "nightly"
	cfg.Gate.EnvFiles = []string{"gate.env"}
	cfg.Tasks = []config.TaskConfig{
		{Name: "XCompMode", Tags: []string{"test"}, Args: []string{"-Xcomp", "-version"}},
		{Name: "DaCapo:fop", Tags: []string{"benchmarktest"}, Kind: config.TaskBenchmark, Args: []string{"-jar", "dacapo.jar", "fop"}, SuccessPattern: verify.DaCapoPattern},
		{Name: "Lint", Tags: []string{"style"}, Kind: config.TaskCommand, Args: []string{"lint", "--strict"}, Dir: "src", Env: []string{"OVERRIDE=task"}},
		{Name: "Hello", Tags: []string{"style"}, Kind: config.TaskScript, Script: "echo hello"},
	}

	native := &recorder{results: map[string]*runtime.Result{
		"java": runtime.NewExitCodeResult(0, "===== DaCapo 9.12 fop PASSED in 1234 msec =====\n"),
	}}
	scripts := &recorder{}
	s, err := New(cfg, base, WithRunner(native), WithScriptRunner(scripts), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rep := runGate(t, s, nil)
	if rep.Gate != "nightly" || rep.Verdict() != gate.Passed {
		t.Fatalf("report = %+v", rep)
	}

	if len(native.commands) != 3 || len(scripts.commands) != 1 {
		t.Fatalf("native ran %d, scripts ran %d; want 3 and 1", len(native.commands), len(scripts.commands))
	}
	vm := native.commands[0]
	if vm.Argv[0] != "java" || !slices.Contains(vm.Argv, "-Xcomp") || !strings.HasPrefix(vm.Argv[1], "-Djvmci.class.path.append=") {
		t.Errorf("vm argv = %q", vm.Argv)
	}
	if vm.Dir != base {
		t.Errorf("vm dir = %q, want %q", vm.Dir, base)
	}
	lint := native.commands[2]
	if !slices.Equal(lint.Argv, []string{"lint", "--strict"}) || lint.Dir != filepath.Join(base, "src") {
		t.Errorf("command task = %+v", lint)
	}
	if lint.Env["SHARED"] != "1" || lint.Env["OVERRIDE"] != "task" {
		t.Errorf("command env = %v, task entries must override env files", lint.Env)
	}
	if scripts.commands[0].Script != "echo hello" {
		t.Errorf("script = %q", scripts.commands[0].Script)
	}
}

func TestGate_Failures(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Tasks = []config.TaskConfig{
		{Name: "crash", Tags: []string{"test"}, Args: []string{"-version"}},
		{Name: "bench", Tags: []string{"benchmarktest"}, Kind: config.TaskBenchmark, Args: []string{"x"}, SuccessPattern: "PASSED"},
		{Name: "badargs", Tags: []string{"test"}, Args: []string{"-cp", "a", "-cp", "b", "Main"}},
		{Name: "notool", Tags: []string{"style"}, Kind: config.TaskCommand, Args: []string{"missing-tool"}},
		{Name: "after", Tags: []string{"test"}, Args: []string{"-Xint", "Main"}},
	}

	native := runtime.RunnerFunc(func(_ context.Context, cmd *runtime.Command) *runtime.Result {
		switch {
		case cmd.Argv[0] == "missing-tool":
			return runtime.NewErrorResult(runtime.ExitCodeNotFound, &runtime.EnvironmentError{Tool: "missing-tool"})
		case slices.Contains(cmd.Argv, "-version"):
			return runtime.NewExitCodeResult(134, "fatal error\n")
		default:
			return runtime.NewExitCodeResult(0, "FAILED\n")
		}
	})
	s, err := New(cfg, "", WithRunner(native), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rep := runGate(t, s, nil)
	if rep.Verdict() != gate.Failed {
		t.Fatalf("Verdict() = %s, want failed", rep.Verdict())
	}

	tests := []struct {
		task   string
		reason string
	}{
		{"crash", verify.ReasonNonzeroExit},
		{"bench", verify.ReasonPatternNotFound},
		{"badargs", "duplicate"},
		{"notool", "missing-tool"},
	}
	for _, tt := range tests {
		r, ok := rep.Result(tt.task)
		if !ok {
			t.Fatalf("no result for %s", tt.task)
		}
		if r.Status != gate.Failed || !strings.Contains(r.Reason, tt.reason) {
			t.Errorf("%s = %s (%s), want failed containing %q", tt.task, r.Status, r.Reason, tt.reason)
		}
	}

	if r, _ := rep.Result("after"); r.Status != gate.Skipped || r.Reason != gate.ReasonAborted {
		t.Errorf("after = %s (%s), want skipped after the missing tool", r.Status, r.Reason)
	}
	if err := rep.Err(); !errors.Is(err, runtime.ErrEnvironment) {
		t.Errorf("Err() = %v, want ErrEnvironment", err)
	}
}

func TestGate_TagGroups(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Tasks = []config.TaskConfig{
		{Name: "BootstrapLite", Tags: []string{"bootstraplite"}, Args: []string{"-version"}},
		{Name: "Javadoc", Tags: []string{"doc"}, Kind: config.TaskCommand, Args: []string{"javadoc"}},
		{Name: "Style", Tags: []string{"style"}, Kind: config.TaskCommand, Args: []string{"checkstyle"}},
	}
	s, err := New(cfg, "", WithRunner(&recorder{}), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rep := runGate(t, s, gate.TagFilter{"fulltest"})
	var selected []string
	for _, r := range rep.Selected() {
		selected = append(selected, r.Name)
	}
	if !slices.Equal(selected, []string{"BootstrapLite"}) {
		t.Errorf("fulltest selected %v, want [BootstrapLite]", selected)
	}

	rep = runGate(t, s, gate.TagFilter{"javadoc"})
	if r, _ := rep.Result("Javadoc"); r.Status != gate.Passed {
		t.Errorf("Javadoc = %s, want passed", r.Status)
	}
}

func TestGate_TaskTimeout(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Tasks = []config.TaskConfig{{Name: "hang", Tags: []string{"test"}, Args: []string{"-version"}, Timeout: 20 * time.Millisecond}}
	blocking := runtime.RunnerFunc(func(ctx context.Context, _ *runtime.Command) *runtime.Result {
		<-ctx.Done()
		return runtime.NewExitCodeResult(137, "")
	})
	s, err := New(cfg, "", WithRunner(blocking), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rep := runGate(t, s, nil)
	if r, _ := rep.Result("hang"); r.Status != gate.Failed || r.Reason != gate.ReasonTimeout {
		t.Errorf("hang = %s (%s), want failed (timeout)", r.Status, r.Reason)
	}
}

func TestGate_ScriptWithVirtualRunner(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Tasks = []config.TaskConfig{
		{Name: "ok", Tags: []string{"style"}, Kind: config.TaskScript, Script: `test "$GREETING" = hi`, Env: []string{"GREETING=hi"}},
		{Name: "bad", Tags: []string{"style"}, Kind: config.TaskScript, Script: "exit 3"},
	}
	s, err := New(cfg, t.TempDir(), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rep := runGate(t, s, nil)
	if r, _ := rep.Result("ok"); r.Status != gate.Passed {
		t.Errorf("ok = %s (%s)", r.Status, r.Reason)
	}
	if r, _ := rep.Result("bad"); r.Status != gate.Failed || r.Reason != verify.ReasonNonzeroExit {
		t.Errorf("bad = %s (%s)", r.Status, r.Reason)
	}
}

func TestExpandTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []string
		want []string
	}{
		{in: []string{"bootstrap"}, want: []string{"bootstrap", "fulltest"}},
		{in: []string{"bootstraplite"}, want: []string{"bootstraplite", "bootstrap", "fulltest"}},
		{in: []string{"test", "ctw"}, want: []string{"test", "fulltest", "ctw"}},
		{in: []string{"doc"}, want: []string{"javadoc"}},
		{in: []string{"style", "style"}, want: []string{"style"}},
	}
	for _, tt := range tests {
		if got := ExpandTags(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("ExpandTags(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDaCapoTask(t *testing.T) {
	t.Parallel()

	task := DaCapoTask("/lib/dacapo.jar", "pmd", 4, DaCapoOptions{
		ParallelGC:  true,
		NoStartHeap: true,
		Threads:     4,
		VMArgs:      []string{"", "-XX:+UseJVMCICompiler"},
	})
	want := []string{
		"-XX:-UseCompressedOops", "-Djava.net.preferIPv4Stack=true", "-Dgraal.CompilationFailureAction=ExitVM",
		"-XX:+UseJVMCICompiler",
		"-jar", "/lib/dacapo.jar", "pmd", "-n", "4", "-t", "4",
	}
	if !slices.Equal(task.Args, want) {
		t.Errorf("Args = %q\nwant %q", task.Args, want)
	}
	if task.Name != "DaCapo:pmd" || task.Kind != config.TaskBenchmark || task.SuccessPattern != verify.DaCapoPattern {
		t.Errorf("task = %+v", task)
	}
	if valid, errs := task.IsValid(); !valid {
		t.Errorf("IsValid() = %v", errs)
	}

	defaults := DefaultDaCapoTasks("/lib/dacapo.jar")
	if len(defaults) != 10 {
		t.Fatalf("len(DefaultDaCapoTasks) = %d, want 10", len(defaults))
	}
	if !slices.Contains(defaults[0].Args, "-esa") || slices.Contains(defaults[len(defaults)-1].Args, "-esa") {
		t.Error("only benchmarks that tolerate system assertions run with -esa")
	}
	if defaults[0].Args[0] != "-XX:+UseSerialGC" || defaults[0].Args[1] != "-Xms2g" {
		t.Errorf("default options = %q", defaults[0].Args[:2])
	}
}
