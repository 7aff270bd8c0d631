// SPDX-License-Identifier: MPL-2.0

package suite

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/vgate/vgate/internal/config"
	"github.com/vgate/vgate/internal/gate"
	"github.com/vgate/vgate/internal/launch"
	"github.com/vgate/vgate/internal/pathset"
	"github.com/vgate/vgate/internal/runtime"
	"github.com/vgate/vgate/internal/verify"
)

type (
	// Suite converts configuration into gate tasks. It is built once per
	// invocation and shared by every task it creates.
	Suite struct {
		cfg         *config.Config
		baseDir     string
		env         *launch.Environment
		native      runtime.Runner
		script      runtime.Runner
		extraVMArgs []string
		taskEnv     map[string]string
		logger      *log.Logger
	}

	// Option configures a Suite.
	Option func(*Suite)

	// VerificationError reports a task whose process did not pass. Its
	// message is the classification reason recorded in the gate report.
	VerificationError struct {
		Classification verify.Classification
	}
)

// WithRunner replaces the host process runner.
func WithRunner(r runtime.Runner) Option {
	return func(s *Suite) { s.native = r }
}

// WithScriptRunner replaces the shell interpreter used by script tasks.
func WithScriptRunner(r runtime.Runner) Option {
	return func(s *Suite) { s.script = r }
}

// WithExtraVMArgs appends arguments to every vm and benchmark task, after
// the configured gate.extra_vm_args.
func WithExtraVMArgs(args ...string) Option {
	return func(s *Suite) { s.extraVMArgs = append(s.extraVMArgs, args...) }
}

// WithLogger sets the logger for assembly warnings.
func WithLogger(logger *log.Logger) Option {
	return func(s *Suite) { s.logger = logger }
}

// New builds the launch environment for cfg. Relative artifact, env file and
// task directory paths resolve against baseDir.
func New(cfg *config.Config, baseDir string, opts ...Option) (*Suite, error) {
	s := &Suite{
		cfg:         cfg,
		baseDir:     baseDir,
		native:      runtime.NewNativeRunner(),
		script:      runtime.NewVirtualRunner(),
		extraVMArgs: append([]string(nil), cfg.Gate.ExtraVMArgs...),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default().WithPrefix("suite")
	}
	s.extraVMArgs = pathset.RemoveEmpty(s.extraVMArgs)

	env, err := Environment(cfg, baseDir, launch.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.env = env
	s.logger.Debug("launch environment ready",
		"model", launch.ModelName(env.Model()),
		"artifacts", len(env.Artifacts()),
		"boot_appends", len(env.BootAppends()))

	taskEnv, err := runtime.LoadEnvFiles(baseDir, cfg.Gate.EnvFiles)
	if err != nil {
		return nil, err
	}
	s.taskEnv = taskEnv
	return s, nil
}

// Environment builds the launch environment described by the deployment and
// artifacts sections of cfg.
func Environment(cfg *config.Config, baseDir string, opts ...launch.EnvironmentOption) (*launch.Environment, error) {
	var artifacts, bootAppends []launch.DeploymentArtifact
	for _, a := range cfg.Artifacts {
		da := launch.DeploymentArtifact{
			ID:         a.ID,
			Path:       resolve(baseDir, a.Path),
			ModuleName: a.Module,
			Requires:   a.Requires,
		}
		for _, dir := range a.OutputDirs {
			da.OutputDirs = append(da.OutputDirs, resolve(baseDir, dir))
		}
		if a.BootAppend {
			bootAppends = append(bootAppends, da)
		} else {
			artifacts = append(artifacts, da)
		}
	}

	var model launch.DeploymentModel = launch.Flat{}
	if cfg.Deployment.Model == config.ModelModular {
		model = launch.Modular{BaseModules: cfg.Deployment.BaseModules}
	}
	opts = append(opts, launch.WithClassPathProperty(cfg.Deployment.ClassPathProperty))
	return launch.NewEnvironment(model, artifacts, bootAppends, opts...)
}

// LaunchEnvironment returns the shared launch environment.
func (s *Suite) LaunchEnvironment() *launch.Environment { return s.env }

// Gate returns a gate named after the configuration with one task per
// configured task, in declaration order.
func (s *Suite) Gate() (*gate.Gate, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return nil, err
	}
	return gate.New(s.cfg.Gate.Name, tasks...)
}

// Tasks converts every configured task.
func (s *Suite) Tasks() ([]gate.Task, error) {
	tasks := make([]gate.Task, 0, len(s.cfg.Tasks))
	for _, tc := range s.cfg.Tasks {
		t, err := s.Task(tc)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", tc.Name, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Task converts one configured task. Patterns and task environments are
// checked here, so a broken configuration fails before the gate starts.
func (s *Suite) Task(tc config.TaskConfig) (gate.Task, error) {
	if tc.SuccessPattern != "" {
		if _, err := verify.CompilePattern(tc.SuccessPattern); err != nil {
			return gate.Task{}, err
		}
	}
	env, err := s.environment(tc)
	if err != nil {
		return gate.Task{}, err
	}

	kind := tc.Kind.OrDefault()
	build := func() (runtime.Command, runtime.Runner, error) {
		argv, err := s.commandArgs(tc.Args)
		if err != nil {
			return runtime.Command{}, nil, err
		}
		return runtime.Command{Argv: argv, Dir: s.dir(tc), Env: env}, s.native, nil
	}
	switch kind {
	case config.TaskVM, config.TaskBenchmark:
		build = func() (runtime.Command, runtime.Runner, error) {
			argv, err := s.VMCommand(tc.Args)
			if err != nil {
				return runtime.Command{}, nil, err
			}
			return runtime.Command{Argv: argv, Dir: s.dir(tc), Env: env}, s.native, nil
		}
	case config.TaskScript:
		build = func() (runtime.Command, runtime.Runner, error) {
			return runtime.Command{Script: tc.Script, Dir: s.dir(tc), Env: env}, s.script, nil
		}
	}

	pattern := ""
	if kind == config.TaskBenchmark {
		pattern = tc.SuccessPattern
	}

	return gate.Task{
		Name:    tc.Name,
		Tags:    ExpandTags(tc.Tags),
		Timeout: tc.Timeout,
		Run: func(ctx *gate.TaskContext) error {
			cmd, runner, err := build()
			if err != nil {
				return err
			}
			cmd.Output = ctx.Output
			v := &verify.Verifier{Runner: runner, Logger: ctx.Logger}
			c, err := v.Verify(ctx, cmd, pattern)
			if err != nil {
				return err
			}
			if !c.Passed() {
				ctx.Logger.Error("verification failed", "reason", c.Reason, "exit_code", c.ExitCode)
				return &VerificationError{Classification: c}
			}
			return nil
		},
	}, nil
}

// VMCommand returns the runtime command line for args: the configured
// launcher followed by the extra VM arguments and args, assembled against the
// launch environment.
func (s *Suite) VMCommand(args []string) ([]string, error) {
	argv, _, err := s.AssembleVM(args)
	return argv, err
}

// AssembleVM is VMCommand that also returns the assembled launch with its
// warnings and path provenance. With -XX:-EnableJVMCI the deployment
// artifacts cannot be loaded, so args are passed through with a warning.
func (s *Suite) AssembleVM(args []string) ([]string, *launch.Launch, error) {
	full := append(append([]string(nil), s.extraVMArgs...), args...)
	if !JVMCIEnabled(full) {
		l := &launch.Launch{Args: full, Warnings: []string{jvmciDisabledWarning}}
		s.logger.Warn(jvmciDisabledWarning)
		return append([]string{s.cfg.Gate.Java}, full...), l, nil
	}
	l, err := s.env.Assemble(full)
	if err != nil {
		return nil, nil, err
	}
	return append([]string{s.cfg.Gate.Java}, l.Args...), l, nil
}

const jvmciDisabledWarning = "JVMCI is disabled by -XX:-EnableJVMCI; deployment artifacts are not added"

// JVMCIEnabled reports whether args leave JVMCI enabled. It is on unless
// explicitly disabled.
func JVMCIEnabled(args []string) bool {
	return launch.XXFlag(args, "EnableJVMCI", true)
}

// commandArgs strips deployment artifacts from the class path passed to the
// executable in argv[0]. Command tasks run on an already deployed runtime.
func (s *Suite) commandArgs(argv []string) ([]string, error) {
	if len(argv) < 2 {
		return argv, nil
	}
	rest, err := s.env.FilterClasspath(argv[1:])
	if err != nil {
		return nil, err
	}
	return append([]string{argv[0]}, rest...), nil
}

func (s *Suite) environment(tc config.TaskConfig) (map[string]string, error) {
	env := make(map[string]string, len(s.taskEnv)+len(tc.Env))
	for k, v := range s.taskEnv {
		env[k] = v
	}
	for _, kv := range tc.Env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env entry %q: want KEY=VALUE", kv)
		}
		env[k] = v
	}
	return env, nil
}

func (s *Suite) dir(tc config.TaskConfig) string {
	if tc.Dir == "" {
		return s.baseDir
	}
	return resolve(s.baseDir, tc.Dir)
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

func (e *VerificationError) Error() string { return e.Classification.Reason }
