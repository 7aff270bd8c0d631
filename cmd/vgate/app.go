// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/vgate/vgate/internal/config"
	"github.com/vgate/vgate/internal/image"
	"github.com/vgate/vgate/internal/runtime"
	"github.com/vgate/vgate/internal/suite"
)

type (
	// App wires CLI services and shared dependencies. Cobra handlers receive
	// an App and never reach for package-level state.
	App struct {
		Config       config.Provider
		Runner       runtime.Runner
		ScriptRunner runtime.Runner
		Revisions    image.RevisionResolver
		stdout       io.Writer
		stderr       io.Writer

		verbose    bool
		configPath string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config       config.Provider
		Runner       runtime.Runner
		ScriptRunner runtime.Runner
		Revisions    image.RevisionResolver
		Stdout       io.Writer
		Stderr       io.Writer
	}

	// loaded is a configuration together with the directory its relative
	// paths resolve against.
	loaded struct {
		cfg     *config.Config
		baseDir string
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:       deps.Config,
		Runner:       deps.Runner,
		ScriptRunner: deps.ScriptRunner,
		Revisions:    deps.Revisions,
		stdout:       deps.Stdout,
		stderr:       deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Runner == nil {
		app.Runner = runtime.NewNativeRunner()
	}
	if app.ScriptRunner == nil {
		app.ScriptRunner = runtime.NewVirtualRunner()
	}
	if app.Revisions == nil {
		app.Revisions = image.GitRevisions{}
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// logger returns the root logger writing to stderr.
func (a *App) logger() *log.Logger {
	level := log.InfoLevel
	if a.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{Prefix: "vgate", Level: level})
}

// load reads the configuration. Relative paths resolve against the config
// file's directory, or the working directory when only defaults apply.
func (a *App) load(ctx context.Context) (*loaded, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath, BaseDir: cwd})
	if err != nil {
		return nil, err
	}
	if cfg.UI.Verbose {
		a.verbose = true
	}
	base := cwd
	if path != "" {
		if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
			base = abs
		}
	}
	return &loaded{cfg: cfg, baseDir: base}, nil
}

// suite builds the task suite for l.
func (a *App) suite(l *loaded, extraVMArgs []string) (*suite.Suite, error) {
	return suite.New(l.cfg, l.baseDir,
		suite.WithRunner(a.Runner),
		suite.WithScriptRunner(a.ScriptRunner),
		suite.WithExtraVMArgs(extraVMArgs...),
		suite.WithLogger(a.logger().WithPrefix("suite")),
	)
}

// resolvePath makes p absolute against baseDir.
func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
