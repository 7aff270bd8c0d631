// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vgate/vgate/internal/launch"
	"github.com/vgate/vgate/internal/registry"
)

const (
	// ModelFlat puts privileged artifacts on the boot class path.
	ModelFlat DeploymentModel = "flat"
	// ModelModular deploys artifacts as modules on the upgrade module path.
	ModelModular DeploymentModel = "modular"

	// TaskVM launches the runtime with assembled arguments and checks the exit code.
	TaskVM TaskKind = "vm"
	// TaskBenchmark launches the runtime and requires a success pattern in the output.
	TaskBenchmark TaskKind = "benchmark"
	// TaskScript runs an inline script in the virtual shell.
	TaskScript TaskKind = "script"
	// TaskCommand runs an arbitrary command through the host.
	TaskCommand TaskKind = "command"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultGateName names the gate when the configuration does not.
	DefaultGateName = "gate"
	// DefaultTaskTimeout bounds a task that sets no timeout of its own.
	DefaultTaskTimeout = 30 * time.Minute
	// DefaultJava is the runtime launcher looked up on PATH.
	DefaultJava = "java"
)

var (
	// ErrInvalidDeploymentModel is returned when a DeploymentModel value is not recognized.
	ErrInvalidDeploymentModel = errors.New("invalid deployment model")
	// ErrInvalidTaskKind is returned when a TaskKind value is not recognized.
	ErrInvalidTaskKind = errors.New("invalid task kind")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidTask is the sentinel error wrapped by InvalidTaskError.
	ErrInvalidTask = errors.New("invalid task")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// DeploymentModel selects how artifacts reach the runtime.
	DeploymentModel string

	// TaskKind selects how a configured task is executed.
	TaskKind string

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidValueError is returned when an enumerated value is not recognized.
	// It wraps the enum's sentinel for errors.Is() compatibility.
	InvalidValueError struct {
		Field    string
		Value    string
		sentinel error
	}

	// InvalidTaskError is returned when a TaskConfig has invalid fields.
	InvalidTaskError struct {
		Name        string
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It collects field-level validation errors from all sections.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Deployment DeploymentConfig `json:"deployment" mapstructure:"deployment"`
		Artifacts  []ArtifactConfig `json:"artifacts" mapstructure:"artifacts"`
		Gate       GateConfig       `json:"gate" mapstructure:"gate"`
		Tasks      []TaskConfig     `json:"tasks" mapstructure:"tasks"`
		Packaging  PackagingConfig  `json:"packaging" mapstructure:"packaging"`
		UI         UIConfig         `json:"ui" mapstructure:"ui"`
	}

	// DeploymentConfig chooses the deployment model.
	DeploymentConfig struct {
		Model DeploymentModel `json:"model" mapstructure:"model"`
		// BaseModules lists modules provided by the base runtime image; artifacts
		// whose module is listed here upgrade it rather than add to it.
		BaseModules []string `json:"base_modules" mapstructure:"base_modules"`
		// ClassPathProperty names the system property carrying privileged
		// class path entries in the flat model.
		ClassPathProperty string `json:"class_path_property" mapstructure:"class_path_property"`
	}

	// ArtifactConfig declares a deployable artifact.
	ArtifactConfig struct {
		ID         string   `json:"id" mapstructure:"id"`
		Path       string   `json:"path" mapstructure:"path"`
		Module     string   `json:"module" mapstructure:"module"`
		OutputDirs []string `json:"output_dirs" mapstructure:"output_dirs"`
		Requires   []string `json:"requires" mapstructure:"requires"`
		// BootAppend places the artifact on the boot class path instead of
		// deploying it as a privileged artifact.
		BootAppend bool   `json:"boot_append" mapstructure:"boot_append"`
		SourceDir  string `json:"source_dir" mapstructure:"source_dir"`
	}

	// GateConfig configures the gate run.
	GateConfig struct {
		Name           string        `json:"name" mapstructure:"name"`
		FailFast       bool          `json:"fail_fast" mapstructure:"fail_fast"`
		DefaultTimeout time.Duration `json:"default_timeout" mapstructure:"default_timeout"`
		// ExtraVMArgs are appended to every vm and benchmark task.
		ExtraVMArgs []string `json:"extra_vm_args" mapstructure:"extra_vm_args"`
		// EnvFiles are dotenv files loaded into every task's environment.
		EnvFiles []string `json:"env_files" mapstructure:"env_files"`
		Java     string   `json:"java" mapstructure:"java"`
	}

	// TaskConfig declares one gate task.
	TaskConfig struct {
		Name           string        `json:"name" mapstructure:"name"`
		Tags           []string      `json:"tags" mapstructure:"tags"`
		Kind           TaskKind      `json:"kind" mapstructure:"kind"`
		Args           []string      `json:"args" mapstructure:"args"`
		Script         string        `json:"script" mapstructure:"script"`
		SuccessPattern string        `json:"success_pattern" mapstructure:"success_pattern"`
		Timeout        time.Duration `json:"timeout" mapstructure:"timeout"`
		Dir            string        `json:"dir" mapstructure:"dir"`
		// Env holds KEY=VALUE entries. A list keeps key case, which Viper
		// would fold in a map.
		Env []string `json:"env" mapstructure:"env"`
	}

	// PackagingConfig configures archive packaging.
	PackagingConfig struct {
		OptionDescriptorsService string   `json:"option_descriptors_service" mapstructure:"option_descriptors_service"`
		Exclude                  []string `json:"exclude" mapstructure:"exclude"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Deployment: DeploymentConfig{
			Model:             ModelFlat,
			BaseModules:       []string{},
			ClassPathProperty: launch.DefaultClassPathProperty,
		},
		Artifacts: []ArtifactConfig{},
		Gate: GateConfig{
			Name:           DefaultGateName,
			DefaultTimeout: DefaultTaskTimeout,
			ExtraVMArgs:    []string{},
			EnvFiles:       []string{},
			Java:           DefaultJava,
		},
		Tasks: []TaskConfig{},
		Packaging: PackagingConfig{
			OptionDescriptorsService: registry.DefaultOptionDescriptorsService,
			Exclude:                  []string{},
		},
		UI: UIConfig{ColorScheme: ColorSchemeAuto},
	}
}

// IsValid returns whether the DeploymentModel is one of the defined models.
func (m DeploymentModel) IsValid() (bool, []error) {
	switch m {
	case ModelFlat, ModelModular:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "deployment.model", Value: string(m), sentinel: ErrInvalidDeploymentModel}}
	}
}

// IsValid returns whether the TaskKind is one of the defined kinds. The zero
// value is valid and means TaskVM.
func (k TaskKind) IsValid() (bool, []error) {
	switch k {
	case "", TaskVM, TaskBenchmark, TaskScript, TaskCommand:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "kind", Value: string(k), sentinel: ErrInvalidTaskKind}}
	}
}

// OrDefault returns TaskVM for the zero value.
func (k TaskKind) OrDefault() TaskKind {
	if k == "" {
		return TaskVM
	}
	return k
}

// IsValid returns whether the ColorScheme is one of the defined schemes.
func (c ColorScheme) IsValid() (bool, []error) {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "ui.color_scheme", Value: string(c), sentinel: ErrInvalidColorScheme}}
	}
}

// IsValid checks the fields of a task that the schema cannot relate to each
// other: benchmarks need a success pattern, scripts need a script and
// commands need arguments.
func (t TaskConfig) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if len(t.Tags) == 0 {
		errs = append(errs, errors.New("at least one tag is required"))
	}
	if valid, fieldErrs := t.Kind.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	switch t.Kind.OrDefault() {
	case TaskBenchmark:
		if t.SuccessPattern == "" {
			errs = append(errs, errors.New("benchmark tasks require success_pattern"))
		}
	case TaskScript:
		if strings.TrimSpace(t.Script) == "" {
			errs = append(errs, errors.New("script tasks require script"))
		}
	case TaskCommand:
		if len(t.Args) == 0 {
			errs = append(errs, errors.New("command tasks require args"))
		}
	}
	if t.Timeout < 0 {
		errs = append(errs, fmt.Errorf("negative timeout %s", t.Timeout))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidTaskError{Name: t.Name, FieldErrors: errs}}
	}
	return true, nil
}

// IsValid validates every section and the cross-entry constraints: task names
// and artifact IDs are unique.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Deployment.Model.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Gate.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("gate.default_timeout: negative duration %s", c.Gate.DefaultTimeout))
	}

	ids := make(map[string]int, len(c.Artifacts))
	for i, a := range c.Artifacts {
		if first, dup := ids[a.ID]; dup {
			errs = append(errs, fmt.Errorf("artifacts[%d]: duplicate id %q (same as artifacts[%d])", i, a.ID, first))
			continue
		}
		ids[a.ID] = i
	}

	names := make(map[string]int, len(c.Tasks))
	for i, t := range c.Tasks {
		if valid, fieldErrs := t.IsValid(); !valid {
			for _, err := range fieldErrs {
				errs = append(errs, fmt.Errorf("tasks[%d]: %w", i, err))
			}
		}
		if first, dup := names[t.Name]; dup {
			errs = append(errs, fmt.Errorf("tasks[%d]: duplicate name %q (same as tasks[%d])", i, t.Name, first))
			continue
		}
		names[t.Name] = i
	}

	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Field, e.sentinel, e.Value)
}

// Unwrap returns the sentinel of the enum for errors.Is() compatibility.
func (e *InvalidValueError) Unwrap() error { return e.sentinel }

func (e *InvalidTaskError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid task %q: %s", e.Name, strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidTask and the field errors.
func (e *InvalidTaskError) Unwrap() []error {
	return append([]error{ErrInvalidTask}, e.FieldErrors...)
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config:\n  " + strings.Join(msgs, "\n  ")
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
