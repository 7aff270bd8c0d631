// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/vgate/vgate/internal/cueutil"
	"github.com/vgate/vgate/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "vgate"
	// ConfigFileName is the name of the user config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalFileName is the project config file looked up in the base directory.
	LocalFileName = "vgate.cue"
	// EnvPrefix prefixes environment overrides (VGATE_GATE_FAIL_FAST).
	EnvPrefix = "VGATE"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the vgate configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions resolves the config file, merges it over the defaults and
// environment overrides, and validates the result. It returns the path of the
// file that was loaded, or "" when only defaults apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}
	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	v := newViper()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'vgate config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Task names and artifact IDs must be unique").
			WithSuggestion("Benchmark tasks need a success_pattern, script tasks a script").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, path, nil
}

// newViper returns a Viper instance seeded with defaults and bound to
// VGATE_-prefixed environment variables.
func newViper() *viper.Viper {
	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("deployment.model", defaults.Deployment.Model)
	v.SetDefault("deployment.base_modules", defaults.Deployment.BaseModules)
	v.SetDefault("deployment.class_path_property", defaults.Deployment.ClassPathProperty)
	v.SetDefault("artifacts", defaults.Artifacts)
	v.SetDefault("gate.name", defaults.Gate.Name)
	v.SetDefault("gate.fail_fast", defaults.Gate.FailFast)
	v.SetDefault("gate.default_timeout", defaults.Gate.DefaultTimeout)
	v.SetDefault("gate.extra_vm_args", defaults.Gate.ExtraVMArgs)
	v.SetDefault("gate.env_files", defaults.Gate.EnvFiles)
	v.SetDefault("gate.java", defaults.Gate.Java)
	v.SetDefault("tasks", defaults.Tasks)
	v.SetDefault("packaging.option_descriptors_service", defaults.Packaging.OptionDescriptorsService)
	v.SetDefault("packaging.exclude", defaults.Packaging.Exclude)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// resolvePath picks the config file: an explicit path must exist; otherwise
// the user config directory is tried before the project file in BaseDir.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'vgate config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}
	if p := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(p) {
		return p, nil
	}
	if p := filepath.Join(opts.BaseDir, LocalFileName); fileExists(p) {
		return p, nil
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges its
// contents into Viper. The file is decoded to a map rather than a struct so
// that Viper keeps defaults for absent fields and env overrides still apply.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	unified, err := cueutil.Unify(configSchema, data, "#Config",
		cueutil.WithFilename(path), cueutil.WithConcrete(false))
	if err != nil {
		return err
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to dir/config.cue
// unless the file already exists. An empty dir means ConfigDir().
func CreateDefaultConfig(dir string) (string, error) {
	if dir == "" {
		d, err := ConfigDir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE renders cfg as a CUE document accepted by the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// vgate configuration\n\n")

	sb.WriteString("deployment: {\n")
	fmt.Fprintf(&sb, "\tmodel: %q\n", cfg.Deployment.Model)
	if len(cfg.Deployment.BaseModules) > 0 {
		fmt.Fprintf(&sb, "\tbase_modules: %s\n", cueList(cfg.Deployment.BaseModules))
	}
	fmt.Fprintf(&sb, "\tclass_path_property: %q\n", cfg.Deployment.ClassPathProperty)
	sb.WriteString("}\n")

	if len(cfg.Artifacts) > 0 {
		sb.WriteString("\nartifacts: [\n")
		for _, a := range cfg.Artifacts {
			fmt.Fprintf(&sb, "\t{id: %q, path: %q", a.ID, a.Path)
			if a.Module != "" {
				fmt.Fprintf(&sb, ", module: %q", a.Module)
			}
			if len(a.OutputDirs) > 0 {
				fmt.Fprintf(&sb, ", output_dirs: %s", cueList(a.OutputDirs))
			}
			if len(a.Requires) > 0 {
				fmt.Fprintf(&sb, ", requires: %s", cueList(a.Requires))
			}
			if a.BootAppend {
				sb.WriteString(", boot_append: true")
			}
			if a.SourceDir != "" {
				fmt.Fprintf(&sb, ", source_dir: %q", a.SourceDir)
			}
			sb.WriteString("},\n")
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\ngate: {\n")
	fmt.Fprintf(&sb, "\tname: %q\n", cfg.Gate.Name)
	fmt.Fprintf(&sb, "\tfail_fast: %v\n", cfg.Gate.FailFast)
	fmt.Fprintf(&sb, "\tdefault_timeout: %q\n", cfg.Gate.DefaultTimeout.String())
	if len(cfg.Gate.ExtraVMArgs) > 0 {
		fmt.Fprintf(&sb, "\textra_vm_args: %s\n", cueList(cfg.Gate.ExtraVMArgs))
	}
	if len(cfg.Gate.EnvFiles) > 0 {
		fmt.Fprintf(&sb, "\tenv_files: %s\n", cueList(cfg.Gate.EnvFiles))
	}
	fmt.Fprintf(&sb, "\tjava: %q\n", cfg.Gate.Java)
	sb.WriteString("}\n")

	if len(cfg.Tasks) > 0 {
		sb.WriteString("\ntasks: [\n")
		for _, t := range cfg.Tasks {
			writeTaskCUE(&sb, t)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\npackaging: {\n")
	fmt.Fprintf(&sb, "\toption_descriptors_service: %q\n", cfg.Packaging.OptionDescriptorsService)
	if len(cfg.Packaging.Exclude) > 0 {
		fmt.Fprintf(&sb, "\texclude: %s\n", cueList(cfg.Packaging.Exclude))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func writeTaskCUE(sb *strings.Builder, t TaskConfig) {
	sb.WriteString("\t{\n")
	fmt.Fprintf(sb, "\t\tname: %q\n", t.Name)
	fmt.Fprintf(sb, "\t\ttags: %s\n", cueList(t.Tags))
	if t.Kind != "" {
		fmt.Fprintf(sb, "\t\tkind: %q\n", t.Kind)
	}
	if len(t.Args) > 0 {
		fmt.Fprintf(sb, "\t\targs: %s\n", cueList(t.Args))
	}
	if t.Script != "" {
		fmt.Fprintf(sb, "\t\tscript: %q\n", t.Script)
	}
	if t.SuccessPattern != "" {
		fmt.Fprintf(sb, "\t\tsuccess_pattern: %q\n", t.SuccessPattern)
	}
	if t.Timeout > 0 {
		fmt.Fprintf(sb, "\t\ttimeout: %q\n", t.Timeout.String())
	}
	if t.Dir != "" {
		fmt.Fprintf(sb, "\t\tdir: %q\n", t.Dir)
	}
	if len(t.Env) > 0 {
		fmt.Fprintf(sb, "\t\tenv: %s\n", cueList(t.Env))
	}
	sb.WriteString("\t},\n")
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
