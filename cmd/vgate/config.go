// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vgate/vgate/internal/config"
	"github.com/vgate/vgate/internal/suite"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration",
	}
	cmd.AddCommand(
		newConfigShowCommand(app),
		newConfigPathCommand(app),
		newConfigInitCommand(app),
	)
	return cmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, path, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: app.configPath, BaseDir: cwd})
			if err != nil {
				return configError(err, app.configPath)
			}
			if path == "" {
				path = "(defaults)"
			}
			fmt.Fprintln(app.stdout, SubtitleStyle.Render("// source: "+path))
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	}
}

func newConfigPathCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user configuration directory",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	}
}

func newConfigInitCommand(app *App) *cobra.Command {
	var (
		dir    string
		dacapo string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a configuration file with default values. With --dir the file is
written as vgate.cue into that directory; otherwise it goes to the user
configuration directory. An existing file is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := initConfig(dir, dacapo)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("configuration: ")+CmdStyle.Render(path))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "write vgate.cue into this directory")
	cmd.Flags().StringVar(&dacapo, "dacapo", "", "add the standard DaCapo benchmark tasks for this jar")
	return cmd
}

func initConfig(dir, dacapo string) (string, error) {
	if dir == "" && dacapo == "" {
		return config.CreateDefaultConfig("")
	}
	cfg := config.DefaultConfig()
	if dacapo != "" {
		cfg.Tasks = append(cfg.Tasks, suite.DefaultDaCapoTasks(dacapo)...)
	}
	path := filepath.Join(dir, config.LocalFileName)
	if dir == "" {
		d, err := config.ConfigDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(d, config.ConfigFileName+"."+config.ConfigFileExt)
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(config.GenerateCUE(cfg)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
