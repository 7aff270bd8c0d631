// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/vgate/vgate/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand creates the vgate command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "vgate",
		Short: "Verification gate for compiler builds",
		Long: TitleStyle.Render("vgate") + SubtitleStyle.Render(" - verification gate for compiler builds") + `

vgate runs the tagged verification tasks of a build, launching the managed
runtime with the build's artifacts on its class or module path, and packages
the artifacts with merged service registrations.

` + SubtitleStyle.Render("Examples:") + `
  vgate gate                          Run every task
  vgate gate --tags bootstrap,test    Run tasks carrying either tag
  vgate launch -- -version            Show the assembled runtime command
  vgate package build/classes -o compiler.jar
  vgate config show                   Show the effective configuration`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/vgate/config.cue, then ./vgate.cue)")

	root.AddCommand(
		newGateCommand(app),
		newLaunchCommand(app),
		newPackageCommand(app),
		newImageCommand(app),
		newConfigCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code of the failure, if any.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var ae *issue.ActionableError
		if errors.As(err, &ae) && (ae.HasSuggestions() || app.verbose) {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("Details: ")+formatErrorForDisplay(err, app.verbose))
		}
		if app.verbose {
			if i := issue.IssueFor(err); i != nil {
				if out, rerr := i.Render("auto"); rerr == nil {
					fmt.Fprint(os.Stderr, out)
				}
			}
		}
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay renders ActionableErrors with their suggestions and,
// in verbose mode, the full error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
