// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vgate/vgate/internal/archive"
	"github.com/vgate/vgate/internal/issue"
	"github.com/vgate/vgate/internal/registry"
)

type packageFlags struct {
	output   string
	test     bool
	excludes []string
	services []string
}

func newPackageCommand(app *App) *cobra.Command {
	var flags packageFlags
	cmd := &cobra.Command{
		Use:   "package <dir>... -o <archive>",
		Short: "Package build output into an archive",
		Long: `Package one or more build output directories into a jar archive.

Service registration entries found in the inputs are merged into
META-INF/services declarations. With --test the raw entries are kept.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackage(cmd, app, flags, args)
		},
	}
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "archive to create (required)")
	cmd.Flags().BoolVar(&flags.test, "test", false, "keep registration entries unmodified")
	cmd.Flags().StringArrayVar(&flags.excludes, "exclude", nil, "skip entries matching this pattern (may be repeated)")
	cmd.Flags().StringArrayVar(&flags.services, "service", nil, "declare a service provider as interface=provider (may be repeated)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runPackage(cmd *cobra.Command, app *App, flags packageFlags, dirs []string) error {
	l, err := app.load(cmd.Context())
	if err != nil {
		return configError(err, app.configPath)
	}
	logger := app.logger().WithPrefix("package")

	agg := registry.New(
		registry.WithTestMode(flags.test),
		registry.WithOptionDescriptorsService(l.cfg.Packaging.OptionDescriptorsService),
		registry.WithLogger(logger),
	)
	w, err := archive.Create(flags.output, agg)
	if err != nil {
		return packagingError(err, flags.output)
	}
	w.SetLogger(logger)

	fill := func() error {
		if err := w.Exclude(append(l.cfg.Packaging.Exclude, flags.excludes...)...); err != nil {
			return err
		}
		for _, decl := range flags.services {
			service, provider, ok := strings.Cut(decl, "=")
			if !ok || service == "" || provider == "" {
				return fmt.Errorf("invalid --service %q: want interface=provider", decl)
			}
			w.DeclareService(service, provider)
		}
		for _, dir := range dirs {
			if err := w.AddDir(dir, ""); err != nil {
				return err
			}
		}
		return nil
	}
	if err := fill(); err != nil {
		if aerr := w.Abort(); aerr != nil && !errors.Is(aerr, archive.ErrClosed) {
			logger.Warn("abort failed", "error", aerr)
		}
		return packagingError(err, flags.output)
	}
	for k, providers := range agg.Registrations() {
		logger.Debug("merged registrations", "service", k.Service, "version", k.Version, "providers", len(providers))
	}
	// Close removes the partial archive itself on failure.
	if err := w.Close(); err != nil {
		return packagingError(err, flags.output)
	}
	logger.Info("created archive", "path", flags.output, "entries", len(w.Entries()))
	return nil
}

func packagingError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("create archive").
		WithResource(path).
		WithIssue(issue.PackagingFailedId).
		Wrap(err).
		BuildError()
}
