// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vgate/vgate/internal/config"
	"github.com/vgate/vgate/internal/image"
	"github.com/vgate/vgate/internal/issue"
)

type imageFlags struct {
	base    string
	archive string
	force   bool
}

func newImageCommand(app *App) *cobra.Command {
	var flags imageFlags
	cmd := &cobra.Command{
		Use:   "image <dest> --base <dir>",
		Short: "Assemble a runtime image with the configured artifacts",
		Long: `Copy a base runtime tree to <dest> and install the configured artifacts
into it. Every installed artifact is recorded with the source revision it was
built from in the image's release file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImage(cmd, app, flags, args[0])
		},
	}
	cmd.Flags().StringVar(&flags.base, "base", "", "base runtime directory (required)")
	cmd.Flags().StringVar(&flags.archive, "archive", "", "also pack the image into this archive (.zip, .tar or .tgz)")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "replace an existing destination")
	_ = cmd.MarkFlagRequired("base")
	return cmd
}

func runImage(cmd *cobra.Command, app *App, flags imageFlags, dest string) error {
	ctx := cmd.Context()
	l, err := app.load(ctx)
	if err != nil {
		return configError(err, app.configPath)
	}

	opts := image.Options{
		BaseDir:   flags.base,
		Dest:      dest,
		Force:     flags.force,
		Archive:   flags.archive,
		Revisions: app.Revisions,
		Logger:    app.logger().WithPrefix("image"),
	}
	for _, a := range l.cfg.Artifacts {
		ia := imageArtifact(a, l.baseDir)
		if a.BootAppend {
			opts.BootAppends = append(opts.BootAppends, ia)
		} else {
			opts.Artifacts = append(opts.Artifacts, ia)
		}
	}

	img, err := image.Assemble(ctx, opts)
	if err != nil {
		ectx := issue.NewErrorContext().WithOperation("assemble image").WithResource(dest).Wrap(err)
		if errors.Is(err, image.ErrDestinationExists) {
			ectx.WithIssue(issue.DestinationExistsId).WithSuggestion("pass --force to replace it")
		}
		return ectx.BuildError()
	}

	fmt.Fprintln(app.stdout, SuccessStyle.Render("image ready: ")+CmdStyle.Render(img.Dir))
	for _, e := range img.Manifest {
		fmt.Fprintf(app.stdout, "  %s\n", e)
	}
	if img.Archive != "" {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("archive: ")+img.Archive)
	}
	return nil
}

func imageArtifact(a config.ArtifactConfig, baseDir string) image.Artifact {
	ia := image.Artifact{Name: a.ID, Path: resolvePath(baseDir, a.Path)}
	if a.SourceDir != "" {
		ia.SourceDir = resolvePath(baseDir, a.SourceDir)
	} else {
		ia.SourceDir = baseDir
	}
	return ia
}
