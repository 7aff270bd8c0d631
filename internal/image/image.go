// SPDX-License-Identifier: MPL-2.0

package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/vgate/vgate/internal/archive"
)

const (
	// ArtifactDir is where deployment artifacts are installed.
	ArtifactDir = "lib/vgate"
	// BootDir is where boot class path artifacts are installed.
	BootDir = "lib/boot"
)

// ErrDestinationExists is returned when the destination exists and Force is not set.
var ErrDestinationExists = errors.New("image destination already exists")

type (
	// Artifact is a file installed into the image.
	Artifact struct {
		// Name is recorded in the manifest.
		Name string
		// Path is the file to install.
		Path string
		// SourceDir is any directory inside the repository the artifact was
		// built from.
		SourceDir string
	}

	// Options configure Assemble.
	Options struct {
		// BaseDir is the base runtime tree to copy.
		BaseDir string
		// Dest is the image directory to create.
		Dest string
		// Force replaces an existing Dest.
		Force       bool
		Artifacts   []Artifact
		BootAppends []Artifact
		// Archive, when set, is an archive path (.zip, .tar, .tgz) the
		// finished image is packed into.
		Archive   string
		Revisions RevisionResolver
		Logger    *log.Logger
	}

	// Image describes an assembled image.
	Image struct {
		Dir      string
		Manifest []ManifestEntry
		Archive  string
	}
)

// Assemble builds the image described by opts.
func Assemble(ctx context.Context, opts Options) (*Image, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("image")
	}
	resolver := opts.Revisions
	if resolver == nil {
		resolver = GitRevisions{}
	}

	if err := prepareDest(opts.Dest, opts.Force); err != nil {
		return nil, err
	}
	logger.Info("copying base runtime", "from", opts.BaseDir, "to", opts.Dest)
	if err := copyTree(ctx, opts.BaseDir, opts.Dest); err != nil {
		return nil, err
	}

	var entries []ManifestEntry
	install := func(dir string, artifacts []Artifact) error {
		target := filepath.Join(opts.Dest, filepath.FromSlash(dir))
		if err := os.MkdirAll(target, 0o755); err != nil {
			return err
		}
		for _, a := range artifacts {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(target, filepath.Base(a.Path))
			if err := copyFile(a.Path, dst, 0o644); err != nil {
				return fmt.Errorf("install %s: %w", a.Name, err)
			}
			rev, err := resolver.Revision(a)
			if err != nil {
				logger.Warn("revision unavailable", "artifact", a.Name, "error", err)
				rev = UnknownRevision
			}
			entries = append(entries, ManifestEntry{Name: a.Name, Revision: rev})
			logger.Debug("installed", "artifact", a.Name, "path", dst, "revision", rev)
		}
		return nil
	}
	if err := install(BootDir, opts.BootAppends); err != nil {
		return nil, err
	}
	if err := install(ArtifactDir, opts.Artifacts); err != nil {
		return nil, err
	}

	if err := AppendManifest(filepath.Join(opts.Dest, ManifestFile), entries); err != nil {
		return nil, err
	}

	img := &Image{Dir: opts.Dest, Manifest: entries}
	if opts.Archive != "" {
		logger.Info("archiving image", "path", opts.Archive)
		if err := archive.CreateTree(opts.Dest, opts.Archive, filepath.Base(opts.Dest)); err != nil {
			return nil, err
		}
		img.Archive = opts.Archive
	}
	return img, nil
}

func prepareDest(dest string, force bool) error {
	if dest == "" {
		return errors.New("image destination not set")
	}
	if _, err := os.Lstat(dest); err == nil {
		if !force {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
		}
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("remove existing image: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// copyTree copies src to dst preserving file modes and symlinks.
func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(p, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
