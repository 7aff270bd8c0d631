// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// readable is added to every archived mode so extracted trees are readable
// by group and others.
const readable fs.FileMode = 0o044

type (
	// Format is a distribution archive format.
	Format int

	treeEntry struct {
		name string
		path string
		info fs.FileInfo
	}
)

const (
	FormatZip Format = iota
	FormatTar
	FormatTarGz
)

// FormatFor derives the archive format from the file name of arcPath.
func FormatFor(arcPath string) (Format, error) {
	lower := strings.ToLower(arcPath)
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".jar"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".tgz"), strings.HasSuffix(lower, ".tar.gz"):
		return FormatTarGz, nil
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(arcPath))
}

// CreateTree archives the directory tree at srcDir into arcPath. Entry names
// are relative to srcDir and joined to prefix. The format follows the file
// extension of arcPath.
func CreateTree(srcDir, arcPath, prefix string) (err error) {
	format, err := FormatFor(arcPath)
	if err != nil {
		return err
	}
	entries, err := collectTree(srcDir, prefix)
	if err != nil {
		return err
	}

	f, err := os.Create(arcPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(arcPath)
		}
	}()

	switch format {
	case FormatZip:
		return writeZipTree(f, entries)
	case FormatTarGz:
		gz := gzip.NewWriter(f)
		if err := writeTarTree(gz, entries); err != nil {
			return err
		}
		return gz.Close()
	default:
		return writeTarTree(f, entries)
	}
}

func collectTree(srcDir, prefix string) ([]treeEntry, error) {
	var entries []treeEntry
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, treeEntry{name: path.Join(prefix, filepath.ToSlash(rel)), path: p, info: info})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", srcDir, err)
	}
	return entries, nil
}

func writeZipTree(w io.Writer, entries []treeEntry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		hdr, err := zip.FileInfoHeader(e.info)
		if err != nil {
			return err
		}
		hdr.Name = e.name
		hdr.SetMode(e.info.Mode() | readable)
		if e.info.IsDir() {
			hdr.Name += "/"
			if _, err := zw.CreateHeader(hdr); err != nil {
				return err
			}
			continue
		}
		hdr.Method = zip.Deflate
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if e.info.Mode()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(e.path)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(fw, target); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(fw, e.path); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeTarTree(w io.Writer, entries []treeEntry) error {
	tw := tar.NewWriter(w)
	for _, e := range entries {
		var link string
		if e.info.Mode()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(e.path)
			if err != nil {
				return err
			}
			link = target
		}
		hdr, err := tar.FileInfoHeader(e.info, link)
		if err != nil {
			return err
		}
		hdr.Name = e.name
		if e.info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Mode |= int64(readable)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if e.info.Mode().IsRegular() {
			if err := copyFile(tw, e.path); err != nil {
				return err
			}
		}
	}
	return tw.Close()
}

func copyFile(w io.Writer, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
