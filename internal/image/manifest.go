// SPDX-License-Identifier: MPL-2.0

package image

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ManifestFile is the name of the release manifest inside an image.
const ManifestFile = "release"

// ManifestEntry is one name=revision line of the release manifest.
type ManifestEntry struct {
	Name     string
	Revision string
}

func (e ManifestEntry) String() string { return e.Name + "=" + e.Revision }

// AppendManifest appends entries to the manifest at path, creating it if
// needed. Existing lines are never rewritten.
func AppendManifest(path string, entries []ManifestEntry) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	w := bufio.NewWriter(f)
	if needsNewline(path) {
		_ = w.WriteByte('\n')
	}
	for _, e := range entries {
		fmt.Fprintln(w, e.String())
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	return f.Close()
}

// needsNewline reports whether the file at path is non-empty and does not
// end in a newline.
func needsNewline(path string) bool {
	b, err := os.ReadFile(path)
	return err == nil && len(b) > 0 && b[len(b)-1] != '\n'
}

// ReadManifest parses a release manifest. Blank lines and lines without '='
// are skipped; surrounding double quotes are removed from values.
func ReadManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var entries []ManifestEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok || name == "" {
			continue
		}
		entries = append(entries, ManifestEntry{Name: name, Revision: strings.Trim(value, `"`)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return entries, nil
}
