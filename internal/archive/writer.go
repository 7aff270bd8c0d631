// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"
	"golang.org/x/exp/maps"
)

// ServicesDir is where unversioned service declarations are written.
const ServicesDir = "META-INF/services/"

var serviceEntryRE = regexp.MustCompile(`^(?:META-INF/versions/[1-9][0-9]*/)?META-INF/services/[^/]+$`)

const (
	stateOpen sessionState = iota
	stateClosing
	stateClosed
)

type (
	// EntryWriter writes raw entries into an archive.
	EntryWriter interface {
		WriteEntry(name string, content []byte) error
	}

	// Participant observes an archive session.
	Participant interface {
		// Opened is called once when the archive is created. services maps a
		// service interface to its providers; the writer emits it on close.
		Opened(services map[string][]string)
		// Add is called for every entry. Returning true claims the entry,
		// which is then not written as-is.
		Add(name string, content []byte) (bool, error)
		// Closing is called once before the archive is finalized.
		Closing(w EntryWriter) error
	}

	sessionState int

	// Writer is one archive-building session.
	Writer struct {
		path         string
		file         *os.File
		zw           *zip.Writer
		participants []Participant
		services     map[string][]string
		pending      map[string][]string
		written      map[string]bool
		excludes     []string
		modified     time.Time
		state        sessionState
		logger       *log.Logger
	}
)

// Create starts a new archive at path. Each participant's Opened hook is
// called before Create returns.
func Create(path string, participants ...Participant) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	w := &Writer{
		path:         path,
		file:         f,
		zw:           zip.NewWriter(f),
		participants: participants,
		services:     make(map[string][]string),
		pending:      make(map[string][]string),
		written:      make(map[string]bool),
		modified:     time.Now(),
		logger:       log.Default().WithPrefix("archive"),
	}
	for _, p := range participants {
		p.Opened(w.services)
	}
	return w, nil
}

// SetLogger replaces the session logger.
func (w *Writer) SetLogger(logger *log.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// Exclude skips entries whose name matches any of the doublestar patterns.
func (w *Writer) Exclude(patterns ...string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	w.excludes = append(w.excludes, patterns...)
	return nil
}

// DeclareService records providers for service. They are emitted on close
// under META-INF/services.
func (w *Writer) DeclareService(service string, providers ...string) {
	w.services[service] = append(w.services[service], providers...)
}

// Path returns the archive file path.
func (w *Writer) Path() string { return w.path }

// AddFile offers an entry to the participants and writes it unless one of
// them claims it. A participant error aborts the session. Service files are
// merged and written once on close.
func (w *Writer) AddFile(name string, content []byte) error {
	if w.state != stateOpen {
		return ErrClosed
	}
	name = entryName(name)
	if w.excluded(name) {
		w.logger.Debug("excluded entry", "name", name)
		return nil
	}
	for _, p := range w.participants {
		claimed, err := p.Add(name, content)
		if err != nil {
			return w.fail(err)
		}
		if claimed {
			return nil
		}
	}
	if err := w.WriteEntry(name, content); err != nil {
		return w.fail(err)
	}
	return nil
}

// AddDir adds every regular file below srcDir. Entry names are the paths
// relative to srcDir, joined to prefix.
func (w *Writer) AddDir(srcDir, prefix string) error {
	return filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return w.fail(err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return w.fail(err)
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return w.fail(err)
		}
		return w.AddFile(path.Join(prefix, filepath.ToSlash(rel)), content)
	})
}

// WriteEntry writes an entry without consulting the participants. Writing
// the same name twice is a PackagingError, except for service files, whose
// providers are merged into the single entry written on close.
func (w *Writer) WriteEntry(name string, content []byte) error {
	if w.state == stateClosed {
		return ErrClosed
	}
	name = entryName(name)
	if serviceEntryRE.MatchString(name) {
		providers, err := ParseLines(name, content)
		if err != nil {
			return err
		}
		w.pending[name] = append(w.pending[name], providers...)
		return nil
	}
	return w.write(name, content)
}

func (w *Writer) write(name string, content []byte) error {
	if w.written[name] {
		return &PackagingError{Entry: name, Reason: "duplicate entry"}
	}
	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.modified,
	})
	if err != nil {
		return &PackagingError{Entry: name, Reason: "create entry", Cause: err}
	}
	if _, err := fw.Write(content); err != nil {
		return &PackagingError{Entry: name, Reason: "write entry", Cause: err}
	}
	w.written[name] = true
	return nil
}

// Close lets participants write their entries, emits declared services and
// finalizes the archive. On error the partial file is removed.
func (w *Writer) Close() error {
	if w.state != stateOpen {
		return ErrClosed
	}
	w.state = stateClosing
	for _, p := range w.participants {
		if err := p.Closing(w); err != nil {
			return w.fail(err)
		}
	}

	for service, providers := range w.services {
		w.pending[ServicesDir+service] = append(w.pending[ServicesDir+service], providers...)
	}
	names := maps.Keys(w.pending)
	slices.Sort(names)
	for _, name := range names {
		providers := dedupe(w.pending[name])
		if len(providers) == 0 {
			continue
		}
		content := strings.Join(providers, "\n") + "\n"
		if err := w.write(name, []byte(content)); err != nil {
			return w.fail(err)
		}
	}

	w.state = stateClosed
	if err := w.zw.Close(); err != nil {
		return w.remove(err)
	}
	if err := w.file.Close(); err != nil {
		return w.remove(err)
	}
	return nil
}

// Abort discards the session and removes the partial archive.
func (w *Writer) Abort() error {
	if w.state == stateClosed {
		return ErrClosed
	}
	return w.fail(nil)
}

// Entries returns the names written so far, sorted.
func (w *Writer) Entries() []string {
	names := make([]string, 0, len(w.written))
	for name := range w.written {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (w *Writer) fail(err error) error {
	if w.state == stateClosed {
		return err
	}
	w.state = stateClosed
	_ = w.zw.Close()
	_ = w.file.Close()
	return w.remove(err)
}

func (w *Writer) remove(err error) error {
	if rmErr := os.Remove(w.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		w.logger.Warn("failed to remove partial archive", "path", w.path, "error", rmErr)
	}
	return err
}

func (w *Writer) excluded(name string) bool {
	for _, p := range w.excludes {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// ParseLines returns the trimmed, non-blank lines of a declaration entry.
// Text after '#' is a comment. Content must be valid UTF-8.
func ParseLines(name string, content []byte) ([]string, error) {
	if !utf8.Valid(content) {
		return nil, &PackagingError{Entry: name, Reason: "content is not valid UTF-8"}
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line, _, _ := strings.Cut(sc.Text(), "#")
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &PackagingError{Entry: name, Reason: "read content", Cause: err}
	}
	return lines, nil
}

func entryName(name string) string {
	return strings.TrimPrefix(filepath.ToSlash(name), "/")
}

// dedupe removes later duplicates, keeping first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
