// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// recordingParticipant claims entries with a given prefix and writes one
// extra entry when the archive closes.
type recordingParticipant struct {
	claimPrefix string
	extra       string
	addErr      error
	closeErr    error
	opened      map[string][]string
	seen        []string
	closed      int
}

func (p *recordingParticipant) Opened(services map[string][]string) { p.opened = services }

func (p *recordingParticipant) Add(name string, _ []byte) (bool, error) {
	p.seen = append(p.seen, name)
	if p.addErr != nil {
		return false, p.addErr
	}
	return p.claimPrefix != "" && strings.HasPrefix(name, p.claimPrefix), nil
}

func (p *recordingParticipant) Closing(w EntryWriter) error {
	p.closed++
	if p.closeErr != nil {
		return p.closeErr
	}
	if p.extra != "" {
		return w.WriteEntry(p.extra, []byte("extra\n"))
	}
	return nil
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer zr.Close()
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		out[f.Name] = string(b)
	}
	return out
}

func TestWriter_Lifecycle(t *testing.T) {
	t.Parallel()

	arc := filepath.Join(t.TempDir(), "out.jar")
	p := &recordingParticipant{claimPrefix: "META-INF/registry/", extra: "META-INF/extra"}

	w, err := Create(arc, p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.opened == nil {
		t.Fatal("Opened was not called")
	}
	p.opened["x.Service"] = []string{"x.Impl", "x.Impl", "x.Other"}

	if err := w.AddFile("org/x/A.class", []byte("A")); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if err := w.AddFile("/META-INF/registry/x.Service", []byte("x.Impl\n")); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if want := []string{"org/x/A.class", "META-INF/registry/x.Service"}; !slices.Equal(p.seen, want) {
		t.Errorf("participant saw %v, want %v", p.seen, want)
	}
	got := readZip(t, arc)
	want := map[string]string{
		"org/x/A.class":               "A",
		"META-INF/extra":              "extra\n",
		"META-INF/services/x.Service": "x.Impl\nx.Other\n",
	}
	if len(got) != len(want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
	for name, content := range want {
		if got[name] != content {
			t.Errorf("entry %s = %q, want %q", name, got[name], content)
		}
	}
	if p.closed != 1 {
		t.Errorf("Closing called %d times, want 1", p.closed)
	}
	if err := w.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
	if err := w.AddFile("late", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("AddFile() after close error = %v, want ErrClosed", err)
	}
}

func TestWriter_DuplicateEntry(t *testing.T) {
	t.Parallel()

	arc := filepath.Join(t.TempDir(), "dup.jar")
	w, err := Create(arc)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := w.AddFile("a.txt", []byte("1")); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	err = w.AddFile("a.txt", []byte("2"))
	var pkgErr *PackagingError
	if !errors.As(err, &pkgErr) || !errors.Is(err, ErrPackaging) {
		t.Fatalf("AddFile() error = %v, want *PackagingError", err)
	}
	if pkgErr.Entry != "a.txt" {
		t.Errorf("PackagingError.Entry = %q, want a.txt", pkgErr.Entry)
	}
	if _, statErr := os.Stat(arc); !os.IsNotExist(statErr) {
		t.Errorf("partial archive still exists: %v", statErr)
	}
}

func TestWriter_ServiceFilesWrittenOnce(t *testing.T) {
	t.Parallel()

	arc := filepath.Join(t.TempDir(), "services.jar")
	p := &recordingParticipant{claimPrefix: "META-INF/registry/", extra: "META-INF/services/X"}
	w, err := Create(arc, p)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := w.AddFile("META-INF/services/X", []byte("P0\n\n  P1  # trailing comment\n")); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if err := w.AddFile("META-INF/registry/X", []byte("P1\n")); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if err := w.WriteEntry("META-INF/services/X", []byte("P2\n")); err != nil {
		t.Fatalf("WriteEntry() error = %v", err)
	}
	w.DeclareService("X", "P0", "P3")
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := readZip(t, arc)
	if want := "P0\nP1\nP2\nextra\nP3\n"; got["META-INF/services/X"] != want {
		t.Errorf("META-INF/services/X = %q, want %q", got["META-INF/services/X"], want)
	}
	if want := []string{"META-INF/services/X"}; !slices.Equal(w.Entries(), want) {
		t.Errorf("Entries() = %v, want %v", w.Entries(), want)
	}
}

func TestWriter_InvalidServiceFile(t *testing.T) {
	t.Parallel()

	arc := filepath.Join(t.TempDir(), "bad.jar")
	w, err := Create(arc)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err = w.AddFile("META-INF/services/X", []byte{0xff, 0xfe, '\n'})
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("AddFile() error = %v, want ErrPackaging", err)
	}
	if _, statErr := os.Stat(arc); !os.IsNotExist(statErr) {
		t.Errorf("partial archive still exists: %v", statErr)
	}
}

func TestWriter_ParticipantErrorsAbort(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name string
		p    *recordingParticipant
		add  bool
	}{
		{name: "add", p: &recordingParticipant{addErr: boom}, add: true},
		{name: "closing", p: &recordingParticipant{closeErr: boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			arc := filepath.Join(t.TempDir(), "x.jar")
			w, err := Create(arc, tt.p)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			err = w.AddFile("a.txt", []byte("a"))
			if !tt.add {
				if err != nil {
					t.Fatalf("AddFile() error = %v", err)
				}
				err = w.Close()
			}
			if !errors.Is(err, boom) {
				t.Fatalf("error = %v, want boom", err)
			}
			if _, statErr := os.Stat(arc); !os.IsNotExist(statErr) {
				t.Errorf("partial archive still exists: %v", statErr)
			}
		})
	}
}

func TestWriter_AddDirWithExcludes(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	files := map[string]string{
		"org/x/A.class":       "A",
		"org/x/A.java":        "source",
		"org/x/inner/B.class": "B",
		"notes/readme.txt":    "readme",
	}
	for name, content := range files {
		p := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	arc := filepath.Join(t.TempDir(), "classes.jar")
	w, err := Create(arc)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := w.Exclude("**/*.java", "classes/notes/**"); err != nil {
		t.Fatalf("Exclude() error = %v", err)
	}
	if err := w.AddDir(src, "classes"); err != nil {
		t.Fatalf("AddDir() error = %v", err)
	}
	want := []string{"classes/org/x/A.class", "classes/org/x/inner/B.class"}
	if got := w.Entries(); !slices.Equal(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := readZip(t, arc)["classes/org/x/inner/B.class"]; got != "B" {
		t.Errorf("B.class content = %q, want B", got)
	}
}

func TestWriter_InvalidExclude(t *testing.T) {
	t.Parallel()

	w, err := Create(filepath.Join(t.TempDir(), "x.jar"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer func() { _ = w.Abort() }()
	if err := w.Exclude("[unclosed"); err == nil {
		t.Error("Exclude() error = nil, want error")
	}
}

func makeTree(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "bin", "java"), []byte("#!/bin/sh\n"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "release"), []byte("SDK=abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return src
}

func TestCreateTree_Tar(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"image.tar", "image.tgz", "image.tar.gz"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			src := makeTree(t)
			arc := filepath.Join(t.TempDir(), name)
			if err := CreateTree(src, arc, "jdk"); err != nil {
				t.Fatalf("CreateTree() error = %v", err)
			}

			f, err := os.Open(arc)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			var r io.Reader = f
			if !strings.HasSuffix(name, ".tar") {
				gz, err := gzip.NewReader(f)
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				defer gz.Close()
				r = gz
			}

			modes := map[string]int64{}
			tr := tar.NewReader(r)
			for {
				hdr, err := tr.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("tar next: %v", err)
				}
				modes[hdr.Name] = hdr.Mode
			}
			for _, entry := range []string{"jdk/bin/", "jdk/bin/java", "jdk/release"} {
				if _, ok := modes[entry]; !ok {
					t.Errorf("missing entry %s in %v", entry, modes)
				}
			}
			if modes["jdk/release"]&0o044 != 0o044 {
				t.Errorf("release mode = %o, want group/other read", modes["jdk/release"])
			}
			if modes["jdk/bin/java"]&0o100 == 0 {
				t.Errorf("java mode = %o, want owner exec kept", modes["jdk/bin/java"])
			}
		})
	}
}

func TestCreateTree_Zip(t *testing.T) {
	t.Parallel()

	src := makeTree(t)
	arc := filepath.Join(t.TempDir(), "image.zip")
	if err := CreateTree(src, arc, ""); err != nil {
		t.Fatalf("CreateTree() error = %v", err)
	}
	got := readZip(t, arc)
	if got["release"] != "SDK=abc\n" {
		t.Errorf("release = %q, want SDK=abc", got["release"])
	}
	if _, ok := got["bin/"]; !ok {
		t.Errorf("missing directory entry bin/ in %v", got)
	}
}

func TestCreateTree_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	arc := filepath.Join(t.TempDir(), "image.rar")
	err := CreateTree(t.TempDir(), arc, "")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("CreateTree() error = %v, want ErrUnsupportedFormat", err)
	}
	if _, statErr := os.Stat(arc); !os.IsNotExist(statErr) {
		t.Errorf("archive created for unsupported format")
	}
}
