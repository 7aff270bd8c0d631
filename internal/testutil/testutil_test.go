// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStepClock(t *testing.T) {
	t.Parallel()

	c := NewStepClock(time.Time{}, time.Second)
	first := c.Now()
	second := c.Now()
	if d := second.Sub(first); d != time.Second {
		t.Errorf("step = %s, want 1s", d)
	}
	if c.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", c.Calls())
	}
}

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	WriteFiles(t, root, map[string]string{
		"a.txt":                         "a",
		"META-INF/services/example.Spi": "impl\n",
	})
	if got := ReadFile(t, filepath.Join(root, "META-INF", "services", "example.Spi")); got != "impl\n" {
		t.Errorf("ReadFile() = %q", got)
	}
}

// Changes process-wide state, so not parallel.
func TestMustSetenv(t *testing.T) {
	const key = "VGATE_TESTUTIL_MARKER"
	restore := MustSetenv(t, key, "1")
	if os.Getenv(key) != "1" {
		t.Fatalf("%s not set", key)
	}
	restore()
	if _, ok := os.LookupEnv(key); ok {
		t.Errorf("%s still set after restore", key)
	}
}
