// SPDX-License-Identifier: MPL-2.0

package pathset

import (
	"os"
	"path/filepath"
	"strings"
)

// Set is a set of normalized paths.
type Set map[string]struct{}

// NewSet builds a Set from the given paths. Empty entries are ignored.
func NewSet(paths ...string) Set {
	s := make(Set, len(paths))
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts the normalized form of path. Empty paths are ignored.
func (s Set) Add(path string) {
	if n := Normalize(path); n != "" {
		s[n] = struct{}{}
	}
}

// Has reports whether the normalized form of path is in the set.
func (s Set) Has(path string) bool {
	_, ok := s[Normalize(path)]
	return ok
}

// Len returns the number of distinct paths in the set.
func (s Set) Len() int { return len(s) }

// Normalize returns the canonical form used for redundancy checks.
// Whitespace-only and empty paths normalize to "".
func Normalize(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	return filepath.Clean(path)
}

// Uniquify returns seq with later duplicates removed. The first occurrence of
// each value is kept, together with its original spelling and position
// relative to the other retained values.
func Uniquify(seq []string) []string {
	if seq == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(seq))
	out := make([]string, 0, len(seq))
	for _, e := range seq {
		key := Normalize(e)
		if key == "" {
			key = e
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// SubtractRedundant returns candidates minus every element present in
// redundant, preserving order. A nil or empty set returns a copy of candidates.
func SubtractRedundant(candidates []string, redundant Set) []string {
	if candidates == nil {
		return nil
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if redundant.Has(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Split splits a path-list value on the platform list separator and drops
// empty entries.
func Split(value string) []string {
	return SplitSep(value, os.PathListSeparator)
}

// SplitSep is Split with an explicit separator.
func SplitSep(value string, sep rune) []string {
	parts := strings.Split(value, string(sep))
	return RemoveEmpty(parts)
}

// Join joins entries with the platform list separator.
func Join(entries []string) string {
	return strings.Join(entries, string(os.PathListSeparator))
}

// RemoveEmpty returns entries without empty or whitespace-only values.
// The result is never nil.
func RemoveEmpty(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}
