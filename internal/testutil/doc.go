// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers that fail the test on error instead
// of returning it: environment and working directory changes with restoring
// cleanups, file fixtures, and a deterministic clock for duration assertions.
package testutil
