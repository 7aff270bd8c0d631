// SPDX-License-Identifier: MPL-2.0

// Package verify runs benchmark and test processes and classifies their
// outcome from exit status, timeout and a success pattern in the merged
// output. Crash logs announced in the output are salvaged into the log and
// removed.
package verify
