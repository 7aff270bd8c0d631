// SPDX-License-Identifier: MPL-2.0

// Package gate runs a named, ordered list of tagged verification tasks.
//
// Tasks run sequentially in declaration order. A tag filter selects which of
// them run; the rest are reported as skipped without ever entering the
// running state. Each task moves Pending -> Running -> {Passed, Failed,
// Skipped}, and a failure inside one task never aborts the gate unless
// fail-fast is requested.
package gate
