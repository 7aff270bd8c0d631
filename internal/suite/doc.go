// SPDX-License-Identifier: MPL-2.0

// Package suite turns the configured task list into gate tasks.
//
// Every task launches a process and classifies it with verify.Verifier:
//
//	vm         the runtime launcher with assembled arguments; exit code only
//	benchmark  like vm, and the output must match success_pattern
//	script     an inline script in the embedded shell interpreter
//	command    an arbitrary host command
//
// Runtime arguments pass through launch.Environment, so deployment artifacts
// are always visible to the launched runtime and redundant user class path
// entries are dropped.
package suite
