// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors for the vgate CLI.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. An error may reference an Issue from the catalog, a
// Markdown page rendered through glamour when the CLI runs verbosely.
package issue
