// SPDX-License-Identifier: MPL-2.0

// Package watch reruns an action when files below a directory change.
//
// Events are filtered by doublestar patterns relative to the base directory
// and coalesced over a debounce window, so a build that rewrites many
// artifacts triggers a single rerun.
package watch
