// SPDX-License-Identifier: MPL-2.0

// Package pathset provides order-preserving operations over path lists such as
// class paths and module paths.
//
// All functions are pure: inputs are never modified and results are freshly
// allocated slices. Redundancy is decided on normalized paths (see Normalize),
// so "lib/a.jar" and "lib/./a.jar" are the same entry.
package pathset
