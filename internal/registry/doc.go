// SPDX-License-Identifier: MPL-2.0

// Package registry consolidates service provider registrations discovered
// while an archive is written.
//
// Build outputs declare registrations in small per-unit files. An Aggregator
// intercepts those entries, merges them per (service, version) pair, and
// writes exactly one registry entry per pair when the archive closes. Each
// archive session needs its own Aggregator.
package registry
