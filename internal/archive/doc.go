// SPDX-License-Identifier: MPL-2.0

// Package archive writes jar-style zip archives and plain distribution
// archives.
//
// A Writer notifies its participants of every entry before writing it. A
// participant may claim an entry, in which case the entry is not written
// as-is, and may write additional entries when the archive closes. Service
// declarations accumulated in the writer's services map are emitted last as
// META-INF/services entries.
package archive
