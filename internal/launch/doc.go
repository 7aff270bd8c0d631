// SPDX-License-Identifier: MPL-2.0

// Package launch assembles the argument vector used to start the managed
// runtime under test.
//
// Deployment artifacts are privileged: they are always made visible to the
// launched runtime, and any user-supplied class path entry that names one of
// them is removed so each class is loaded from exactly one location.
//
// Two deployment models exist. Under Flat, artifacts are injected through a
// class-path-append system property. Under Modular, artifacts are merged into
// --module-path (new modules) or --upgrade-module-path (modules that replace
// one shipped by the base runtime), extending any directive already present
// rather than adding a second one.
//
// An Environment is built once per invocation and is read-only afterwards, so
// it can be shared by every task of a gate run.
package launch
