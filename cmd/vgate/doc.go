// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the vgate CLI commands.
//
// Every command receives an App, the composition root holding the config
// provider, process runners and output streams, so tests can drive commands
// without touching the host.
package cmd
