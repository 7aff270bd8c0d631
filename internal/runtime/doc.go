// SPDX-License-Identifier: MPL-2.0

// Package runtime is the subprocess boundary of the verification gate.
//
// Every task ultimately runs an external program (or an in-process shell
// script) through a Runner. Runners capture stdout and stderr merged into a
// single stream, apply optional working directory, environment overrides and
// timeout, and report the exit code. A timeout terminates only the process
// that exceeded it.
//
// Two runners are provided:
//   - NativeRunner executes an argument vector with os/exec.
//   - VirtualRunner executes a POSIX shell script in-process with mvdan/sh,
//     which keeps script tasks portable across hosts.
package runtime
