// SPDX-License-Identifier: MPL-2.0

// Package config loads the vgate configuration: the deployment model, the
// artifacts on the runtime's class path, the gate's tasks and packaging
// options.
//
// Files are written in CUE and validated against the embedded schema
// (config_schema.cue) before being merged into Viper over the defaults.
// VGATE_-prefixed environment variables override file values, for example
// VGATE_GATE_FAIL_FAST=true.
package config
