// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the hot paths of a gate run:
//   - configuration loading and CUE schema validation
//   - launch command assembly for both deployment models
//   - registry aggregation while packaging an archive
//   - gate scheduling and the script runner
//
// The package has no production code. Profiles collected from these
// benchmarks can be fed to the compiler for profile-guided optimization:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
