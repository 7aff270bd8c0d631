// SPDX-License-Identifier: MPL-2.0

package suite

import (
	"slices"
	"strconv"

	"github.com/vgate/vgate/internal/config"
	"github.com/vgate/vgate/internal/pathset"
	"github.com/vgate/vgate/internal/verify"
)

type (
	// DaCapoOptions tunes the runtime options of a DaCapo benchmark task.
	DaCapoOptions struct {
		// ParallelGC keeps the runtime's default collector instead of forcing
		// the serial one.
		ParallelGC bool
		// NoStartHeap leaves the initial heap size unset.
		NoStartHeap bool
		// Threads sets the benchmark's driver thread count when positive.
		Threads int
		// VMArgs are appended after the standard options.
		VMArgs []string
	}
)

// DaCapoTask returns a benchmark task that runs one DaCapo benchmark from jar
// for the given number of iterations and requires the DaCapo success line.
func DaCapoTask(jar, name string, iterations int, opts DaCapoOptions) config.TaskConfig {
	var vmArgs []string
	if !opts.ParallelGC {
		vmArgs = append(vmArgs, "-XX:+UseSerialGC")
	}
	if !opts.NoStartHeap {
		vmArgs = append(vmArgs, "-Xms2g")
	}
	vmArgs = append(vmArgs,
		"-XX:-UseCompressedOops",
		"-Djava.net.preferIPv4Stack=true",
		"-Dgraal.CompilationFailureAction=ExitVM",
	)
	vmArgs = append(vmArgs, pathset.RemoveEmpty(opts.VMArgs)...)

	args := append(vmArgs, "-jar", jar, name, "-n", strconv.Itoa(iterations))
	if opts.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(opts.Threads))
	}
	return config.TaskConfig{
		Name:           "DaCapo:" + name,
		Tags:           slices.Clone(TagsBenchmarkTest),
		Kind:           config.TaskBenchmark,
		Args:           args,
		SuccessPattern: verify.DaCapoPattern,
	}
}

// DefaultDaCapoTasks returns the benchmark selection of a standard gate:
// benchmarks that tolerate system assertions run with -esa.
func DefaultDaCapoTasks(jar string) []config.TaskConfig {
	withAssertions := []struct {
		name       string
		iterations int
	}{
		{"avrora", 1}, {"h2", 1}, {"jython", 2}, {"luindex", 1}, {"lusearch", 4}, {"xalan", 1},
	}
	withoutAssertions := []struct {
		name       string
		iterations int
	}{
		{"batik", 1}, {"fop", 8}, {"pmd", 1}, {"sunflow", 2},
	}

	var tasks []config.TaskConfig
	for _, b := range withAssertions {
		tasks = append(tasks, DaCapoTask(jar, b.name, b.iterations, DaCapoOptions{
			VMArgs: []string{"-XX:+UseJVMCICompiler", "-Dgraal.TrackNodeSourcePosition=true", "-esa"},
		}))
	}
	for _, b := range withoutAssertions {
		tasks = append(tasks, DaCapoTask(jar, b.name, b.iterations, DaCapoOptions{
			VMArgs: []string{"-XX:+UseJVMCICompiler"},
		}))
	}
	return tasks
}
