// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"errors"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/vgate/vgate/internal/dag"
	"github.com/vgate/vgate/internal/pathset"
)

const bootClassPathAppend = "-Xbootclasspath/a:"

type (
	// Request is the input of a one-off Assemble call.
	Request struct {
		Args        []string
		Artifacts   []DeploymentArtifact
		BootAppends []DeploymentArtifact
		Model       DeploymentModel
	}

	// Launch is an assembled runtime command line.
	Launch struct {
		// Args is the final argument vector, without the runtime executable.
		Args []string
		// Warnings lists non-fatal problems found in the input arguments.
		Warnings []string
		// Entries lists every class path and module path element of Args with
		// its provenance.
		Entries []PathEntry
	}

	// Environment holds the deployment state shared by every launch of one
	// invocation. It is immutable once created.
	Environment struct {
		model       DeploymentModel
		artifacts   []DeploymentArtifact
		bootAppends []DeploymentArtifact
		redundant   pathset.Set
		property    string
		logger      *log.Logger
	}

	// EnvironmentOption configures an Environment.
	EnvironmentOption func(*Environment)
)

// WithLogger logs assembly warnings to logger in addition to returning them.
func WithLogger(logger *log.Logger) EnvironmentOption {
	return func(e *Environment) { e.logger = logger }
}

// WithClassPathProperty overrides the system property used to inject
// artifacts under the flat model.
func WithClassPathProperty(name string) EnvironmentOption {
	return func(e *Environment) {
		if name != "" {
			e.property = name
		}
	}
}

// RedundantSet returns the normalized archive paths and output directories of
// artifacts. User class path entries found in this set are dropped.
func RedundantSet(artifacts []DeploymentArtifact) pathset.Set {
	set := pathset.NewSet()
	for _, a := range artifacts {
		set.Add(a.Path)
		for _, dir := range a.OutputDirs {
			set.Add(dir)
		}
	}
	return set
}

// NewEnvironment validates and orders the deployment artifacts and computes
// the redundant path set.
func NewEnvironment(model DeploymentModel, artifacts, bootAppends []DeploymentArtifact, opts ...EnvironmentOption) (*Environment, error) {
	if model == nil {
		model = Flat{}
	}
	all := slices.Concat(bootAppends, artifacts)
	for _, a := range all {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	_, modular := model.(Modular)
	ordered, err := order(all, modular)
	if err != nil {
		return nil, err
	}

	boot := make(map[string]bool, len(bootAppends))
	for _, a := range bootAppends {
		boot[a.ID] = true
	}
	env := &Environment{
		model:     model,
		redundant: RedundantSet(all),
		property:  DefaultClassPathProperty,
	}
	for _, a := range ordered {
		if boot[a.ID] {
			env.bootAppends = append(env.bootAppends, a)
		} else {
			env.artifacts = append(env.artifacts, a)
		}
	}
	for _, opt := range opts {
		opt(env)
	}
	return env, nil
}

// order sorts artifacts so that each one follows the artifacts it requires.
// Unless strict, requirements naming undeclared artifacts are ignored: a flat
// class path only needs the declared artifacts in a stable order.
func order(artifacts []DeploymentArtifact, strict bool) ([]DeploymentArtifact, error) {
	byID := make(map[string]DeploymentArtifact, len(artifacts))
	g := dag.New()
	for _, a := range artifacts {
		if _, dup := byID[a.ID]; dup {
			return nil, &InvalidArtifactError{ID: a.ID, Reason: "declared more than once"}
		}
		byID[a.ID] = a
		g.Declare(a.ID)
	}
	for _, a := range artifacts {
		reqs := a.Requires
		if !strict {
			reqs = slices.DeleteFunc(slices.Clone(reqs), func(r string) bool {
				_, ok := byID[r]
				return !ok
			})
		}
		g.Require(a.ID, reqs...)
	}
	ids, err := g.Sort()
	if err != nil {
		var cycle *dag.CycleError
		var unknown *dag.UnknownRequirementError
		switch {
		case errors.As(err, &cycle):
			return nil, &ConfigurationError{Arg: cycle.Cycle[0], Reason: "artifact ordering failed", Cause: err}
		case errors.As(err, &unknown):
			return nil, &ConfigurationError{Arg: unknown.Artifact, Reason: "artifact ordering failed", Cause: err}
		}
		return nil, err
	}
	out := make([]DeploymentArtifact, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}

// Model returns the deployment model.
func (e *Environment) Model() DeploymentModel { return e.model }

// Artifacts returns the deployment artifacts in requirement order.
func (e *Environment) Artifacts() []DeploymentArtifact { return slices.Clone(e.artifacts) }

// BootAppends returns the boot class path artifacts in requirement order.
func (e *Environment) BootAppends() []DeploymentArtifact { return slices.Clone(e.bootAppends) }

// IsRedundant reports whether path is provided by a deployment artifact.
func (e *Environment) IsRedundant(path string) bool { return e.redundant.Has(path) }

// Assemble is a convenience wrapper building a throwaway Environment.
func Assemble(req Request) (*Launch, error) {
	env, err := NewEnvironment(req.Model, req.Artifacts, req.BootAppends)
	if err != nil {
		return nil, err
	}
	return env.Assemble(req.Args)
}

// Assemble builds the launch command line for args. args is not modified.
func (e *Environment) Assemble(args []string) (*Launch, error) {
	out := slices.Clone(args)
	l := &Launch{Warnings: checkArgs(out)}

	out, userCP, err := e.filterClasspath(out)
	if err != nil {
		return nil, err
	}
	for _, p := range userCP {
		l.Entries = append(l.Entries, PathEntry{Path: p, Provenance: ProvenanceUser})
	}

	switch m := e.model.(type) {
	case Modular:
		out, err = e.assembleModular(out, m, l)
	default:
		out = e.assembleFlat(out, l)
	}
	if err != nil {
		return nil, err
	}
	l.Args = out

	if e.logger != nil {
		for _, w := range l.Warnings {
			e.logger.Warn(w)
		}
	}
	return l, nil
}

func (e *Environment) assembleFlat(args []string, l *Launch) []string {
	var prefix []string
	if paths := artifactPaths(e.artifacts); len(paths) > 0 {
		prefix = append(prefix, "-D"+e.property+"="+pathset.Join(paths))
		l.Entries = appendPrivileged(l.Entries, paths)
	}
	if paths := artifactPaths(e.bootAppends); len(paths) > 0 {
		prefix = append(prefix, bootClassPathAppend+pathset.Join(paths))
		l.Entries = appendPrivileged(l.Entries, paths)
	}
	return append(prefix, args...)
}

func (e *Environment) assembleModular(args []string, m Modular, l *Launch) ([]string, error) {
	base := make(map[string]bool, len(m.BaseModules))
	for _, name := range m.BaseModules {
		base[name] = true
	}
	var upgrades, additions []string
	for _, a := range slices.Concat(e.bootAppends, e.artifacts) {
		if a.ModuleName != "" && base[a.ModuleName] {
			upgrades = append(upgrades, a.Path)
			continue
		}
		additions = append(additions, a.Path)
	}

	// Upgrades are merged first so that a prepended module path directive
	// ends up ahead of it.
	args, err := e.mergeDirective(args, upgradeModulePathSpec, upgrades, l)
	if err != nil {
		return nil, err
	}
	return e.mergeDirective(args, modulePathSpec, additions, l)
}

// mergeDirective extends the directive described by spec with paths, or
// prepends a new directive when args has none.
func (e *Environment) mergeDirective(args []string, spec directiveSpec, paths []string, l *Launch) ([]string, error) {
	d, err := findDirective(args, spec)
	if err != nil {
		return nil, err
	}
	if d == nil {
		if len(paths) == 0 {
			return args, nil
		}
		l.Entries = appendPrivileged(l.Entries, paths)
		return append([]string{spec.canonical + pathset.Join(paths)}, args...), nil
	}
	merged := pathset.Uniquify(slices.Concat(pathset.Split(d.value), paths))
	for _, p := range merged {
		prov := ProvenanceUser
		if e.redundant.Has(p) {
			prov = ProvenancePrivileged
		}
		l.Entries = append(l.Entries, PathEntry{Path: p, Provenance: prov})
	}
	d.set(args, pathset.Join(merged))
	return args, nil
}

// FilterClasspath removes deployment artifact paths from the class path
// directive of args, if there is one, without adding the privileged
// directive. It serves commands that run on a runtime already carrying the
// artifacts. The result is a new slice.
func (e *Environment) FilterClasspath(args []string) ([]string, error) {
	out, _, err := e.filterClasspath(slices.Clone(args))
	return out, err
}

// filterClasspath rewrites the class path directive of args in place and
// returns the retained entries.
func (e *Environment) filterClasspath(args []string) ([]string, []string, error) {
	d, err := findDirective(args, classPathSpec)
	if err != nil || d == nil {
		return args, nil, err
	}
	kept := pathset.SubtractRedundant(pathset.Uniquify(pathset.Split(d.value)), e.redundant)
	d.set(args, pathset.Join(kept))
	return args, kept, nil
}

func artifactPaths(artifacts []DeploymentArtifact) []string {
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}
	return pathset.Uniquify(paths)
}

func appendPrivileged(entries []PathEntry, paths []string) []PathEntry {
	for _, p := range paths {
		entries = append(entries, PathEntry{Path: p, Provenance: ProvenancePrivileged})
	}
	return entries
}
