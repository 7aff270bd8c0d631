// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ProvenanceUser marks a path supplied by the caller's arguments.
	ProvenanceUser Provenance = iota
	// ProvenancePrivileged marks a path supplied by a deployment artifact.
	ProvenancePrivileged
)

const (
	// DefaultClassPathProperty is the system property the runtime reads to
	// append deployment artifacts to its compiler class path.
	DefaultClassPathProperty = "jvmci.class.path.append"
)

var (
	// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
	ErrConfiguration = errors.New("invalid launch configuration")
	// ErrInvalidArtifact is the sentinel error wrapped by InvalidArtifactError.
	ErrInvalidArtifact = errors.New("invalid deployment artifact")
)

type (
	// Provenance records where a path entry came from.
	Provenance int

	// PathEntry is one class path or module path element with its provenance.
	PathEntry struct {
		Path       string
		Provenance Provenance
	}

	// DeploymentArtifact is a build output that must always be visible to the
	// launched runtime.
	DeploymentArtifact struct {
		// ID names the artifact (for example a distribution name).
		ID string
		// Path is the archive path placed on the class or module path.
		Path string
		// ModuleName is the module the archive defines, if any.
		ModuleName string
		// OutputDirs are build output directories whose classes the archive
		// contains. They count as redundant user class path entries.
		OutputDirs []string
		// Requires lists artifact IDs that must precede this one.
		Requires []string
	}

	// DeploymentModel selects how artifacts reach the runtime.
	// It is either Flat or Modular.
	DeploymentModel interface {
		modelName() string
	}

	// Flat deploys artifacts on a flat class path.
	Flat struct{}

	// Modular deploys artifacts as modules. BaseModules are the modules the
	// base runtime already ships; artifacts defining one of them upgrade it.
	Modular struct {
		BaseModules []string
	}

	// ConfigurationError reports malformed or contradictory launch arguments.
	ConfigurationError struct {
		// Arg is the offending argument.
		Arg string
		// Reason explains what is wrong with it.
		Reason string
		// Cause is an optional underlying error.
		Cause error
	}

	// InvalidArtifactError reports a deployment artifact that cannot be used.
	InvalidArtifactError struct {
		ID     string
		Reason string
	}
)

func (Flat) modelName() string    { return "flat" }
func (Modular) modelName() string { return "modular" }

// ModelName returns "flat" or "modular".
func ModelName(m DeploymentModel) string {
	if m == nil {
		return "flat"
	}
	return m.modelName()
}

// String returns "user" or "privileged".
func (p Provenance) String() string {
	if p == ProvenancePrivileged {
		return "privileged"
	}
	return "user"
}

// Validate checks that the artifact has an ID and a path.
func (a DeploymentArtifact) Validate() error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return &InvalidArtifactError{ID: a.ID, Reason: "missing id"}
	case strings.TrimSpace(a.Path) == "":
		return &InvalidArtifactError{ID: a.ID, Reason: "missing path"}
	}
	return nil
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid launch argument %q: %s", e.Arg, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns ErrConfiguration so callers can use errors.Is for programmatic detection.
func (e *ConfigurationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrConfiguration, e.Cause}
	}
	return []error{ErrConfiguration}
}

// Error implements the error interface.
func (e *InvalidArtifactError) Error() string {
	return fmt.Sprintf("deployment artifact %q: %s", e.ID, e.Reason)
}

// Unwrap returns ErrInvalidArtifact so callers can use errors.Is for programmatic detection.
func (e *InvalidArtifactError) Unwrap() error { return ErrInvalidArtifact }
