// SPDX-License-Identifier: MPL-2.0

package image

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// UnknownRevision is recorded when an artifact's revision cannot be resolved.
const UnknownRevision = "unknown"

// ErrNoRevision is returned by resolvers that know nothing about an artifact.
var ErrNoRevision = errors.New("no revision")

type (
	// RevisionResolver returns the source revision an artifact was built from.
	RevisionResolver interface {
		Revision(a Artifact) (string, error)
	}

	// GitRevisions resolves the HEAD commit of the repository containing the
	// artifact's source directory.
	GitRevisions struct{}

	// StaticRevisions maps artifact names to fixed revisions.
	StaticRevisions map[string]string
)

// Revision implements RevisionResolver.
func (GitRevisions) Revision(a Artifact) (string, error) {
	dir := a.SourceDir
	if dir == "" {
		return "", fmt.Errorf("%w: %s has no source directory", ErrNoRevision, a.Name)
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repository for %s: %w", a.Name, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD for %s: %w", a.Name, err)
	}
	return head.Hash().String(), nil
}

// Revision implements RevisionResolver.
func (s StaticRevisions) Revision(a Artifact) (string, error) {
	if rev, ok := s[a.Name]; ok {
		return rev, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoRevision, a.Name)
}
