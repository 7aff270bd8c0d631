// SPDX-License-Identifier: MPL-2.0

// Package dag orders deployment artifacts so that every artifact appears after
// the artifacts it requires. The module-path layout of a launched runtime is
// built from this order.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError reports artifacts whose requirements form a cycle.
	CycleError struct {
		// Cycle lists the artifacts left unordered, in declaration order.
		Cycle []string
	}

	// UnknownRequirementError reports a requirement that names no declared artifact.
	UnknownRequirementError struct {
		Artifact    string
		Requirement string
	}

	// Graph records "requirement before dependent" relations between named nodes.
	Graph struct {
		dependents map[string][]string
		edges      map[[2]string]struct{}
		order      []string
		declared   map[string]bool
		required   [][2]string
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("artifact requirement cycle: %s", strings.Join(e.Cycle, " -> "))
}

func (e *UnknownRequirementError) Error() string {
	return fmt.Sprintf("artifact %q requires undeclared artifact %q", e.Artifact, e.Requirement)
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		dependents: make(map[string][]string),
		edges:      make(map[[2]string]struct{}),
		declared:   make(map[string]bool),
	}
}

// Declare adds a node. Declaring a node twice keeps its first position.
func (g *Graph) Declare(name string) {
	if g.declared[name] {
		return
	}
	g.declared[name] = true
	g.order = append(g.order, name)
}

// Require records that name must come after each of reqs.
// name is declared implicitly; requirements must be declared before Sort.
func (g *Graph) Require(name string, reqs ...string) {
	g.Declare(name)
	for _, r := range reqs {
		edge := [2]string{r, name}
		if _, dup := g.edges[edge]; dup {
			continue
		}
		g.edges[edge] = struct{}{}
		g.required = append(g.required, edge)
		g.dependents[r] = append(g.dependents[r], name)
	}
}

// Sort returns every declared node with requirements first (Kahn's algorithm).
// Ties keep declaration order, so unrelated artifacts are never reordered.
func (g *Graph) Sort() ([]string, error) {
	for _, edge := range g.required {
		if !g.declared[edge[0]] {
			return nil, &UnknownRequirementError{Artifact: edge[1], Requirement: edge[0]}
		}
	}
	if len(g.order) == 0 {
		return nil, nil
	}

	pending := make(map[string]int, len(g.order))
	for _, edge := range g.required {
		pending[edge[1]]++
	}

	ready := make([]string, 0, len(g.order))
	for _, n := range g.order {
		if pending[n] == 0 {
			ready = append(ready, n)
		}
	}

	sorted := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		sorted = append(sorted, n)
		for _, d := range g.dependents[n] {
			pending[d]--
			if pending[d] == 0 {
				ready = insertByDeclaration(ready, d, g.order)
			}
		}
	}

	if len(sorted) != len(g.order) {
		var cycle []string
		for _, n := range g.order {
			if pending[n] > 0 {
				cycle = append(cycle, n)
			}
		}
		return nil, &CycleError{Cycle: cycle}
	}
	return sorted, nil
}

// insertByDeclaration keeps the ready queue in declaration order so the
// output is stable regardless of edge insertion order.
func insertByDeclaration(queue []string, n string, order []string) []string {
	pos := make(map[string]int, len(order))
	for i, o := range order {
		pos[o] = i
	}
	i := 0
	for i < len(queue) && pos[queue[i]] < pos[n] {
		i++
	}
	queue = append(queue, "")
	copy(queue[i+1:], queue[i:])
	queue[i] = n
	return queue
}
