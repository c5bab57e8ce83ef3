// Package depgraph implements the dependency graph / wave resolver
// (spec §4.2): breadth-first traversal of a package's dependency tree,
// SemVer range unification per package name, and a topological install
// order. The node map and "arena + index" shape (§9 Design Notes: "no
// in-memory pointer cycles are needed; the wave resolver stores nodes in
// a flat map and edges as name arrays") is new to opkg, but the
// conflict-kind error propagation follows kpt's internal/errors taxonomy
// and the topological ordering is computed with philopon/go-toposort, a
// direct dependency of the teacher repo.
package depgraph

import "github.com/opkgdev/opkg/internal/manifest"

// Node is one resolved package in the dependency graph.
type Node struct {
	Name           string
	ResolvedVersion string
	RequestedBy    []string
	Ranges         []string
	Marketplace    bool
	Dep            manifest.Dependency
}

// Graph is the flat node map plus name-array edges described in §9.
type Graph struct {
	Nodes map[string]*Node
	Edges map[string][]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: make(map[string][]string),
	}
}

// Conflict records an unresolved version-range intersection for a
// package name, per §4.2's "record a conflict" contract.
type Conflict struct {
	Name       string
	Ranges     []string
	Requesters []string
}
