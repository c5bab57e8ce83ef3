package depgraph

import (
	"context"
	"fmt"

	toposort "github.com/philopon/go-toposort"

	"github.com/opkgdev/opkg/internal/errors"
	"github.com/opkgdev/opkg/internal/manifest"
)

// ManifestFetcher loads a dependency's manifest so its own dependencies
// can be enqueued into the next wave. A missing manifest is non-fatal
// (§4.2 "Missing manifests are non-fatal (leaf with no deps)"): return
// (nil, nil) for that case.
type ManifestFetcher interface {
	FetchManifest(ctx context.Context, dep manifest.Dependency) (*manifest.Manifest, error)
	ListVersions(ctx context.Context, name string) ([]string, error)
}

// ConflictHandler resolves a version conflict interactively, per §4.2:
// "If running interactively and a conflict handler is supplied, prompt
// with the candidate versions; chosen version is adopted and noted."
type ConflictHandler func(ctx context.Context, c Conflict) (chosenVersion string, ok bool)

// Result is the wave resolver's output (§4.2 "Output").
type Result struct {
	InstallOrder []string // topological, leaves first
	Conflicts    []Conflict
	Graph        *Graph
}

// Resolve performs the breadth-first wave traversal from roots,
// unifying versions per package name and producing a topological
// install order.
func Resolve(ctx context.Context, roots []manifest.Dependency, rootName string, fetcher ManifestFetcher, onConflict ConflictHandler) (*Result, error) {
	const op errors.Op = "depgraph.Resolve"

	g := NewGraph()
	visited := make(map[string]bool)
	ranges := make(map[string][]string)
	requesters := make(map[string][]string)

	type queued struct {
		dep        manifest.Dependency
		requestedBy string
	}
	queue := make([]queued, 0, len(roots))
	for _, d := range roots {
		queue = append(queue, queued{dep: d, requestedBy: rootName})
	}

	var conflicts []Conflict

	for len(queue) > 0 {
		var next []queued
		seenThisWave := make(map[string]bool)

		for _, q := range queue {
			name := q.dep.Name
			if q.dep.Version != "" {
				ranges[name] = append(ranges[name], q.dep.Version)
			}
			requesters[name] = append(requesters[name], q.requestedBy)
			g.Edges[q.requestedBy] = append(g.Edges[q.requestedBy], name)

			if visited[name] {
				continue // cyclic/duplicate edge accepted idempotently (§4.2)
			}
			if seenThisWave[name] {
				continue
			}
			seenThisWave[name] = true
			visited[name] = true

			node := &Node{Name: name, Dep: q.dep}
			g.Nodes[name] = node

			m, err := fetcher.FetchManifest(ctx, q.dep)
			if err != nil {
				return nil, errors.E(op, errors.Network, fmt.Errorf("fetching manifest for %q: %w", name, err))
			}
			if m == nil {
				continue // missing manifest: leaf with no deps
			}
			node.Marketplace = m.Marketplace
			if node.Marketplace {
				continue // marketplace nodes are tagged and skipped (§4.2/§4.3)
			}
			for _, d := range m.Dependencies {
				next = append(next, queued{dep: d, requestedBy: name})
			}
		}
		queue = next
	}

	for name, node := range g.Nodes {
		rs := ranges[name]
		if len(rs) == 0 {
			continue
		}
		var candidates []string
		if fetcher != nil {
			if vs, err := fetcher.ListVersions(ctx, name); err == nil {
				candidates = vs
			}
		}
		chosen, err := unify(rs, candidates)
		if err != nil {
			if onConflict != nil {
				if v, ok := onConflict(ctx, Conflict{Name: name, Ranges: rs, Requesters: requesters[name]}); ok {
					node.ResolvedVersion = v
					continue
				}
			}
			conflicts = append(conflicts, Conflict{Name: name, Ranges: rs, Requesters: requesters[name]})
			continue
		}
		node.ResolvedVersion = chosen
		node.Ranges = rs
		node.RequestedBy = requesters[name]
	}

	if len(conflicts) > 0 {
		return &Result{Graph: g, Conflicts: conflicts}, errors.E(op, errors.Conflict, fmt.Errorf("%d unresolved version conflict(s)", len(conflicts)))
	}

	order, err := topoOrder(g, rootName)
	if err != nil {
		return nil, errors.E(op, errors.Internal, err)
	}

	return &Result{InstallOrder: order, Graph: g}, nil
}

// topoOrder computes a leaves-first install order via philopon/go-toposort,
// skipping marketplace-tagged nodes per §4.2 ("tagged and skipped during
// ordinary install").
func topoOrder(g *Graph, rootName string) ([]string, error) {
	graph := toposort.NewGraph(len(g.Nodes) + 1)
	graph.AddNode(rootName)
	for name := range g.Nodes {
		graph.AddNode(name)
	}
	for from, tos := range g.Edges {
		for _, to := range tos {
			if from == to {
				continue // self-cycle, accepted idempotently
			}
			graph.AddEdge(from, to)
		}
	}
	result, ok := graph.Toposort()
	if !ok {
		return nil, fmt.Errorf("dependency graph contains a cycle that cannot be linearized")
	}

	// go-toposort returns roots-first; reverse for leaves-first (§4.2).
	leavesFirst := make([]string, 0, len(result))
	for i := len(result) - 1; i >= 0; i-- {
		name := result[i]
		if name == rootName {
			continue
		}
		if n, ok := g.Nodes[name]; ok && n.Marketplace {
			continue
		}
		leavesFirst = append(leavesFirst, name)
	}
	return leavesFirst, nil
}
