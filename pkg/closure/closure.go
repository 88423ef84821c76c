// Package closure classifies a resolver engine's package closure into the
// primary partition (reachable from the manifest's primary dependencies) and
// the runtime-only remainder.
package closure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/atriumdesk/bundlectl/pkg/manifest"
)

// Package is one resolved package as pinned by the resolver engine. Source
// carries the canonical source reference text for packages pinned without a
// version. RequiredBy lists the direct requirers, which supply the
// reachability edges.
type Package struct {
	Name       string   `json:"name"`
	Version    string   `json:"version,omitempty"`
	Source     string   `json:"source,omitempty"`
	RequiredBy []string `json:"requiredBy,omitempty"`
}

// Pin is the identity value of the package: its pinned version, or the
// source reference text when it has none.
func (p Package) Pin() string {
	if p.Version != "" {
		return p.Version
	}
	return p.Source
}

// Resolved is the full, consistent closure returned by the resolver engine
// for a merged manifest.
type Resolved []Package

// Classified is a closure partitioned into primary and runtime-only sets,
// keyed by resolved package name. A name never appears in both.
type Classified struct {
	Primary     map[string]Package
	RuntimeOnly map[string]Package
}

// UnresolvedPrimaryDependencyError reports a declared primary dependency the
// resolver engine's closure does not contain under any spelling variant.
// This is a defect in the merged manifest or the resolver output, never a
// reclassification to runtime-only.
type UnresolvedPrimaryDependencyError struct {
	Name string
}

func (e *UnresolvedPrimaryDependencyError) Error() string {
	return fmt.Sprintf("primary dependency %s is missing from the resolved closure", e.Name)
}

// Classify partitions the closure: every package transitively required by a
// primary manifest dependency lands in Primary, everything else in
// RuntimeOnly. Matching of manifest names against closure names is
// case-insensitive and tolerant of -/_ spelling differences.
func Classify(m *manifest.Manifest, resolved Resolved) (*Classified, error) {
	index := make(map[string]Package, len(resolved))
	for _, pkg := range resolved {
		index[normalize(pkg.Name)] = pkg
	}

	g := graph.New(graph.StringHash, graph.Directed())
	for _, pkg := range resolved {
		_ = g.AddVertex(normalize(pkg.Name))
	}
	for _, pkg := range resolved {
		to := normalize(pkg.Name)
		for _, requirer := range pkg.RequiredBy {
			from := normalize(requirer)
			if from == to {
				continue
			}
			if err := g.AddVertex(from); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("building requirer graph: %w", err)
			}
			if err := g.AddEdge(from, to); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, fmt.Errorf("building requirer graph: %w", err)
			}
		}
	}

	visited := map[string]bool{}
	for _, name := range m.PrimaryNames() {
		if name == manifest.InterpreterName {
			continue
		}
		seed, ok := locate(index, name)
		if !ok {
			return nil, &UnresolvedPrimaryDependencyError{Name: name}
		}
		if visited[seed] {
			continue
		}
		err := graph.BFS(g, seed, func(node string) bool {
			visited[node] = true
			return false
		})
		if err != nil {
			return nil, fmt.Errorf("walking requirer graph from %s: %w", name, err)
		}
	}

	out := &Classified{
		Primary:     map[string]Package{},
		RuntimeOnly: map[string]Package{},
	}
	for key, pkg := range index {
		if visited[key] {
			out.Primary[pkg.Name] = pkg
		} else {
			out.RuntimeOnly[pkg.Name] = pkg
		}
	}
	return out, nil
}

// locate finds a manifest name in the closure index, retrying with the -/_
// spelling variants when the exact normalized form is absent.
func locate(index map[string]Package, name string) (string, bool) {
	key := normalize(name)
	if _, ok := index[key]; ok {
		return key, true
	}
	if alt := strings.ReplaceAll(key, "_", "-"); alt != key {
		if _, ok := index[alt]; ok {
			return alt, true
		}
	}
	if alt := strings.ReplaceAll(key, "-", "_"); alt != key {
		if _, ok := index[alt]; ok {
			return alt, true
		}
	}
	return "", false
}

func normalize(name string) string {
	return strings.ToLower(name)
}
