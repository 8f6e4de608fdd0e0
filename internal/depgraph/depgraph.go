// Package depgraph builds the module dependency graph (DG, spec.md §4.3):
// starting from a root module, it recursively fetches each import,
// de-duplicates modules already reached by another path, and rejects
// cycles, producing a dependency-first ordering a caller can fold over
// exactly once per module.
package depgraph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/estree"
	"github.com/sourceror/compiler/internal/ilog"
)

// Dependency is one import a module's content wants resolved: Candidates
// are alternative resolved names to try in order (a relative import may
// resolve against more than one base), and Loc is the span to blame if
// none of them can be fetched or a cycle results.
type Dependency struct {
	Candidates []string
	Loc        estree.Loc
}

// Extractor is implemented by the content type stored at each graph
// node. Filename is nil for the root module and non-nil (the name the
// module was fetched under) for everything else, mirroring the
// teacher-language caller's need to resolve relative imports against
// the importing module's own resolved name.
type Extractor interface {
	ExtractDeps(filename *string) []Dependency
}

// Fetcher resolves a resolved module name to its parsed content. A
// Fetcher must be safe to reuse across calls; it carries no per-call
// state.
type Fetcher[T Extractor] interface {
	Fetch(ctx context.Context, name string, loc estree.Loc) (T, *api.Diagnostic)
}

type node[T Extractor] struct {
	deps    []int
	content T
	name    *string // nil only for the root node
}

// Graph is the resolved, cycle-free, dependency-first ordering of a
// module and everything it transitively imports. The root module is
// always the final (highest-indexed) node.
type Graph[T Extractor] struct {
	nodes []node[T]
}

// Len returns the number of modules in the graph, including the root.
func (g *Graph[T]) Len() int { return len(g.nodes) }

// Content returns the i'th module's content, resolved name (nil for the
// root), and the indices of the modules it depends on. Every index in
// deps is strictly less than i: dependencies always precede dependents.
func (g *Graph[T]) Content(i int) (content T, name *string, deps []int) {
	n := &g.nodes[i]
	return n.content, n.name, n.deps
}

// cacheState is the fetch status of a resolved module name, per
// spec.md §4.3: a name absent from the cache is Unseen; present with
// onAncestor true means it is being fetched by an enclosing call
// (a cycle if reached again); present with onAncestor false carries the
// node index it was already resolved to.
type cacheState struct {
	onAncestor bool
	index      int
}

// BuildFromRoot fetches and links root's transitive dependencies,
// producing a Graph whose nodes are ordered so that every module
// appears after all of its dependencies (spec.md §4.3: "nodes with
// larger index only depend on nodes with smaller index"). The root
// itself is always the last node.
func BuildFromRoot[T Extractor](ctx context.Context, root T, f Fetcher[T]) (*Graph[T], *api.Diagnostic) {
	g := &Graph[T]{}
	cache := map[string]cacheState{}

	deps, err := resolveAll(ctx, g, root.ExtractDeps(nil), cache, f)
	if err != nil {
		return nil, err
	}
	g.nodes = append(g.nodes, node[T]{deps: deps, content: root, name: nil})
	return g, nil
}

// resolveAll resolves every Dependency in deps to a node index, in
// order, short-circuiting on the first unrecoverable error.
func resolveAll[T Extractor](ctx context.Context, g *Graph[T], deps []Dependency, cache map[string]cacheState, f Fetcher[T]) ([]int, *api.Diagnostic) {
	out := make([]int, 0, len(deps))
	for _, dep := range deps {
		idx, err := resolveOne(ctx, g, dep, cache, f)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// resolveOne tries each of dep.Candidates in turn: a cache hit on an
// already-resolved name returns its index immediately; a cache hit on a
// name still on the ancestor chain is a cycle (GraphError); a fetch
// failure that looks like the candidate simply doesn't exist
// (FetchError or ESTreeParseError) falls through to the next
// candidate, remembering the error in case every candidate is
// exhausted; any other fetch failure (e.g. a malformed imports header)
// is unrecoverable and returned immediately.
func resolveOne[T Extractor](ctx context.Context, g *Graph[T], dep Dependency, cache map[string]cacheState, f Fetcher[T]) (int, *api.Diagnostic) {
	var lastErr *api.Diagnostic
	for _, name := range dep.Candidates {
		if st, ok := cache[name]; ok {
			if st.onAncestor {
				ilog.Logger().Debug("depgraph: cycle detected", zap.String("name", name))
				return 0, api.NewDiagnostic("", dep.Loc.Start, dep.Loc.End, api.KindGraphError,
					"circular dependency involving %q", name)
			}
			ilog.Logger().Debug("depgraph: cache hit", zap.String("name", name), zap.Int("index", st.index))
			return st.index, nil
		}

		content, err := f.Fetch(ctx, name, dep.Loc)
		if err != nil {
			ilog.Logger().Debug("depgraph: fetch failed", zap.String("name", name), zap.String("kind", string(err.Kind)))
			switch err.Kind {
			case api.KindFetchError, api.KindESTreeParseError:
				lastErr = err
				continue
			default:
				return 0, err
			}
		}

		cache[name] = cacheState{onAncestor: true}
		nested := name
		childDeps, err := resolveAll(ctx, g, content.ExtractDeps(&nested), cache, f)
		if err != nil {
			return 0, err
		}
		idx := len(g.nodes)
		g.nodes = append(g.nodes, node[T]{deps: childDeps, content: content, name: &nested})
		cache[name] = cacheState{index: idx}
		ilog.Logger().Debug("depgraph: resolved", zap.String("name", name), zap.Int("index", idx))
		return idx, nil
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, api.NewDiagnostic("", dep.Loc.Start, dep.Loc.End, api.KindFetchError,
		"no candidate names to resolve import")
}

// Fold walks the graph in dependency-first order, computing a state S
// per node from the already-computed states of its dependencies. It is
// the Go analogue of a recursive "compile dependencies before their
// dependent" pass (e.g. lowering each module's IR once its imports'
// export tables are known).
func Fold[T Extractor, S any](g *Graph[T], f func(idx int, depStates []S, content T, name *string) (S, error)) ([]S, error) {
	states := make([]S, 0, g.Len())
	for i := range g.nodes {
		n := &g.nodes[i]
		depStates := make([]S, len(n.deps))
		for j, d := range n.deps {
			depStates[j] = states[d]
		}
		s, err := f(i, depStates, n.content, n.name)
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", i, err)
		}
		states = append(states, s)
	}
	return states, nil
}
