package imports

import (
	"github.com/sourceror/compiler/internal/depgraph"
	"github.com/sourceror/compiler/internal/estree"
	"github.com/sourceror/compiler/internal/preparse"
)

// ProgramContent is what a depgraph node must expose for LinkGraph to
// pre-parse it: the parsed AST, the file name diagnostics should blame,
// and (via the embedded depgraph.Extractor) its own import sites.
type ProgramContent interface {
	depgraph.Extractor
	Program() *estree.Program
	File() string
}

// ExtractDeclImports walks p's top-level ImportDeclarations in source
// order, producing one depgraph.Dependency per declaration. It is the
// ExtractDeps a ProgramContent implementation delegates to: DG resolves
// each Source string to a fetched module, in the same order
// PreParseProgram's imports argument later expects them (spec.md §4.3,
// §4.7).
func ExtractDeclImports(p *estree.Program) []depgraph.Dependency {
	var deps []depgraph.Dependency
	for _, stmt := range p.Body {
		decl, ok := stmt.(*estree.ImportDeclaration)
		if !ok {
			continue
		}
		deps = append(deps, depgraph.Dependency{
			Candidates: []string{decl.Source},
			Loc:        decl.Loc(),
		})
	}
	return deps
}

// LinkGraph pre-parses every module in g in dependency-first order,
// producing that module's ExportTable. Each module sees hostExports (the
// import manifest's bindings) as the names resolvable without a
// declaration of its own, and the ExportTables already computed for its
// own dependencies as its ImportDeclarations' targets, in source order —
// spec.md §4.7's "the DG's topological traversal... threads exports
// forward: module i is linked with the exports of its resolved
// dependencies, and its own exports are cached for later-indexed
// modules." The returned slice is indexed exactly as g is, so the root
// module's export table is always the last element.
func LinkGraph[T ProgramContent](g *depgraph.Graph[T], hostExports *preparse.ExportTable, cp preparse.ConstraintParser) ([]*preparse.ExportTable, error) {
	globals := hostExports.Entries()
	return depgraph.Fold(g, func(_ int, depStates []*preparse.ExportTable, content T, _ *string) (*preparse.ExportTable, error) {
		exports, diag := preparse.PreParseProgram(content.File(), content.Program(), globals, depStates, cp)
		if diag != nil {
			return nil, diag
		}
		return exports, nil
	})
}
