package preparse

import (
	"go.uber.org/zap"

	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/estree"
	"github.com/sourceror/compiler/internal/ilog"
	"github.com/sourceror/compiler/internal/varloc"
)

// decl pairs a source name with the PreVar it resolves to, the shape
// every declaration-extraction helper produces before it gets pushed
// into a nameCtx scope.
type decl struct {
	Name string
	Var  varloc.PreVar
}

// nameCtx resolves source names to PreVars through a stack of scopes,
// innermost first. It is the pre-parser's whole-traversal shared state
// (spec.md §4.6 "a name context mapping source name -> PreVar"), and its
// push/pop discipline mirrors the stack discipline spec.md §3 describes
// for pre-parse scopes generally: "entering a block or function pushes
// a scope onto the name map; leaving pops it." A name declared in an
// inner scope simply shadows an outer one of the same name during
// lookup; nothing is undone or restored beyond popping the frame.
type nameCtx struct {
	scopes []map[string]varloc.PreVar
}

// newNameCtx seeds scope 0 with globals (pre-declared Source names —
// spec.md §4.6's "auto-import of everything", e.g. prior modules' whole
// global namespace). globals is never itself mutated; further
// declarations always land in scopes pushed above it.
func newNameCtx(globals map[string]varloc.PreVar) *nameCtx {
	if globals == nil {
		globals = map[string]varloc.PreVar{}
	}
	return &nameCtx{scopes: []map[string]varloc.PreVar{globals}}
}

// pushScope adds a new innermost scope built from decls. Decls later in
// the slice shadow earlier ones of the same name within this same push
// — deliberately so: see preParseFunction's doc comment for the one
// place this matters (param vs. body-let name collisions are never
// flagged, a preserved defect of the source language).
func (c *nameCtx) pushScope(decls []decl) {
	frame := make(map[string]varloc.PreVar, len(decls))
	for _, d := range decls {
		frame[d.Name] = d.Var
	}
	c.scopes = append(c.scopes, frame)
	ilog.Logger().Debug("preparse: push scope", zap.Int("depth", len(c.scopes)-1), zap.Int("decls", len(decls)))
}

func (c *nameCtx) popScope() {
	ilog.Logger().Debug("preparse: pop scope", zap.Int("depth", len(c.scopes)-1))
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *nameCtx) lookup(name string) (varloc.PreVar, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][name]; ok {
			return v, true
		}
	}
	return varloc.PreVar{}, false
}

// ExportTable coalesces a block or program's own declarations (and,
// separately, a program's export list) into a name -> PreVar map, the
// Go shape standing in for the original's name-erased VarCtx/
// ProgramPreExports pair: rather than keep a bare "this name is direct"
// marker plus a side table of its overload set, every PreVar here
// already carries its full (possibly still-growing) overload set, so a
// single map serves both roles.
type ExportTable struct {
	entries map[string]varloc.PreVar
}

// NewExportTable returns an empty table.
func NewExportTable() *ExportTable {
	return &ExportTable{entries: map[string]varloc.PreVar{}}
}

// Get returns the PreVar registered under name, if any.
func (t *ExportTable) Get(name string) (varloc.PreVar, bool) {
	v, ok := t.entries[name]
	return v, ok
}

// Entries returns a copy of every name -> PreVar binding in t, for
// callers that seed another table's globals from this one (e.g. an
// import manifest's host bindings, which every module sees without an
// ImportDeclaration of its own).
func (t *ExportTable) Entries() map[string]varloc.PreVar {
	out := make(map[string]varloc.PreVar, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// TryCoalesce inserts v under name. If name is unoccupied, v is
// inserted directly (ok=true, isNewName=true). If name already names a
// Direct overload set and v is itself a single-overload Direct with a
// signature distinct from every overload already registered, the
// overload is merged into the existing entry (ok=true, isNewName=false)
// — this is how a second `direct` FunctionDeclaration of the same name
// extends an overload set rather than colliding with it (spec.md §4.6,
// "two direct declarations of the same name... are permitted if they
// form distinct overloads"). Every other collision — Target vs Target,
// Target vs Direct, or a duplicate Direct signature — fails with
// ok=false, the general case of "a direct declaration can never
// coalesce with a Target of the same name."
func (t *ExportTable) TryCoalesce(name string, v varloc.PreVar) (ok bool, isNewName bool) {
	existing, exists := t.entries[name]
	if !exists {
		t.entries[name] = v
		if v.IsDirect() {
			ilog.Logger().Debug("preparse: direct function registered", zap.String("name", name), zap.Int("overloads", len(v.Overloads)))
		}
		return true, true
	}
	if !existing.IsDirect() || !v.IsDirect() || len(v.Overloads) != 1 {
		return false, false
	}
	merged, mergeOk := existing.MergeOverload(v.Overloads[0])
	if !mergeOk {
		return false, false
	}
	t.entries[name] = merged
	ilog.Logger().Debug("preparse: direct function overload added", zap.String("name", name), zap.Int("overloads", len(merged.Overloads)))
	return true, false
}

// finalizeDecls reads back the final, fully-coalesced PreVar for each
// name in names (in first-occurrence order) from varCtx. A name that
// gained further Direct overloads after its first occurrence (via
// TryCoalesce) is only listed once in names, but finalizeDecls always
// resolves its CURRENT, fully-merged entry — so the decl pushed into
// the enclosing nameCtx scope carries every overload registered under
// that name, not just the first.
func finalizeDecls(varCtx *ExportTable, names []string) []decl {
	out := make([]decl, len(names))
	for i, n := range names {
		v, _ := varCtx.Get(n)
		out[i] = decl{Name: n, Var: v}
	}
	return out
}

// errAt builds a Diagnostic at loc's span.
func errAt(file string, loc estree.Loc, kind api.ErrorKind, format string, args ...any) *api.Diagnostic {
	return api.NewDiagnostic(file, loc.Start, loc.End, kind, format, args...)
}

// toVarLocIndices extracts the Index of each Id, for fields like
// BlockStatement.AddressTakenVars that are always relative to exactly
// one known depth.
func toVarLocIndices(ids []varloc.Id) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = id.Index
	}
	return out
}
