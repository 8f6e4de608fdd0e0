// Package preparse implements the scope and usage pre-parser (spec.md
// §4.6): it walks a Program's AST once, resolving every Identifier to a
// varloc.PreVar, computing each function's and block's address-taken and
// captured-variable sets, validating the direct/constraint attribute
// pseudo-statements, and enforcing the restricted-JavaScript subset's
// structural rules.
package preparse

import (
	"fmt"

	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/attrs"
	"github.com/sourceror/compiler/internal/estree"
	"github.com/sourceror/compiler/internal/usage"
	"github.com/sourceror/compiler/internal/varloc"
)

// ConstraintParser parses a direct function's `constraint` attribute
// string into a map from parameter name to the static type it pins that
// parameter to. Its grammar is owned by the excluded constraint-string
// parser collaborator (spec.md §1); this package only calls it.
type ConstraintParser interface {
	Parse(constraintStr string) (map[string]api.VarType, error)
}

// exprResult is the pre-parser's one genuinely-surprising return shape:
// almost every expression produces a single usage.Map, but a bare
// ArrayExpression produces one usage.Map PER ELEMENT instead, because
// array literals are only legal directly as a `let`/`const` initializer
// (spec.md §9 Open Question, §4.6 ArrayExpression). Every other call
// site asserts it got the single-map form via asSingle, which raises an
// ICE if that assertion is wrong — faithfully reproducing the source
// compiler's own internal panics at those same call sites rather than
// smoothing them into a normal diagnostic, since a well-formed Source
// program can never actually trigger them except through the one
// known, documented gap.
type exprResult struct {
	maps  []usage.Map
	multi bool
}

func single(m usage.Map) exprResult { return exprResult{maps: []usage.Map{m}} }

func multiple(ms []usage.Map) exprResult { return exprResult{maps: ms, multi: true} }

func (r exprResult) asSingle() usage.Map {
	if r.multi {
		api.Raise("preparse.asSingle", "array expression used where a single value was expected")
	}
	return r.maps[0]
}

// funcNode abstracts over FunctionDeclaration and ArrowFunctionExpression
// so preParseFunction has one implementation for both (spec.md §4.6
// "Per-function" applies identically to either surface form).
type funcNode interface {
	Params() []*estree.Identifier
	Body() estree.Node
	SetAddressTakenVars(idx []uint32)
	SetCapturedVars(ids []varloc.Id)
	SetDirectFuncs(fns []estree.DirectFuncEntry)
}

type funcDeclNode struct{ n *estree.FunctionDeclaration }

func (a funcDeclNode) Params() []*estree.Identifier { return a.n.Params }
func (a funcDeclNode) Body() estree.Node            { return a.n.Body }
func (a funcDeclNode) SetAddressTakenVars(idx []uint32) { a.n.AddressTakenVars = idx }
func (a funcDeclNode) SetCapturedVars(ids []varloc.Id)  { a.n.CapturedVars = ids }
func (a funcDeclNode) SetDirectFuncs(fns []estree.DirectFuncEntry) { a.n.DirectFuncs = fns }

type arrowNode struct{ n *estree.ArrowFunctionExpression }

func (a arrowNode) Params() []*estree.Identifier { return a.n.Params }
func (a arrowNode) Body() estree.Node            { return a.n.Body }
func (a arrowNode) SetAddressTakenVars(idx []uint32) { a.n.AddressTakenVars = idx }
func (a arrowNode) SetCapturedVars(ids []varloc.Id)  { a.n.CapturedVars = ids }
func (a arrowNode) SetDirectFuncs(fns []estree.DirectFuncEntry) { a.n.DirectFuncs = fns }

// PreParseProgram is the pre-parser's entry point (spec.md §4.6
// "Per-program"). globals seeds the name context with every name already
// resolvable without a declaration of its own (typically empty for a
// single module processed standalone). imports supplies, in source
// order, one already-resolved ExportTable per ImportDeclaration the
// program contains — the dependency graph module is responsible for
// having pre-parsed those modules first and handing back their export
// tables (spec.md §4.1, §4.3). cp resolves `constraint` attribute
// strings for direct function declarations.
func PreParseProgram(file string, program *estree.Program, globals map[string]varloc.PreVar, imports []*ExportTable, cp ConstraintParser) (*ExportTable, *api.Diagnostic) {
	ctx := newNameCtx(globals)
	varCtx := NewExportTable()
	exports := NewExportTable()

	startIdx := uint32(0)
	names, diag := validateAndExtractImportsAndDecls(file, program.Body, varCtx, exports, imports, 0, &startIdx, cp)
	if diag != nil {
		return nil, diag
	}
	decls := finalizeDecls(varCtx, names)

	ctx.pushScope(decls)

	var directFuncs []estree.DirectFuncEntry
	diag = attrs.ForEach(file, program.Body, func(stmt estree.Statement, a attrs.Set) *api.Diagnostic {
		u, d := preParseStatement(file, stmt, a, ctx, &directFuncs, 0, cp)
		if d != nil {
			return d
		}
		if u.Len() != 0 {
			api.Raise("preparse.PreParseProgram", "top-level statement produced non-empty usage")
		}
		return nil
	})
	program.DirectFuncs = directFuncs
	ctx.popScope()

	if diag != nil {
		return nil, diag
	}
	return exports, nil
}

// ---- Declaration extraction ----

func validateAndExtractDecls(file string, body []estree.Statement, varCtx *ExportTable, depth uint32, startIdx *uint32, cp ConstraintParser) ([]string, *api.Diagnostic) {
	var names []string
	diag := attrs.ForEach(file, body, func(stmt estree.Statement, a attrs.Set) *api.Diagnostic {
		switch s := stmt.(type) {
		case *estree.FunctionDeclaration:
			return processFuncDeclValidation(file, varCtx, &names, s, a, depth, startIdx, cp)
		case *estree.VariableDeclaration:
			return processVarDeclValidation(file, varCtx, &names, s, a, depth, startIdx)
		}
		return nil
	})
	if diag != nil {
		return nil, diag
	}
	return names, nil
}

func validateAndExtractImportsAndDecls(file string, body []estree.Statement, varCtx, exports *ExportTable, imports []*ExportTable, depth uint32, startIdx *uint32, cp ConstraintParser) ([]string, *api.Diagnostic) {
	var names []string
	importIdx := 0
	diag := attrs.ForEach(file, body, func(stmt estree.Statement, a attrs.Set) *api.Diagnostic {
		switch s := stmt.(type) {
		case *estree.FunctionDeclaration:
			return processFuncDeclValidation(file, varCtx, &names, s, a, depth, startIdx, cp)
		case *estree.VariableDeclaration:
			return processVarDeclValidation(file, varCtx, &names, s, a, depth, startIdx)
		case *estree.ImportDeclaration:
			if importIdx >= len(imports) {
				api.Raise("preparse.validateAndExtractImportsAndDecls", "more ImportDeclarations than resolved import tables")
			}
			d := processImportDeclValidation(file, varCtx, &names, imports[importIdx], s, a)
			importIdx++
			return d
		case *estree.ExportNamedDeclaration:
			return processExportDeclValidation(file, varCtx, exports, s, a)
		}
		return nil
	})
	if diag != nil {
		return nil, diag
	}
	return names, nil
}

func processFuncDeclValidation(file string, varCtx *ExportTable, names *[]string, fd *estree.FunctionDeclaration, a attrs.Set, depth uint32, startIdx *uint32, cp ConstraintParser) *api.Diagnostic {
	if _, isDirect := a["direct"]; isDirect {
		constraintVal, constraintPresent := a["constraint"]
		name, isNew, diag := tryCoalesceIdDirect(file, varCtx, fd.Params, fd.Id, fd.Loc(), constraintPresent, constraintVal, startIdx, cp)
		if diag != nil {
			return diag
		}
		if isNew {
			*names = append(*names, name)
		}
		return nil
	}
	name, _, diag := tryCoalesceIdTarget(file, varCtx, fd.Id, depth, startIdx)
	if diag != nil {
		return diag
	}
	*names = append(*names, name)
	return nil
}

func processVarDeclValidation(file string, varCtx *ExportTable, names *[]string, vd *estree.VariableDeclaration, a attrs.Set, depth uint32, startIdx *uint32) *api.Diagnostic {
	if _, isDirect := a["direct"]; isDirect {
		return errAt(file, vd.Loc(), api.KindAttributeContentError, "the 'direct' attribute can only appear on a function declaration")
	}
	for i := range vd.Declarations {
		name, _, diag := tryCoalesceIdTarget(file, varCtx, vd.Declarations[i].Id, depth, startIdx)
		if diag != nil {
			return diag
		}
		*names = append(*names, name)
	}
	return nil
}

func processImportDeclValidation(file string, varCtx *ExportTable, names *[]string, importState *ExportTable, id *estree.ImportDeclaration, a attrs.Set) *api.Diagnostic {
	if len(a) != 0 {
		return errAt(file, id.Loc(), api.KindAttributeContentError, "attributes are not allowed on an import declaration")
	}
	for i := range id.Specifiers {
		spec := &id.Specifiers[i]
		v, ok := importState.Get(spec.Imported.Name)
		if !ok {
			return errAt(file, spec.Imported.Loc(), api.KindUndeclaredExportError, "module %q has no export named %q", id.Source, spec.Imported.Name)
		}
		ok2, isNew := varCtx.TryCoalesce(spec.Local.Name, v)
		if !ok2 {
			return errAt(file, spec.Local.Loc(), api.KindDuplicateDeclarationError, "duplicate declaration of %q", spec.Local.Name)
		}
		if isNew {
			*names = append(*names, spec.Local.Name)
		}
	}
	return nil
}

func processExportDeclValidation(file string, varCtx, exports *ExportTable, ed *estree.ExportNamedDeclaration, a attrs.Set) *api.Diagnostic {
	if len(a) != 0 {
		return errAt(file, ed.Loc(), api.KindAttributeContentError, "attributes are not allowed on an export declaration")
	}
	for i := range ed.Specifiers {
		spec := &ed.Specifiers[i]
		v, ok := varCtx.Get(spec.Local.Name)
		if !ok {
			return errAt(file, spec.Local.Loc(), api.KindUndeclaredNameError, "undeclared name %q", spec.Local.Name)
		}
		ok2, _ := exports.TryCoalesce(spec.Exported.Name, v)
		if !ok2 {
			return errAt(file, spec.Exported.Loc(), api.KindDuplicateExportError, "duplicate export of %q", spec.Exported.Name)
		}
	}
	return nil
}

func tryCoalesceIdTarget(file string, varCtx *ExportTable, id *estree.Identifier, depth uint32, startIdx *uint32) (string, varloc.Id, *api.Diagnostic) {
	vlid := varloc.Id{Depth: depth, Index: *startIdx}
	ok, _ := varCtx.TryCoalesce(id.Name, varloc.Target(vlid))
	if !ok {
		return "", varloc.Id{}, errAt(file, id.Loc(), api.KindDuplicateDeclarationError, "duplicate declaration of %q", id.Name)
	}
	*startIdx++
	return id.Name, vlid, nil
}

func tryCoalesceIdDirect(file string, varCtx *ExportTable, params []*estree.Identifier, id *estree.Identifier, loc estree.Loc, constraintPresent bool, constraintVal *string, startIdx *uint32, cp ConstraintParser) (string, bool, *api.Diagnostic) {
	paramSet := make(map[string]bool, len(params))
	for _, p := range params {
		if paramSet[p.Name] {
			return "", false, errAt(file, p.Loc(), api.KindDuplicateDeclarationError, "duplicate parameter name %q", p.Name)
		}
		paramSet[p.Name] = true
	}

	var constraints map[string]api.VarType
	if constraintPresent {
		if constraintVal == nil {
			return "", false, errAt(file, loc, api.KindAttributeContentError, "the 'constraint' attribute must have a value")
		}
		parsed, err := cp.Parse(*constraintVal)
		if err != nil {
			return "", false, errAt(file, loc, api.KindAttributeContentError, "invalid 'constraint' attribute: %s", err.Error())
		}
		constraints = parsed
	}
	for name := range constraints {
		if !paramSet[name] {
			return "", false, errAt(file, loc, api.KindAttributeContentError, "parameter name %q specified in 'constraint' attribute does not exist", name)
		}
	}

	paramTypes := make([]api.VarType, len(params))
	for i, p := range params {
		if vt, ok := constraints[p.Name]; ok {
			paramTypes[i] = vt
		} else {
			paramTypes[i] = api.Any
		}
	}

	ok, isNewName := varCtx.TryCoalesce(id.Name, varloc.Direct(varloc.Signature{Params: paramTypes}, -1))
	if !ok {
		return "", false, errAt(file, id.Loc(), api.KindDuplicateDeclarationError, "duplicate declaration of %q", id.Name)
	}
	if !isNewName {
		return "", false, nil
	}
	*startIdx++
	return id.Name, true, nil
}

func validateAndExtractParams(file string, params []*estree.Identifier, depth uint32) ([]decl, *api.Diagnostic) {
	seen := make(map[string]bool, len(params))
	out := make([]decl, len(params))
	for i, p := range params {
		if seen[p.Name] {
			return nil, errAt(file, p.Loc(), api.KindDuplicateDeclarationError, "duplicate parameter name %q", p.Name)
		}
		seen[p.Name] = true
		out[i] = decl{Name: p.Name, Var: varloc.Target(varloc.Id{Depth: depth, Index: uint32(i)})}
	}
	return out, nil
}

func bindIdentifiers(decls []decl, idents []*estree.Identifier) {
	for i, id := range idents {
		v := decls[i].Var
		id.ResolvedVar = &v
	}
}

// ---- Functions and blocks ----

// preParseFunction implements spec.md §4.6 "Per-function" identically
// for FunctionDeclaration and ArrowFunctionExpression bodies.
//
// Parameters and the function body's own top-level declarations share
// one depth (depth+1), not two: they are extracted through two
// separate, non-cross-checking validation passes (validateAndExtractParams
// for params, validateAndExtractDecls for the body) and then pushed into
// the name context as ONE combined scope, params first. Because the two
// passes never see each other's names, a parameter and a body-level
// `let` of the same name are never flagged as a duplicate declaration —
// the body declaration's entry in the combined scope simply overwrites
// the parameter's, silently shadowing it for every subsequent lookup in
// the body. This is a preserved defect of the source language, not a
// bug in this port.
func preParseFunction(file string, fn funcNode, loc estree.Loc, ctx *nameCtx, depth uint32, cp ConstraintParser) (usage.Map, *api.Diagnostic) {
	newDepth := depth + 1

	params := fn.Params()
	currParams, diag := validateAndExtractParams(file, params, newDepth)
	if diag != nil {
		return usage.Map{}, diag
	}

	retUsages := usage.New()
	for _, p := range currParams {
		retUsages = usage.MergeSeries(retUsages, usage.FromModified(p.Var.TargetID))
	}

	var directFuncs []estree.DirectFuncEntry
	body := fn.Body()

	if blockBody, isBlock := body.(*estree.BlockStatement); isBlock {
		startIdx := uint32(len(currParams))
		// A fresh, unseeded table: body declarations are validated for
		// duplicates only against each other, never against the params
		// already extracted above. That is what lets a body-level `let`
		// silently shadow a same-named parameter instead of colliding
		// with it — see preParseFunction's doc comment.
		varCtx := NewExportTable()
		names, d := validateAndExtractDecls(file, blockBody.Body, varCtx, newDepth, &startIdx, cp)
		if d != nil {
			return usage.Map{}, d
		}
		bodyDecls := finalizeDecls(varCtx, names)

		allDecls := append(append([]decl{}, currParams...), bodyDecls...)
		ctx.pushScope(allDecls)
		bindIdentifiers(currParams, params)

		diag = attrs.ForEach(file, blockBody.Body, func(stmt estree.Statement, a attrs.Set) *api.Diagnostic {
			u, d := preParseStatement(file, stmt, a, ctx, &directFuncs, newDepth, cp)
			if d != nil {
				return d
			}
			retUsages = usage.MergeSeries(retUsages, u)
			return nil
		})
	} else {
		ctx.pushScope(currParams)
		bindIdentifiers(currParams, params)

		exprBody, ok := body.(estree.Expression)
		if !ok {
			ctx.popScope()
			return usage.Map{}, errAt(file, loc, api.KindESTreeError, "arrow function body must be a block or an expression")
		}
		result, d := preParseExpr(file, exprBody, ctx, newDepth, cp)
		if d != nil {
			diag = d
		} else {
			retUsages = usage.MergeSeries(retUsages, result.asSingle())
		}
	}

	addressTaken := usage.SplitOffAddressTaken(&retUsages, newDepth)
	fn.SetAddressTakenVars(toVarLocIndices(addressTaken))
	fn.SetDirectFuncs(directFuncs)
	fn.SetCapturedVars(retUsages.Keys())

	ctx.popScope()

	if diag != nil {
		return usage.Map{}, diag
	}
	return usage.WrapClosure(retUsages), nil
}

// preParseBlockStatement implements spec.md §4.6 "Per-block" for a
// genuine nested block — an if-branch or a bare `{ ... }` — which is
// always one depth deeper than its enclosing scope. This is distinct
// from a function's own top-level body block, which preParseFunction
// handles inline at the SAME depth as the function's parameters; a
// function's Body field is therefore never routed through this
// function, and its AddressTakenVars/DirectFuncs fields are left at
// their zero value (the function's own fields carry that information
// instead).
func preParseBlockStatement(file string, block *estree.BlockStatement, ctx *nameCtx, depth uint32, cp ConstraintParser) (usage.Map, *api.Diagnostic) {
	newDepth := depth + 1

	varCtx := NewExportTable()
	startIdx := uint32(0)
	names, diag := validateAndExtractDecls(file, block.Body, varCtx, newDepth, &startIdx, cp)
	if diag != nil {
		return usage.Map{}, diag
	}
	decls := finalizeDecls(varCtx, names)
	ctx.pushScope(decls)

	retUsages := usage.New()
	var directFuncs []estree.DirectFuncEntry
	diag = attrs.ForEach(file, block.Body, func(stmt estree.Statement, a attrs.Set) *api.Diagnostic {
		u, d := preParseStatement(file, stmt, a, ctx, &directFuncs, newDepth, cp)
		if d != nil {
			return d
		}
		retUsages = usage.MergeSeries(retUsages, u)
		return nil
	})
	block.DirectFuncs = directFuncs

	addressTaken := usage.SplitOffAddressTaken(&retUsages, newDepth)
	block.AddressTakenVars = toVarLocIndices(addressTaken)

	ctx.popScope()

	if diag != nil {
		return usage.Map{}, diag
	}
	return retUsages, nil
}

// ---- Statements ----

func preParseStatement(file string, stmt estree.Statement, a attrs.Set, ctx *nameCtx, directFuncs *[]estree.DirectFuncEntry, depth uint32, cp ConstraintParser) (usage.Map, *api.Diagnostic) {
	var direct, constraintOK bool
	var constraintVal *string
	for key, val := range a {
		switch key {
		case "direct":
			if val != nil {
				return usage.Map{}, errAt(file, stmt.Loc(), api.KindAttributeContentError, "the 'direct' attribute takes no value")
			}
			direct = true
		case "constraint":
			if val == nil {
				return usage.Map{}, errAt(file, stmt.Loc(), api.KindAttributeContentError, "the 'constraint' attribute must have a value")
			}
			constraintVal = val
			constraintOK = true
		default:
			return usage.Map{}, errAt(file, stmt.Loc(), api.KindAttributeUnrecognizedError, "unrecognized attribute %q", key)
		}
	}
	if constraintOK && !direct {
		return usage.Map{}, errAt(file, stmt.Loc(), api.KindAttributeContentError, "the 'constraint' attribute requires 'direct'")
	}

	if direct {
		fd, ok := stmt.(*estree.FunctionDeclaration)
		if !ok {
			return usage.Map{}, errAt(file, stmt.Loc(), api.KindAttributeContentError, "the 'direct' attribute can only appear on a function declaration")
		}
		fd.Attrs = &estree.Attributes{Direct: true, Constraint: constraintVal}
		return preParseDirectFuncDecl(file, fd, ctx, directFuncs, depth, cp)
	}

	switch s := stmt.(type) {
	case *estree.ExpressionStatement:
		return preParseExprStatement(file, s, ctx, depth, cp)
	case *estree.BlockStatement:
		return preParseBlockStatement(file, s, ctx, depth, cp)
	case *estree.ReturnStatement:
		return preParseReturnStatement(file, s, ctx, depth, cp)
	case *estree.IfStatement:
		return preParseIfStatement(file, s, ctx, depth, cp)
	case *estree.FunctionDeclaration:
		return preParseFuncDecl(file, s, ctx, directFuncs, depth, cp)
	case *estree.VariableDeclaration:
		return preParseVarDecl(file, s, ctx, depth, cp)
	case *estree.ImportDeclaration:
		if depth != 0 {
			return usage.Map{}, errAt(file, stmt.Loc(), api.KindESTreeError, "statement node expected in a block statement")
		}
		return usage.New(), preParseImportDecl(file, s, ctx)
	case *estree.ExportNamedDeclaration:
		if depth != 0 {
			return usage.Map{}, errAt(file, stmt.Loc(), api.KindESTreeError, "statement node expected in a block statement")
		}
		return usage.New(), preParseExportDecl(file, s, ctx)
	}

	if depth == 0 {
		return usage.Map{}, errAt(file, stmt.Loc(), api.KindESTreeError, "statement, import, or export node expected at top level")
	}
	return usage.Map{}, errAt(file, stmt.Loc(), api.KindESTreeError, "statement node expected in a block statement")
}

func preParseExprStatement(file string, stmt *estree.ExpressionStatement, ctx *nameCtx, depth uint32, cp ConstraintParser) (usage.Map, *api.Diagnostic) {
	if assign, ok := stmt.Expression.(*estree.AssignmentExpression); ok {
		if assign.Operator != estree.AssignPlain {
			return usage.Map{}, errAt(file, stmt.Loc(), api.KindSourceRestrictionError, "compound assignment operators are not allowed")
		}
		lhs, ok := assign.Left.(*estree.Identifier)
		if !ok {
			return usage.Map{}, errAt(file, assign.Left.Loc(), api.KindESTreeError, "assignment target must be a plain identifier")
		}
		rhsResult, diag := preParseExpr(file, assign.Right, ctx, depth, cp)
		if diag != nil {
			return usage.Map{}, diag
		}
		rhs := rhsResult.asSingle()

		pv, ok := ctx.lookup(lhs.Name)
		if !ok {
			return usage.Map{}, errAt(file, lhs.Loc(), api.KindUndeclaredNameError, "undeclared name %q", lhs.Name)
		}
		resolved := pv
		lhs.ResolvedVar = &resolved
		if pv.IsDirect() {
			api.Raise("preparse.preParseExprStatement", "assignment target %q resolved to a direct function", lhs.Name)
		}
		if pv.TargetID.Depth == 0 {
			return rhs, nil
		}
		return usage.MergeSeries(rhs, usage.FromModified(pv.TargetID)), nil
	}

	result, diag := preParseExpr(file, stmt.Expression, ctx, depth, cp)
	if diag != nil {
		return usage.Map{}, diag
	}
	return result.asSingle(), nil
}

func preParseReturnStatement(file string, stmt *estree.ReturnStatement, ctx *nameCtx, depth uint32, cp ConstraintParser) (usage.Map, *api.Diagnostic) {
	if stmt.Argument == nil {
		return usage.Map{}, errAt(file, stmt.Loc(), api.KindSourceRestrictionError, "a return statement must have a value")
	}
	result, diag := preParseExpr(file, stmt.Argument, ctx, depth, cp)
	if diag != nil {
		return usage.Map{}, diag
	}
	return result.asSingle(), nil
}

func preParseIfStatement(file string, stmt *estree.IfStatement, ctx *nameCtx, depth uint32, cp ConstraintParser) (usage.Map, *api.Diagnostic) {
	if stmt.Alternate == nil {
		return usage.Map{}, errAt(file, stmt.Loc(), api.KindESTreeError, "an if statement must have an else branch")
	}
	testResult, diag := preParseExpr(file, stmt.Test, ctx, depth, cp)
	if diag != nil {
		return usage.Map{}, diag
	}
	test := testResult.asSingle()

	trueUsages, diag := preParseBlockStatement(file, stmt.Consequent, ctx, depth, cp)
	if diag != nil {
		return usage.Map{}, diag
	}
	falseUsages, diag := preParseBlockStatement(file, stmt.Alternate, ctx, depth, cp)
	if diag != nil {
		return usage.Map{}, diag
	}
	return usage.MergeSeries(test, usage.MergeParallel(trueUsages, falseUsages)), nil
}

func preParseFuncDecl(file string, fd *estree.FunctionDeclaration, ctx *nameCtx, directFuncs *[]estree.DirectFuncEntry, depth uint32, cp ConstraintParser) (usage.Map, *api.Diagnostic) {
	rhs, diag := preParseFunction(file, funcDeclNode{fd}, fd.Loc(), ctx, depth, cp)
	if diag != nil {
		return usage.Map{}, diag
	}

	pv, ok := ctx.lookup(fd.Id.Name)
	if !ok {
		api.Raise("preparse.preParseFuncDecl", "function name %q must already be in scope", fd.Id.Name)
	}
	cp2 := pv
	fd.Id.ResolvedVar = &cp2

	if pv.TargetID.Depth == 0 {
		return rhs, nil
	}
	return usage.MergeSeries(rhs, usage.FromModified(pv.TargetID)), nil
}

func preParseDirectFuncDecl(file string, fd *estree.FunctionDeclaration, ctx *nameCtx, directFuncs *[]estree.DirectFuncEntry, depth uint32, cp ConstraintParser) (usage.Map, *api.Diagnostic) {
	rhs, diag := preParseFunction(file, funcDeclNode{fd}, fd.Loc(), ctx, depth, cp)
	if diag != nil {
		return usage.Map{}, diag
	}

	fd.Id.ResolvedVar = &varloc.PreVar{Kind: varloc.KindDirect}

	var constraints map[string]api.VarType
	if fd.Attrs != nil && fd.Attrs.Constraint != nil {
		parsed, err := cp.Parse(*fd.Attrs.Constraint)
		if err != nil {
			return usage.Map{}, errAt(file, fd.Loc(), api.KindAttributeContentError, "invalid 'constraint' attribute: %s", err.Error())
		}
		constraints = parsed
	}
	paramTypes := make([]api.VarType, len(fd.Params))
	for i, p := range fd.Params {
		if vt, ok := constraints[p.Name]; ok {
			paramTypes[i] = vt
		} else {
			paramTypes[i] = api.Any
		}
	}
	*directFuncs = append(*directFuncs, estree.DirectFuncEntry{Name: fd.Id.Name, Params: paramTypes})

	if rhs.Len() != 0 {
		return usage.Map{}, errAt(file, fd.Loc(), api.KindDirectFunctionCaptureError, "direct function %q may not capture any variable", fd.Id.Name)
	}
	return rhs, nil
}

func preParseVarDecl(file string, vd *estree.VariableDeclaration, ctx *nameCtx, depth uint32, cp ConstraintParser) (usage.Map, *api.Diagnostic) {
	total := usage.New()
	for i := range vd.Declarations {
		declr := &vd.Declarations[i]
		if declr.Init == nil {
			return usage.Map{}, errAt(file, declr.L, api.KindSourceRestrictionError, "a variable initializer is required")
		}
		result, diag := preParseExpr(file, declr.Init, ctx, depth, cp)
		if diag != nil {
			return usage.Map{}, diag
		}

		resolve := func() (varloc.PreVar, *api.Diagnostic) {
			pv, ok := ctx.lookup(declr.Id.Name)
			if !ok {
				api.Raise("preparse.preParseVarDecl", "declared name %q must already be in scope", declr.Id.Name)
			}
			return pv, nil
		}

		var current usage.Map
		if !result.multi {
			pv, _ := resolve()
			cp2 := pv
			declr.Id.ResolvedVar = &cp2
			rhs := result.asSingle()
			if pv.TargetID.Depth == 0 {
				current = rhs
			} else {
				current = usage.MergeSeries(rhs, usage.FromModified(pv.TargetID))
			}
		} else {
			if len(result.maps) == 0 {
				return usage.Map{}, errAt(file, declr.L, api.KindSourceRestrictionError, "unable to resolve multiple usage maps for an empty array expression")
			}
			var folded usage.Map
			haveFolded := false
			for _, elemUsage := range result.maps {
				pv, _ := resolve()
				cp2 := pv
				declr.Id.ResolvedVar = &cp2
				var elem usage.Map
				if pv.TargetID.Depth == 0 {
					elem = elemUsage
				} else {
					elem = usage.MergeSeries(elemUsage, usage.FromModified(pv.TargetID))
				}
				if !haveFolded {
					folded = elem
					haveFolded = true
				} else {
					folded = usage.MergeSeries(folded, elem)
				}
			}
			current = folded
		}
		total = usage.MergeSeries(total, current)
	}
	return total, nil
}

func preParseImportDecl(file string, id *estree.ImportDeclaration, ctx *nameCtx) *api.Diagnostic {
	for i := range id.Specifiers {
		spec := &id.Specifiers[i]
		pv, ok := ctx.lookup(spec.Local.Name)
		if !ok {
			api.Raise("preparse.preParseImportDecl", "imported local name %q must already be in scope", spec.Local.Name)
		}
		cp := pv
		spec.Local.ResolvedVar = &cp
	}
	return nil
}

func preParseExportDecl(file string, ed *estree.ExportNamedDeclaration, ctx *nameCtx) *api.Diagnostic {
	for i := range ed.Specifiers {
		spec := &ed.Specifiers[i]
		pv, ok := ctx.lookup(spec.Local.Name)
		if !ok {
			api.Raise("preparse.preParseExportDecl", "exported local name %q must already be in scope", spec.Local.Name)
		}
		cp := pv
		spec.Local.ResolvedVar = &cp
	}
	return nil
}

// ---- Expressions ----

func preParseExpr(file string, expr estree.Expression, ctx *nameCtx, depth uint32, cp ConstraintParser) (exprResult, *api.Diagnostic) {
	switch e := expr.(type) {
	case *estree.Identifier:
		u, diag := preParseIdentifierUse(file, e, ctx)
		if diag != nil {
			return exprResult{}, diag
		}
		return single(u), nil

	case *estree.Literal:
		switch e.Kind {
		case estree.LiteralString, estree.LiteralBoolean, estree.LiteralNumber:
			return single(usage.New()), nil
		default:
			return exprResult{}, errAt(file, e.Loc(), api.KindSourceRestrictionError, "null and regex literals are not supported")
		}

	case *estree.FunctionExpression:
		return exprResult{}, errAt(file, e.Loc(), api.KindSourceRestrictionError, "use an arrow function instead of a function expression")

	case *estree.ArrowFunctionExpression:
		u, diag := preParseFunction(file, arrowNode{e}, e.Loc(), ctx, depth, cp)
		if diag != nil {
			return exprResult{}, diag
		}
		return single(u), nil

	case *estree.UnaryExpression:
		return preParseExpr(file, e.Argument, ctx, depth, cp)

	case *estree.UpdateExpression:
		return exprResult{}, errAt(file, e.Loc(), api.KindSourceRestrictionError, "increment and decrement operators are not allowed")

	case *estree.BinaryExpression:
		lhsR, diag := preParseExpr(file, e.Left, ctx, depth, cp)
		if diag != nil {
			return exprResult{}, diag
		}
		rhsR, diag := preParseExpr(file, e.Right, ctx, depth, cp)
		if diag != nil {
			return exprResult{}, diag
		}
		return single(usage.MergeSeries(lhsR.asSingle(), rhsR.asSingle())), nil

	case *estree.LogicalExpression:
		lhsR, diag := preParseExpr(file, e.Left, ctx, depth, cp)
		if diag != nil {
			return exprResult{}, diag
		}
		rhsR, diag := preParseExpr(file, e.Right, ctx, depth, cp)
		if diag != nil {
			return exprResult{}, diag
		}
		return single(usage.MergeSeries(lhsR.asSingle(), rhsR.asSingle())), nil

	case *estree.AssignmentExpression:
		return exprResult{}, errAt(file, e.Loc(), api.KindSourceRestrictionError, "assignment cannot be nested in an expression")

	case *estree.ConditionalExpression:
		testR, diag := preParseExpr(file, e.Test, ctx, depth, cp)
		if diag != nil {
			return exprResult{}, diag
		}
		trueR, diag := preParseExpr(file, e.Consequent, ctx, depth, cp)
		if diag != nil {
			return exprResult{}, diag
		}
		falseR, diag := preParseExpr(file, e.Alternate, ctx, depth, cp)
		if diag != nil {
			return exprResult{}, diag
		}
		merged := usage.MergeSeries(testR.asSingle(), usage.MergeParallel(trueR.asSingle(), falseR.asSingle()))
		return single(merged), nil

	case *estree.CallExpression:
		calleeR, diag := preParseExpr(file, e.Callee, ctx, depth, cp)
		if diag != nil {
			return exprResult{}, diag
		}
		acc := calleeR
		for _, argExpr := range e.Arguments {
			argR, diag := preParseExpr(file, argExpr, ctx, depth, cp)
			if diag != nil {
				return exprResult{}, diag
			}
			acc = single(usage.MergeSeries(acc.asSingle(), argR.asSingle()))
		}
		return acc, nil

	case *estree.ArrayExpression:
		maps := make([]usage.Map, len(e.Elements))
		for i, el := range e.Elements {
			elR, diag := preParseExpr(file, el, ctx, depth, cp)
			if diag != nil {
				return exprResult{}, diag
			}
			maps[i] = elR.asSingle()
		}
		return multiple(maps), nil

	default:
		return exprResult{}, errAt(file, expr.Loc(), api.KindESTreeError, "expression node expected, got %s", fmt.Sprintf("%T", expr))
	}
}

func preParseIdentifierUse(file string, id *estree.Identifier, ctx *nameCtx) (usage.Map, *api.Diagnostic) {
	pv, ok := ctx.lookup(id.Name)
	if !ok {
		return usage.Map{}, errAt(file, id.Loc(), api.KindUndeclaredNameError, "undeclared name %q", id.Name)
	}
	cp := pv
	id.ResolvedVar = &cp
	if pv.IsDirect() {
		return usage.New(), nil
	}
	if pv.TargetID.Depth == 0 {
		return usage.New(), nil
	}
	return usage.FromUsed(pv.TargetID), nil
}
