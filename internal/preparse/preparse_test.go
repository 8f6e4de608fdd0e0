package preparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/estree"
	"github.com/sourceror/compiler/internal/varloc"
)

// noConstraints is a ConstraintParser that never sees a constraint
// string in these tests (none of them declare a `direct` function with
// one); kept trivial on purpose.
type noConstraints struct{}

func (noConstraints) Parse(s string) (map[string]api.VarType, error) {
	return nil, nil
}

func ident(name string) *estree.Identifier {
	return &estree.Identifier{Name: name}
}

func numberLit() *estree.Literal {
	return &estree.Literal{Kind: estree.LiteralNumber, Number: 0}
}

func exprStmt(e estree.Expression) *estree.ExpressionStatement {
	return &estree.ExpressionStatement{Expression: e}
}

func letDecl(name string, init estree.Expression) *estree.VariableDeclaration {
	return &estree.VariableDeclaration{
		Declarations: []estree.VariableDeclarator{{Id: ident(name), Init: init}},
	}
}

func block(stmts ...estree.Statement) *estree.BlockStatement {
	return &estree.BlockStatement{Body: stmts}
}

func program(stmts ...estree.Statement) *estree.Program {
	return &estree.Program{Body: stmts}
}

func TestPreParseProgramResolvesGlobalLet(t *testing.T) {
	decl := letDecl("x", numberLit())
	p := program(decl)

	exports, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.Nil(t, diag)
	require.NotNil(t, exports)

	id := decl.Declarations[0].Id
	require.NotNil(t, id.ResolvedVar)
	require.True(t, id.ResolvedVar.IsTarget())
	require.Equal(t, varloc.Id{Depth: 0, Index: 0}, id.ResolvedVar.TargetID)
}

func TestPreParseProgramRejectsUndeclaredName(t *testing.T) {
	p := program(exprStmt(ident("missing")))

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.NotNil(t, diag)
	require.Equal(t, api.KindUndeclaredNameError, diag.Kind)
}

func TestPreParseProgramRejectsDuplicateDeclaration(t *testing.T) {
	p := program(letDecl("x", numberLit()), letDecl("x", numberLit()))

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.NotNil(t, diag)
	require.Equal(t, api.KindDuplicateDeclarationError, diag.Kind)
}

func TestPreParseProgramRejectsUninitializedVar(t *testing.T) {
	p := program(&estree.VariableDeclaration{
		Declarations: []estree.VariableDeclarator{{Id: ident("x"), Init: nil}},
	})

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.NotNil(t, diag)
	require.Equal(t, api.KindSourceRestrictionError, diag.Kind)
}

func TestPreParseProgramGlobalReferenceContributesNoUsage(t *testing.T) {
	// let x = 1;
	// let f = (y) => x;
	// A reference to a module-scope (depth 0) binding never counts as a
	// capture: module scope is always directly addressable, so it never
	// needs heap allocation or closure-capture treatment.
	outer := letDecl("x", numberLit())
	arrow := &estree.ArrowFunctionExpression{
		Params: []*estree.Identifier{ident("y")},
		Body:   ident("x"),
	}
	inner := letDecl("f", arrow)
	p := program(outer, inner)

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.Nil(t, diag)

	require.Empty(t, arrow.CapturedVars)
	require.Empty(t, arrow.AddressTakenVars)
}

func TestPreParseFunctionAddressTakenBlockLocalNotCaptured(t *testing.T) {
	// let f = () => {
	//   let z = 1;
	//   let g = () => z;
	//   return z;
	// };
	innerArrow := &estree.ArrowFunctionExpression{Body: ident("z")}
	body := block(
		letDecl("z", numberLit()),
		letDecl("g", innerArrow),
		&estree.ReturnStatement{Argument: ident("z")},
	)
	outerArrow := &estree.ArrowFunctionExpression{Body: body}
	p := program(letDecl("f", outerArrow))

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.Nil(t, diag)

	// z is referenced from within g, a nested closure, so it must be
	// heap-allocated (address-taken) at the outer function's own depth;
	// it must not show up as something the outer function itself
	// "captures" from further out, since z is declared inside it.
	require.Len(t, outerArrow.AddressTakenVars, 1)
	require.Empty(t, outerArrow.CapturedVars)

	// g, on the other hand, genuinely captures z from its enclosing
	// scope (one depth shallower than g's own body).
	require.Len(t, innerArrow.CapturedVars, 1)
	require.Equal(t, outerArrow.AddressTakenVars[0], innerArrow.CapturedVars[0].Index)
}

func TestPreParseFunctionParamShadowedByBodyLetIsNotADuplicate(t *testing.T) {
	// A preserved defect (see preParseFunction's doc comment): a
	// parameter and a same-named body-level `let` are validated in
	// separate passes and never cross-checked, so no
	// DuplicateDeclarationError is raised; the body declaration simply
	// shadows the parameter for subsequent lookups in the body.
	fn := &estree.FunctionDeclaration{
		Id:     ident("f"),
		Params: []*estree.Identifier{ident("x")},
		Body: block(
			letDecl("x", numberLit()),
			&estree.ReturnStatement{Argument: ident("x")},
		),
	}
	p := program(fn)

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.Nil(t, diag)

	retStmt := fn.Body.Body[1].(*estree.ReturnStatement)
	usedId := retStmt.Argument.(*estree.Identifier)
	require.NotNil(t, usedId.ResolvedVar)
	// Resolves to the body-level let (index 1, the second decl at this
	// depth), not the parameter (index 0).
	require.Equal(t, uint32(1), usedId.ResolvedVar.TargetID.Index)
}

func TestPreParseIfStatementRequiresElseBranch(t *testing.T) {
	ifStmt := &estree.IfStatement{
		Test:       &estree.Literal{Kind: estree.LiteralBoolean, Boolean: true},
		Consequent: block(),
		Alternate:  nil,
	}
	p := program(ifStmt)

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.NotNil(t, diag)
	require.Equal(t, api.KindESTreeError, diag.Kind)
}

func TestPreParseRejectsCompoundAssignment(t *testing.T) {
	decl := letDecl("x", numberLit())
	assign := &estree.AssignmentExpression{
		Operator: "+=",
		Left:     ident("x"),
		Right:    numberLit(),
	}
	p := program(decl, exprStmt(assign))

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.NotNil(t, diag)
	require.Equal(t, api.KindSourceRestrictionError, diag.Kind)
}

func TestPreParseRejectsNestedAssignment(t *testing.T) {
	decl := letDecl("x", numberLit())
	nested := &estree.BinaryExpression{
		Operator: "+",
		Left:     &estree.AssignmentExpression{Operator: estree.AssignPlain, Left: ident("x"), Right: numberLit()},
		Right:    numberLit(),
	}
	p := program(decl, exprStmt(nested))

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.NotNil(t, diag)
	require.Equal(t, api.KindSourceRestrictionError, diag.Kind)
}

func TestPreParseRejectsFunctionExpression(t *testing.T) {
	decl := letDecl("f", &estree.FunctionExpression{})
	p := program(decl)

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.NotNil(t, diag)
	require.Equal(t, api.KindSourceRestrictionError, diag.Kind)
}

func TestPreParseArrayLiteralAsVarInitIsAccepted(t *testing.T) {
	decl := letDecl("pair", &estree.ArrayExpression{
		Elements: []estree.Expression{numberLit(), numberLit()},
	})
	p := program(decl)

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.Nil(t, diag)
}

func TestPreParseDirectFunctionCannotCapture(t *testing.T) {
	// A direct function declared directly inside another function's
	// body, referencing that enclosing function's own local, must be
	// rejected: direct functions are statically monomorphized and
	// cannot close over anything (only module-scope globals, which
	// contribute no usage at all, are reachable from one without
	// capturing).
	attrStmt := exprStmt(&estree.AssignmentExpression{
		Operator: estree.AssignPlain,
		Left:     ident("__attributes"),
		Right:    &estree.Literal{Kind: estree.LiteralString, String: "direct"},
	})
	direct := &estree.FunctionDeclaration{
		Id:     ident("g"),
		Params: nil,
		Body:   block(&estree.ReturnStatement{Argument: ident("x")}),
	}
	outerBody := block(
		letDecl("x", numberLit()),
		attrStmt,
		direct,
		&estree.ReturnStatement{Argument: &estree.CallExpression{Callee: ident("g")}},
	)
	f := &estree.ArrowFunctionExpression{Body: outerBody}
	p := program(letDecl("f", f))

	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	require.NotNil(t, diag)
	require.Equal(t, api.KindDirectFunctionCaptureError, diag.Kind)
}

func TestDirectFunctionOverloadsOfDistinctArityMerge(t *testing.T) {
	fnA := &estree.FunctionDeclaration{
		Id:     ident("f"),
		Params: []*estree.Identifier{ident("a")},
		Body:   block(&estree.ReturnStatement{Argument: ident("a")}),
	}
	fnB := &estree.FunctionDeclaration{
		Id:     ident("f"),
		Params: []*estree.Identifier{ident("a"), ident("b")},
		Body:   block(&estree.ReturnStatement{Argument: ident("a")}),
	}
	p := program(fnA, fnB)

	diag := driveWithAttrs(t, p, map[string]attrFor{"f": {direct: true}})
	require.Nil(t, diag)
}

func TestDirectFunctionOverloadsOfIdenticalSignatureCollide(t *testing.T) {
	fnA := &estree.FunctionDeclaration{
		Id:     ident("f"),
		Params: []*estree.Identifier{ident("a")},
		Body:   block(&estree.ReturnStatement{Argument: ident("a")}),
	}
	fnB := &estree.FunctionDeclaration{
		Id:     ident("f"),
		Params: []*estree.Identifier{ident("b")},
		Body:   block(&estree.ReturnStatement{Argument: ident("b")}),
	}
	p := program(fnA, fnB)

	diag := driveWithAttrs(t, p, map[string]attrFor{"f": {direct: true}})
	require.NotNil(t, diag)
	require.Equal(t, api.KindDuplicateDeclarationError, diag.Kind)
}

// attrFor is a small test fixture describing the __attributes string a
// test wants attached ahead of a particular FunctionDeclaration, keyed
// by its Id.Name. It is deliberately minimal: only the `direct` shape
// these tests exercise.
type attrFor struct {
	direct bool
}

// driveWithAttrs inserts an __attributes pseudo-statement, as it would
// appear in source, ahead of any FunctionDeclaration named in
// attrsByName, then runs PreParseProgram.
func driveWithAttrs(t *testing.T, p *estree.Program, attrsByName map[string]attrFor) *api.Diagnostic {
	t.Helper()
	var out []estree.Statement
	for _, stmt := range p.Body {
		if fd, ok := stmt.(*estree.FunctionDeclaration); ok {
			if a, ok := attrsByName[fd.Id.Name]; ok && a.direct {
				out = append(out, exprStmt(&estree.AssignmentExpression{
					Operator: estree.AssignPlain,
					Left:     ident("__attributes"),
					Right:    &estree.Literal{Kind: estree.LiteralString, String: "direct"},
				}))
			}
		}
		out = append(out, stmt)
	}
	p.Body = out
	_, diag := PreParseProgram("t.js", p, nil, nil, noConstraints{})
	return diag
}
