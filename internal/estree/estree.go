// Package estree declares the AST node shapes the pre-parser consumes.
// The parser that produces these from source text is an external
// collaborator (spec.md §1) — this package only fixes the tree shape, the
// way go/ast fixes Go's tree shape for tools that never parse Go
// themselves.
package estree

import (
	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/varloc"
)

// Loc is the source span of a node, reused verbatim as the Start/End of
// any api.Diagnostic raised about it.
type Loc struct {
	Start api.Pos
	End   api.Pos
}

// Node is implemented by every statement and expression node.
type Node interface {
	Loc() Loc
}

type base struct {
	L Loc
}

func (b base) Loc() Loc { return b.L }

// DirectFuncEntry names one direct (non-capturing, statically
// monomorphized) function declared directly within a Program or
// BlockStatement's own body, recorded there so the backend can place it
// in the function table alongside its enclosing scope's other direct
// functions (spec.md §4.6).
type DirectFuncEntry struct {
	Name   string
	Params []api.VarType
}

// Program is the root of a module's AST. DirectFuncs is populated by the
// pre-parser with every direct function declared at top level; the
// module's resolved export table is not stored here but returned by
// preparse.PreParseProgram (spec.md §4.2, §4.6).
type Program struct {
	L           Loc
	Body        []Statement
	DirectFuncs []DirectFuncEntry
}

func (p *Program) Loc() Loc { return p.L }

// ---- Statements ----

// Statement is implemented by every statement node kind the pre-parser
// recognizes (plus the ones it rejects with ESTreeError, which still
// implement it so they can appear in a block's Body).
type Statement interface {
	Node
	stmt()
}

type stmtBase struct{ base }

func (stmtBase) stmt() {}

// ExpressionStatement wraps a single expression used as a statement —
// the only shape through which attribute pseudo-statements (§4.4) and
// top-level assignment expressions (§4.6) appear.
type ExpressionStatement struct {
	stmtBase
	Expression Expression
}

// BlockStatement is a `{ ... }` sequence of statements introducing a new
// lexical scope.
type BlockStatement struct {
	stmtBase
	Body []Statement

	// AddressTakenVars is populated by the pre-parser (§4.6 "Per-block")
	// with the heap-allocated locals this block's own scope owns.
	AddressTakenVars []uint32 // varloc.Id.Index values at this block's depth

	// DirectFuncs lists the direct functions declared directly within
	// this block's own body (not nested inside a further statement).
	DirectFuncs []DirectFuncEntry
}

// ReturnStatement is `return <expr>;` or a bare `return;`.
type ReturnStatement struct {
	stmtBase
	Argument Expression // nil for a bare return
}

// IfStatement requires both branches to be present and to be blocks
// (spec.md §4.6 "both branches required, both must be blocks").
type IfStatement struct {
	stmtBase
	Test       Expression
	Consequent *BlockStatement
	Alternate  *BlockStatement
}

// VariableDeclaration introduces one or more `let`/`const` bindings.
type VariableDeclaration struct {
	stmtBase
	Declarations []VariableDeclarator
}

// VariableDeclarator is a single `name = init` (or bare `name`) binding.
type VariableDeclarator struct {
	L    Loc
	Id   *Identifier
	Init Expression // nil if uninitialized
}

// FunctionDeclaration declares a named function. Attrs, if non-nil, is
// the key/value map extracted from a preceding __attributes pseudo
// statement in the same block (§4.4, §4.6).
//
// AddressTakenVars, CapturedVars, and DirectFuncs are populated by the
// pre-parser exactly as for ArrowFunctionExpression: a non-direct
// FunctionDeclaration still compiles to a closure value, so it tracks
// its own heap-escaping locals and what it captures from enclosing
// scopes. A direct FunctionDeclaration (Attrs.Direct) never captures
// anything — the pre-parser rejects it with DirectFunctionCaptureError
// if CapturedVars would be non-empty.
type FunctionDeclaration struct {
	stmtBase
	Id     *Identifier
	Params []*Identifier
	Body   *BlockStatement
	Attrs  *Attributes

	AddressTakenVars []uint32
	CapturedVars     []varloc.Id
	DirectFuncs      []DirectFuncEntry
}

// Attributes is the recognized-keys config object for a statement's
// attribute pseudo-statement, per spec.md §9 "single-param config
// objects": {direct: bool, constraint: Option<String>}.
type Attributes struct {
	Direct     bool
	Constraint *string
}

// ImportDeclaration binds local names to exports of another module.
type ImportDeclaration struct {
	stmtBase
	Source     string
	Specifiers []ImportSpecifier
}

// ImportSpecifier is one `{ imported as local }` binding.
type ImportSpecifier struct {
	L        Loc
	Imported *Identifier
	Local    *Identifier
}

// ExportNamedDeclaration re-exports local bindings by name.
type ExportNamedDeclaration struct {
	stmtBase
	Specifiers []ExportSpecifier
}

// ExportSpecifier is one `{ local as exported }` binding.
type ExportSpecifier struct {
	L        Loc
	Local    *Identifier
	Exported *Identifier
}

// UnsupportedStatement stands in for any statement kind outside the
// supported subset (With, labels, loops, Debugger, ...). The pre-parser
// always rejects it with an ESTreeError; it exists so a full ESTree tree
// can still be represented without the parser needing a sentinel error
// type of its own.
type UnsupportedStatement struct {
	stmtBase
	Describe string
}

// ---- Expressions ----

// Expression is implemented by every expression node kind.
type Expression interface {
	Node
	expr()
}

type exprBase struct{ base }

func (exprBase) expr() {}

// Identifier is a bare name reference. ResolvedVar is populated by the
// pre-parser with the binding this name resolved to, for every
// occurrence: a declaration site's own Identifier node (the LHS of a
// VariableDeclarator, function id, or parameter) as well as every
// subsequent use (spec.md §4.6).
type Identifier struct {
	exprBase
	Name        string
	ResolvedVar *varloc.PreVar
}

// LiteralKind discriminates the literal forms the pre-parser cares
// about; Null and Regex are always rejected (spec.md §4.6).
type LiteralKind byte

const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBoolean
	LiteralNull
	LiteralRegex
)

// Literal is a constant value.
type Literal struct {
	exprBase
	Kind    LiteralKind
	Number  float64
	String  string
	Boolean bool
}

// UnaryOperator enumerates the supported unary operators.
type UnaryOperator string

// UnaryExpression is `<op> <argument>`.
type UnaryExpression struct {
	exprBase
	Operator UnaryOperator
	Argument Expression
}

// BinaryOperator enumerates the supported binary operators.
type BinaryOperator string

// BinaryExpression is `<left> <op> <right>`.
type BinaryExpression struct {
	exprBase
	Operator BinaryOperator
	Left     Expression
	Right    Expression
}

// LogicalOperator enumerates `&&`/`||`.
type LogicalOperator string

// LogicalExpression is `<left> <op> <right>` with short-circuit
// evaluation.
type LogicalExpression struct {
	exprBase
	Operator LogicalOperator
	Left     Expression
	Right    Expression
}

// ConditionalExpression is `<test> ? <consequent> : <alternate>`.
type ConditionalExpression struct {
	exprBase
	Test       Expression
	Consequent Expression
	Alternate  Expression
}

// CallExpression is `<callee>(<arguments...>)`.
type CallExpression struct {
	exprBase
	Callee    Expression
	Arguments []Expression
}

// AssignmentOperator enumerates supported assignment operators. Only
// AssignPlain ("=") is legal; compound operators are rejected (§1
// Non-goals).
type AssignmentOperator string

const AssignPlain AssignmentOperator = "="

// AssignmentExpression is `<left> = <right>`. Only legal as the sole
// expression of an ExpressionStatement, with a bare Identifier on the
// left (spec.md §4.6).
type AssignmentExpression struct {
	exprBase
	Operator AssignmentOperator
	Left     Expression
	Right    Expression
}

// UpdateExpression is `++x`/`x--`/etc. Always rejected (§1 Non-goals);
// represented so the pre-parser can name it in an ESTreeError rather
// than failing to match at all.
type UpdateExpression struct {
	exprBase
	Operator string
	Argument Expression
}

// ArrowFunctionExpression is the only legal function-literal form
// (`FunctionExpression` is rejected, §4.6).
type ArrowFunctionExpression struct {
	exprBase
	Params []*Identifier

	// Body is either a *BlockStatement (`(x) => { ... }`) or an
	// Expression (`(x) => x + 1`, implicitly "return x + 1;").
	Body Node

	// AddressTakenVars is populated by the pre-parser with the heap
	// locals this function's own body owns. A block Body's top-level
	// declarations share the parameters' depth and are recorded here;
	// Body.AddressTakenVars itself is left unset.
	AddressTakenVars []uint32

	// CapturedVars is populated by the pre-parser (§4.6 "Per-function")
	// with the full varloc.Ids this closure captures from enclosing
	// scopes (spanning whatever depths those scopes happen to be at,
	// unlike AddressTakenVars which is always this function's own
	// depth).
	CapturedVars []varloc.Id

	// DirectFuncs lists the direct functions declared directly within
	// this function's own body.
	DirectFuncs []DirectFuncEntry
}

// FunctionExpression is the named/anonymous `function(...) {...}`
// expression form. Always rejected by the pre-parser (§4.6 "only arrow
// forms allowed"); kept as a distinct node so the rejection can name it.
type FunctionExpression struct {
	exprBase
}

// ArrayExpression is `[a, b, c]`. See spec.md §9's Open Question: the
// pre-parser's handling of this node in terminal expression position is
// a known, preserved defect (see preparse.exprResult and the
// ArrayExpression case of preparse.preParseExpr).
type ArrayExpression struct {
	exprBase
	Elements []Expression
}
