// Package imports implements the import/export linker (IX, spec.md
// §4.2, §4.7): parsing a host import manifest file, reserving a Wasm
// function index per distinct host import, binding each manifest name
// to its reserved index, and (in link.go) threading module export
// tables through the dependency graph's topological order so each
// module's own ImportDeclarations resolve against its dependencies'
// exports.
//
// A manifest is a plain-text file whose first line is exactly
// "@SourceImports"; every subsequent non-empty line has the form
//
//	<local name> <host module> <host entity> <return type> <param types...>
//
// binding local name to a call of the named host function, typed by
// return type and the given parameter types. Blank lines are ignored;
// extra spaces between tokens are tolerated.
package imports

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/ilog"
	"github.com/sourceror/compiler/internal/preparse"
	"github.com/sourceror/compiler/internal/varloc"
)

// ValType is the restricted subset of api.VarType a host import's
// signature may use: host calls only ever pass and return these three
// shapes (spec.md §4.2 — no Boolean, Func, or StructT across the host
// boundary).
type ValType byte

const (
	Undefined ValType = iota
	Number
	String
)

// ToVarType widens a ValType to the full api.VarType lattice.
func (v ValType) ToVarType() api.VarType {
	switch v {
	case Undefined:
		return api.Undefined
	case Number:
		return api.Number
	case String:
		return api.String
	}
	return api.Undefined
}

func parseValType(name string) (ValType, bool) {
	switch name {
	case "undefined":
		return Undefined, true
	case "number":
		return Number, true
	case "string":
		return String, true
	default:
		return 0, false
	}
}

// Import is one host import: the coordinates the linker (IX) must
// resolve it to (ModuleName/EntityName) and the signature the compiler
// must type-check calls against.
type Import struct {
	ModuleName string
	EntityName string
	Params     []ValType
	Result     ValType
}

// key returns a string uniquely identifying i's ModuleName, EntityName,
// and signature — Import itself can't be a map key directly, since
// Params is a slice, so Parse dedups reserved function indices by this
// instead (the Go stand-in for the original's `HashMap<ir::Import,
// ir::FuncIdx>`, whose Import key type derives Hash/Eq over the same
// fields).
func (i Import) key() string {
	b := make([]byte, 0, len(i.ModuleName)+len(i.EntityName)+len(i.Params)+3)
	b = append(b, i.ModuleName...)
	b = append(b, 0)
	b = append(b, i.EntityName...)
	b = append(b, 0)
	b = append(b, byte(i.Result))
	for _, p := range i.Params {
		b = append(b, byte(p))
	}
	return string(b)
}

// Binding pairs a local name visible to source code with the host
// import it calls and the Wasm function index Parse reserved for it.
// Two Bindings that name the same ModuleName/EntityName/signature
// (imported under different local names) share a FuncIdx: the linker
// reserves one Wasm import per distinct host function, not one per
// local name (spec.md §4.7, "reserves a Wasm function index for it").
type Binding struct {
	LocalName string
	Import    Import
	FuncIdx   int
}

// Spec is the parsed contents of an import manifest file.
type Spec struct {
	Bindings []Binding
}

// HasImportsHeader reports whether text's first line is the
// "@SourceImports" marker — callers use this to decide whether a
// fetched file is an import manifest at all, before calling Parse.
func HasImportsHeader(text string) bool {
	first, _, _ := strings.Cut(text, "\n")
	first = strings.TrimSuffix(first, "\r")
	return first == "@SourceImports"
}

// Parse parses an import manifest. file is used only to stamp
// diagnostics.
func Parse(file string, text string) (*Spec, *api.Diagnostic) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSuffix(lines[0], "\r") != "@SourceImports" {
		return nil, importsErr(file, 1, 1, 1, 2, api.InvalidHeader,
			"import manifest must begin with the line \"@SourceImports\"")
	}

	var bindings []Binding
	funcIdx := map[string]int{}
	nextIdx := 0
	for i := 1; i < len(lines); i++ {
		lineNum := i + 1
		line := strings.TrimSuffix(lines[i], "\r")
		b, diag := parseLine(file, line, lineNum)
		if diag != nil {
			return nil, diag
		}
		if b != nil {
			// Reserve one Wasm function index per distinct host import,
			// shared by every local name that aliases the same
			// ModuleName/EntityName/signature (spec.md §4.7).
			key := b.Import.key()
			idx, seen := funcIdx[key]
			if !seen {
				idx = nextIdx
				funcIdx[key] = idx
				nextIdx++
			}
			b.FuncIdx = idx
			bindings = append(bindings, *b)
			ilog.Logger().Debug("imports: binding resolved",
				zap.String("local", b.LocalName),
				zap.String("module", b.Import.ModuleName),
				zap.String("entity", b.Import.EntityName),
				zap.Int("funcidx", idx))
		}
	}
	ilog.Logger().Debug("imports: manifest parsed", zap.String("file", file), zap.Int("bindings", len(bindings)))
	return &Spec{Bindings: bindings}, nil
}

// BuildExports converts s into the parse-context table every module
// sees prior to parsing its own declarations: each binding's local
// name resolves directly to the reserved FuncIdx for its host import,
// matching the original linker's make_export_state, which produces a
// ProgramPreExports/parse-context pair from an import spec and a
// pre-reserved function-index map. preparse.ExportTable already
// collapses both roles into a single name -> PreVar map, so building
// it is the whole of the Go-side conversion.
func (s *Spec) BuildExports() *preparse.ExportTable {
	exports := preparse.NewExportTable()
	for _, b := range s.Bindings {
		params := make([]api.VarType, len(b.Import.Params))
		for i, p := range b.Import.Params {
			params[i] = p.ToVarType()
		}
		sig := varloc.Signature{Params: params}
		exports.TryCoalesce(b.LocalName, varloc.Direct(sig, b.FuncIdx))
	}
	return exports
}

func parseLine(file, line string, lineNum int) (*Binding, *api.Diagnostic) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil // blank line
	}
	localName := fields[0]
	rest := fields[1:]

	endCol := len([]rune(line)) + 1
	next := func() (string, bool) {
		if len(rest) == 0 {
			return "", false
		}
		tok := rest[0]
		rest = rest[1:]
		return tok, true
	}

	hostModule, ok := next()
	if !ok {
		return nil, importsErrVariant(file, lineNum, endCol, api.MissingHostModuleName,
			"import of %q is missing its host module name", localName)
	}
	hostEntity, ok := next()
	if !ok {
		return nil, importsErrVariant(file, lineNum, endCol, api.MissingHostEntityName,
			"import of %q is missing its host entity name", localName)
	}
	returnTypeStr, ok := next()
	if !ok {
		return nil, importsErrVariant(file, lineNum, endCol, api.MissingReturnType,
			"import of %q is missing its return type", localName)
	}
	returnType, ok := parseValType(returnTypeStr)
	if !ok {
		return nil, invalidVarTypeErr(file, line, lineNum, returnTypeStr)
	}

	var params []ValType
	for {
		tok, ok := next()
		if !ok {
			break
		}
		vt, ok := parseValType(tok)
		if !ok {
			return nil, invalidVarTypeErr(file, line, lineNum, tok)
		}
		params = append(params, vt)
	}

	return &Binding{
		LocalName: localName,
		Import: Import{
			ModuleName: hostModule,
			EntityName: hostEntity,
			Params:     params,
			Result:     returnType,
		},
	}, nil
}

func invalidVarTypeErr(file, line string, lineNum int, badName string) *api.Diagnostic {
	col := strings.Index(line, badName)
	if col < 0 {
		col = 0
	}
	start := api.Pos{Line: lineNum, Col: col + 1}
	end := api.Pos{Line: lineNum, Col: col + 1 + len([]rune(badName))}
	d := importsErrVariant(file, 0, 0, api.InvalidVarTypeVariant, "invalid type name %s", strconv.Quote(badName))
	d.Start, d.End = start, end
	return d
}

func importsErr(file string, startLine, startCol, endLine, endCol int, variant api.ImportsParseErrorVariant, format string, args ...any) *api.Diagnostic {
	return &api.Diagnostic{
		File:    file,
		Start:   api.Pos{Line: startLine, Col: startCol},
		End:     api.Pos{Line: endLine, Col: endCol},
		Kind:    api.KindImportsParseError,
		Message: fmt.Sprintf("%s: %s", variant, fmt.Sprintf(format, args...)),
	}
}

func importsErrVariant(file string, lineNum, col int, variant api.ImportsParseErrorVariant, format string, args ...any) *api.Diagnostic {
	return importsErr(file, lineNum, col, lineNum+1, 1, variant, format, args...)
}
