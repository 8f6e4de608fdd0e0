package api

import "fmt"

// Pos is a line/column position within a source file, 1-indexed to match
// common JavaScript tooling conventions.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// ErrorKind is the closed taxonomy of recoverable diagnostic kinds from
// spec.md §7. Each constructor below pairs a kind with its payload.
type ErrorKind string

const (
	KindESTreeError                ErrorKind = "ESTreeError"
	KindAttributeParseError        ErrorKind = "AttributeParseError"
	KindAttributeContentError      ErrorKind = "AttributeContentError"
	KindAttributeUnrecognizedError ErrorKind = "AttributeUnrecognizedError"
	KindAttributeNotStringLiteral  ErrorKind = "AttributeNotStringLiteralError"
	KindDanglingAttributeError     ErrorKind = "DanglingAttributeError"
	KindDuplicateDeclarationError  ErrorKind = "DuplicateDeclarationError"
	KindUndeclaredNameError        ErrorKind = "UndeclaredNameError"
	KindDirectFunctionCaptureError ErrorKind = "DirectFunctionCaptureError"
	KindUndeclaredExportError      ErrorKind = "UndeclaredExportError"
	KindDuplicateExportError       ErrorKind = "DuplicateExportError"
	KindGraphError                 ErrorKind = "GraphError"
	KindFetchError                 ErrorKind = "FetchError"
	KindESTreeParseError           ErrorKind = "ESTreeParseError"
	KindImportsParseError          ErrorKind = "ImportsParseError"
	KindSourceRestrictionError     ErrorKind = "SourceRestrictionError"
)

// ImportsParseErrorVariant enumerates the sub-kinds of KindImportsParseError
// per spec.md §7.
type ImportsParseErrorVariant string

const (
	InvalidHeader         ImportsParseErrorVariant = "InvalidHeader"
	MissingHostModuleName ImportsParseErrorVariant = "MissingHostModuleName"
	MissingHostEntityName ImportsParseErrorVariant = "MissingHostEntityName"
	MissingReturnType     ImportsParseErrorVariant = "MissingReturnType"
	InvalidVarTypeVariant ImportsParseErrorVariant = "InvalidVarType"
)

// Diagnostic is a recoverable compiler error carrying the source span it
// was raised at, per §6 ("each error carries a source span ... and an
// error kind from a closed taxonomy").
type Diagnostic struct {
	File    string
	Start   Pos
	End     Pos
	Kind    ErrorKind
	Message string
	// Wrapped, if non-nil, is an underlying error this diagnostic adds
	// span/kind context to (e.g. a FetchError wrapping an I/O error).
	Wrapped error
}

func (d *Diagnostic) Error() string {
	if d.Message == "" {
		return fmt.Sprintf("%s: %s %s-%s", d.File, d.Kind, d.Start, d.End)
	}
	return fmt.Sprintf("%s: %s %s-%s: %s", d.File, d.Kind, d.Start, d.End, d.Message)
}

func (d *Diagnostic) Unwrap() error { return d.Wrapped }

// NewDiagnostic constructs a Diagnostic. file/start/end describe the span
// at which kind was raised.
func NewDiagnostic(file string, start, end Pos, kind ErrorKind, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		File:    file,
		Start:   start,
		End:     end,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapDiagnostic attaches a span/kind to an underlying error, which is
// kept in Wrapped; Message is left empty.
func WrapDiagnostic(file string, start, end Pos, kind ErrorKind, err error) *Diagnostic {
	return &Diagnostic{File: file, Start: start, End: end, Kind: kind, Wrapped: err}
}
