// Package attrs implements the attribute extractor (AX, spec.md §4.4):
// it recognizes `__attributes = "..."` pseudo-statements and associates
// their parsed key/value map with the statement that follows.
package attrs

import (
	"fmt"
	"strings"

	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/estree"
)

// Set is the parsed key/value map of an attribute string. A nil value
// means the item was a bare key (e.g. "direct"); a non-nil value means
// "key=value".
type Set map[string]*string

// Bool reports whether key is present as a bare key (no value).
func (s Set) Bool(key string) bool {
	v, ok := s[key]
	return ok && v == nil
}

// String returns the value associated with key, if key is present with
// a value.
func (s Set) String(key string) (string, bool) {
	v, ok := s[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Parse parses an attribute string per §6's grammar:
// `item (';' item)* ';'?` where `item = key | key '=' value`. Keys and
// values are trimmed; duplicate keys and empty keys or values are
// errors; a trailing semicolon is allowed.
func Parse(text string) (Set, error) {
	out := Set{}
	for _, raw := range strings.Split(strings.TrimSuffix(strings.TrimSpace(text), ";"), ";") {
		item := strings.TrimSpace(raw)
		var key string
		var val *string
		if idx := strings.IndexByte(item, '='); idx >= 0 {
			k := strings.TrimSpace(item[:idx])
			v := strings.TrimSpace(item[idx+1:])
			if k == "" || v == "" {
				return nil, errAttributeContent("empty key or value in %q", item)
			}
			key, val = k, &v
		} else {
			if item == "" {
				return nil, errAttributeContent("empty item in attribute string")
			}
			key = item
		}
		if _, dup := out[key]; dup {
			return nil, errAttributeContent("duplicate key %q", key)
		}
		out[key] = val
	}
	return out, nil
}

func errAttributeContent(format string, args ...any) error {
	return &contentError{msg: fmt.Sprintf(format, args...)}
}

type contentError struct{ msg string }

func (e *contentError) Error() string { return e.msg }

// attrMatch is the outcome of matching a statement against the
// `__attributes = "..."` shape.
type attrMatch int

const (
	noMatch attrMatch = iota
	matchedNotString                 // shape matched, RHS wasn't a string literal
	matchedString
)

// matchAttributePseudoStatement reports whether s is exactly
// `__attributes = "<string>"`, returning the literal's Loc and raw text
// when it is.
func matchAttributePseudoStatement(s estree.Statement) (text string, textLoc estree.Loc, result attrMatch) {
	exprStmt, isExpr := s.(*estree.ExpressionStatement)
	if !isExpr {
		return "", estree.Loc{}, noMatch
	}
	assign, isAssign := exprStmt.Expression.(*estree.AssignmentExpression)
	if !isAssign {
		return "", estree.Loc{}, noMatch
	}
	ident, isIdent := assign.Left.(*estree.Identifier)
	if !isIdent || ident.Name != "__attributes" {
		return "", estree.Loc{}, noMatch
	}
	lit, isLit := assign.Right.(*estree.Literal)
	if !isLit || lit.Kind != estree.LiteralString {
		loc := assign.Right.Loc()
		return "", loc, matchedNotString
	}
	return lit.String, lit.Loc(), matchedString
}

// ForEach walks body, one call to f per non-attribute statement, passing
// the attribute Set (nil if none) buffered by any immediately preceding
// __attributes pseudo-statement. Two attribute statements in a row, or a
// trailing attribute statement with no successor, is a
// DanglingAttributeError. file is used only to stamp diagnostics.
//
// ForEach is the by-value traversal: f receives the Statement interface
// value. Use ForEachIndex when the caller needs to mutate the
// statement in place (e.g. to attach the pre-parser's heap-set
// annotation to a BlockStatement); Go's slice-of-interface values already
// give every caller reference semantics to the underlying nodes, so a
// single traversal covers both the teacher-language's by-reference and
// by-mutable-reference variants.
func ForEach(file string, body []estree.Statement, f func(stmt estree.Statement, attrs Set) *api.Diagnostic) *api.Diagnostic {
	return ForEachIndex(file, body, func(_ int, stmt estree.Statement, attrs Set) *api.Diagnostic {
		return f(stmt, attrs)
	})
}

// ForEachIndex is ForEach but also passes each statement's index within
// body, for callers (the pre-parser) that need to look up or replace the
// original slice element.
func ForEachIndex(file string, body []estree.Statement, f func(idx int, stmt estree.Statement, attrs Set) *api.Diagnostic) *api.Diagnostic {
	var pending Set
	var pendingLoc estree.Loc
	havePending := false

	for i, stmt := range body {
		text, textLoc, match := matchAttributePseudoStatement(stmt)
		if match == matchedNotString {
			return api.NewDiagnostic(file, textLoc.Start, textLoc.End,
				api.KindAttributeNotStringLiteral, "__attributes value must be a string literal")
		}
		if match == matchedString {
			if havePending {
				return api.NewDiagnostic(file, pendingLoc.Start, pendingLoc.End,
					api.KindDanglingAttributeError, "attribute statement has no following statement")
			}
			parsed, err := Parse(text)
			if err != nil {
				return api.NewDiagnostic(file, textLoc.Start, textLoc.End,
					api.KindAttributeContentError, "%s", err.Error())
			}
			pending = parsed
			pendingLoc = stmt.Loc()
			havePending = true
			continue
		}

		var toPass Set
		if havePending {
			toPass = pending
		}
		if diag := f(i, stmt, toPass); diag != nil {
			return diag
		}
		pending = nil
		havePending = false
	}

	if havePending {
		return api.NewDiagnostic(file, pendingLoc.Start, pendingLoc.End,
			api.KindDanglingAttributeError, "attribute statement has no following statement")
	}
	return nil
}
