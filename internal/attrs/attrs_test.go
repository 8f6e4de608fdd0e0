package attrs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/estree"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Set
		wantErr bool
	}{
		{"bare key", "direct", Set{"direct": nil}, false},
		{"key=value", "constraint=number->number", Set{"constraint": strPtr("number->number")}, false},
		{"multiple", "direct;constraint=x", Set{"direct": nil, "constraint": strPtr("x")}, false},
		{"trailing semicolon", "direct;", Set{"direct": nil}, false},
		{"whitespace trimmed", "  direct  ;  constraint = x  ", Set{"direct": nil, "constraint": strPtr("x")}, false},
		{"duplicate key", "direct;direct", nil, true},
		{"empty key", "=x", nil, true},
		{"empty value", "x=", nil, true},
		{"empty item", ";", nil, true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(tc.want), len(got))
			for k, v := range tc.want {
				gv, ok := got[k]
				require.True(t, ok)
				if v == nil {
					require.Nil(t, gv)
				} else {
					require.NotNil(t, gv)
					require.Equal(t, *v, *gv)
				}
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func ident(name string) *estree.Identifier {
	return &estree.Identifier{Name: name}
}

func strLit(s string) *estree.Literal {
	return &estree.Literal{Kind: estree.LiteralString, String: s}
}

func attrStmt(text string) estree.Statement {
	return &estree.ExpressionStatement{
		Expression: &estree.AssignmentExpression{
			Operator: estree.AssignPlain,
			Left:     ident("__attributes"),
			Right:    strLit(text),
		},
	}
}

func plainStmt() estree.Statement {
	return &estree.ExpressionStatement{Expression: ident("x")}
}

func TestForEachAttachesToNextStatement(t *testing.T) {
	body := []estree.Statement{attrStmt("direct"), plainStmt(), plainStmt()}
	var seen []Set
	diag := ForEach("f.js", body, func(stmt estree.Statement, attrs Set) *api.Diagnostic {
		seen = append(seen, attrs)
		return nil
	})
	require.Nil(t, diag)
	require.Len(t, seen, 2)
	require.True(t, seen[0].Bool("direct"))
	require.Nil(t, seen[1])
}

func TestForEachDanglingConsecutive(t *testing.T) {
	body := []estree.Statement{attrStmt("direct"), attrStmt("direct"), plainStmt()}
	diag := ForEach("f.js", body, func(stmt estree.Statement, attrs Set) *api.Diagnostic { return nil })
	require.NotNil(t, diag)
	require.Equal(t, api.KindDanglingAttributeError, diag.Kind)
}

func TestForEachDanglingTrailing(t *testing.T) {
	body := []estree.Statement{plainStmt(), attrStmt("direct")}
	diag := ForEach("f.js", body, func(stmt estree.Statement, attrs Set) *api.Diagnostic { return nil })
	require.NotNil(t, diag)
	require.Equal(t, api.KindDanglingAttributeError, diag.Kind)
}

func TestForEachNotStringLiteral(t *testing.T) {
	body := []estree.Statement{
		&estree.ExpressionStatement{
			Expression: &estree.AssignmentExpression{
				Operator: estree.AssignPlain,
				Left:     ident("__attributes"),
				Right:    &estree.Literal{Kind: estree.LiteralNumber, Number: 1},
			},
		},
	}
	diag := ForEach("f.js", body, func(stmt estree.Statement, attrs Set) *api.Diagnostic { return nil })
	require.NotNil(t, diag)
	require.Equal(t, api.KindAttributeNotStringLiteral, diag.Kind)
}
