package imports

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/varloc"
)

func TestHasImportsHeader(t *testing.T) {
	require.True(t, HasImportsHeader("@SourceImports\nfoo bar baz number"))
	require.True(t, HasImportsHeader("@SourceImports\r\nfoo bar baz number"))
	require.False(t, HasImportsHeader("not a manifest"))
	require.False(t, HasImportsHeader(""))
}

func TestParseValidManifest(t *testing.T) {
	text := "@SourceImports\n" +
		"__ffi_display misc display undefined string\n" +
		"\n" +
		"  __ffi_random   math   random   number  \n"
	spec, diag := Parse("imports.txt", text)
	require.Nil(t, diag)
	require.Len(t, spec.Bindings, 2)

	b0 := spec.Bindings[0]
	require.Equal(t, "__ffi_display", b0.LocalName)
	require.Equal(t, "misc", b0.Import.ModuleName)
	require.Equal(t, "display", b0.Import.EntityName)
	require.Equal(t, Undefined, b0.Import.Result)
	require.Equal(t, []ValType{String}, b0.Import.Params)

	b1 := spec.Bindings[1]
	require.Equal(t, "__ffi_random", b1.LocalName)
	require.Equal(t, "math", b1.Import.ModuleName)
	require.Equal(t, "random", b1.Import.EntityName)
	require.Equal(t, Number, b1.Import.Result)
	require.Empty(t, b1.Import.Params)
}

func TestParseMissingHeader(t *testing.T) {
	_, diag := Parse("imports.txt", "foo bar baz number")
	require.NotNil(t, diag)
	require.Equal(t, api.KindImportsParseError, diag.Kind)
}

func TestParseMissingFields(t *testing.T) {
	tests := []string{
		"@SourceImports\nfoo",
		"@SourceImports\nfoo bar",
		"@SourceImports\nfoo bar baz",
	}
	for _, text := range tests {
		_, diag := Parse("imports.txt", text)
		require.NotNil(t, diag)
		require.Equal(t, api.KindImportsParseError, diag.Kind)
	}
}

func TestParseInvalidVarType(t *testing.T) {
	_, diag := Parse("imports.txt", "@SourceImports\nfoo bar baz notatype")
	require.NotNil(t, diag)
	require.Equal(t, api.KindImportsParseError, diag.Kind)

	_, diag = Parse("imports.txt", "@SourceImports\nfoo bar baz number notatype")
	require.NotNil(t, diag)
	require.Equal(t, api.KindImportsParseError, diag.Kind)
}

func TestToVarType(t *testing.T) {
	require.True(t, Undefined.ToVarType().Equal(api.Undefined))
	require.True(t, Number.ToVarType().Equal(api.Number))
	require.True(t, String.ToVarType().Equal(api.String))
}

func TestParseReservesOneFuncIdxPerDistinctImport(t *testing.T) {
	text := "@SourceImports\n" +
		"__ffi_display misc display undefined string\n" +
		"__ffi_random math random number\n" +
		"__ffi_display_alias misc display undefined string\n"
	spec, diag := Parse("imports.txt", text)
	require.Nil(t, diag)
	require.Len(t, spec.Bindings, 3)

	// Two local names aliasing the same host module/entity/signature
	// share a reserved function index...
	require.Equal(t, spec.Bindings[0].FuncIdx, spec.Bindings[2].FuncIdx)
	// ...but a distinct host function gets its own.
	require.NotEqual(t, spec.Bindings[0].FuncIdx, spec.Bindings[1].FuncIdx)
}

func TestBuildExportsBindsEachLocalNameDirectly(t *testing.T) {
	text := "@SourceImports\n" +
		"__ffi_display misc display undefined string\n" +
		"__ffi_random math random number\n"
	spec, diag := Parse("imports.txt", text)
	require.Nil(t, diag)

	exports := spec.BuildExports()

	v, ok := exports.Get("__ffi_display")
	require.True(t, ok)
	require.True(t, v.IsDirect())
	require.Len(t, v.Overloads, 1)
	require.Equal(t, spec.Bindings[0].FuncIdx, v.Overloads[0].FuncIdx)
	require.Equal(t, varloc.Signature{Params: []api.VarType{api.String}}, v.Overloads[0].Signature)

	v2, ok := exports.Get("__ffi_random")
	require.True(t, ok)
	require.Equal(t, spec.Bindings[1].FuncIdx, v2.Overloads[0].FuncIdx)
	require.Empty(t, v2.Overloads[0].Signature.Params)
}
