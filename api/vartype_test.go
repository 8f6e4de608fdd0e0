package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTagStability(t *testing.T) {
	tests := []struct {
		name string
		vt   VarType
	}{
		{"Any", Any},
		{"Unassigned", Unassigned},
		{"Undefined", Undefined},
		{"Number", Number},
		{"Boolean", Boolean},
		{"String", String},
		{"Func", Func},
		{"StructT", StructT(3)},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.vt.Tag(), tc.vt.Tag(), "tag must be stable across calls")
		})
	}

	// StructT instances share a tag regardless of typeidx.
	require.Equal(t, StructT(1).Tag(), StructT(2).Tag())
	require.False(t, StructT(1).Equal(StructT(2)))
}

func TestEncodeVarTypeCells(t *testing.T) {
	tests := []struct {
		name    string
		vt      VarType
		want    WasmCells
		wantErr bool
	}{
		{"Any", Any, WasmCells{I32: 1, I64: 1}, false},
		{"Undefined", Undefined, WasmCells{}, false},
		{"Number", Number, WasmCells{F64: true}, false},
		{"Boolean", Boolean, WasmCells{I32: 1}, false},
		{"String", String, WasmCells{I32: 1}, false},
		{"StructT", StructT(0), WasmCells{I32: 1}, false},
		{"Func", Func, WasmCells{I32: 2}, false},
		{"Unassigned", Unassigned, WasmCells{}, true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeVarType(tc.vt)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMemorySizes(t *testing.T) {
	require.EqualValues(t, 12, Any.MemorySize())
	require.EqualValues(t, 8, Number.MemorySize())
	require.EqualValues(t, 8, Func.MemorySize())
	require.EqualValues(t, 4, Boolean.MemorySize())
	require.EqualValues(t, 4, String.MemorySize())
	require.EqualValues(t, 4, StructT(5).MemorySize())
	require.EqualValues(t, 0, Undefined.MemorySize())
	require.EqualValues(t, 0, Unassigned.MemorySize())
}
