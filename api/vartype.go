// Package api includes types shared between the compiler's own packages
// and anything that observes its output: the static type lattice, source
// positions, and the diagnostic/ICE shapes every stage reports through.
package api

import "fmt"

// VarType is the closed tagged union of static types a Source value can
// carry. Any is the top of the widening lattice; every other variant is
// pairwise incomparable with every other.
//
// The following describes how each variant occupies Wasm cells, per
// EncodeVarType:
//
//   - Any      - (i32 tag, i64 data)
//   - Number   - f64
//   - Boolean  - i32
//   - String   - i32 (heap pointer)
//   - Func     - (i32 closure pointer, i32 table index)
//   - StructT  - i32 (heap pointer)
//   - Undefined and Unassigned occupy no cells.
type VarType struct {
	kind    varTypeKind
	typeidx uint32 // only meaningful when kind == varTypeKindStructT
}

type varTypeKind byte

const (
	varTypeKindAny varTypeKind = iota
	varTypeKindUnassigned
	varTypeKindUndefined
	varTypeKindNumber
	varTypeKindBoolean
	varTypeKindString
	varTypeKindFunc
	varTypeKindStructT
)

var (
	// Any is the top of the widening lattice.
	Any = VarType{kind: varTypeKindAny}
	// Unassigned marks a binding that has been declared but not yet given
	// a type; it is never legal as an operand to Value Representation.
	Unassigned = VarType{kind: varTypeKindUnassigned}
	// Undefined is the type of the JavaScript `undefined` value.
	Undefined = VarType{kind: varTypeKindUndefined}
	// Number is a 64-bit float.
	Number = VarType{kind: varTypeKindNumber}
	// Boolean is a 32-bit boolean cell.
	Boolean = VarType{kind: varTypeKindBoolean}
	// String is a heap pointer to a Source string.
	String = VarType{kind: varTypeKindString}
	// Func is a closure pointer paired with a function-table index.
	Func = VarType{kind: varTypeKindFunc}
)

// StructT returns the struct type with the given heap layout index.
func StructT(typeidx uint32) VarType {
	return VarType{kind: varTypeKindStructT, typeidx: typeidx}
}

// Tag returns the stable integer discriminant for v's variant. Two
// VarTypes have the same Tag iff they are the same variant (StructT
// instances share a tag regardless of typeidx, matching the widen/narrow
// contract in §4.1, which dispatches on variant, not on typeidx).
func (v VarType) Tag() int32 {
	return int32(v.kind)
}

// TypeIdx returns the heap layout index for a StructT. It panics if v is
// not a StructT.
func (v VarType) TypeIdx() uint32 {
	if v.kind != varTypeKindStructT {
		panic(fmt.Sprintf("api: TypeIdx called on non-struct VarType %s", v))
	}
	return v.typeidx
}

// IsAny reports whether v is the Any variant.
func (v VarType) IsAny() bool { return v.kind == varTypeKindAny }

// Equal reports whether v and other denote the same static type,
// including matching StructT typeidx.
func (v VarType) Equal(other VarType) bool {
	return v.kind == other.kind && (v.kind != varTypeKindStructT || v.typeidx == other.typeidx)
}

func (v VarType) String() string {
	switch v.kind {
	case varTypeKindAny:
		return "Any"
	case varTypeKindUnassigned:
		return "Unassigned"
	case varTypeKindUndefined:
		return "Undefined"
	case varTypeKindNumber:
		return "Number"
	case varTypeKindBoolean:
		return "Boolean"
	case varTypeKindString:
		return "String"
	case varTypeKindFunc:
		return "Func"
	case varTypeKindStructT:
		return fmt.Sprintf("StructT{%d}", v.typeidx)
	}
	return "unknown"
}

// WasmCells describes the flat Wasm cell footprint a VarType occupies,
// per §3's "Wasm cell footprint per type" table.
type WasmCells struct {
	// I32, I64 report how many i32/i64 locals (in that relative order)
	// the representation needs. Any has one of each; Func has two i32;
	// Number has neither (it is f64); Boolean/String/StructT have one i32.
	I32 int
	I64 int
	// F64 reports whether the representation is a single f64 local.
	F64 bool
}

// MemorySize is the number of bytes a VarType occupies when stored at a
// struct offset in linear memory, per §3.
func (v VarType) MemorySize() uint32 {
	switch v.kind {
	case varTypeKindAny:
		return 12 // [tag:4][data:8]
	case varTypeKindNumber:
		return 8
	case varTypeKindFunc:
		return 8 // [closure:4][table:4]
	case varTypeKindBoolean, varTypeKindString, varTypeKindStructT:
		return 4
	case varTypeKindUndefined, varTypeKindUnassigned:
		return 0
	}
	panic(fmt.Sprintf("api: MemorySize called on unknown VarType %s", v))
}

// EncodeVarType returns the Wasm cell footprint for v, or an error if v
// is Unassigned (never legal as a cell-occupying type).
func EncodeVarType(v VarType) (WasmCells, error) {
	switch v.kind {
	case varTypeKindAny:
		return WasmCells{I32: 1, I64: 1}, nil
	case varTypeKindUndefined:
		return WasmCells{}, nil
	case varTypeKindNumber:
		return WasmCells{F64: true}, nil
	case varTypeKindBoolean, varTypeKindString, varTypeKindStructT:
		return WasmCells{I32: 1}, nil
	case varTypeKindFunc:
		return WasmCells{I32: 2}, nil
	case varTypeKindUnassigned:
		return WasmCells{}, fmt.Errorf("api: Unassigned has no Wasm cell representation")
	}
	panic(fmt.Sprintf("api: EncodeVarType called on unknown VarType %s", v))
}
