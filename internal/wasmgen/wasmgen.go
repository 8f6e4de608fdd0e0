// Package wasmgen declares the Wasm byte-encoder collaborator contract
// this compiler's backend is written against: opaque local/global
// handles, the four numeric value types, a LIFO scratch-cell allocator,
// and the instruction-emitting builder Value Representation and
// Function Context drive. The encoder itself — turning these calls into
// an actual Wasm binary — is an external collaborator and is never
// implemented here; see internal/wasmgen/testgen for the in-module
// fake that backs this repo's own tests.
package wasmgen

import "fmt"

// ValType is one of Wasm's four numeric value types.
type ValType byte

const (
	I32 ValType = iota
	I64
	F32
	F64
)

func (v ValType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return fmt.Sprintf("wasmgen.ValType(%d)", byte(v))
}

// LocalIdx is an opaque handle to a Wasm local, minted by a Scratch or
// by the surrounding function signature. This module never constructs
// one itself; it only threads values received from a Scratch through
// its own bookkeeping (internal/funcctx).
type LocalIdx uint32

// GlobalIdx is an opaque handle to a Wasm global, minted by whatever
// module-level layout pass runs before codegen.
type GlobalIdx uint32

// MemArg describes a memory access at a fixed byte offset with an
// alignment hint. Every access in this compiler's Value Representation
// uses a 4-byte alignment hint regardless of the operand's width —
// hence the single NewMemArg4 constructor rather than one per access
// width.
type MemArg struct {
	Offset uint32
	Align  uint32
}

// NewMemArg4 returns a MemArg for a 4-byte-aligned access at offset.
func NewMemArg4(offset uint32) MemArg {
	return MemArg{Offset: offset, Align: 4}
}

// Scratch allocates and releases Wasm locals in LIFO order, independent
// of any named source-level local. Function Context reaches for one
// whenever it needs a temporary cell that outlives a single expression
// but never escapes the current emission (type-conversion sequences,
// heap-allocation bookkeeping).
type Scratch interface {
	Push(v ValType) LocalIdx
	Pop(v ValType)
	PushI32() LocalIdx
	PopI32()
	PushI64() LocalIdx
	PopI64()
	PushF32() LocalIdx
	PopF32()
	PushF64() LocalIdx
	PopF64()
}

// ExprBuilder emits the fixed instruction set Value Representation and
// Function Context lower into: local/global access, the four numeric
// const/load/store forms, the handful of conversion and bitwise
// operators the Any/Func representations need, and a minimal
// structured-control surface (an unconditional-arity if/end and drop)
// for narrowing type checks.
type ExprBuilder interface {
	LocalGet(idx LocalIdx)
	LocalSet(idx LocalIdx)
	LocalTee(idx LocalIdx)
	GlobalGet(idx GlobalIdx)
	GlobalSet(idx GlobalIdx)

	I32Const(v int32)
	I64Const(v int64)
	F32Const(v float32)
	F64Const(v float64)

	I32Load(m MemArg)
	I64Load(m MemArg)
	F32Load(m MemArg)
	F64Load(m MemArg)
	I32Store(m MemArg)
	I64Store(m MemArg)
	F32Store(m MemArg)
	F64Store(m MemArg)

	I64ExtendI32U()
	I32WrapI64()
	F64ReinterpretI64()
	I64ReinterpretF64()
	I64Shl()
	I64ShrU()
	I64Or()
	I32Ne()

	// If begins a structured block guarded by the i32 condition already
	// on the wasm stack, producing resultTypes on completion of either
	// arm. Value Representation only ever uses the empty-result form (a
	// narrowing type check's failure arm traps and never falls through),
	// but the full signature is kept since that's what a real encoder
	// exposes.
	If(resultTypes []ValType)
	Else()
	End()
	Drop()
}
