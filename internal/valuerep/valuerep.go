// Package valuerep implements Value Representation (VR): how each
// static VarType occupies Wasm locals, globals, and linear-memory
// cells, and the store/load/widen/narrow operations that move a value
// between representations. Grounded on
// lib-backend-wasm/src/var_conv.rs; the Wasm cell footprint itself
// (encode_vartype/size_in_memory) already lives on api.VarType as
// EncodeVarType/MemorySize, so this package only covers the emission
// side: encode_store_{local,global,memory}, encode_load_{local,global,
// memory}, encode_widening_operation, encode_narrowing_operation, and
// encode_unchecked_local_conv_any_narrowing.
package valuerep

import (
	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/wasmgen"
)

func isAny(v api.VarType) bool        { return v.Equal(api.Any) }
func isUnassigned(v api.VarType) bool { return v.Equal(api.Unassigned) }
func isUndefined(v api.VarType) bool  { return v.Equal(api.Undefined) }
func isNumber(v api.VarType) bool     { return v.Equal(api.Number) }
func isBoolean(v api.VarType) bool    { return v.Equal(api.Boolean) }
func isString(v api.VarType) bool     { return v.Equal(api.String) }
func isFunc(v api.VarType) bool       { return v.Equal(api.Func) }

// isStructT reports whether v is the StructT variant. VarType is a
// closed 8-variant union and StructT is the only one of the other seven
// predicates above never matches — there is no exported "is this a
// StructT regardless of layout index" accessor, so this is the
// idiomatic way to ask given the rest are ruled out first.
func isStructT(v api.VarType) bool {
	return !isAny(v) && !isUnassigned(v) && !isUndefined(v) && !isNumber(v) && !isBoolean(v) && !isString(v) && !isFunc(v)
}

func requireLen(op string, got []wasmgen.LocalIdx, want int) {
	if len(got) != want {
		api.Raise(op, "expected %d wasm locals, got %d", want, len(got))
	}
}

// StoreLocal stores a value of sourceType already on the wasm stack
// into the given locals, declared as destType. destType must equal
// sourceType, or be Any (a widening store). Net wasm stack:
// [<sourceType>] -> [].
func StoreLocal(wasmLocalIdx []wasmgen.LocalIdx, destType, sourceType api.VarType, b wasmgen.ExprBuilder) {
	const op = "valuerep.StoreLocal"
	switch {
	case destType.Equal(sourceType):
		storeSameTypeLocal(op, wasmLocalIdx, destType, b)
	case isAny(destType):
		requireLen(op, wasmLocalIdx, 2)
		storeWideningLocal(op, wasmLocalIdx, sourceType, b)
	default:
		api.Raise(op, "store to local is not an equivalent or widening conversion (%s <- %s)", destType, sourceType)
	}
}

func storeSameTypeLocal(op string, idx []wasmgen.LocalIdx, t api.VarType, b wasmgen.ExprBuilder) {
	switch {
	case isAny(t) || isFunc(t):
		requireLen(op, idx, 2)
		b.LocalSet(idx[0])
		b.LocalSet(idx[1])
	case isNumber(t) || isBoolean(t) || isString(t) || isStructT(t):
		requireLen(op, idx, 1)
		b.LocalSet(idx[0])
	case isUndefined(t):
		requireLen(op, idx, 0)
	case isUnassigned(t):
		api.Raise(op, "a local's static type cannot be Unassigned")
	}
}

func storeWideningLocal(op string, idx []wasmgen.LocalIdx, sourceType api.VarType, b wasmgen.ExprBuilder) {
	switch {
	case isAny(sourceType):
		api.Raise(op, "Any is not a valid source for a widening store")
	case isUndefined(sourceType):
		b.I32Const(sourceType.Tag())
		b.LocalSet(idx[0])
	case isUnassigned(sourceType):
		api.Raise(op, "cannot store an Unassigned value")
	case isNumber(sourceType):
		b.I32Const(sourceType.Tag())
		b.LocalSet(idx[0])
		b.I64ReinterpretF64()
		b.LocalSet(idx[1])
	case isBoolean(sourceType) || isString(sourceType) || isStructT(sourceType):
		b.I32Const(sourceType.Tag())
		b.LocalSet(idx[0])
		b.I64ExtendI32U()
		b.LocalSet(idx[1])
	case isFunc(sourceType):
		b.I32Const(sourceType.Tag())
		b.LocalSet(idx[0])
		b.I64ExtendI32U()
		b.LocalSet(idx[1])
		b.I64ExtendI32U()
		b.I64Const(32)
		b.I64Shl()
		b.LocalGet(idx[1])
		b.I64Or()
		b.LocalSet(idx[1])
	}
}

// StoreGlobal is StoreLocal's counterpart for module globals.
func StoreGlobal(wasmGlobalIdx []wasmgen.GlobalIdx, destType, sourceType api.VarType, b wasmgen.ExprBuilder) {
	const op = "valuerep.StoreGlobal"
	requireGlobalLen := func(got []wasmgen.GlobalIdx, want int) {
		if len(got) != want {
			api.Raise(op, "expected %d wasm globals, got %d", want, len(got))
		}
	}
	switch {
	case destType.Equal(sourceType):
		switch {
		case isAny(destType) || isFunc(destType):
			requireGlobalLen(wasmGlobalIdx, 2)
			b.GlobalSet(wasmGlobalIdx[0])
			b.GlobalSet(wasmGlobalIdx[1])
		case isNumber(destType) || isBoolean(destType) || isString(destType) || isStructT(destType):
			requireGlobalLen(wasmGlobalIdx, 1)
			b.GlobalSet(wasmGlobalIdx[0])
		case isUndefined(destType):
			requireGlobalLen(wasmGlobalIdx, 0)
		case isUnassigned(destType):
			api.Raise(op, "a global's static type cannot be Unassigned")
		}
	case isAny(destType):
		requireGlobalLen(wasmGlobalIdx, 2)
		switch {
		case isAny(sourceType):
			api.Raise(op, "Any is not a valid source for a widening store")
		case isUndefined(sourceType):
			b.I32Const(sourceType.Tag())
			b.GlobalSet(wasmGlobalIdx[0])
		case isUnassigned(sourceType):
			api.Raise(op, "cannot store an Unassigned value")
		case isNumber(sourceType):
			b.I32Const(sourceType.Tag())
			b.GlobalSet(wasmGlobalIdx[0])
			b.I64ReinterpretF64()
			b.GlobalSet(wasmGlobalIdx[1])
		case isBoolean(sourceType) || isString(sourceType) || isStructT(sourceType):
			b.I32Const(sourceType.Tag())
			b.GlobalSet(wasmGlobalIdx[0])
			b.I64ExtendI32U()
			b.GlobalSet(wasmGlobalIdx[1])
		case isFunc(sourceType):
			b.I32Const(sourceType.Tag())
			b.GlobalSet(wasmGlobalIdx[0])
			b.I64ExtendI32U()
			b.GlobalSet(wasmGlobalIdx[1])
			b.I64ExtendI32U()
			b.I64Const(32)
			b.I64Shl()
			b.GlobalGet(wasmGlobalIdx[1])
			b.I64Or()
			b.GlobalSet(wasmGlobalIdx[1])
		}
	default:
		api.Raise(op, "store to global is not an equivalent or widening conversion (%s <- %s)", destType, sourceType)
	}
}

// StoreMemory stores a value of sourceType into linear memory at
// structOffset, declared as destType. Net wasm stack:
// [struct_ptr, <sourceType>] -> [].
func StoreMemory(structOffset uint32, destType, sourceType api.VarType, scratch wasmgen.Scratch, b wasmgen.ExprBuilder) {
	const op = "valuerep.StoreMemory"
	m := func(off uint32) wasmgen.MemArg { return wasmgen.NewMemArg4(off) }
	switch {
	case destType.Equal(sourceType):
		switch {
		case isAny(destType):
			tag := scratch.PushI32()
			data := scratch.PushI64()
			ptr := scratch.PushI32()
			b.LocalSet(tag)
			b.LocalSet(data)
			b.LocalTee(ptr)
			b.LocalGet(tag)
			b.I32Store(m(structOffset))
			b.LocalGet(ptr)
			b.LocalGet(data)
			b.I64Store(m(structOffset + 4))
			scratch.PopI32()
			scratch.PopI64()
			scratch.PopI32()
		case isUnassigned(destType):
			api.Raise(op, "cannot store an Unassigned value")
		case isUndefined(destType):
			// no-op: Undefined occupies no memory
		case isNumber(destType):
			b.F64Store(m(structOffset))
		case isBoolean(destType), isString(destType), isStructT(destType):
			b.I32Store(m(structOffset))
		case isFunc(destType):
			tableidx := scratch.PushI32()
			closure := scratch.PushI32()
			ptr := scratch.PushI32()
			b.LocalSet(tableidx)
			b.LocalSet(closure)
			b.LocalTee(ptr)
			b.LocalGet(tableidx)
			b.I32Store(m(structOffset))
			b.LocalGet(ptr)
			b.LocalGet(closure)
			b.I32Store(m(structOffset + 4))
			scratch.PopI32()
			scratch.PopI32()
			scratch.PopI32()
		}
	case isAny(destType):
		switch {
		case isAny(sourceType):
			api.Raise(op, "Any is not a valid source for a widening store")
		case isUnassigned(sourceType):
			api.Raise(op, "cannot store an Unassigned value")
		case isUndefined(sourceType):
			b.I32Const(sourceType.Tag())
			b.I32Store(m(structOffset))
		case isNumber(sourceType):
			val := scratch.PushF64()
			ptr := scratch.PushI32()
			b.LocalSet(val)
			b.LocalTee(ptr)
			b.I32Const(sourceType.Tag())
			b.I32Store(m(structOffset))
			b.LocalGet(ptr)
			b.LocalGet(val)
			b.F64Store(m(structOffset + 4))
			scratch.PopI32()
			scratch.PopF64()
		case isBoolean(sourceType), isString(sourceType), isStructT(sourceType):
			val := scratch.PushI32()
			ptr := scratch.PushI32()
			b.LocalSet(val)
			b.LocalTee(ptr)
			b.I32Const(sourceType.Tag())
			b.I32Store(m(structOffset))
			b.LocalGet(ptr)
			b.LocalGet(val)
			b.I32Store(m(structOffset + 4))
			scratch.PopI32()
			scratch.PopI32()
		case isFunc(sourceType):
			tableidx := scratch.PushI32()
			closure := scratch.PushI32()
			ptr := scratch.PushI32()
			b.LocalSet(tableidx)
			b.LocalSet(closure)
			b.LocalTee(ptr)
			b.I32Const(sourceType.Tag())
			b.I32Store(m(structOffset))
			b.LocalGet(ptr)
			b.LocalGet(tableidx)
			b.I32Store(m(structOffset + 4))
			b.LocalGet(ptr)
			b.LocalGet(closure)
			b.I32Store(m(structOffset + 8))
			scratch.PopI32()
			scratch.PopI32()
			scratch.PopI32()
		}
	default:
		api.Raise(op, "store to memory is not an equivalent or widening conversion (%s <- %s)", destType, sourceType)
	}
}

// LoadLocal pushes outgoingType onto the wasm stack, reading from
// locals declared as localType (localType must equal outgoingType, or
// be Any — a narrowing load). Net wasm stack: [] -> [<outgoingType>].
func LoadLocal(wasmLocalIdx []wasmgen.LocalIdx, localType, outgoingType api.VarType, b wasmgen.ExprBuilder) {
	const op = "valuerep.LoadLocal"
	switch {
	case localType.Equal(outgoingType):
		switch {
		case isAny(localType) || isFunc(localType):
			requireLen(op, wasmLocalIdx, 2)
			b.LocalGet(wasmLocalIdx[1])
			b.LocalGet(wasmLocalIdx[0])
		case isNumber(localType) || isBoolean(localType) || isString(localType) || isStructT(localType):
			requireLen(op, wasmLocalIdx, 1)
			b.LocalGet(wasmLocalIdx[0])
		case isUndefined(localType):
			requireLen(op, wasmLocalIdx, 0)
		case isUnassigned(localType):
			api.Raise(op, "a local's static type cannot be Unassigned")
		}
	case isAny(localType):
		requireLen(op, wasmLocalIdx, 2)
		switch {
		case isAny(outgoingType):
			api.Raise(op, "Any is not a valid narrowing target")
		case isUndefined(outgoingType):
			// nothing to push
		case isUnassigned(outgoingType):
			api.Raise(op, "cannot load an Unassigned value")
		case isNumber(outgoingType):
			b.LocalGet(wasmLocalIdx[1])
			b.F64ReinterpretI64()
		case isBoolean(outgoingType) || isString(outgoingType) || isStructT(outgoingType):
			b.LocalGet(wasmLocalIdx[1])
			b.I32WrapI64()
		case isFunc(outgoingType):
			b.LocalGet(wasmLocalIdx[1])
			b.I64Const(32)
			b.I64ShrU()
			b.I32WrapI64()
			b.LocalGet(wasmLocalIdx[1])
			b.I32WrapI64()
		}
	default:
		api.Raise(op, "load from local is not an equivalent or narrowing conversion (%s -> %s)", localType, outgoingType)
	}
}

// LoadGlobal is LoadLocal's counterpart for module globals.
func LoadGlobal(wasmGlobalIdx []wasmgen.GlobalIdx, globalType, outgoingType api.VarType, b wasmgen.ExprBuilder) {
	const op = "valuerep.LoadGlobal"
	requireGlobalLen := func(got []wasmgen.GlobalIdx, want int) {
		if len(got) != want {
			api.Raise(op, "expected %d wasm globals, got %d", want, len(got))
		}
	}
	switch {
	case globalType.Equal(outgoingType):
		switch {
		case isAny(globalType) || isFunc(globalType):
			requireGlobalLen(wasmGlobalIdx, 2)
			b.GlobalGet(wasmGlobalIdx[1])
			b.GlobalGet(wasmGlobalIdx[0])
		case isNumber(globalType) || isBoolean(globalType) || isString(globalType) || isStructT(globalType):
			requireGlobalLen(wasmGlobalIdx, 1)
			b.GlobalGet(wasmGlobalIdx[0])
		case isUndefined(globalType):
			requireGlobalLen(wasmGlobalIdx, 0)
		case isUnassigned(globalType):
			api.Raise(op, "a global's static type cannot be Unassigned")
		}
	case isAny(globalType):
		requireGlobalLen(wasmGlobalIdx, 2)
		switch {
		case isAny(outgoingType):
			api.Raise(op, "Any is not a valid narrowing target")
		case isUndefined(outgoingType):
		case isUnassigned(outgoingType):
			api.Raise(op, "cannot load an Unassigned value")
		case isNumber(outgoingType):
			b.GlobalGet(wasmGlobalIdx[1])
			b.F64ReinterpretI64()
		case isBoolean(outgoingType) || isString(outgoingType) || isStructT(outgoingType):
			b.GlobalGet(wasmGlobalIdx[1])
			b.I32WrapI64()
		case isFunc(outgoingType):
			b.GlobalGet(wasmGlobalIdx[1])
			b.I64Const(32)
			b.I64ShrU()
			b.I32WrapI64()
			b.GlobalGet(wasmGlobalIdx[1])
			b.I32WrapI64()
		}
	default:
		api.Raise(op, "load from global is not an equivalent or narrowing conversion (%s -> %s)", globalType, outgoingType)
	}
}

// LoadMemory pushes outgoingType, reading from linear memory at
// structOffset declared as localType. Net wasm stack:
// [struct_ptr] -> [<outgoingType>].
func LoadMemory(structOffset uint32, localType, outgoingType api.VarType, scratch wasmgen.Scratch, b wasmgen.ExprBuilder) {
	const op = "valuerep.LoadMemory"
	m := func(off uint32) wasmgen.MemArg { return wasmgen.NewMemArg4(off) }
	switch {
	case localType.Equal(outgoingType):
		switch {
		case isAny(localType):
			ptr := scratch.PushI32()
			b.LocalTee(ptr)
			b.I64Load(m(structOffset + 4))
			b.LocalGet(ptr)
			b.I32Load(m(structOffset))
			scratch.PopI32()
		case isUndefined(localType):
		case isUnassigned(localType):
			api.Raise(op, "cannot load an Unassigned value")
		case isNumber(localType):
			b.F64Load(m(structOffset))
		case isBoolean(localType), isString(localType), isStructT(localType):
			b.I32Load(m(structOffset))
		case isFunc(localType):
			ptr := scratch.PushI32()
			b.LocalTee(ptr)
			b.I32Load(m(structOffset + 4))
			b.LocalGet(ptr)
			b.I32Load(m(structOffset))
			scratch.PopI32()
		}
	case isAny(localType):
		switch {
		case isAny(outgoingType):
			api.Raise(op, "Any is not a valid narrowing target")
		case isUnassigned(outgoingType):
			api.Raise(op, "cannot load an Unassigned value")
		case isUndefined(outgoingType):
		case isNumber(outgoingType):
			b.F64Load(m(structOffset + 4))
		case isBoolean(outgoingType), isString(outgoingType), isStructT(outgoingType):
			b.I32Load(m(structOffset + 4))
		case isFunc(outgoingType):
			ptr := scratch.PushI32()
			b.LocalTee(ptr)
			b.I32Load(m(structOffset + 8))
			b.LocalGet(ptr)
			b.I32Load(m(structOffset + 4))
			scratch.PopI32()
		}
	default:
		api.Raise(op, "load from memory is not an equivalent or narrowing conversion (%s -> %s)", localType, outgoingType)
	}
}

// Widen converts a value already on the wasm stack from sourceType to
// targetType, which must be Any or equal to sourceType. Net wasm stack:
// [<sourceType>] -> [<targetType>].
func Widen(targetType, sourceType api.VarType, scratch wasmgen.Scratch, b wasmgen.ExprBuilder) {
	const op = "valuerep.Widen"
	switch {
	case targetType.Equal(sourceType):
		// no-op: already in the target representation
	case isAny(targetType):
		switch {
		case isAny(sourceType):
			api.Raise(op, "Any is not a valid widening source")
		case isUndefined(sourceType):
			b.I64Const(0)
			b.I32Const(sourceType.Tag())
		case isUnassigned(sourceType):
			api.Raise(op, "cannot push an Unassigned value to the stack")
		case isNumber(sourceType):
			b.I64ReinterpretF64()
			b.I32Const(sourceType.Tag())
		case isBoolean(sourceType), isString(sourceType), isStructT(sourceType):
			b.I64ExtendI32U()
			b.I32Const(sourceType.Tag())
		case isFunc(sourceType):
			tableidx := scratch.PushI32()
			b.LocalSet(tableidx)
			b.I64ExtendI32U()
			b.I64Const(32)
			b.I64Shl()
			b.LocalGet(tableidx)
			b.I64ExtendI32U()
			b.I64Or()
			b.I32Const(sourceType.Tag())
			scratch.PopI32()
		}
	default:
		api.Raise(op, "widening target is not a supertype of source (%s from %s)", targetType, sourceType)
	}
}

// Narrow converts a value already on the wasm stack from sourceType to
// targetType, which must be equal to sourceType, or sourceType must be
// Any. In the Any case a runtime type check guards the conversion;
// failureEncoder emits the trap/diagnostic instructions run when the
// check fails (the conversion always traps rather than falls through,
// so failureEncoder never returns control to the narrowed value). Net
// wasm stack: [<sourceType>] -> [<targetType>].
func Narrow(targetType, sourceType api.VarType, failureEncoder func(wasmgen.ExprBuilder), scratch wasmgen.Scratch, b wasmgen.ExprBuilder) {
	const op = "valuerep.Narrow"
	switch {
	case targetType.Equal(sourceType):
		// no-op
	case isAny(sourceType):
		// net wasm stack: [i64(data), i32(tag)] -> [i64(data)]
		b.I32Const(targetType.Tag())
		b.I32Ne()
		b.If(nil)
		failureEncoder(b)
		b.End()
		// net wasm stack: [i64(data)] -> [<targetType>]
		switch {
		case isAny(targetType):
			api.Raise(op, "Any is not a valid narrowing target")
		case isUndefined(targetType):
			b.Drop()
		case isUnassigned(targetType):
			api.Raise(op, "cannot push an Unassigned value to the stack")
		case isNumber(targetType):
			b.F64ReinterpretI64()
		case isBoolean(targetType), isString(targetType), isStructT(targetType):
			b.I32WrapI64()
		case isFunc(targetType):
			data := scratch.PushI64()
			b.LocalTee(data)
			b.I64Const(32)
			b.I64ShrU()
			b.I32WrapI64()
			b.LocalGet(data)
			b.I32WrapI64()
			scratch.PopI64()
		}
	default:
		api.Raise(op, "narrowing source is not a supertype of target (%s from %s)", targetType, sourceType)
	}
}

// UncheckedLocalConvAnyNarrowing converts an Any's raw i64 data cell
// (already known, by some other proof, to actually hold destType) into
// the locals declared as destType — the TypeCast expression's
// implementation, which skips the runtime tag check Narrow performs
// because the cast has already been statically verified. Net wasm
// stack: [] -> [].
func UncheckedLocalConvAnyNarrowing(wasmSourceLocalIdx wasmgen.LocalIdx, wasmDestLocalIdx []wasmgen.LocalIdx, destType api.VarType, b wasmgen.ExprBuilder) {
	const op = "valuerep.UncheckedLocalConvAnyNarrowing"
	switch {
	case isAny(destType):
		api.Raise(op, "cannot TypeCast from Any to Any")
	case isUndefined(destType):
	case isUnassigned(destType):
		api.Raise(op, "cannot TypeCast from Any to Unassigned")
	case isNumber(destType):
		requireLen(op, wasmDestLocalIdx, 1)
		b.LocalGet(wasmSourceLocalIdx)
		b.F64ReinterpretI64()
		b.LocalSet(wasmDestLocalIdx[0])
	case isBoolean(destType), isString(destType), isStructT(destType):
		requireLen(op, wasmDestLocalIdx, 1)
		b.LocalGet(wasmSourceLocalIdx)
		b.I32WrapI64()
		b.LocalSet(wasmDestLocalIdx[0])
	case isFunc(destType):
		requireLen(op, wasmDestLocalIdx, 2)
		b.LocalGet(wasmSourceLocalIdx)
		b.I32WrapI64()
		b.LocalSet(wasmDestLocalIdx[0])
		b.LocalGet(wasmSourceLocalIdx)
		b.I64Const(32)
		b.I64ShrU()
		b.I32WrapI64()
		b.LocalSet(wasmDestLocalIdx[1])
	}
}
