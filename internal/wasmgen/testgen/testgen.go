// Package testgen is an in-module stand-in for a real wasmgen encoder,
// used only by this repo's own tests (internal/valuerep, internal/funcctx)
// so Value Representation and Function Context can be exercised without
// depending on an external byte-encoder, the way the teacher tests its
// emitters against a fake rather than a real assembler
// (internal/engine/compiler's own test doubles over asm.AssemblerBase).
package testgen

import (
	"fmt"

	"github.com/sourceror/compiler/internal/wasmgen"
)

// Scratch is a LIFO local allocator. Unlike a real encoder it never
// recycles freed indices — nothing in FC/VR depends on reuse — but it
// does assert the LIFO push/pop discipline every real Scratch documents,
// panicking if a caller pops out of order or pops a type that wasn't the
// last one pushed.
type Scratch struct {
	next  uint32
	stack []wasmgen.ValType
}

// NewScratch returns an empty Scratch.
func NewScratch() *Scratch { return &Scratch{} }

func (s *Scratch) Push(v wasmgen.ValType) wasmgen.LocalIdx {
	idx := wasmgen.LocalIdx(s.next)
	s.next++
	s.stack = append(s.stack, v)
	return idx
}

func (s *Scratch) Pop(v wasmgen.ValType) {
	if len(s.stack) == 0 {
		panic("testgen: Scratch.Pop on empty stack")
	}
	top := s.stack[len(s.stack)-1]
	if top != v {
		panic(fmt.Sprintf("testgen: Scratch.Pop(%s) does not match last-pushed %s", v, top))
	}
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *Scratch) PushI32() wasmgen.LocalIdx { return s.Push(wasmgen.I32) }
func (s *Scratch) PopI32()                   { s.Pop(wasmgen.I32) }
func (s *Scratch) PushI64() wasmgen.LocalIdx { return s.Push(wasmgen.I64) }
func (s *Scratch) PopI64()                   { s.Pop(wasmgen.I64) }
func (s *Scratch) PushF32() wasmgen.LocalIdx { return s.Push(wasmgen.F32) }
func (s *Scratch) PopF32()                   { s.Pop(wasmgen.F32) }
func (s *Scratch) PushF64() wasmgen.LocalIdx { return s.Push(wasmgen.F64) }
func (s *Scratch) PopF64()                   { s.Pop(wasmgen.F64) }

// Depth reports how many cells are currently pushed, for tests that
// assert a function's emission leaves the scratch allocator balanced.
func (s *Scratch) Depth() int { return len(s.stack) }

// Instr is one recorded ExprBuilder call: the instruction mnemonic plus
// its operands, in call order.
type Instr struct {
	Op   string
	Args []any
}

// ExprBuilder records every instruction emitted against it rather than
// encoding real Wasm bytes, so tests can assert on the exact emitted
// sequence.
type ExprBuilder struct {
	Instrs []Instr
}

// NewExprBuilder returns an empty ExprBuilder.
func NewExprBuilder() *ExprBuilder { return &ExprBuilder{} }

func (b *ExprBuilder) emit(op string, args ...any) {
	b.Instrs = append(b.Instrs, Instr{Op: op, Args: args})
}

// Ops returns just the mnemonics of every recorded instruction, in
// order — the common case for assertions that don't care about operand
// values.
func (b *ExprBuilder) Ops() []string {
	out := make([]string, len(b.Instrs))
	for i, ins := range b.Instrs {
		out[i] = ins.Op
	}
	return out
}

func (b *ExprBuilder) LocalGet(idx wasmgen.LocalIdx)   { b.emit("local.get", idx) }
func (b *ExprBuilder) LocalSet(idx wasmgen.LocalIdx)   { b.emit("local.set", idx) }
func (b *ExprBuilder) LocalTee(idx wasmgen.LocalIdx)   { b.emit("local.tee", idx) }
func (b *ExprBuilder) GlobalGet(idx wasmgen.GlobalIdx) { b.emit("global.get", idx) }
func (b *ExprBuilder) GlobalSet(idx wasmgen.GlobalIdx) { b.emit("global.set", idx) }

func (b *ExprBuilder) I32Const(v int32)     { b.emit("i32.const", v) }
func (b *ExprBuilder) I64Const(v int64)     { b.emit("i64.const", v) }
func (b *ExprBuilder) F32Const(v float32)   { b.emit("f32.const", v) }
func (b *ExprBuilder) F64Const(v float64)   { b.emit("f64.const", v) }

func (b *ExprBuilder) I32Load(m wasmgen.MemArg)  { b.emit("i32.load", m) }
func (b *ExprBuilder) I64Load(m wasmgen.MemArg)  { b.emit("i64.load", m) }
func (b *ExprBuilder) F32Load(m wasmgen.MemArg)  { b.emit("f32.load", m) }
func (b *ExprBuilder) F64Load(m wasmgen.MemArg)  { b.emit("f64.load", m) }
func (b *ExprBuilder) I32Store(m wasmgen.MemArg) { b.emit("i32.store", m) }
func (b *ExprBuilder) I64Store(m wasmgen.MemArg) { b.emit("i64.store", m) }
func (b *ExprBuilder) F32Store(m wasmgen.MemArg) { b.emit("f32.store", m) }
func (b *ExprBuilder) F64Store(m wasmgen.MemArg) { b.emit("f64.store", m) }

func (b *ExprBuilder) I64ExtendI32U()     { b.emit("i64.extend_i32_u") }
func (b *ExprBuilder) I32WrapI64()        { b.emit("i32.wrap_i64") }
func (b *ExprBuilder) F64ReinterpretI64() { b.emit("f64.reinterpret_i64") }
func (b *ExprBuilder) I64ReinterpretF64() { b.emit("i64.reinterpret_f64") }
func (b *ExprBuilder) I64Shl()            { b.emit("i64.shl") }
func (b *ExprBuilder) I64ShrU()           { b.emit("i64.shr_u") }
func (b *ExprBuilder) I64Or()             { b.emit("i64.or") }
func (b *ExprBuilder) I32Ne()             { b.emit("i32.ne") }

func (b *ExprBuilder) If(resultTypes []wasmgen.ValType) { b.emit("if", resultTypes) }
func (b *ExprBuilder) Else()                            { b.emit("else") }
func (b *ExprBuilder) End()                             { b.emit("end") }
func (b *ExprBuilder) Drop()                            { b.emit("drop") }
