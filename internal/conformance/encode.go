// Package conformance cross-checks the byte layouts Value
// Representation documents (§4.1's Any/Func/memory cell shapes)
// against real Wasm engines, the way the teacher's internal/
// integration_test/vs package compares wazero's own execution against
// wasmtime-go and wasmer-go rather than trusting only its own encoder.
// Because VR's own encoder (internal/wasmgen) is exactly what's under
// test, every module here is assembled by hand from raw opcode bytes.
package conformance

const (
	valI32 = 0x7f
	valI64 = 0x7e
	valF64 = 0x7c
)

const (
	opEnd              = 0x0b
	opLocalGet         = 0x20
	opLocalSet         = 0x21
	opI32Const         = 0x41
	opI64Const         = 0x42
	opI32Load          = 0x28
	opI64Load          = 0x29
	opI32Store         = 0x36
	opI64Store         = 0x37
	opI64ExtendI32U     = 0xad
	opI64Shl            = 0x86
	opI64Or             = 0x84
	opI64ReinterpretF64 = 0xbd
)

// uleb encodes n as unsigned LEB128, the integer encoding every length,
// index, and unsigned immediate in the binary format uses.
func uleb(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			return out
		}
	}
}

// sleb encodes n as signed LEB128, used by i32.const/i64.const
// immediates.
func sleb(n int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(n & 0x7f)
		n >>= 7
		signBitSet := b&0x40 != 0
		if (n == 0 && !signBitSet) || (n == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// vec length-prefixes a sequence of already-encoded elements, the
// binary format's universal "vec(B)" production.
func vec(elems ...[]byte) []byte {
	out := uleb(uint64(len(elems)))
	for _, e := range elems {
		out = append(out, e...)
	}
	return out
}

// byteVec is vec specialised to single-byte elements (e.g. a valtype
// list), avoiding a slice-of-slices for the common case.
func byteVec(bs ...byte) []byte {
	out := uleb(uint64(len(bs)))
	return append(out, bs...)
}

func section(id byte, contents []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint64(len(contents)))...)
	return append(out, contents...)
}

// memArg encodes an alignment/offset pair for a load or store
// instruction. align is given as the power of two (2 for a 4-byte
// alignment, 3 for an 8-byte one).
func memArg(align uint32, offset uint32) []byte {
	out := uleb(uint64(align))
	return append(out, uleb(uint64(offset))...)
}

// exportedFunc is one function this package's modules expose: its
// Wasm signature, body, and the name the test table calls it by.
type exportedFunc struct {
	name    string
	params  []byte // valtypes
	results []byte // valtypes
	body    []byte // instructions, excluding the trailing `end`
}

// buildModule assembles a minimal single-memory Wasm binary exporting
// each of funcs under its own name. Every function gets its own type
// entry; none declare additional locals beyond their parameters.
func buildModule(memoryPages uint32, funcs ...exportedFunc) []byte {
	var types, funcSec, codeSec, exportSec []byte
	typeElems := make([][]byte, len(funcs))
	funcElems := make([][]byte, len(funcs))
	codeElems := make([][]byte, len(funcs))
	exportElems := make([][]byte, 0, len(funcs))

	for i, f := range funcs {
		ft := []byte{0x60}
		ft = append(ft, byteVec(f.params...)...)
		ft = append(ft, byteVec(f.results...)...)
		typeElems[i] = ft

		funcElems[i] = uleb(uint64(i))

		body := append(append([]byte{}, f.body...), opEnd)
		code := uleb(0) // no local decl groups
		code = append(code, body...)
		codeElems[i] = append(uleb(uint64(len(code))), code...)

		nameBytes := []byte(f.name)
		exp := append(uleb(uint64(len(nameBytes))), nameBytes...)
		exp = append(exp, 0x00) // export kind: func
		exp = append(exp, uleb(uint64(i))...)
		exportElems = append(exportElems, exp)
	}
	types = vec(typeElems...)
	funcSec = vec(funcElems...)
	codeSec = vec(codeElems...)
	exportSec = vec(exportElems...)

	var mod []byte
	mod = append(mod, []byte("\x00asm")...)
	mod = append(mod, 0x01, 0x00, 0x00, 0x00) // version 1
	mod = append(mod, section(1, types)...)
	mod = append(mod, section(3, funcSec)...)
	if memoryPages > 0 {
		limits := append([]byte{0x00}, uleb(uint64(memoryPages))...) // flags=0: min only
		mod = append(mod, section(5, vec(limits))...)
	}
	mod = append(mod, section(7, exportSec)...)
	mod = append(mod, section(10, codeSec)...)
	return mod
}
