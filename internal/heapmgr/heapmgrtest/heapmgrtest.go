// Package heapmgrtest provides a recording heapmgr.Manager double, used
// by internal/funcctx's tests to assert which hooks fired, in what
// order, and over which locals — without depending on a real garbage
// collector implementation.
package heapmgrtest

import (
	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/wasmgen"
)

// Call records one Manager method invocation.
type Call struct {
	Method          string
	VarType         api.VarType // zero value unless Method is one of the allocation hooks
	Types           []api.VarType
	LocalMap        []int
	TempArrayLength int // only meaningful for EncodeDynamicAllocation
}

// Recorder is a heapmgr.Manager that appends a Call for every invocation.
// The root hooks emit nothing; the two allocation hooks emit only the
// placeholder instructions that keep their promised wasm stack shape, so
// FC's tests can check both Calls and the ExprBuilder's output.
type Recorder struct {
	Calls []Call
}

// New returns an empty Recorder.
func New() *Recorder { return &Recorder{} }

func (r *Recorder) EncodeLocalRootsInit(types []api.VarType, localMap []int, _ []wasmgen.LocalIdx, _ wasmgen.Scratch, _ wasmgen.ExprBuilder) {
	r.Calls = append(r.Calls, Call{Method: "EncodeLocalRootsInit", Types: append([]api.VarType(nil), types...), LocalMap: append([]int(nil), localMap...)})
}

func (r *Recorder) EncodeLocalRootsPrologue(types []api.VarType, localMap []int, _ []wasmgen.LocalIdx, _ wasmgen.Scratch, _ wasmgen.ExprBuilder) {
	r.Calls = append(r.Calls, Call{Method: "EncodeLocalRootsPrologue", Types: append([]api.VarType(nil), types...), LocalMap: append([]int(nil), localMap...)})
}

func (r *Recorder) EncodeLocalRootsEpilogue(types []api.VarType, localMap []int, _ []wasmgen.LocalIdx, _ wasmgen.Scratch, _ wasmgen.ExprBuilder) {
	r.Calls = append(r.Calls, Call{Method: "EncodeLocalRootsEpilogue", Types: append([]api.VarType(nil), types...), LocalMap: append([]int(nil), localMap...)})
}

func (r *Recorder) EncodeFixedAllocation(vartype api.VarType, types []api.VarType, localMap []int, _ []wasmgen.LocalIdx, _ wasmgen.Scratch, b wasmgen.ExprBuilder) {
	r.Calls = append(r.Calls, Call{Method: "EncodeFixedAllocation", VarType: vartype, Types: append([]api.VarType(nil), types...), LocalMap: append([]int(nil), localMap...)})
	// A recorder still has to leave the wasm stack in the shape the
	// caller's contract promises ([] -> [i32(ptr)]) so that callers
	// composing this with further emission don't themselves get
	// confused about stack depth.
	b.I32Const(0)
}

func (r *Recorder) EncodeDynamicAllocation(vartype api.VarType, types []api.VarType, localMap []int, _ []wasmgen.LocalIdx, _ wasmgen.Scratch, b wasmgen.ExprBuilder, tempArrayLength int) {
	r.Calls = append(r.Calls, Call{Method: "EncodeDynamicAllocation", VarType: vartype, Types: append([]api.VarType(nil), types...), LocalMap: append([]int(nil), localMap...), TempArrayLength: tempArrayLength})
	b.Drop() // net [i32(num_bytes)] -> [], then...
	b.I32Const(0)
}
