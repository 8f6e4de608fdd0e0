// Package heapmgr declares the heap manager collaborator contract:
// the garbage collector's hooks into a function's local-variable
// layout. The heap manager implementation itself — deciding which
// locals are GC roots, how they're scanned, and how allocation actually
// happens — is an external collaborator; internal/funcctx only ever
// calls through this interface, never implements it. See
// internal/heapmgr/heapmgrtest for the recording double backing this
// repo's own tests.
package heapmgr

import (
	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/wasmgen"
)

// Manager is implemented by the external heap/GC subsystem. Every
// method receives the full-or-suffix view of a function's local-layout
// triple (types, the ir-local -> wasm_local_map start-index map, and the
// flat wasm_local_map itself) plus a Scratch and ExprBuilder to emit
// against, mirroring encode_fixed_allocation/encode_dynamic_allocation/
// encode_local_roots_{init,prologue,epilogue} in
// lib-backend-wasm/src/mutcontext.rs and lib-backend-wasm/src/gc.rs's
// HeapManager trait.
type Manager interface {
	// EncodeLocalRootsInit initializes the GC-root bookkeeping for a
	// newly-pushed suffix of locals (types/localMap/wasmLocalMap sliced
	// to just the new locals) — called by internal/funcctx once per local
	// pushed through WithShadowLocal, WithNamedLocal or WithShadowLocals,
	// right after that local's cells are zero-initialized. The
	// WithUninitialized* helpers do not call it.
	EncodeLocalRootsInit(types []api.VarType, localMap []int, wasmLocalMap []wasmgen.LocalIdx, scratch wasmgen.Scratch, b wasmgen.ExprBuilder)

	// EncodeLocalRootsPrologue and EncodeLocalRootsEpilogue bracket a
	// call that might trigger garbage collection (typically a function
	// call): the prologue makes every current local visible to the
	// collector, the epilogue undoes that after the call returns.
	EncodeLocalRootsPrologue(types []api.VarType, localMap []int, wasmLocalMap []wasmgen.LocalIdx, scratch wasmgen.Scratch, b wasmgen.ExprBuilder)
	EncodeLocalRootsEpilogue(types []api.VarType, localMap []int, wasmLocalMap []wasmgen.LocalIdx, scratch wasmgen.Scratch, b wasmgen.ExprBuilder)

	// EncodeFixedAllocation emits a heap allocation of a statically-known
	// size for vartype. Net wasm stack: [] -> [i32(ptr)].
	EncodeFixedAllocation(vartype api.VarType, types []api.VarType, localMap []int, wasmLocalMap []wasmgen.LocalIdx, scratch wasmgen.Scratch, b wasmgen.ExprBuilder)

	// EncodeDynamicAllocation emits a heap allocation whose size is a
	// runtime value already on the wasm stack (an i32 byte count), using
	// tempArrayLength as a scratch register index for bookkeeping the
	// collector needs during the allocation. Net wasm stack:
	// [i32(num_bytes)] -> [i32(ptr)].
	EncodeDynamicAllocation(vartype api.VarType, types []api.VarType, localMap []int, wasmLocalMap []wasmgen.LocalIdx, scratch wasmgen.Scratch, b wasmgen.ExprBuilder, tempArrayLength int)
}
