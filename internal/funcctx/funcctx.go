// Package funcctx implements Function Context (FC): the per-function
// bookkeeping that ties a flat Wasm local pool to the IR's notion of a
// local variable, manages scratch cells, tracks branch-landing targets
// for IR break/continue lowering, and delegates to the heap manager
// for GC-root tracking and allocation. Grounded on
// lib-backend-wasm/src/mutcontext.rs's MutContext.
package funcctx

import (
	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/heapmgr"
	"github.com/sourceror/compiler/internal/wasmgen"
)

type landing struct {
	// absLanding is the wasm_landing_count value immediately after this
	// landing was pushed (so the innermost currently-open landing's
	// absLanding always equals the live wasm_landing_count) —
	// get_wasm_landing recovers a relative branch depth as the current
	// count minus this value.
	absLanding int
	t          api.VarType
	wasmLocalIdx []wasmgen.LocalIdx
}

// FuncCtx is the mutable context threaded through the lowering of one
// function body. It owns the function's Wasm-local layout and scratch
// allocator and delegates GC-root and allocation concerns to a
// heapmgr.Manager; it never encodes instructions beyond what those
// delegations and zero-initialization require.
type FuncCtx struct {
	scratch wasmgen.Scratch
	builder wasmgen.ExprBuilder
	heap    heapmgr.Manager

	// wasmLocalMap is the flat sequence of Wasm local indices backing
	// every IR local currently in scope, in push order.
	wasmLocalMap []wasmgen.LocalIdx
	// localMap[i] is the index into wasmLocalMap where IR local i's
	// cells begin; the next entry (or len(wasmLocalMap)) bounds it.
	localMap []int
	// localTypes[i] is IR local i's static type.
	localTypes []api.VarType
	// namedLocalMap[n] is the localMap/localTypes index for named
	// (source-level) local n; shadow locals never appear here.
	namedLocalMap []int

	landings         []landing
	wasmLandingCount int

	// tempArrayLength is the scratch register a dynamic allocation's
	// element count is stashed in, so the heap manager can read it if
	// the allocation itself triggers a collection. Zero means unset;
	// set/reset enforce the single-producer/single-consumer discipline
	// documented on SetTempArrayLength/ResetTempArrayLength.
	tempArrayLength wasmgen.LocalIdx
}

// New constructs a FuncCtx over initialTypes, already laid out as
// initialWasmLocalMap/initialLocalMap (typically a function's
// parameters); namedLocalMap starts as the identity map over them, per
// mutcontext.rs's MutContext::new.
func New(scratch wasmgen.Scratch, b wasmgen.ExprBuilder, heap heapmgr.Manager, initialWasmLocalMap []wasmgen.LocalIdx, initialLocalMap []int, initialTypes []api.VarType) *FuncCtx {
	if len(initialLocalMap) != len(initialTypes) {
		api.Raise("funcctx.New", "initial local_map and types length mismatch (%d vs %d)", len(initialLocalMap), len(initialTypes))
	}
	fc := &FuncCtx{
		scratch:      scratch,
		builder:      b,
		heap:         heap,
		wasmLocalMap: append([]wasmgen.LocalIdx(nil), initialWasmLocalMap...),
		localMap:     append([]int(nil), initialLocalMap...),
		localTypes:   append([]api.VarType(nil), initialTypes...),
	}
	fc.namedLocalMap = make([]int, len(initialTypes))
	for i := range fc.namedLocalMap {
		fc.namedLocalMap[i] = i
	}
	return fc
}

// --- core local-stack primitives ---

func (fc *FuncCtx) pushLocal(t api.VarType) (mapIdx int, idx []wasmgen.LocalIdx) {
	cells, err := api.EncodeVarType(t)
	if err != nil {
		api.Raise("funcctx.pushLocal", "%s", err)
	}
	for i := 0; i < cells.I32; i++ {
		idx = append(idx, fc.scratch.PushI32())
	}
	for i := 0; i < cells.I64; i++ {
		idx = append(idx, fc.scratch.PushI64())
	}
	if cells.F64 {
		idx = append(idx, fc.scratch.PushF64())
	}
	start := len(fc.wasmLocalMap)
	fc.wasmLocalMap = append(fc.wasmLocalMap, idx...)
	mapIdx = len(fc.localMap)
	fc.localMap = append(fc.localMap, start)
	fc.localTypes = append(fc.localTypes, t)
	if len(fc.localTypes) != len(fc.localMap) {
		api.Raise("funcctx.pushLocal", "local_types and local_map diverged")
	}
	return mapIdx, idx
}

func (fc *FuncCtx) popLocal() {
	n := len(fc.localTypes)
	if n == 0 {
		api.Raise("funcctx.popLocal", "pop on an empty local stack")
	}
	cells, _ := api.EncodeVarType(fc.localTypes[n-1])
	if cells.F64 {
		fc.scratch.PopF64()
	}
	for i := 0; i < cells.I64; i++ {
		fc.scratch.PopI64()
	}
	for i := 0; i < cells.I32; i++ {
		fc.scratch.PopI32()
	}
	fc.wasmLocalMap = fc.wasmLocalMap[:fc.localMap[n-1]]
	fc.localTypes = fc.localTypes[:n-1]
	fc.localMap = fc.localMap[:n-1]
}

// AddUninitializedShadowLocal and RemoveShadowLocal are the raw
// push/pop pair for callers that cannot nest a callback; callers must
// still pop in exactly the order they pushed (LIFO), or later pops will
// tear down the wrong local's cells.
func (fc *FuncCtx) AddUninitializedShadowLocal(t api.VarType) []wasmgen.LocalIdx {
	_, idx := fc.pushLocal(t)
	return idx
}

// RemoveShadowLocal pops the most recently pushed shadow local.
func (fc *FuncCtx) RemoveShadowLocal() {
	fc.popLocal()
}

// --- local-slice accessors ---

// WasmLocalSlice returns the Wasm cell group backing the IR local at
// localMap index mapIdx.
func (fc *FuncCtx) WasmLocalSlice(mapIdx int) []wasmgen.LocalIdx {
	if mapIdx < 0 || mapIdx >= len(fc.localMap) {
		api.Raise("funcctx.WasmLocalSlice", "local map index %d out of range (have %d locals)", mapIdx, len(fc.localMap))
	}
	start := fc.localMap[mapIdx]
	end := len(fc.wasmLocalMap)
	if mapIdx+1 < len(fc.localMap) {
		end = fc.localMap[mapIdx+1]
	}
	return fc.wasmLocalMap[start:end]
}

// NamedWasmLocalSlice returns the Wasm cell group for named (source-
// level) local n.
func (fc *FuncCtx) NamedWasmLocalSlice(n int) []wasmgen.LocalIdx {
	if n < 0 || n >= len(fc.namedLocalMap) {
		api.Raise("funcctx.NamedWasmLocalSlice", "named local %d out of range (have %d)", n, len(fc.namedLocalMap))
	}
	return fc.WasmLocalSlice(fc.namedLocalMap[n])
}

// NamedWasmLocalSliceAndScratch returns named local n's cells plus
// every scratch/shadow cell pushed after it — the full suffix of
// wasmLocalMap from n's start onward. Used where a heap-manager hook
// needs to see every live cell potentially holding a root, not just
// the named local's own cells.
func (fc *FuncCtx) NamedWasmLocalSliceAndScratch(n int) []wasmgen.LocalIdx {
	if n < 0 || n >= len(fc.namedLocalMap) {
		api.Raise("funcctx.NamedWasmLocalSliceAndScratch", "named local %d out of range (have %d)", n, len(fc.namedLocalMap))
	}
	start := fc.localMap[fc.namedLocalMap[n]]
	return fc.wasmLocalMap[start:]
}

// --- zero-initialization ---

func zeroInitLocal(t api.VarType, idx []wasmgen.LocalIdx, b wasmgen.ExprBuilder) {
	switch {
	case t.Equal(api.Undefined):
		// occupies no cells
	case t.IsAny():
		b.I32Const(api.Undefined.Tag())
		b.LocalSet(idx[0])
		b.I64Const(0)
		b.LocalSet(idx[1])
	case t.Equal(api.Number):
		b.F64Const(0)
		b.LocalSet(idx[0])
	case t.Equal(api.Func):
		b.I32Const(0)
		b.LocalSet(idx[0])
		b.I32Const(0)
		b.LocalSet(idx[1])
	case t.Equal(api.Unassigned):
		api.Raise("funcctx.zeroInitLocal", "cannot zero-initialize an Unassigned local")
	default: // Boolean, String, StructT: single i32 cell, zero value or null pointer
		b.I32Const(0)
		b.LocalSet(idx[0])
	}
}

// --- shadow/named local scoping ---

// WithUninitializedShadowLocal pushes an anonymous local of type t,
// invokes fn with its Wasm cells — left uninitialized, so fn must
// assign them before anything that might trigger garbage collection —
// and pops it again once fn returns.
func (fc *FuncCtx) WithUninitializedShadowLocal(t api.VarType, fn func(idx []wasmgen.LocalIdx)) {
	_, idx := fc.pushLocal(t)
	defer fc.popLocal()
	fn(idx)
}

// WithShadowLocal is WithUninitializedShadowLocal plus zero-
// initialization and a heap-manager root-init call, so fn's body may
// safely allocate before it assigns the local itself.
func (fc *FuncCtx) WithShadowLocal(t api.VarType, fn func(idx []wasmgen.LocalIdx)) {
	fc.WithUninitializedShadowLocal(t, func(idx []wasmgen.LocalIdx) {
		zeroInitLocal(t, idx, fc.builder)
		mapIdx := len(fc.localMap) - 1
		fc.heap.EncodeLocalRootsInit(fc.localTypes[mapIdx:mapIdx+1], fc.localMap[mapIdx:mapIdx+1], idx, fc.scratch, fc.builder)
		fn(idx)
	})
}

// WithNamedLocal is WithShadowLocal plus registering the new local
// under a fresh named index, passed to fn alongside its cells.
func (fc *FuncCtx) WithNamedLocal(t api.VarType, fn func(namedIdx int, idx []wasmgen.LocalIdx)) {
	fc.WithShadowLocal(t, func(idx []wasmgen.LocalIdx) {
		n := len(fc.namedLocalMap)
		fc.namedLocalMap = append(fc.namedLocalMap, len(fc.localMap)-1)
		defer func() { fc.namedLocalMap = fc.namedLocalMap[:len(fc.namedLocalMap)-1] }()
		fn(n, idx)
	})
}

// WithUninitializedNamedLocal is WithUninitializedShadowLocal plus
// named-index registration.
func (fc *FuncCtx) WithUninitializedNamedLocal(t api.VarType, fn func(namedIdx int, idx []wasmgen.LocalIdx)) {
	fc.WithUninitializedShadowLocal(t, func(idx []wasmgen.LocalIdx) {
		n := len(fc.namedLocalMap)
		fc.namedLocalMap = append(fc.namedLocalMap, len(fc.localMap)-1)
		defer func() { fc.namedLocalMap = fc.namedLocalMap[:len(fc.namedLocalMap)-1] }()
		fn(n, idx)
	})
}

// WithShadowLocals is the batch form of WithShadowLocal: pushes one
// shadow local per type in order, invokes fn with all of their cells,
// then pops them in reverse (LIFO).
func (fc *FuncCtx) WithShadowLocals(types []api.VarType, fn func(idxs [][]wasmgen.LocalIdx)) {
	if len(types) == 0 {
		fn(nil)
		return
	}
	fc.WithShadowLocal(types[0], func(idx []wasmgen.LocalIdx) {
		fc.WithShadowLocals(types[1:], func(rest [][]wasmgen.LocalIdx) {
			fn(append([][]wasmgen.LocalIdx{idx}, rest...))
		})
	})
}

// WithUninitializedShadowLocals is the batch, uninitialized form of
// WithShadowLocals.
func (fc *FuncCtx) WithUninitializedShadowLocals(types []api.VarType, fn func(idxs [][]wasmgen.LocalIdx)) {
	if len(types) == 0 {
		fn(nil)
		return
	}
	fc.WithUninitializedShadowLocal(types[0], func(idx []wasmgen.LocalIdx) {
		fc.WithUninitializedShadowLocals(types[1:], func(rest [][]wasmgen.LocalIdx) {
			fn(append([][]wasmgen.LocalIdx{idx}, rest...))
		})
	})
}

// --- scratch cells ---

// WithScratch borrows one scratch Wasm local of type vt for the
// duration of fn. Scratch cells have their own push/pop discipline,
// independent of IR locals.
func (fc *FuncCtx) WithScratch(vt wasmgen.ValType, fn func(idx wasmgen.LocalIdx)) {
	idx := fc.scratch.Push(vt)
	defer fc.scratch.Pop(vt)
	fn(idx)
}

func (fc *FuncCtx) WithScratchI32(fn func(idx wasmgen.LocalIdx)) { fc.WithScratch(wasmgen.I32, fn) }
func (fc *FuncCtx) WithScratchI64(fn func(idx wasmgen.LocalIdx)) { fc.WithScratch(wasmgen.I64, fn) }
func (fc *FuncCtx) WithScratchF32(fn func(idx wasmgen.LocalIdx)) { fc.WithScratch(wasmgen.F32, fn) }
func (fc *FuncCtx) WithScratchF64(fn func(idx wasmgen.LocalIdx)) { fc.WithScratch(wasmgen.F64, fn) }

// WithScratches borrows one scratch local per entry of types, in
// order, releasing them in reverse once fn returns.
func (fc *FuncCtx) WithScratches(types []wasmgen.ValType, fn func(idxs []wasmgen.LocalIdx)) {
	if len(types) == 0 {
		fn(nil)
		return
	}
	fc.WithScratch(types[0], func(idx wasmgen.LocalIdx) {
		fc.WithScratches(types[1:], func(rest []wasmgen.LocalIdx) {
			fn(append([]wasmgen.LocalIdx{idx}, rest...))
		})
	})
}

// --- branch landings ---

// WithLanding opens a landable branch target carrying a value of type
// t through ctxCells: the landing counter is incremented and a landing
// record pushed before fn runs, and both are popped again once it
// returns.
func (fc *FuncCtx) WithLanding(t api.VarType, ctxCells []wasmgen.LocalIdx, fn func()) {
	fc.wasmLandingCount++
	fc.landings = append(fc.landings, landing{absLanding: fc.wasmLandingCount, t: t, wasmLocalIdx: ctxCells})
	defer func() {
		fc.wasmLandingCount--
		fc.landings = fc.landings[:len(fc.landings)-1]
	}()
	fn()
}

// WithUnusedLanding opens a Wasm label that IR code cannot target
// (synthetic framing a lowering needs but that no break/continue can
// name): it increments the landing counter without registering a
// landing record, so get_wasm_landing's relative-depth arithmetic still
// accounts for it.
func (fc *FuncCtx) WithUnusedLanding(fn func()) {
	fc.wasmLandingCount++
	defer func() { fc.wasmLandingCount-- }()
	fn()
}

// GetWasmLanding maps a zero-based IR-relative landing index (0 = the
// innermost currently open landing) to the Wasm-relative branch depth,
// carried type, and context cells recorded when that landing was
// opened.
func (fc *FuncCtx) GetWasmLanding(irLandingIdx int) (wasmRelativeDepth int, t api.VarType, wasmLocalIdx []wasmgen.LocalIdx) {
	n := len(fc.landings)
	i := n - 1 - irLandingIdx
	if i < 0 || i >= n {
		api.Raise("funcctx.GetWasmLanding", "ir landing index %d out of range (%d landings open)", irLandingIdx, n)
	}
	l := fc.landings[i]
	return fc.wasmLandingCount - l.absLanding, l.t, l.wasmLocalIdx
}

// --- heap manager delegation ---

// HeapEncodeFixedAllocation asks the heap manager to emit a
// statically-sized allocation of t. Net wasm stack: [] -> [i32(ptr)].
func (fc *FuncCtx) HeapEncodeFixedAllocation(t api.VarType) {
	fc.heap.EncodeFixedAllocation(t, fc.localTypes, fc.localMap, fc.wasmLocalMap, fc.scratch, fc.builder)
}

// HeapEncodeDynamicAllocation asks the heap manager to emit an
// allocation of t sized by the i32 byte count already on the wasm
// stack, using the registered temp_array_length register. Net wasm
// stack: [i32(num_bytes)] -> [i32(ptr)].
func (fc *FuncCtx) HeapEncodeDynamicAllocation(t api.VarType) {
	if fc.tempArrayLength == 0 {
		api.Raise("funcctx.HeapEncodeDynamicAllocation", "temp_array_length register not set before a dynamic allocation")
	}
	fc.heap.EncodeDynamicAllocation(t, fc.localTypes, fc.localMap, fc.wasmLocalMap, fc.scratch, fc.builder, int(fc.tempArrayLength))
}

// HeapEncodePrologueEpilogue brackets fn with the heap manager's
// local-roots prologue/epilogue pair, for emitting a call that might
// trigger a collection.
func (fc *FuncCtx) HeapEncodePrologueEpilogue(fn func()) {
	fc.heap.EncodeLocalRootsPrologue(fc.localTypes, fc.localMap, fc.wasmLocalMap, fc.scratch, fc.builder)
	defer fc.heap.EncodeLocalRootsEpilogue(fc.localTypes, fc.localMap, fc.wasmLocalMap, fc.scratch, fc.builder)
	fn()
}

// --- temp_array_length register ---

// SetTempArrayLength records idx as the scratch register a dynamic
// allocation's element count lives in. It is an ICE to call this while
// a value is already registered — the register is a single-producer
// channel between the IR site opening the allocation and the heap
// manager reading it mid-allocation.
func (fc *FuncCtx) SetTempArrayLength(idx wasmgen.LocalIdx) {
	if fc.tempArrayLength != 0 {
		api.Raise("funcctx.SetTempArrayLength", "ICE: Data race setting array length")
	}
	fc.tempArrayLength = idx
}

// ResetTempArrayLength clears the temp_array_length register. It is an
// ICE to call this when no value is registered.
func (fc *FuncCtx) ResetTempArrayLength() {
	if fc.tempArrayLength == 0 {
		api.Raise("funcctx.ResetTempArrayLength", "ICE: Data race resetting array length")
	}
	fc.tempArrayLength = 0
}

// TempArrayLength returns the currently registered scratch register,
// or zero if none is set.
func (fc *FuncCtx) TempArrayLength() wasmgen.LocalIdx {
	return fc.tempArrayLength
}
