package conformance

import "github.com/sourceror/compiler/api"

// funcPackModule exercises Widen's Func->Any bit-packing sequence
// (internal/valuerep.Widen, the isFunc(sourceType) branch): closure
// and tableidx are each widened to i64 and combined as
// (closure << 32) | tableidx, exactly the instruction sequence Widen
// emits, minus the trailing Any tag (a constant, not something an
// external engine can disagree with us about).
var funcPackModule = buildModule(0, exportedFunc{
	name:    "pack_func",
	params:  []byte{valI32, valI32}, // closure, tableidx
	results: []byte{valI64},
	body: concat(
		[]byte{opLocalGet, 0},
		[]byte{opI64ExtendI32U},
		[]byte{opI64Const}, sleb(32),
		[]byte{opI64Shl},
		[]byte{opLocalGet, 1},
		[]byte{opI64ExtendI32U},
		[]byte{opI64Or},
	),
})

// numberReinterpretModule exercises Widen's Number->Any sequence
// (the isNumber(sourceType) branch): i64.reinterpret_f64 reinterprets
// the f64 bit pattern as i64 without conversion, the instruction our
// own encoder assumes behaves identically across engines.
var numberReinterpretModule = buildModule(0, exportedFunc{
	name:    "reinterpret_number",
	params:  []byte{valF64},
	results: []byte{valI64},
	body: concat(
		[]byte{opLocalGet, 0},
		[]byte{opI64ReinterpretF64},
	),
})

// memoryAnyRoundtripModule exercises StoreMemory/LoadMemory's Any
// layout (internal/valuerep.StoreMemory, the isAny(destType) branch):
// tag at struct offset 0, data at offset+4. Two exported functions
// write both fields and read back one each, so each engine's i32
// load/store at offset 0 and i64 load/store at offset 4 are both
// independently checked.
var memoryAnyRoundtripModule = buildModule(1,
	exportedFunc{
		name:    "mem_roundtrip_tag",
		params:  []byte{valI32, valI64}, // tag, data
		results: []byte{valI32},
		body: concat(
			storeAnyAt(0),
			[]byte{opI32Const}, sleb(0),
			[]byte{opI32Load}, memArg(2, 0),
		),
	},
	exportedFunc{
		name:    "mem_roundtrip_data",
		params:  []byte{valI32, valI64}, // tag, data
		results: []byte{valI64},
		body: concat(
			storeAnyAt(0),
			[]byte{opI32Const}, sleb(0),
			[]byte{opI64Load}, memArg(3, 4),
		),
	},
)

// storeAnyAt emits the store half of Any's memory layout: param 0
// (tag, i32) to structOffset, param 1 (data, i64) to structOffset+4.
func storeAnyAt(structOffset uint32) []byte {
	return concat(
		[]byte{opI32Const}, sleb(int64(structOffset)),
		[]byte{opLocalGet, 0},
		[]byte{opI32Store}, memArg(2, structOffset),
		[]byte{opI32Const}, sleb(int64(structOffset)),
		[]byte{opLocalGet, 1},
		[]byte{opI64Store}, memArg(3, structOffset+4),
	)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// funcTag and numberTag are the Any discriminants Widen attaches
// alongside the payloads above. They're plain Go constants, not
// something an external engine executes, so they aren't part of any
// module body — tests compare against them directly.
var (
	funcTag   = api.Func.Tag()
	numberTag = api.Number.Tag()
)
