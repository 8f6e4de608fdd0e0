package conformance

// runtimeTester is the minimal surface this package needs from an
// external Wasm engine: instantiate a module and call its exported
// i32/i64 functions by name. Modelled on the teacher's
// internal/integration_test/vs.runtimeTester, trimmed to the
// uint64-params shape every fixture in fixtures.go uses, with a uint32
// or uint64 result.
type runtimeTester interface {
	Instantiate(wasm []byte) error
	CallI32(funcName string, params ...uint64) (uint32, error)
	CallI64(funcName string, params ...uint64) (uint64, error)
	Close() error
}

// runtimeTesters is populated by each gated runtime file's init(), the
// same registration pattern the teacher's vs package uses so that
// conformance_test.go never names a concrete engine type directly.
var runtimeTesters = map[string]func() runtimeTester{}
