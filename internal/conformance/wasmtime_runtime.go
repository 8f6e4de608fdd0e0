//go:build amd64 && cgo

package conformance

import (
	"fmt"
	"math"

	"github.com/bytecodealliance/wasmtime-go"
)

func init() {
	runtimeTesters["wasmtime-go"] = newWasmtimeTester
}

func newWasmtimeTester() runtimeTester {
	return &wasmtimeTester{}
}

type wasmtimeTester struct {
	store    *wasmtime.Store
	instance *wasmtime.Instance
}

func (w *wasmtimeTester) Instantiate(wasm []byte) error {
	w.store = wasmtime.NewStore(wasmtime.NewEngine())
	module, err := wasmtime.NewModule(w.store.Engine, wasm)
	if err != nil {
		return err
	}
	w.instance, err = wasmtime.NewInstance(w.store, module, nil)
	return err
}

func (w *wasmtimeTester) call(funcName string, params ...uint64) (interface{}, error) {
	fn := w.instance.GetFunc(w.store, funcName)
	if fn == nil {
		return nil, fmt.Errorf("%s is not an exported function", funcName)
	}
	ty := fn.Type(w.store)
	args := make([]interface{}, len(params))
	for i, p := range params {
		switch ty.Params()[i].Kind() {
		case wasmtime.KindI32:
			args[i] = int32(p)
		case wasmtime.KindI64:
			args[i] = int64(p)
		case wasmtime.KindF64:
			args[i] = math.Float64frombits(p)
		default:
			args[i] = int64(p)
		}
	}
	return fn.Call(w.store, args...)
}

func (w *wasmtimeTester) CallI32(funcName string, params ...uint64) (uint32, error) {
	result, err := w.call(funcName, params...)
	if err != nil {
		return 0, err
	}
	return uint32(result.(int32)), nil
}

func (w *wasmtimeTester) CallI64(funcName string, params ...uint64) (uint64, error) {
	result, err := w.call(funcName, params...)
	if err != nil {
		return 0, err
	}
	return uint64(result.(int64)), nil
}

func (w *wasmtimeTester) Close() error {
	return nil
}
