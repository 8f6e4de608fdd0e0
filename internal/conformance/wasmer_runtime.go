//go:build amd64 && cgo

package conformance

import (
	"fmt"
	"math"

	"github.com/wasmerio/wasmer-go/wasmer"
)

func init() {
	runtimeTesters["wasmer-go"] = newWasmerTester
}

func newWasmerTester() runtimeTester {
	return &wasmerTester{}
}

type wasmerTester struct {
	store    *wasmer.Store
	module   *wasmer.Module
	instance *wasmer.Instance
}

func (w *wasmerTester) Instantiate(wasm []byte) error {
	w.store = wasmer.NewStore(wasmer.NewEngine())
	var err error
	if w.module, err = wasmer.NewModule(w.store, wasm); err != nil {
		return err
	}
	if w.instance, err = wasmer.NewInstance(w.module, wasmer.NewImportObject()); err != nil {
		return err
	}
	return nil
}

func (w *wasmerTester) call(funcName string, params ...uint64) (interface{}, error) {
	fn, err := w.instance.Exports.GetRawFunction(funcName)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("%s is not an exported function", funcName)
	}
	ty := fn.Type()
	args := make([]interface{}, len(params))
	for i, p := range params {
		switch ty.Params()[i].Kind() {
		case wasmer.I32:
			args[i] = int32(p)
		case wasmer.I64:
			args[i] = int64(p)
		case wasmer.F64:
			args[i] = math.Float64frombits(p)
		default:
			args[i] = int64(p)
		}
	}
	return fn.Call(args...)
}

func (w *wasmerTester) CallI32(funcName string, params ...uint64) (uint32, error) {
	result, err := w.call(funcName, params...)
	if err != nil {
		return 0, err
	}
	if i, ok := result.(int32); ok {
		return uint32(i), nil
	}
	return 0, fmt.Errorf("%s: expected i32 result, got %T", funcName, result)
}

func (w *wasmerTester) CallI64(funcName string, params ...uint64) (uint64, error) {
	result, err := w.call(funcName, params...)
	if err != nil {
		return 0, err
	}
	if i, ok := result.(int64); ok {
		return uint64(i), nil
	}
	return 0, fmt.Errorf("%s: expected i64 result, got %T", funcName, result)
}

func (w *wasmerTester) Close() error {
	for _, closer := range []func(){w.instance.Close, w.module.Close, w.store.Close} {
		if closer != nil {
			closer()
		}
	}
	w.instance = nil
	w.module = nil
	w.store = nil
	return nil
}
