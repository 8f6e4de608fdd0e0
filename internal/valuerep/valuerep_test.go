package valuerep

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourceror/compiler/api"
	"github.com/sourceror/compiler/internal/wasmgen"
	"github.com/sourceror/compiler/internal/wasmgen/testgen"
)

func requireICE(t *testing.T, fn func()) api.ICE {
	t.Helper()
	var ice api.ICE
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a panic")
			e, ok := r.(api.ICE)
			require.True(t, ok, "expected an api.ICE, got %#v", r)
			ice = e
		}()
		fn()
	}()
	return ice
}

func TestStoreLocalSameTypeNumber(t *testing.T) {
	b := testgen.NewExprBuilder()
	StoreLocal([]wasmgen.LocalIdx{3}, api.Number, api.Number, b)
	require.Equal(t, []string{"local.set"}, b.Ops())
	require.Equal(t, wasmgen.LocalIdx(3), b.Instrs[0].Args[0])
}

func TestStoreLocalSameTypeAnyUsesBothCells(t *testing.T) {
	b := testgen.NewExprBuilder()
	StoreLocal([]wasmgen.LocalIdx{1, 2}, api.Any, api.Any, b)
	require.Equal(t, []string{"local.set", "local.set"}, b.Ops())
	require.Equal(t, wasmgen.LocalIdx(1), b.Instrs[0].Args[0])
	require.Equal(t, wasmgen.LocalIdx(2), b.Instrs[1].Args[0])
}

func TestStoreLocalSameTypeUndefinedEmitsNothing(t *testing.T) {
	b := testgen.NewExprBuilder()
	StoreLocal(nil, api.Undefined, api.Undefined, b)
	require.Empty(t, b.Ops())
}

func TestStoreLocalWideningNumberToAny(t *testing.T) {
	b := testgen.NewExprBuilder()
	StoreLocal([]wasmgen.LocalIdx{1, 2}, api.Any, api.Number, b)
	require.Equal(t, []string{"i32.const", "local.set", "i64.reinterpret_f64", "local.set"}, b.Ops())
	require.Equal(t, api.Number.Tag(), b.Instrs[0].Args[0])
	require.Equal(t, wasmgen.LocalIdx(1), b.Instrs[1].Args[0])
	require.Equal(t, wasmgen.LocalIdx(2), b.Instrs[3].Args[0])
}

func TestStoreLocalWideningFuncToAnyPacksBothCellsIntoData(t *testing.T) {
	b := testgen.NewExprBuilder()
	StoreLocal([]wasmgen.LocalIdx{1, 2}, api.Any, api.Func, b)
	require.Equal(t, []string{
		"i32.const", "local.set",
		"i64.extend_i32_u", "local.set",
		"i64.extend_i32_u", "i64.const", "i64.shl",
		"local.get", "i64.or", "local.set",
	}, b.Ops())
}

func TestStoreLocalRejectsUnrelatedTypes(t *testing.T) {
	ice := requireICE(t, func() {
		StoreLocal([]wasmgen.LocalIdx{1}, api.Boolean, api.String, testgen.NewExprBuilder())
	})
	require.Equal(t, "valuerep.StoreLocal", ice.Op)
}

func TestStoreLocalRejectsUnassignedDest(t *testing.T) {
	requireICE(t, func() {
		StoreLocal([]wasmgen.LocalIdx{1}, api.Unassigned, api.Unassigned, testgen.NewExprBuilder())
	})
}

func TestLoadLocalSameTypeFuncOrdersCellsPtrThenTable(t *testing.T) {
	b := testgen.NewExprBuilder()
	LoadLocal([]wasmgen.LocalIdx{5, 6}, api.Func, api.Func, b)
	require.Equal(t, []string{"local.get", "local.get"}, b.Ops())
	require.Equal(t, wasmgen.LocalIdx(6), b.Instrs[0].Args[0])
	require.Equal(t, wasmgen.LocalIdx(5), b.Instrs[1].Args[0])
}

func TestLoadLocalNarrowingAnyToBoolean(t *testing.T) {
	b := testgen.NewExprBuilder()
	LoadLocal([]wasmgen.LocalIdx{1, 2}, api.Any, api.Boolean, b)
	require.Equal(t, []string{"local.get", "i32.wrap_i64"}, b.Ops())
	require.Equal(t, wasmgen.LocalIdx(2), b.Instrs[0].Args[0])
}

func TestLoadLocalNarrowingAnyToUndefinedEmitsNothing(t *testing.T) {
	b := testgen.NewExprBuilder()
	LoadLocal([]wasmgen.LocalIdx{1, 2}, api.Any, api.Undefined, b)
	require.Empty(t, b.Ops())
}

func TestWidenNumberToAny(t *testing.T) {
	s := testgen.NewScratch()
	b := testgen.NewExprBuilder()
	Widen(api.Any, api.Number, s, b)
	require.Equal(t, []string{"i64.reinterpret_f64", "i32.const"}, b.Ops())
	require.Equal(t, 0, s.Depth())
}

func TestWidenSameTypeIsNoop(t *testing.T) {
	b := testgen.NewExprBuilder()
	Widen(api.String, api.String, testgen.NewScratch(), b)
	require.Empty(t, b.Ops())
}

func TestWidenFuncToAnyLeavesScratchBalanced(t *testing.T) {
	s := testgen.NewScratch()
	b := testgen.NewExprBuilder()
	Widen(api.Any, api.Func, s, b)
	require.Equal(t, 0, s.Depth())
	require.Contains(t, b.Ops(), "i64.shl")
}

func TestWidenRejectsNarrowingDirection(t *testing.T) {
	ice := requireICE(t, func() {
		Widen(api.Number, api.Any, testgen.NewScratch(), testgen.NewExprBuilder())
	})
	require.Equal(t, "valuerep.Widen", ice.Op)
}

func TestNarrowSameTypeIsNoop(t *testing.T) {
	b := testgen.NewExprBuilder()
	Narrow(api.Boolean, api.Boolean, func(wasmgen.ExprBuilder) {}, testgen.NewScratch(), b)
	require.Empty(t, b.Ops())
}

func TestNarrowAnyToNumberChecksTagAndTraps(t *testing.T) {
	b := testgen.NewExprBuilder()
	var failureCalled bool
	Narrow(api.Number, api.Any, func(wasmgen.ExprBuilder) { failureCalled = true }, testgen.NewScratch(), b)
	require.Equal(t, []string{"i32.const", "i32.ne", "if", "end", "f64.reinterpret_i64"}, b.Ops())
	require.True(t, failureCalled, "failureEncoder must be invoked while building the if-arm")
	require.Equal(t, api.Number.Tag(), b.Instrs[0].Args[0])
}

func TestNarrowAnyToFuncUsesScratchAndRestoresDepth(t *testing.T) {
	s := testgen.NewScratch()
	b := testgen.NewExprBuilder()
	Narrow(api.Func, api.Any, func(wasmgen.ExprBuilder) {}, s, b)
	require.Equal(t, 0, s.Depth())
}

func TestNarrowRejectsWideningDirection(t *testing.T) {
	ice := requireICE(t, func() {
		Narrow(api.Any, api.Number, func(wasmgen.ExprBuilder) {}, testgen.NewScratch(), testgen.NewExprBuilder())
	})
	require.Equal(t, "valuerep.Narrow", ice.Op)
}

func TestUncheckedLocalConvAnyNarrowingToNumber(t *testing.T) {
	b := testgen.NewExprBuilder()
	UncheckedLocalConvAnyNarrowing(7, []wasmgen.LocalIdx{8}, api.Number, b)
	require.Equal(t, []string{"local.get", "f64.reinterpret_i64", "local.set"}, b.Ops())
	require.Equal(t, wasmgen.LocalIdx(7), b.Instrs[0].Args[0])
	require.Equal(t, wasmgen.LocalIdx(8), b.Instrs[2].Args[0])
}

func TestUncheckedLocalConvAnyNarrowingToFunc(t *testing.T) {
	b := testgen.NewExprBuilder()
	UncheckedLocalConvAnyNarrowing(7, []wasmgen.LocalIdx{8, 9}, api.Func, b)
	require.Equal(t, []string{
		"local.get", "i32.wrap_i64", "local.set",
		"local.get", "i64.const", "i64.shr_u", "i32.wrap_i64", "local.set",
	}, b.Ops())
}

func TestUncheckedLocalConvAnyNarrowingRejectsAny(t *testing.T) {
	ice := requireICE(t, func() {
		UncheckedLocalConvAnyNarrowing(7, []wasmgen.LocalIdx{8, 9}, api.Any, testgen.NewExprBuilder())
	})
	require.Equal(t, "valuerep.UncheckedLocalConvAnyNarrowing", ice.Op)
}

func TestStoreMemorySameTypeNumber(t *testing.T) {
	b := testgen.NewExprBuilder()
	StoreMemory(16, api.Number, api.Number, testgen.NewScratch(), b)
	require.Equal(t, []string{"f64.store"}, b.Ops())
	m := b.Instrs[0].Args[0].(wasmgen.MemArg)
	require.Equal(t, uint32(16), m.Offset)
}

func TestStoreMemoryWideningBooleanToAnyLeavesScratchBalanced(t *testing.T) {
	s := testgen.NewScratch()
	b := testgen.NewExprBuilder()
	StoreMemory(0, api.Any, api.Boolean, s, b)
	require.Equal(t, 0, s.Depth())
	require.Contains(t, b.Ops(), "i32.store")
}

func TestLoadMemorySameTypeStructT(t *testing.T) {
	b := testgen.NewExprBuilder()
	LoadMemory(4, api.StructT(2), api.StructT(2), testgen.NewScratch(), b)
	require.Equal(t, []string{"i32.load"}, b.Ops())
}

func TestLoadMemoryNarrowingAnyToStringLeavesScratchBalanced(t *testing.T) {
	s := testgen.NewScratch()
	b := testgen.NewExprBuilder()
	LoadMemory(0, api.Any, api.String, s, b)
	require.Equal(t, 0, s.Depth())
	require.Equal(t, []string{"i32.load"}, b.Ops())
}
