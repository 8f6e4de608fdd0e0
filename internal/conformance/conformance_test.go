//go:build amd64 && cgo

package conformance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuncTagAndNumberTagAreDistinct(t *testing.T) {
	require.NotEqual(t, funcTag, numberTag)
}

func TestFuncPackingAcrossEngines(t *testing.T) {
	for name, newTester := range runtimeTesters {
		t.Run(name, func(t *testing.T) {
			rt := newTester()
			defer rt.Close()
			require.NoError(t, rt.Instantiate(funcPackModule))

			const closure, tableidx = uint64(0xcafef00d), uint64(0x1234)
			got, err := rt.CallI64("pack_func", closure, tableidx)
			require.NoError(t, err)
			require.Equal(t, closure<<32|tableidx, got)
		})
	}
}

func TestNumberReinterpretAcrossEngines(t *testing.T) {
	for name, newTester := range runtimeTesters {
		t.Run(name, func(t *testing.T) {
			rt := newTester()
			defer rt.Close()
			require.NoError(t, rt.Instantiate(numberReinterpretModule))

			for _, f := range []float64{0, 1, -1, 3.5, math.Pi, math.Inf(1), math.NaN()} {
				got, err := rt.CallI64("reinterpret_number", math.Float64bits(f))
				require.NoError(t, err)
				require.Equal(t, math.Float64bits(f), got)
			}
		})
	}
}

func TestMemoryAnyRoundtripAcrossEngines(t *testing.T) {
	for name, newTester := range runtimeTesters {
		t.Run(name, func(t *testing.T) {
			rt := newTester()
			defer rt.Close()
			require.NoError(t, rt.Instantiate(memoryAnyRoundtripModule))

			tag := uint64(numberTag)
			data := math.Float64bits(42.5)

			gotTag, err := rt.CallI32("mem_roundtrip_tag", tag, data)
			require.NoError(t, err)
			require.Equal(t, uint32(numberTag), gotTag)

			gotData, err := rt.CallI64("mem_roundtrip_data", tag, data)
			require.NoError(t, err)
			require.Equal(t, data, gotData)
		})
	}
}
