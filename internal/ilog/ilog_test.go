package ilog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourceror/compiler/api"
)

func TestLoggerDefaultsToNoOp(t *testing.T) {
	require.NotNil(t, Logger())
}

func TestRecoverICEConvertsICEToError(t *testing.T) {
	err := RecoverICE(func() {
		api.Raise("ilog_test.boom", "something impossible: %d", 42)
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "something impossible: 42")
	require.Contains(t, err.Error(), "ilog_test.boom")

	var ice api.ICE
	require.True(t, errors.As(err, &ice))
	require.Equal(t, "ilog_test.boom", ice.Op)
}

func TestRecoverICEReturnsNilOnSuccess(t *testing.T) {
	err := RecoverICE(func() {})
	require.NoError(t, err)
}

func TestRecoverICERepanicsOnNonICE(t *testing.T) {
	require.Panics(t, func() {
		_ = RecoverICE(func() { panic("not an ICE") })
	})
}
