package lnerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageIncludesCauseWhenPresent(t *testing.T) {
	plain := NewKernel("link set up failed")
	assert.Equal(t, "kernel: link set up failed", plain.Error())

	withCause := plain.WithCause(errors.New("device or resource busy"))
	assert.Equal(t, "kernel: link set up failed: device or resource busy", withCause.Error())
}

func TestWithContext_CopiesRatherThanMutatesOriginal(t *testing.T) {
	base := NewTopology("bridge port references unresolved vlan")
	withCtx := base.WithContext("node", "p3")

	assert.Nil(t, base.Context)
	assert.Equal(t, "p3", withCtx.Context["node"])
}

func TestWithContext_AccumulatesAcrossCalls(t *testing.T) {
	err := NewConfigInvalid("bad vid").WithContext("node", "p1").WithContext("vid", 5000)

	assert.Equal(t, "p1", err.Context["node"])
	assert.Equal(t, 5000, err.Context["vid"])
}

func TestIsCategory_MatchesWrappedErrors(t *testing.T) {
	wrapped := fmtWrap(NewCycle("requires cycle"))

	assert.True(t, IsCategory(wrapped, CategoryCycle))
	assert.False(t, IsCategory(wrapped, CategoryAction))
	assert.False(t, IsCategory(errors.New("plain"), CategoryCycle))
}

func TestErrorIs_ComparesByCategoryOnly(t *testing.T) {
	a := NewAction("activate failed")
	b := NewAction("a different message")
	c := NewKernel("activate failed")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := errors.New("ENOBUFS")
	err := NewKernel("resync failed").WithCause(cause)

	require.ErrorIs(t, err, err)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func fmtWrap(err error) error {
	return errors.Join(err)
}
