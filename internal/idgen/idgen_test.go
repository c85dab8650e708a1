package idgen

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID_ParsesAsValidAndSortsWithTime(t *testing.T) {
	a := NewULID()
	b := NewULID()

	parsed, err := ulid.Parse(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	assert.LessOrEqual(t, a.Time(), b.Time())
}

func TestNewULIDString_ReturnsDistinctValues(t *testing.T) {
	assert.NotEqual(t, NewULIDString(), NewULIDString())
}

func TestNewSessionToken_ReturnsDistinctUUIDs(t *testing.T) {
	a := NewSessionToken()
	b := NewSessionToken()

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
