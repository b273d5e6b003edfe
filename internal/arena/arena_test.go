package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocBasics(t *testing.T) {
	a := New(64)
	b, err := a.Alloc(10)
	require.NoError(t, err)
	assert.Len(t, b, 10)
	assert.Equal(t, 16, a.Used()) // rounded up to 8-byte alignment

	b2, err := a.Alloc(8)
	require.NoError(t, err)
	assert.Len(t, b2, 8)
	assert.Equal(t, 24, a.Used())
}

func TestAllocOutOfSpace(t *testing.T) {
	a := New(16)
	_, err := a.Alloc(8)
	require.NoError(t, err)
	_, err = a.Alloc(16)
	assert.ErrorIs(t, err, ErrOutOfSpace)
}

func TestAllocAlignedRejectsNonPowerOfTwo(t *testing.T) {
	a := New(64)
	_, err := a.AllocAligned(8, 3)
	assert.Error(t, err)
}

func TestResetBumpsGenerationAndReclaimsSpace(t *testing.T) {
	a := New(32)
	g0 := a.Generation()
	_, err := a.Alloc(32)
	require.NoError(t, err)

	a.Reset()
	assert.Equal(t, g0+1, a.Generation())
	assert.Equal(t, 0, a.Used())
	assert.Equal(t, 32, a.Remaining())

	// Space is reusable after reset.
	_, err = a.Alloc(32)
	assert.NoError(t, err)
}

func TestStringViewRoundTrip(t *testing.T) {
	a := New(64)
	b, err := a.Alloc(5)
	require.NoError(t, err)
	copy(b, "hello")

	v := NewView(a, b)
	assert.Equal(t, "hello", v.String(a))
	assert.Equal(t, 5, v.Len())
}

func TestNewFromBufferWrapsExistingSlice(t *testing.T) {
	buf := make([]byte, 32)
	a := NewFromBuffer(buf)
	assert.Equal(t, 32, a.Capacity())
	assert.Equal(t, 0, a.Used())

	b, err := a.Alloc(10)
	require.NoError(t, err)
	assert.Len(t, b, 10)
	assert.Same(t, &buf[0], &a.Backing()[0])
}
