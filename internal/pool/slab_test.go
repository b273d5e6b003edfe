package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlabAllocatorBasics(t *testing.T) {
	sa := NewSlabAllocator(64, 4)

	a, err := sa.Alloc()
	require.NoError(t, err)
	assert.Len(t, a, 64)

	stats := sa.Stats()
	assert.Equal(t, 1, stats.PartialSlabs)
	assert.Equal(t, 0, stats.FullSlabs)

	require.NoError(t, sa.Free(a))
	stats = sa.Stats()
	assert.Equal(t, 0, stats.PartialSlabs)
	assert.Equal(t, 1, stats.EmptySlabs, "freeing the sole object should move the slab to empty")
}

func TestSlabAllocatorFillsAndPromotesToFull(t *testing.T) {
	sa := NewSlabAllocator(16, 2)

	a, err := sa.Alloc()
	require.NoError(t, err)
	b, err := sa.Alloc()
	require.NoError(t, err)

	stats := sa.Stats()
	assert.Equal(t, 0, stats.PartialSlabs)
	assert.Equal(t, 1, stats.FullSlabs)

	require.NoError(t, sa.Free(a))
	stats = sa.Stats()
	assert.Equal(t, 1, stats.PartialSlabs, "freeing one object from a full slab returns it to partial")
	assert.Equal(t, 0, stats.FullSlabs)

	require.NoError(t, sa.Free(b))
}

func TestSlabAllocatorDoubleFreeDetected(t *testing.T) {
	sa := NewSlabAllocator(32, 4)
	a, err := sa.Alloc()
	require.NoError(t, err)

	require.NoError(t, sa.Free(a))
	assert.ErrorIs(t, sa.Free(a), ErrDoubleFree)
}

func TestSlabAllocatorRejectsForeignPointer(t *testing.T) {
	sa := NewSlabAllocator(32, 4)
	foreign := make([]byte, 32)
	assert.ErrorIs(t, sa.Free(foreign), ErrNotOwned)
}

func TestSlabAllocatorEmptySlabCapReleasesExcess(t *testing.T) {
	sa := NewSlabAllocator(16, 1) // one object per slab forces a fresh slab each alloc
	sa.SetEmptyCap(1)

	a, _ := sa.Alloc()
	require.NoError(t, sa.Free(a))
	stats := sa.Stats()
	assert.Equal(t, 1, stats.EmptySlabs)

	b, _ := sa.Alloc() // reclaims the cached empty slab
	c, _ := sa.Alloc() // no empty slab left: a fresh slab is created
	require.NoError(t, sa.Free(b))
	require.NoError(t, sa.Free(c))
	stats = sa.Stats()
	assert.Equal(t, 1, stats.EmptySlabs, "cache stays at its cap")
	assert.Equal(t, uint64(1), stats.SlabsReleased, "the empty slab beyond the cap is released")
}

func TestSlabAllocatorReusesFreedSlotBeforeGrowing(t *testing.T) {
	sa := NewSlabAllocator(16, 2)
	a, _ := sa.Alloc()
	b, _ := sa.Alloc()
	require.NoError(t, sa.Free(a))

	before := sa.Stats().SlabsCreated
	_, err := sa.Alloc()
	require.NoError(t, err)
	after := sa.Stats().SlabsCreated
	assert.Equal(t, before, after, "a free slot in the existing slab must be reused before a new slab is created")

	_ = b
}
