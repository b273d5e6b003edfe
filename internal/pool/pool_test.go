package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRoutesToSmallestFittingClass(t *testing.T) {
	p := New(Config{InitialPoolSize: 4 << 20, StatsEnabled: true})

	b, err := p.Alloc(10, nil)
	require.NoError(t, err)
	assert.Len(t, b, 10)

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Classes[0].AllocCount, "10 bytes should route to the 16-byte class")
}

func TestPoolLargeAllocationBypassesClasses(t *testing.T) {
	p := New(Config{InitialPoolSize: 4 << 20, StatsEnabled: true})

	b, err := p.Alloc(1<<20, nil)
	require.NoError(t, err)
	assert.Len(t, b, 1<<20)
	assert.Equal(t, uint64(1), p.Stats().LargeAllocCount)
}

func TestPoolLocalCacheAvoidsSlabRoundTrip(t *testing.T) {
	p := New(Config{InitialPoolSize: 4 << 20, StatsEnabled: true})
	cache := NewLocalCache()

	b, err := p.Alloc(64, cache)
	require.NoError(t, err)
	require.NoError(t, p.Free(b, 64, cache))

	before := p.Stats().Classes[classIndex(64)].AllocCount
	_, err = p.Alloc(64, cache)
	require.NoError(t, err)
	after := p.Stats().Classes[classIndex(64)].AllocCount
	assert.Equal(t, before, after, "a cached object must satisfy the next alloc without touching the SlabAllocator")
}

func TestPoolDrainCacheReturnsObjectsToClasses(t *testing.T) {
	p := New(Config{InitialPoolSize: 4 << 20})
	cache := NewLocalCache()

	b, err := p.Alloc(64, cache)
	require.NoError(t, err)
	require.NoError(t, p.Free(b, 64, cache))

	require.NoError(t, p.DrainCache(cache))

	stats := p.Stats().Classes[classIndex(64)]
	assert.Equal(t, 1, stats.EmptySlabs)
}
