package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassForPicksSmallestFit(t *testing.T) {
	c, ok := ClassFor(10)
	assert.True(t, ok)
	assert.Equal(t, Small, c)

	c, ok = ClassFor(1000)
	assert.True(t, ok)
	assert.Equal(t, Medium, c)

	c, ok = ClassFor(70000)
	assert.False(t, ok)
	_ = c
}

func TestAcquireReturnsZeroLengthFullCapacity(t *testing.T) {
	p := New()
	b := p.Acquire(Medium)
	assert.Len(t, b, 0)
	assert.Equal(t, 4096, cap(b))
}

func TestReleaseMakesBufferReusable(t *testing.T) {
	p := New()
	b := p.Acquire(Small)
	b = append(b, "hello"...)
	p.Release(Small, b)

	b2 := p.Acquire(Small)
	assert.Equal(t, 512, cap(b2))

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats[Small].Acquires)
	assert.Equal(t, uint64(1), stats[Small].Releases)
}
