package pool

// LocalCacheDepth is the bounded depth of a worker's free-pointer cache
// per size class, per spec.md §4.C.
const LocalCacheDepth = 8

// LocalCache is a small bounded stack of recently freed objects, one per
// size class, held by a single worker goroutine (the connection handler
// goroutine, in practice). A goroutine is this runtime's closest
// equivalent to the thread the design calls the cache "thread-local":
// unlike a real OS thread-local, the cache must be created and drained
// explicitly by whoever owns the goroutine, since Go has no implicit
// thread-local storage.
//
// Checking the cache before going to the shared SlabAllocator avoids lock
// contention on the common alloc/free-soon-after pattern one connection's
// command loop produces.
type LocalCache struct {
	slots [len(SizeClasses)][]([]byte)
}

// NewLocalCache creates an empty cache.
func NewLocalCache() *LocalCache {
	c := &LocalCache{}
	for i := range c.slots {
		c.slots[i] = make([][]byte, 0, LocalCacheDepth)
	}
	return c
}

// take returns a cached object for classIdx, or nil if the cache is
// empty for that class.
func (c *LocalCache) take(classIdx int) []byte {
	s := c.slots[classIdx]
	n := len(s)
	if n == 0 {
		return nil
	}
	obj := s[n-1]
	c.slots[classIdx] = s[:n-1]
	return obj
}

// offer pushes ptr onto the cache for classIdx. It reports false (cache
// full) when the caller must free ptr to the shared allocator instead.
func (c *LocalCache) offer(classIdx int, ptr []byte) bool {
	s := c.slots[classIdx]
	if len(s) >= LocalCacheDepth {
		return false
	}
	c.slots[classIdx] = append(s, ptr)
	return true
}

// drain empties every class's cache, returning the freed pointers grouped
// by class index so the caller (Pool.DrainCache) can return each to its
// SlabAllocator. This is the equivalent of the design's tls_clear(),
// called when a worker goroutine is about to exit.
func (c *LocalCache) drain() [len(SizeClasses)][][]byte {
	var out [len(SizeClasses)][][]byte
	for i := range c.slots {
		out[i] = c.slots[i]
		c.slots[i] = nil
	}
	return out
}
