// Package pool's Pool type is the front end spec.md §4.C describes:
// requests route to a size class's SlabAllocator, optionally by way of a
// caller-held LocalCache, with a plain system allocation for anything
// larger than the largest size class.
//
// The class-routing and statistics shape is grounded in the teacher's
// kernel/threads/arena/allocator.go (HybridAllocator.Allocate routing by
// size, HybridAllocator.GetStats aggregating per-tier counters); the
// buddy-allocator tier that file also had no equivalent here; spec.md's
// memory pool has exactly one large-object path, the system allocator.
package pool

import (
	"fmt"

	"github.com/pbnjay/memory"
)

// MaxClassSize is the largest size class; requests above this go straight
// to the system allocator.
const MaxClassSize = 8192

// classMinObjects and classMaxObjects bound how many objects a freshly
// created slab holds for any size class, per spec.md §4.C's
// "clamp(initial_pool_size / size, 64, 1024)".
const (
	classMinObjects = 64
	classMaxObjects = 1024
)

// Config controls Pool construction.
type Config struct {
	// InitialPoolSize sizes the default objects-per-slab for every class.
	// Zero selects a size derived from total system memory, following
	// the teacher's pattern of sizing internal structures off host
	// capacity rather than a fixed constant.
	InitialPoolSize int64
	// EmptySlabCap overrides DefaultEmptySlabCap for every class.
	EmptySlabCap int
	// StatsEnabled toggles the large-object counters (LargeAllocCount,
	// LargeFreeCount) exposed via Stats. When false, Stats calls still
	// work but those increments are skipped. Each SlabAllocator's own
	// counters (AllocCount, FreeCount, SlabsCreated, SlabsReleased) are
	// maintained whether or not StatsEnabled is set.
	StatsEnabled bool
}

// DefaultInitialPoolSize derives a reasonable total pool footprint from
// total system memory: 1/256th of RAM, floored at 4 MiB. This mirrors
// the teacher's use of runtime-queried host capacity (see
// kernel/threads/arena/allocator.go's use of runtime.NumCPU()-derived
// sizing) rather than a single hardcoded constant.
func DefaultInitialPoolSize() int64 {
	total := memory.TotalMemory()
	size := int64(total / 256)
	const floor = 4 << 20
	if size < floor {
		return floor
	}
	return size
}

// Pool is the process-wide memory pool: one SlabAllocator per size class,
// plus bookkeeping for large (system-allocator) requests.
type Pool struct {
	classes      [len(SizeClasses)]*SlabAllocator
	statsEnabled bool

	largeAllocCount, largeFreeCount uint64
}

// New builds a Pool with all ten size classes initialized.
func New(cfg Config) *Pool {
	poolSize := cfg.InitialPoolSize
	if poolSize <= 0 {
		poolSize = DefaultInitialPoolSize()
	}
	p := &Pool{statsEnabled: cfg.StatsEnabled}
	for i, size := range SizeClasses {
		perSlab := int(poolSize / int64(size))
		if perSlab < classMinObjects {
			perSlab = classMinObjects
		}
		if perSlab > classMaxObjects {
			perSlab = classMaxObjects
		}
		sa := NewSlabAllocator(size, perSlab)
		if cfg.EmptySlabCap > 0 {
			sa.SetEmptyCap(cfg.EmptySlabCap)
		}
		p.classes[i] = sa
	}
	return p
}

// classIndex returns the size class index a request of n bytes should
// route to, or -1 if n exceeds every class (the large-object path).
func classIndex(n int) int {
	for i, size := range SizeClasses {
		if n <= size {
			return i
		}
	}
	return -1
}

// Alloc returns a buffer of at least n bytes, preferring cache (if
// non-nil), then the owning size class's SlabAllocator, then the system
// allocator for oversized requests.
func (p *Pool) Alloc(n int, cache *LocalCache) ([]byte, error) {
	idx := classIndex(n)
	if idx < 0 {
		if p.statsEnabled {
			p.largeAllocCount++
		}
		return make([]byte, n), nil
	}
	if cache != nil {
		if obj := cache.take(idx); obj != nil {
			return obj[:n], nil
		}
	}
	obj, err := p.classes[idx].Alloc()
	if err != nil {
		return nil, fmt.Errorf("pool: alloc class %d: %w", SizeClasses[idx], err)
	}
	return obj[:n], nil
}

// Free returns ptr to the pool. size must be the length originally
// requested via Alloc (not len(ptr), since Alloc may have re-sliced a
// larger class object down to the request size). Free re-extends ptr to
// its capacity to recover the full class object, so the slice Alloc
// returned can be passed back as is.
func (p *Pool) Free(ptr []byte, size int, cache *LocalCache) error {
	idx := classIndex(size)
	if idx < 0 {
		if p.statsEnabled {
			p.largeFreeCount++
		}
		return nil // system-allocated; GC reclaims once unreferenced
	}
	full := ptr[:cap(ptr)]
	if cache != nil && cache.offer(idx, full) {
		return nil
	}
	return p.classes[idx].Free(full)
}

// DrainCache empties cache and returns every object it held to the
// owning SlabAllocator. Call this when the goroutine holding cache is
// about to exit, mirroring spec.md §4.C's tls_clear().
func (p *Pool) DrainCache(cache *LocalCache) error {
	drained := cache.drain()
	for idx, objs := range drained {
		for _, obj := range objs {
			if err := p.classes[idx].Free(obj); err != nil {
				return fmt.Errorf("pool: drain class %d: %w", SizeClasses[idx], err)
			}
		}
	}
	return nil
}

// AggregateStats aggregates every size class's Stats plus the
// large-object counters.
type AggregateStats struct {
	Classes         [len(SizeClasses)]Stats
	LargeAllocCount uint64
	LargeFreeCount  uint64
}

func (p *Pool) Stats() AggregateStats {
	var out AggregateStats
	for i, sa := range p.classes {
		out.Classes[i] = sa.Stats()
	}
	out.LargeAllocCount = p.largeAllocCount
	out.LargeFreeCount = p.largeFreeCount
	return out
}
