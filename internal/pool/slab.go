// Package pool implements the tiered memory pool from spec section 4.B/4.C:
// a size-classed slab allocator underneath a process-wide pool, fronted by
// a small per-worker cache.
//
// The bitmap-per-slab, size-classed-cache design is grounded in the
// teacher's kernel/threads/arena/slab.go (SlabAllocator/SlabCache/SlabPage)
// and kernel/threads/arena/allocator.go (HybridAllocator routing by size),
// both of which operate on offsets into a shared byte array (a WASM
// SharedArrayBuffer). This package keeps the same bitmap/size-class/
// routing structure but works over real Go memory and real slices instead
// of SAB offsets, and adds the partial/full/empty three-list structure
// spec.md §3 requires (the teacher's SlabCache instead kept one flat
// slice of slabs and linearly scanned it for a free one).
package pool

import (
	"fmt"
	"sync"
	"unsafe"
)

// SizeClasses are the ten canonical object sizes from spec.md's GLOSSARY.
var SizeClasses = [10]int{16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192}

// DefaultEmptySlabCap is the default number of fully-empty slabs a
// SlabAllocator keeps cached before releasing them to the system
// allocator.
const DefaultEmptySlabCap = 2

// slab is a contiguous block of objectsPerSlab equal-size objects plus an
// allocation bitmap, per spec.md §3. It is a node in one of its owning
// SlabAllocator's three intrusive lists.
type slab struct {
	data    []byte
	bitmap  []uint64
	objSize int
	count   int // total objects (N)
	used    int
	base    uintptr // cached address of &data[0], for pointer-range containment

	prev, next *slab
}

func newSlab(objSize, count int) *slab {
	data := make([]byte, objSize*count)
	s := &slab{
		data:    data,
		bitmap:  make([]uint64, (count+63)/64),
		objSize: objSize,
		count:   count,
	}
	s.base = uintptr(unsafe.Pointer(&data[0]))
	return s
}

// firstFreeBit scans the bitmap for the first clear bit. Scanning from
// bit zero every time biases allocation toward low indices, which is the
// "first-fit search biases towards compact slabs" behavior spec.md calls
// for.
func (s *slab) firstFreeBit() int {
	for w := range s.bitmap {
		word := s.bitmap[w]
		if word == ^uint64(0) {
			continue
		}
		for b := 0; b < 64; b++ {
			idx := w*64 + b
			if idx >= s.count {
				return -1
			}
			if word&(1<<uint(b)) == 0 {
				return idx
			}
		}
	}
	return -1
}

func (s *slab) bitSet(idx int) bool {
	return s.bitmap[idx/64]&(1<<uint(idx%64)) != 0
}

func (s *slab) setBit(idx int)   { s.bitmap[idx/64] |= 1 << uint(idx%64) }
func (s *slab) clearBit(idx int) { s.bitmap[idx/64] &^= 1 << uint(idx%64) }

func (s *slab) objectAt(idx int) []byte {
	off := idx * s.objSize
	return s.data[off : off+s.objSize : off+s.objSize]
}

// contains reports whether ptr's backing array falls within this slab's
// address range.
func (s *slab) contains(ptr []byte) bool {
	if len(ptr) == 0 || len(s.data) == 0 {
		return false
	}
	addr := uintptr(unsafe.Pointer(&ptr[0]))
	return addr >= s.base && addr < s.base+uintptr(len(s.data))
}

// indexOf computes the object index of ptr within this slab. The caller
// must have already verified contains(ptr).
func (s *slab) indexOf(ptr []byte) int {
	addr := uintptr(unsafe.Pointer(&ptr[0]))
	return int((addr - s.base) / uintptr(s.objSize))
}

// slabList is an intrusive doubly-linked list of slabs, used for the
// partial/full/empty membership spec.md §3 requires. New members are
// pushed at the head; the empty list's LIFO order implements the
// "most recently freed is released" tie-break spec.md §4.B calls for.
type slabList struct {
	head, tail *slab
	count      int
}

func (l *slabList) pushHead(s *slab) {
	s.prev, s.next = nil, l.head
	if l.head != nil {
		l.head.prev = s
	}
	l.head = s
	if l.tail == nil {
		l.tail = s
	}
	l.count++
}

func (l *slabList) popHead() *slab {
	s := l.head
	if s == nil {
		return nil
	}
	l.remove(s)
	return s
}

func (l *slabList) remove(s *slab) {
	if s.prev != nil {
		s.prev.next = s.next
	} else {
		l.head = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	} else {
		l.tail = s.prev
	}
	s.prev, s.next = nil, nil
	l.count--
}

// SlabAllocator owns the three membership lists for one object size
// class, per spec.md §3.
type SlabAllocator struct {
	mu sync.Mutex

	objSize        int
	objectsPerSlab int
	emptyCap       int

	partial, full, empty slabList

	allocCount, freeCount, slabsCreated, slabsReleased uint64
}

// NewSlabAllocator creates an allocator for a single size class.
// objectsPerSlab is clamped by the caller per spec.md §4.C
// ("clamp(initial_pool_size / size, 64, 1024)").
func NewSlabAllocator(objSize, objectsPerSlab int) *SlabAllocator {
	return &SlabAllocator{
		objSize:        objSize,
		objectsPerSlab: objectsPerSlab,
		emptyCap:       DefaultEmptySlabCap,
	}
}

// SetEmptyCap overrides the number of empty slabs kept cached.
func (sa *SlabAllocator) SetEmptyCap(n int) { sa.emptyCap = n }

// Alloc returns a zero-length-free object slice of objSize bytes.
func (sa *SlabAllocator) Alloc() ([]byte, error) {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	s := sa.partial.head
	if s == nil {
		if sa.empty.head != nil {
			s = sa.empty.popHead()
			sa.partial.pushHead(s)
		} else {
			s = newSlab(sa.objSize, sa.objectsPerSlab)
			sa.slabsCreated++
			sa.partial.pushHead(s)
		}
	}

	idx := s.firstFreeBit()
	if idx < 0 {
		// Invariant violation: a slab on `partial` must have a free bit.
		return nil, fmt.Errorf("pool: slab on partial list has no free objects")
	}
	s.setBit(idx)
	s.used++
	if s.used == s.count {
		sa.partial.remove(s)
		sa.full.pushHead(s)
	}

	sa.allocCount++
	return s.objectAt(idx), nil
}

// ErrNotOwned is returned by Free when ptr was not allocated by this
// allocator.
var ErrNotOwned = fmt.Errorf("pool: pointer not owned by this slab allocator")

// ErrDoubleFree is returned by Free when ptr's slot is already free.
var ErrDoubleFree = fmt.Errorf("pool: double free detected")

// Free returns ptr (previously returned by Alloc on this allocator) to
// the pool. Pointer-range containment across partial and full is how the
// owning slab is identified, per spec.md §4.B.
func (sa *SlabAllocator) Free(ptr []byte) error {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	s := findOwner(&sa.partial, ptr)
	wasFull := false
	if s == nil {
		s = findOwner(&sa.full, ptr)
		wasFull = s != nil
	}
	if s == nil {
		return ErrNotOwned
	}

	idx := s.indexOf(ptr)
	if !s.bitSet(idx) {
		return ErrDoubleFree
	}
	s.clearBit(idx)
	s.used--
	sa.freeCount++

	if wasFull {
		sa.full.remove(s)
		sa.partial.pushHead(s)
	}

	if s.used == 0 {
		sa.partial.remove(s)
		if sa.empty.count < sa.emptyCap {
			sa.empty.pushHead(s)
		} else {
			sa.slabsReleased++
			// Drop the slab so the GC can reclaim it; this is the
			// "release to the system allocator" step, expressed in Go
			// as simply dropping the last reference.
		}
	}

	return nil
}

func findOwner(l *slabList, ptr []byte) *slab {
	for s := l.head; s != nil; s = s.next {
		if s.contains(ptr) {
			return s
		}
	}
	return nil
}

// Stats reports the allocator's bookkeeping counters, used by
// internal/metrics when statistics are enabled.
type Stats struct {
	ObjSize               int
	AllocCount, FreeCount uint64
	PartialSlabs          int
	FullSlabs             int
	EmptySlabs            int
	SlabsCreated          uint64
	SlabsReleased         uint64
}

func (sa *SlabAllocator) Stats() Stats {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return Stats{
		ObjSize:       sa.objSize,
		AllocCount:    sa.allocCount,
		FreeCount:     sa.freeCount,
		PartialSlabs:  sa.partial.count,
		FullSlabs:     sa.full.count,
		EmptySlabs:    sa.empty.count,
		SlabsCreated:  sa.slabsCreated,
		SlabsReleased: sa.slabsReleased,
	}
}
