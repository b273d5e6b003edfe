// Package bufpool implements the network I/O buffer pool from spec.md
// §4.E: three size-classed pools of reusable byte buffers, separate from
// the command-argument memory pool in internal/pool because network
// buffers and command arguments have different lifetimes (a connection
// holds one read and one write buffer until it closes; an argument is
// copied into the request arena and lives only until the next request
// line resets it).
//
// Grounded in the retrieval pack's dzonerzy-go-snap
// internal/pool.BufferPool, which keeps one sync.Pool per capacity
// bucket behind a small wrapper type.
package bufpool

import "sync"

// Class identifies one of the three buffer size classes.
type Class int

const (
	Small  Class = iota // 512 bytes: command lines, short replies
	Medium              // 4096 bytes: typical read/write chunks
	Large               // 65536 bytes: bulk values, large replies
)

func (c Class) size() int {
	switch c {
	case Small:
		return 512
	case Medium:
		return 4096
	case Large:
		return 65536
	default:
		return 0
	}
}

// ClassFor returns the smallest class able to hold n bytes, or false if
// n exceeds every class.
func ClassFor(n int) (Class, bool) {
	switch {
	case n <= 512:
		return Small, true
	case n <= 4096:
		return Medium, true
	case n <= 65536:
		return Large, true
	default:
		return 0, false
	}
}

type classStats struct {
	acquires, releases uint64
}

// Pool is the three-class buffer pool. The zero value is not usable;
// construct with New.
type Pool struct {
	pools [3]sync.Pool

	mu    sync.Mutex
	stats [3]classStats
}

// New builds a ready-to-use Pool.
func New() *Pool {
	p := &Pool{}
	for i := range p.pools {
		size := Class(i).size()
		p.pools[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return p
}

// Acquire returns a buffer from class c, reset to length 0 with its full
// class capacity available via append or re-slicing.
func (p *Pool) Acquire(c Class) []byte {
	buf := p.pools[c].Get().(*[]byte)
	p.mu.Lock()
	p.stats[c].acquires++
	p.mu.Unlock()
	return (*buf)[:0]
}

// Release returns buf to class c's pool; c, not buf's capacity, decides
// the bucket. Callers should not pass a buffer whose capacity was grown
// past its class size via append, since it would then be recycled into
// the wrong bucket.
func (p *Pool) Release(c Class, buf []byte) {
	full := buf[:cap(buf)]
	p.mu.Lock()
	p.stats[c].releases++
	p.mu.Unlock()
	p.pools[c].Put(&full)
}

// Stats reports per-class acquire/release counters.
type Stats struct {
	Acquires, Releases uint64
}

func (p *Pool) Stats() [3]Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out [3]Stats
	for i, s := range p.stats {
		out[i] = Stats{Acquires: s.acquires, Releases: s.releases}
	}
	return out
}
