package pool

import (
	"github.com/klauspost/cpuid/v2"

	"github.com/nmxmxh/kvstored/internal/arena"
)

// DetectAlignment picks the slab/arena alignment for this process: the
// detected L1 cache-line size on platforms cpuid can read, or 8 bytes
// (pointer-width alignment) when cpuid reports nothing useful. Called
// once from internal/app's startup wiring rather than from an init(),
// so tests that never call it keep the architecture-independent default
// of 8 from spec.md §3.
//
// Aligning to the cache line reduces false sharing between objects
// handed to different connection goroutines, which matters here given
// the pool's cross-thread-free design. CacheLine() is always a power of
// two on every microarchitecture cpuid recognizes, so it satisfies
// AllocAligned's power-of-two requirement directly.
func DetectAlignment() int {
	line := cpuid.CPU.CacheLine()
	if line <= 0 || line&(line-1) != 0 {
		return arena.DefaultAlignment
	}
	return line
}

// ApplyDetectedAlignment overrides arena.DefaultAlignment process-wide.
// Call once, before any Arena is created.
func ApplyDetectedAlignment() {
	arena.DefaultAlignment = DetectAlignment()
}
