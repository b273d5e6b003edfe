//go:build !arena_debug

package arena

// checkGeneration is a no-op in release builds so that StringView.Bytes
// stays branch-free on the hot path.
func checkGeneration(*Arena, uint64) {}
