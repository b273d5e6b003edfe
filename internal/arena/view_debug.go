//go:build arena_debug

package arena

import "fmt"

// checkGeneration panics if v was produced by a since-reset generation of
// a. Compiled in only under -tags arena_debug; see view.go.
func checkGeneration(a *Arena, viewGeneration uint64) {
	if a.Generation() != viewGeneration {
		panic(fmt.Sprintf("arena: StringView used after Reset (view generation %d, arena generation %d)", viewGeneration, a.Generation()))
	}
}
