package arena

// StringView is a non-owning (pointer, length) reference into an arena,
// per spec section 3. It must not be retained past the arena's next
// Reset.
type StringView struct {
	data       []byte
	generation uint64
}

// NewView wraps data (which must be a sub-slice of a's backing buffer)
// in a StringView tagged with a's current generation.
func NewView(a *Arena, data []byte) StringView {
	return StringView{data: data, generation: a.generation}
}

// Bytes returns the view's bytes. In debug builds (-tags arena_debug)
// this panics if the view's generation no longer matches its arena's
// current generation, i.e. the arena has been reset since the view was
// produced. Release builds skip the check entirely, per spec.md §9's
// "Statistics... must compile/branch out entirely" hot-path discipline
// applied here to the generation check as well.
func (v StringView) Bytes(a *Arena) []byte {
	checkGeneration(a, v.generation)
	return v.data
}

// String copies the view's bytes into a new Go string. This allocates;
// callers on the hot path should prefer Bytes and compare/scan in place.
func (v StringView) String(a *Arena) string {
	return string(v.Bytes(a))
}

// Len returns the view's length without a generation check, since length
// alone cannot read stale memory.
func (v StringView) Len() int { return len(v.data) }

// Empty reports whether the view has zero length.
func (v StringView) Empty() bool { return len(v.data) == 0 }
