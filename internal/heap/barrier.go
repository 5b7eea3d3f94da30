package heap

import "github.com/tusharsadhwani/zigself/internal/object"

// WritePayload overwrites payload word idx of the object at holder with
// value, running the write barrier that keeps every space's remembered
// set accurate: whenever an object is made to point at an object in a
// strictly younger generation, its own space records that it now holds
// a reference a future collection of that younger generation must
// treat as a root. Per spec §4.5 the generation order is eden < from <
// old; to-space never holds a mutator-visible object, so it never
// appears as a holder or is checked as a value's generation here.
//
// This is the only sanctioned way to mutate a live object's fields.
// Writing through Space.SetPayloadWord directly, as the evacuator does,
// skips the barrier and is reserved for collection machinery that is
// itself about to rebuild the remembered set from scratch.
func (h *Heap) WritePayload(holder object.Addr, idx uint32, value object.Word) {
	holderSpace := h.spaceContaining(holder)
	if holderSpace == nil {
		fatal(FaultBarrierPrecondition, "", "write barrier: holder %s belongs to no known space", holder)
	}
	hdr := holderSpace.HeaderAt(holder)
	if idx >= PayloadWordCount(hdr) {
		fatal(FaultBarrierPrecondition, holderSpace.name, "write barrier: index %d out of range for %s", idx, holder)
	}
	holderSpace.SetPayloadWord(holder, idx, value)

	if !value.IsReference() {
		return
	}
	valueSpace := h.spaceContaining(value.Address())
	if valueSpace == nil || h.generationRank(valueSpace) >= h.generationRank(holderSpace) {
		return
	}
	holderSpace.RememberReference(holder, hdr.SizeInBytes())
}

// generationRank orders the heap's spaces from youngest to oldest:
// eden is rank 0, from-space (and to-space, which is never actually
// consulted as a holder or value space by the barrier) rank 1, and
// old-space rank 2.
func (h *Heap) generationRank(s *Space) int {
	switch s {
	case h.eden:
		return 0
	case h.from, h.to:
		return 1
	default:
		return 2
	}
}
