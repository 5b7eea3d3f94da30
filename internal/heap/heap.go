package heap

import "github.com/tusharsadhwani/zigself/internal/object"

// Heap is the managed memory for a running program: three young-generation
// spaces (eden, from, to) scavenged together and one old-generation space
// collaborators' long-lived objects are promoted into. Every address the
// heap hands out is only ever dereferenced through the heap itself — there
// are no raw pointers into it.
type Heap struct {
	cfg    Config
	tracer Tracer

	eden *Space
	from *Space
	to   *Space
	old  *Space

	activation *object.ActivationStack

	edenCollections uint64
	scavengeCount   uint64
	tenureCount     uint64
	finalizerRuns   uint64
}

// New builds a heap with the given config, wiring eden to tenure its
// survivors straight into from-space, from-space to scavenge into
// to-space with old-space as its capacity-overflow tenure fallback, and
// old-space to grow in place when it runs out of room.
func New(cfg Config) *Heap {
	if err := cfg.validate(); err != nil {
		fatal(FaultInvalidSize, "", "%s", err)
	}
	h := &Heap{
		cfg:        cfg,
		tracer:     NoopTracer{},
		activation: object.NewActivationStack(),
	}
	h.eden = newSpace("eden", 1, h, cfg.EdenBytes)
	h.from = newSpace("from", 2, h, cfg.FromBytes)
	h.to = newSpace("to", 3, h, cfg.ToBytes)
	h.old = newSpace("old", 4, h, cfg.OldBytes)
	h.old.growable = true

	h.eden.tenureTarget = h.from
	h.from.scavengeTarget = h.to
	h.from.tenureTarget = h.old
	return h
}

// SetTracer installs t as the heap's event sink, replacing whatever was
// installed before (NoopTracer by default).
func (h *Heap) SetTracer(t Tracer) {
	if t == nil {
		t = NoopTracer{}
	}
	h.tracer = t
}

func (h *Heap) trace(e Event) { h.tracer.Trace(e) }

func (h *Heap) spaces() [4]*Space {
	return [4]*Space{h.eden, h.from, h.to, h.old}
}

// Activations returns the heap's activation stack, the root-enumeration
// capability a caller pushes and pops frames on as it calls and returns.
// May be nil if no stack has been installed, or after SetActivationStack(nil).
func (h *Heap) Activations() *object.ActivationStack { return h.activation }

// SetActivationStack installs stack as the heap's root-enumeration
// capability, replacing whatever was borrowed before. The stack is
// borrowed, not owned: the heap never allocates or frees it, only
// reads and overwrites its per-activation root during a collection.
// Passing nil detaches the heap; a scavenge then treats the activation
// stack as contributing no roots at all.
func (h *Heap) SetActivationStack(stack *object.ActivationStack) {
	h.activation = stack
}

// EnsureSpaceInEden forces a scavenge if eden cannot currently satisfy
// a sizeBytes allocation, so a caller about to run a multi-step
// allocation sequence can guarantee none of its steps collects midway
// through, when only some of the sequence's objects are rooted yet.
func (h *Heap) EnsureSpaceInEden(sizeBytes uint32) {
	sizeWords := h.eden.wordsFor(sizeBytes)
	if h.eden.objCursor+sizeWords > h.eden.byteCursor {
		h.Scavenge()
	}
}

// MarkNeedsFinalization registers addr, which must currently be in
// eden's object segment, so its finalizer (if it has one) runs should
// it fail to survive a collection. Call this immediately after
// allocating addr, while it is still in eden: an object's finalization
// flag otherwise only ever gets set at allocation time.
func (h *Heap) MarkNeedsFinalization(addr object.Addr) {
	if !h.eden.ObjectSegmentContains(addr) {
		fatal(FaultBarrierPrecondition, h.eden.name, "address %s is not in eden's object segment", addr)
	}
	h.eden.MarkNeedsFinalization(addr)
}

// AllocateObject allocates a sizeBytes object (header included) in
// eden, the nursery every object is born in.
func (h *Heap) AllocateObject(sizeBytes uint32, fin object.FinalizerFunc) object.Addr {
	return h.eden.AllocateObject(sizeBytes, fin)
}

// AllocateBytes allocates a sizeBytes byte array in eden.
func (h *Heap) AllocateBytes(sizeBytes uint32) object.Addr {
	return h.eden.AllocateBytes(sizeBytes)
}

// AllocateTenured allocates directly in old-space, bypassing eden. Used
// for objects a collaborator knows up front will outlive the young
// generation (interned constants, the object that roots the globals).
func (h *Heap) AllocateTenured(sizeBytes uint32, fin object.FinalizerFunc) object.Addr {
	return h.old.AllocateObject(sizeBytes, fin)
}

// handleFull is called by a Space when a mutator allocation finds no
// room. Eden triggers a scavenge; old-space growth is handled inline by
// Space.reserveObjectWords, so old never reaches here as a source.
func (h *Heap) handleFull(trigger *Space, needed uint32) {
	switch trigger {
	case h.eden:
		h.Scavenge()
	default:
		fatal(FaultUnsatisfiableAllocation, trigger.name, "space cannot collect on demand")
	}
}

// Header dereferences addr in whichever space owns it.
func (h *Heap) Header(addr object.Addr) *object.Header {
	s := h.spaceContaining(addr)
	if s == nil {
		fatal(FaultInvalidAddress, "", "address %s belongs to no known space", addr)
	}
	return s.HeaderAt(addr)
}

// Payload reads payload word idx of the object at addr.
func (h *Heap) Payload(addr object.Addr, idx uint32) object.Word {
	s := h.spaceContaining(addr)
	if s == nil {
		fatal(FaultInvalidAddress, "", "address %s belongs to no known space", addr)
	}
	return s.PayloadWord(addr, idx)
}

// Bytes reads the byte-array content at addr.
func (h *Heap) Bytes(addr object.Addr, sizeBytes uint32) []byte {
	s := h.spaceContaining(addr)
	if s == nil {
		fatal(FaultInvalidAddress, "", "address %s belongs to no known space", addr)
	}
	return s.BytesAt(addr, sizeBytes)
}

// Stats returns a point-in-time snapshot of every space's occupancy and
// the heap's lifetime collection counters.
func (h *Heap) Stats() Stats {
	return Stats{
		Eden:            h.eden.stats(),
		From:            h.from.stats(),
		To:              h.to.stats(),
		Old:             h.old.stats(),
		EdenCollections: h.edenCollections,
		ScavengeCount:   h.scavengeCount,
		TenureCount:     h.tenureCount,
		FinalizerRuns:   h.finalizerRuns,
	}
}

// Close tears the heap down, running the finalizer of every object still
// registered for finalization even though it never failed to survive a
// collection. Spaces are visited old, from, to, eden — oldest generation
// first — so a finalizer that reaches a not-yet-closed younger object
// through a stale handle still finds it intact. Call this once, when the
// program is done with the heap; Close does not reset the heap to a
// reusable state.
func (h *Heap) Close() {
	for _, s := range []*Space{h.old, h.from, h.to, h.eden} {
		for addr := range s.finalize {
			hdr := s.HeaderAt(addr)
			hdr.Finalize(addr)
			h.finalizerRuns++
			h.trace(Event{Kind: EventFinalize, Space: s.name, Address: addr})
		}
		s.finalize = make(map[object.Addr]struct{})
	}
}
