package heap

import "github.com/tusharsadhwani/zigself/internal/object"

// Scavenge runs eden's collection. Eden has no scavenge target, only a
// tenure target (from-space), so every surviving eden object is
// evacuated directly into from-space. If from-space does not currently
// have room for eden's entire live set, from-space runs its own
// collect_garbage first (scavenging into to-space and swapping, falling
// back to tenuring into old-space only if that still isn't enough) so
// eden's evacuation always has somewhere to land.
func (h *Heap) Scavenge() {
	h.trace(Event{Kind: EventCollectStart, Space: "eden"})

	if h.eden.UsedBytes() > h.from.FreeBytes() {
		h.collectFrom(h.eden.UsedBytes())
	}

	h.evacuateSpace(h.eden, h.from, false)
	h.eden.reset()
	h.pruneStaleRemembered(h.from)
	h.pruneStaleRemembered(h.old)

	h.edenCollections++
	h.scavengeCount++
	h.trace(Event{Kind: EventCollectEnd, Space: "eden"})
}

// collectFrom runs from-space's own collect_garbage(requiredBytes):
// scavenge into to-space and swap identities; if free space is still
// insufficient, fall back to tenuring from-space's survivors directly
// into old-space. Eden is a newer-generation link in both branches: the
// write barrier only remembers references held by a space into a
// strictly younger one (see barrier.go), so eden, being the youngest
// generation, never appears as a holder in anyone's remembered set; any
// reference an eden object already holds into from-space must instead be
// found by rescanning the whole of eden.
func (h *Heap) collectFrom(requiredBytes uint32) {
	if h.from.FreeBytes() >= requiredBytes {
		return
	}

	h.trace(Event{Kind: EventCollectStart, Space: "from"})
	h.evacuateSpace(h.from, h.to, true)
	h.from.reset()
	h.from.swapWith(h.to)
	h.trace(Event{Kind: EventScavengeSwap, Space: "from"})
	h.trace(Event{Kind: EventCollectEnd, Space: "from"})

	if h.from.FreeBytes() >= requiredBytes {
		return
	}

	h.trace(Event{Kind: EventCollectStart, Space: "from"})
	h.evacuateSpace(h.from, h.old, true)
	h.from.reset()
	h.trace(Event{Kind: EventCollectEnd, Space: "from"})

	if h.from.FreeBytes() < requiredBytes {
		fatal(FaultUnsatisfiableAllocation, h.from.name, "from-space cannot free %d bytes even after tenuring its survivors to old-space", requiredBytes)
	}
}

// evacuateSpace copies every object reachable from src into dst: src's
// own activation and handle roots, whatever older spaces' remembered
// sets say still point into src (rememberedSpaces), whatever eden still
// points into src when src isn't eden itself (scanEdenLink), and finally
// the Cheney worklist over everything just copied into dst. Callers are
// responsible for resetting src (and, for a scavenge, swapping it with
// dst) afterward.
func (h *Heap) evacuateSpace(src, dst *Space, scanEdenLink bool) {
	forwardedBytes := make(map[object.Addr]object.Addr)
	forward := h.forwardFor(src, dst, forwardedBytes)

	worklistStart := dst.objCursor
	h.evacuateRoots(src, forward)
	h.rescanRememberedInto(h.rememberedSpaces(src), forward)
	if scanEdenLink {
		scanSegment(h.eden, 0, forward)
	}
	scanSegment(dst, worklistStart, forward)
	h.runDeadFinalizers(src)
}

// rememberedSpaces reports which spaces' remembered sets may hold
// references into src and so must be rescanned when src is evacuated.
// Per the eden < from < old generation order, a space only ever
// remembers references into a strictly younger space, so this is just
// "every space older than src": from and old when src is eden, old
// alone when src is from. old-space itself is never evacuated, so it
// never appears as src here.
func (h *Heap) rememberedSpaces(src *Space) []*Space {
	switch src {
	case h.eden:
		return []*Space{h.from, h.old}
	case h.from:
		return []*Space{h.old}
	default:
		return nil
	}
}

// forwardFor builds the word-forwarding closure for one evacuation pass:
// a reference into src's object segment is copied (or, if already
// forwarded earlier in this pass, resolved to its existing copy) into
// dst; a reference into src's byte-array segment is copied via
// forwardedBytes, the per-pass side table byte arrays need since they
// carry no header to stash a forwarding pointer in. Anything else passes
// through unchanged.
func (h *Heap) forwardFor(src, dst *Space, forwardedBytes map[object.Addr]object.Addr) func(object.Word) object.Word {
	var forward func(object.Word) object.Word
	forward = func(w object.Word) object.Word {
		if !w.IsReference() {
			return w
		}
		addr := w.Address()
		switch {
		case src.ObjectSegmentContains(addr):
			return object.FromAddress(h.evacuateObject(src, dst, addr))
		case src.ByteArraySegmentContains(addr):
			return object.FromAddress(h.evacuateBytes(src, dst, addr, forwardedBytes))
		default:
			return w
		}
	}
	return forward
}

// evacuateRoots forwards src's external roots: the activation stack's
// per-frame slot (forward is a no-op for any root that doesn't point
// into src) and every handle cell currently tracked in src's tracked
// set, re-registered in whichever space now holds it once forwarded.
func (h *Heap) evacuateRoots(src *Space, forward func(object.Word) object.Word) {
	if h.activation != nil {
		for i := 0; i < h.activation.Len(); i++ {
			h.activation.SetRoot(i, forward(h.activation.Root(i)))
		}
	}
	h.forwardTrackedRoots(src, forward)
}

func (h *Heap) forwardTrackedRoots(s *Space, forward func(object.Word) object.Word) {
	cells := make([]*Cell, 0, len(s.tracked))
	for c := range s.tracked {
		cells = append(cells, c)
	}
	for _, c := range cells {
		s.untrackCell(c)
		c.value = forward(c.value)
		h.track(c, c.value)
	}
}

// scanSegment walks s's object segment from startWord to its current
// objCursor (re-read every iteration), forwarding every payload word in
// place. As the destination of an evacuation, this is the Cheney
// worklist: objects copied in during the scan extend objCursor, so the
// loop naturally keeps pace with them. As a newer-generation rescan
// (startWord 0, s not growing during the call) it is a single full pass.
func scanSegment(s *Space, startWord uint32, forward func(object.Word) object.Word) {
	cursor := startWord
	for cursor < s.objCursor {
		hdr := s.slots[cursor].header
		n := PayloadWordCount(hdr)
		for i := uint32(0); i < n; i++ {
			s.slots[cursor+1+i].payload = forward(s.slots[cursor+1+i].payload)
		}
		cursor += hdr.SizeWords
	}
}

// evacuateObject copies the object at addr in src to dst, returning its
// new address. Idempotent: a second call for an address already
// forwarded returns the prior forwarding target without copying again.
func (h *Heap) evacuateObject(src, dst *Space, addr object.Addr) object.Addr {
	hdr := src.HeaderAt(addr)
	if hdr.IsForwarding() {
		return hdr.ForwardingAddress()
	}
	newHdr := object.NewHeader(hdr.SizeWords, hdr.Finalizer)
	newAddr := dst.allocateRawObject(newHdr)
	n := PayloadWordCount(hdr)
	for i := uint32(0); i < n; i++ {
		dst.SetPayloadWord(newAddr, i, src.PayloadWord(addr, i))
	}
	hdr.SetForwardingAddress(newAddr)

	if sizeBytes, remembered := src.remembered[addr]; remembered {
		dst.RememberReference(newAddr, sizeBytes)
	}
	if _, needsFinalize := src.finalize[addr]; needsFinalize {
		src.unmarkNeedsFinalization(addr)
		dst.MarkNeedsFinalization(newAddr)
	}
	if dst == h.old {
		h.tenureCount++
		h.trace(Event{Kind: EventTenure, Space: dst.name, Address: newAddr, Bytes: hdr.SizeInBytes()})
	}
	return newAddr
}

// evacuateBytes is evacuateObject for the byte-array segment, which has
// no header to carry a forwarding pointer.
func (h *Heap) evacuateBytes(src, dst *Space, addr object.Addr, forwarded map[object.Addr]object.Addr) object.Addr {
	if already, ok := forwarded[addr]; ok {
		return already
	}
	sizeWords := src.byteArrayWords(addr)
	sizeBytes := sizeWords * wordSizeBytes
	newAddr := dst.allocateRawBytes(sizeWords)
	copy(dst.BytesAt(newAddr, sizeBytes), src.BytesAt(addr, sizeBytes))
	forwarded[addr] = newAddr
	return newAddr
}

// runDeadFinalizers runs the finalizer of every object still in s's
// finalization set once evacuation has finished: survivors were already
// removed from the set by evacuateObject, so anything left here did not
// survive this collection.
func (h *Heap) runDeadFinalizers(s *Space) {
	for addr := range s.finalize {
		hdr := s.HeaderAt(addr)
		hdr.Finalize(addr)
		h.finalizerRuns++
		h.trace(Event{Kind: EventFinalize, Space: s.name, Address: addr})
	}
}

// rescanRememberedInto re-forwards every remembered-set entry's payload,
// across every space in spaces, through forward, relocating whichever of
// its references fall within this pass's source space. A single
// Scavenge() call may run this once per evacuateSpace call (once for
// from-space's own collection, once for eden's), each touching only the
// fields its own forward closure recognizes; staleness is checked once,
// afterward, by pruneStaleRemembered rather than here.
func (h *Heap) rescanRememberedInto(spaces []*Space, forward func(object.Word) object.Word) {
	for _, s := range spaces {
		for addr := range s.remembered {
			hdr := s.HeaderAt(addr)
			n := PayloadWordCount(hdr)
			for i := uint32(0); i < n; i++ {
				s.slots[addr.Word+1+i].payload = forward(s.slots[addr.Word+1+i].payload)
			}
		}
	}
}

// stillRemembersYoung reports whether the object at addr in s still
// holds a reference into any of the three young-generation spaces, i.e.
// whether its remembered-set entry might still be load-bearing. This is
// deliberately looser than the rank comparison the write barrier itself
// uses to decide whether to remember a reference in the first place: a
// from-space holder's reference to an object that was in eden and has
// since been promoted into from-space alongside it is no longer
// cross-generational, but staleness checking doesn't need to be that
// precise, and erring toward keeping an entry a little longer than
// strictly necessary is always safe — the next scavenge that actually
// needs precision gets it by re-deriving reachability from roots, not
// from this set.
func (h *Heap) stillRemembersYoung(s *Space, addr object.Addr) bool {
	hdr := s.HeaderAt(addr)
	n := PayloadWordCount(hdr)
	for i := uint32(0); i < n; i++ {
		w := s.slots[addr.Word+1+i].payload
		if w.IsReference() && (h.eden.Contains(w.Address()) || h.from.Contains(w.Address()) || h.to.Contains(w.Address())) {
			return true
		}
	}
	return false
}

// pruneStaleRemembered drops any of s's remembered-set entries whose
// object no longer holds a reference into any young-generation space,
// once a Scavenge() call's forwarding has fully settled. A referent
// that did not survive is never forwarded, so its field still names
// the address it had before the collection that killed it; once that
// collection's source space has been reset, the stale address belongs
// to nothing.
func (h *Heap) pruneStaleRemembered(s *Space) {
	for addr := range s.remembered {
		if !h.stillRemembersYoung(s, addr) {
			s.ForgetReference(addr)
		}
	}
}

// ValidateRememberedSet is a debug assertion, not part of the normal
// collection path: it fatals if any remembered-set entry, in from-space
// or old-space, no longer holds a reference into eden, from-space or
// to-space (the same loose test stillRemembersYoung applies). The write barrier is allowed to let entries go stale until the
// next scavenge drops them, so this is only meaningful to call right
// after a scavenge, before any further mutation.
func (h *Heap) ValidateRememberedSet() {
	for _, s := range []*Space{h.from, h.old} {
		for addr := range s.remembered {
			if !h.stillRemembersYoung(s, addr) {
				fatal(FaultStaleRememberedSet, s.name, "entry for %s holds no reference into a younger space", addr)
			}
		}
	}
}
