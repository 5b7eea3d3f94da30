package heap

import (
	"github.com/tusharsadhwani/zigself/internal/object"
)

const wordSizeBytes = object.WordSize

// slot is one word-sized cell of a space's object segment. A slot either
// starts an object (header != nil) or holds one of that object's payload
// words; the two are never both present, which is what lets the Cheney
// scan loop tell header words and payload words apart without bit tricks.
type slot struct {
	header  *object.Header
	payload object.Word
}

// Space is a contiguous, fixed-capacity, word-aligned region with two
// bump-pointer segments growing toward each other: an object segment from
// the low end, a byte-array segment from the high end. It owns its
// remembered set, finalization set, and tracked set, and knows how to
// evacuate its live objects into a target space (see evacuator.go).
type Space struct {
	name   string
	region uint8
	heap   *Heap

	capacityWords uint32
	objCursor     uint32 // next free word, object segment (grows up from 0)
	byteCursor    uint32 // next used word, byte-array segment (grows down from capacityWords)

	slots []slot
	bytes []byte

	remembered map[object.Addr]uint32
	finalize   map[object.Addr]struct{}
	tracked    map[*Cell]struct{}
	byteLens   map[uint32]uint32 // byte-array start word -> length in words

	scavengeTarget *Space
	tenureTarget   *Space
	growable       bool
}

func newSpace(name string, region uint8, h *Heap, capacityBytes uint32) *Space {
	words := capacityBytes / wordSizeBytes
	return &Space{
		name:          name,
		region:        region,
		heap:          h,
		capacityWords: words,
		byteCursor:    words,
		slots:         make([]slot, words),
		bytes:         make([]byte, capacityBytes),
		remembered:    make(map[object.Addr]uint32),
		finalize:      make(map[object.Addr]struct{}),
		tracked:       make(map[*Cell]struct{}),
		byteLens:      make(map[uint32]uint32),
	}
}

// Name returns the space's human-readable, immutable identity. Unlike
// the region tag, the name never moves between Space values on a swap.
func (s *Space) Name() string { return s.name }

// CapacityBytes is the space's total fixed size.
func (s *Space) CapacityBytes() uint32 { return s.capacityWords * wordSizeBytes }

// UsedBytes is the sum of both segments' occupied bytes.
func (s *Space) UsedBytes() uint32 {
	return s.objCursor*wordSizeBytes + (s.capacityWords-s.byteCursor)*wordSizeBytes
}

// FreeBytes is the gap between the two bump pointers.
func (s *Space) FreeBytes() uint32 {
	return (s.byteCursor - s.objCursor) * wordSizeBytes
}

func (s *Space) addr(word uint32) object.Addr {
	return object.Addr{Region: s.region, Word: word}
}

// ObjectSegmentContains tests whether p lies in this space's object
// segment: the sole means, along with ByteArraySegmentContains, of
// identifying which space owns an address.
func (s *Space) ObjectSegmentContains(p object.Addr) bool {
	return p.Region == s.region && p.Word < s.objCursor
}

// ByteArraySegmentContains tests whether p lies in this space's
// byte-array segment.
func (s *Space) ByteArraySegmentContains(p object.Addr) bool {
	return p.Region == s.region && p.Word >= s.byteCursor && p.Word < s.capacityWords
}

// Contains tests whether p lies in either of this space's segments.
func (s *Space) Contains(p object.Addr) bool {
	return s.ObjectSegmentContains(p) || s.ByteArraySegmentContains(p)
}

func (s *Space) wordsFor(sizeBytes uint32) uint32 {
	if sizeBytes == 0 || sizeBytes%wordSizeBytes != 0 {
		fatal(FaultInvalidSize, s.name, "size %d is not a positive multiple of %d", sizeBytes, wordSizeBytes)
	}
	return sizeBytes / wordSizeBytes
}

// reserveObjectWords ensures n words are free at the head of the object
// segment, growing a growable space in place or faulting otherwise, then
// bumps objCursor and returns the start word.
func (s *Space) reserveObjectWords(n uint32) uint32 {
	if s.objCursor+n > s.byteCursor {
		if !s.growable {
			fatal(FaultUnsatisfiableAllocation, s.name, "no room for %d-word object", n)
		}
		s.grow((n - (s.byteCursor - s.objCursor)) * wordSizeBytes)
	}
	start := s.objCursor
	s.objCursor += n
	return start
}

// reserveByteWords is reserveObjectWords for the byte-array segment,
// which grows down from the high end.
func (s *Space) reserveByteWords(n uint32) uint32 {
	if s.objCursor+n > s.byteCursor {
		if !s.growable {
			fatal(FaultUnsatisfiableAllocation, s.name, "no room for %d-word byte array", n)
		}
		s.grow((n - (s.byteCursor - s.objCursor)) * wordSizeBytes)
	}
	s.byteCursor -= n
	return s.byteCursor
}

// AllocateObject bump-allocates sizeBytes (header included) in the
// object segment, triggering a collection first if there is not enough
// room. fin, if non-nil, is registered as the object's finalizer and the
// object is added to this space's finalization set.
func (s *Space) AllocateObject(sizeBytes uint32, fin object.FinalizerFunc) object.Addr {
	sizeWords := s.wordsFor(sizeBytes)
	if s.objCursor+sizeWords > s.byteCursor && !s.growable {
		s.heap.handleFull(s, sizeBytes)
	}
	start := s.reserveObjectWords(sizeWords)
	hdr := object.NewHeader(sizeWords, fin)
	s.slots[start].header = hdr
	scrub := s.heap.cfg.Debug
	for i := start + 1; i < start+sizeWords; i++ {
		s.slots[i].header = nil
		if scrub {
			s.slots[i].payload = object.Scrub()
		} else {
			s.slots[i].payload = object.Nothing()
		}
	}
	addr := s.addr(start)
	if fin != nil {
		s.MarkNeedsFinalization(addr)
	}
	s.heap.trace(Event{Kind: EventAlloc, Space: s.name, Address: addr, Bytes: sizeBytes})
	return addr
}

// AllocateBytes bump-allocates sizeBytes in the byte-array segment,
// triggering a collection first if there is not enough room.
func (s *Space) AllocateBytes(sizeBytes uint32) object.Addr {
	sizeWords := s.wordsFor(sizeBytes)
	if s.objCursor+sizeWords > s.byteCursor && !s.growable {
		s.heap.handleFull(s, sizeBytes)
	}
	start := s.reserveByteWords(sizeWords)
	s.byteLens[start] = sizeWords
	byteStart := start * wordSizeBytes
	if s.heap.cfg.Debug {
		for i := uint32(0); i < sizeBytes; i++ {
			s.bytes[byteStart+i] = scrubByte
		}
	} else {
		clear(s.bytes[byteStart : byteStart+sizeBytes])
	}
	addr := s.addr(start)
	s.heap.trace(Event{Kind: EventAlloc, Space: s.name, Address: addr, Bytes: sizeBytes})
	return addr
}

const scrubByte = 0xAB

// allocateRawObject places a pre-built header (copied from another
// space during evacuation) without running the allocation-fault ladder
// mutator calls go through. The evacuator checks destination capacity
// before it starts (and old-space grows in place); if the destination
// still overflows, reserveObjectWords faults.
func (s *Space) allocateRawObject(hdr *object.Header) object.Addr {
	start := s.reserveObjectWords(hdr.SizeWords)
	s.slots[start].header = hdr
	addr := s.addr(start)
	s.heap.trace(Event{Kind: EventAlloc, Space: s.name, Address: addr, Bytes: hdr.SizeInBytes()})
	return addr
}

// allocateRawBytes is allocateRawObject for the byte-array segment.
func (s *Space) allocateRawBytes(sizeWords uint32) object.Addr {
	start := s.reserveByteWords(sizeWords)
	s.byteLens[start] = sizeWords
	return s.addr(start)
}

// byteArrayWords returns the length, in words, of the byte array
// starting at addr.
func (s *Space) byteArrayWords(addr object.Addr) uint32 {
	n, ok := s.byteLens[addr.Word]
	if !ok {
		fatal(FaultInvalidAddress, s.name, "address %s does not begin a byte array in this space", addr)
	}
	return n
}

// HeaderAt returns the header of the object starting at addr. Fatal if
// addr does not begin a live object in this space.
func (s *Space) HeaderAt(addr object.Addr) *object.Header {
	if addr.Region != s.region || addr.Word >= s.objCursor {
		fatal(FaultInvalidAddress, s.name, "address %s does not begin an object in this space", addr)
	}
	h := s.slots[addr.Word].header
	if h == nil {
		fatal(FaultInvalidAddress, s.name, "address %s is not an object header", addr)
	}
	return h
}

// PayloadWordCount returns how many words of addr's object are payload
// (everything after the header word).
func PayloadWordCount(h *object.Header) uint32 {
	if h.SizeWords == 0 {
		return 0
	}
	return h.SizeWords - 1
}

// PayloadWord reads payload word idx (0-based) of the object at addr.
func (s *Space) PayloadWord(addr object.Addr, idx uint32) object.Word {
	return s.slots[addr.Word+1+idx].payload
}

// SetPayloadWord overwrites payload word idx (0-based) of the object at
// addr, used by the evacuator to rewrite relocated references in place.
func (s *Space) SetPayloadWord(addr object.Addr, idx uint32, w object.Word) {
	s.slots[addr.Word+1+idx].payload = w
}

// BytesAt returns the raw byte-array content starting at addr, sizeBytes
// long.
func (s *Space) BytesAt(addr object.Addr, sizeBytes uint32) []byte {
	start := addr.Word * wordSizeBytes
	return s.bytes[start : start+sizeBytes]
}

// --- Auxiliary sets -------------------------------------------------

// RememberReference inserts (addr, sizeBytes) into the remembered set:
// addr names an object elsewhere in the heap that holds a reference into
// this space.
func (s *Space) RememberReference(addr object.Addr, sizeBytes uint32) {
	s.remembered[addr] = sizeBytes
}

// ForgetReference removes addr from the remembered set. Fatal if absent:
// callers only ever remove entries they know are present.
func (s *Space) ForgetReference(addr object.Addr) {
	if _, ok := s.remembered[addr]; !ok {
		fatal(FaultMissingSetEntry, s.name, "remembered-set entry for %s not found", addr)
	}
	delete(s.remembered, addr)
}

// MarkNeedsFinalization inserts addr into the finalization set.
func (s *Space) MarkNeedsFinalization(addr object.Addr) {
	s.finalize[addr] = struct{}{}
}

// unmarkNeedsFinalization removes addr from the finalization set. Fatal
// if absent.
func (s *Space) unmarkNeedsFinalization(addr object.Addr) {
	if _, ok := s.finalize[addr]; !ok {
		fatal(FaultMissingSetEntry, s.name, "finalization-set entry for %s not found", addr)
	}
	delete(s.finalize, addr)
}

func (s *Space) trackCell(c *Cell) { s.tracked[c] = struct{}{} }

func (s *Space) untrackCell(c *Cell) {
	if _, ok := s.tracked[c]; !ok {
		fatal(FaultMissingSetEntry, s.name, "tracked-set entry not found")
	}
	delete(s.tracked, c)
}

// swapWith exchanges all identifying state between s and t: the backing
// storage, both cursors, the three auxiliary sets, and the region tag
// that addresses use to name "this buffer". Names and scavenge/tenure
// target pointers are left untouched, so the identity "this is eden"
// stays with the Space value, not with whichever physical buffer it
// currently holds.
func (s *Space) swapWith(t *Space) {
	s.region, t.region = t.region, s.region
	s.capacityWords, t.capacityWords = t.capacityWords, s.capacityWords
	s.objCursor, t.objCursor = t.objCursor, s.objCursor
	s.byteCursor, t.byteCursor = t.byteCursor, s.byteCursor
	s.slots, t.slots = t.slots, s.slots
	s.bytes, t.bytes = t.bytes, s.bytes
	s.remembered, t.remembered = t.remembered, s.remembered
	s.finalize, t.finalize = t.finalize, s.finalize
	s.tracked, t.tracked = t.tracked, s.tracked
	s.byteLens, t.byteLens = t.byteLens, s.byteLens
}

// reset empties the space: zero cursors, fresh (but capacity-retaining)
// auxiliary sets. Called as the final step of evacuating this space.
func (s *Space) reset() {
	s.objCursor = 0
	s.byteCursor = s.capacityWords
	s.remembered = make(map[object.Addr]uint32, len(s.remembered))
	s.finalize = make(map[object.Addr]struct{}, len(s.finalize))
	s.tracked = make(map[*Cell]struct{}, len(s.tracked))
	s.byteLens = make(map[uint32]uint32, len(s.byteLens))
}

// grow extends a space's capacity by at least extraBytes, preserving
// existing content. Only called on a growable space (old-space in the
// canonical configuration): such a space has nowhere else to send its
// survivors, so the only way to satisfy an allocation is to make room
// in place.
func (s *Space) grow(extraBytes uint32) {
	extraWords := (extraBytes + wordSizeBytes - 1) / wordSizeBytes
	newCapacity := s.capacityWords + extraWords

	newSlots := make([]slot, newCapacity)
	copy(newSlots, s.slots[:s.objCursor])
	s.slots = newSlots

	newBytes := make([]byte, newCapacity*wordSizeBytes)
	usedByteWords := s.capacityWords - s.byteCursor
	newByteCursor := newCapacity - usedByteWords
	copy(newBytes[newByteCursor*wordSizeBytes:], s.bytes[s.byteCursor*wordSizeBytes:])
	s.bytes = newBytes
	oldByteCursor := s.byteCursor
	s.byteCursor = newByteCursor
	s.capacityWords = newCapacity

	shift := newByteCursor - oldByteCursor
	if shift != 0 {
		s.rekeyByteLens(shift)
		s.fixupByteArrayAddrs(oldByteCursor, shift)
	}

	s.heap.trace(Event{Kind: EventSpaceGrow, Space: s.name, Bytes: extraWords * wordSizeBytes})
}

func (s *Space) rekeyByteLens(shift uint32) {
	next := make(map[uint32]uint32, len(s.byteLens))
	for start, n := range s.byteLens {
		next[start+shift] = n
	}
	s.byteLens = next
}

// fixupByteArrayAddrs rewrites every payload word in this space's
// already-allocated objects that points at the byte-array segment,
// shifting it by the same amount growth just moved that segment by.
// References to this space's byte arrays held outside the space (by a
// younger-generation object, or an external handle) are not reachable
// from here and are assumed not to occur in the generational pattern
// this heap targets: a tenured byte array is reached through a tenured
// container, not from a younger one.
func (s *Space) fixupByteArrayAddrs(oldByteCursor, shift uint32) {
	for start := uint32(0); start < s.objCursor; {
		hdr := s.slots[start].header
		n := PayloadWordCount(hdr)
		for i := uint32(0); i < n; i++ {
			w := &s.slots[start+1+i].payload
			if w.IsReference() {
				a := w.Address()
				if a.Region == s.region && a.Word >= oldByteCursor {
					*w = object.FromAddress(object.Addr{Region: a.Region, Word: a.Word + shift})
				}
			}
		}
		start += hdr.SizeWords
	}
}
