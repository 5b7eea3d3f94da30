package heap

import "github.com/tusharsadhwani/zigself/internal/object"

// Cell is an external root: a slot a collaborator outside the managed
// heap holds onto, whose value the collector must treat as live and
// keep up to date across evacuation. The heap's only way to learn about
// roots it cannot see inside an object graph is through a Cell.
//
// A Cell's identity is its address, not its value: two Cells holding
// the same Word are tracked independently, each updated independently
// as evacuation moves the object they refer to.
type Cell struct {
	heap  *Heap
	value object.Word
}

// NewHandle creates a tracked external root holding w.
func (h *Heap) NewHandle(w object.Word) *Cell {
	c := &Cell{heap: h, value: w}
	h.track(c, w)
	h.trace(Event{Kind: EventTrackedHandle, Address: w.Address()})
	return c
}

// Get returns the handle's current value.
func (c *Cell) Get() object.Word { return c.value }

// Set overwrites the handle's value, moving it to whichever space's
// tracked set now matches its new target.
func (c *Cell) Set(w object.Word) {
	c.heap.untrack(c, c.value)
	c.value = w
	c.heap.track(c, w)
}

// Release stops the heap from treating this handle as a root. Using c
// afterward is a programming error the heap makes no attempt to catch.
func (c *Cell) Release() {
	c.heap.untrack(c, c.value)
}

func (h *Heap) track(c *Cell, w object.Word) {
	if !w.IsReference() {
		return
	}
	if s := h.spaceContaining(w.Address()); s != nil {
		s.trackCell(c)
	}
}

func (h *Heap) untrack(c *Cell, w object.Word) {
	if !w.IsReference() {
		return
	}
	if s := h.spaceContaining(w.Address()); s != nil {
		s.untrackCell(c)
	}
}

// spaceContaining returns whichever of the heap's spaces currently owns
// addr, or nil if none does. Region tags move between Space values on a
// scavenge swap, so this must be resolved fresh at lookup time rather
// than cached.
func (h *Heap) spaceContaining(addr object.Addr) *Space {
	for _, s := range h.spaces() {
		if s.Contains(addr) {
			return s
		}
	}
	return nil
}
