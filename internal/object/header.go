package object

// FinalizerFunc runs when an object that requested finalization is not
// evacuated during a collection, or when the heap is torn down while the
// object is still reachable. It receives the address the object lived at
// when the finalizer ran.
type FinalizerFunc func(Addr)

// Header is the object header capability: given an object's header, the
// collector can read its total size, test for and install a forwarding
// reference, and invoke its finalizer. A real byte-oriented runtime packs
// this into the object's first word; here it is a small struct the heap
// stores at an object's starting address, which is equivalent for every
// purpose the collector cares about.
type Header struct {
	// SizeWords is the object's total size in words, header included.
	SizeWords uint32
	// Finalizer is invoked by Finalize, if set.
	Finalizer FinalizerFunc

	forwarding  bool
	forwardAddr Addr
}

// NewHeader builds a header for a freshly allocated object.
func NewHeader(sizeWords uint32, fin FinalizerFunc) *Header {
	return &Header{SizeWords: sizeWords, Finalizer: fin}
}

// SizeInBytes reports the object's total size, header included.
func (h *Header) SizeInBytes() uint32 { return h.SizeWords * WordSize }

// IsForwarding tests whether this header has been overwritten with a
// forwarding reference by an evacuation earlier in the current collection.
func (h *Header) IsForwarding() bool { return h.forwarding }

// ForwardingAddress returns the address this object was relocated to.
// Only meaningful when IsForwarding is true.
func (h *Header) ForwardingAddress() Addr { return h.forwardAddr }

// SetForwardingAddress overwrites the header in place with a forwarding
// reference to the object's new location. Idempotent: calling it again
// with the same address is harmless, matching forwarding-idempotence.
func (h *Header) SetForwardingAddress(addr Addr) {
	h.forwarding = true
	h.forwardAddr = addr
}

// Finalize runs the object's finalizer, if any, passing the address it
// lived at. A no-op when no finalizer was registered.
func (h *Header) Finalize(at Addr) {
	if h.Finalizer != nil {
		h.Finalizer(at)
	}
}
