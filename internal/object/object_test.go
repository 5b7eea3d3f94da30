package object_test

import (
	"testing"

	"github.com/tusharsadhwani/zigself/internal/object"
)

func TestWordRoundTrip(t *testing.T) {
	addr := object.Addr{Region: 2, Word: 7}
	w := object.FromAddress(addr)
	if !w.IsReference() {
		t.Fatalf("expected reference word")
	}
	if got := w.Address(); got != addr {
		t.Fatalf("address round-trip: got %v want %v", got, addr)
	}

	lit := object.FromInt(42)
	if lit.IsReference() {
		t.Fatalf("integer literal should not be a reference")
	}
	if got := lit.Int(); got != 42 {
		t.Fatalf("int round-trip: got %d want 42", got)
	}
}

func TestWordScrubIsDetectable(t *testing.T) {
	s := object.Scrub()
	if !s.IsScrub() {
		t.Fatalf("expected scrub word")
	}
	if s.IsReference() {
		t.Fatalf("scrub word must not look like a live reference")
	}
}

func TestAddrNil(t *testing.T) {
	var a object.Addr
	if !a.IsNil() {
		t.Fatalf("zero address should be nil")
	}
	if (object.Addr{Region: 1}).IsNil() {
		t.Fatalf("region-1 address should not be nil")
	}
}

func TestHeaderForwarding(t *testing.T) {
	h := object.NewHeader(3, nil)
	if h.IsForwarding() {
		t.Fatalf("fresh header should not be forwarding")
	}
	dest := object.Addr{Region: 3, Word: 10}
	h.SetForwardingAddress(dest)
	if !h.IsForwarding() {
		t.Fatalf("expected forwarding after SetForwardingAddress")
	}
	if got := h.ForwardingAddress(); got != dest {
		t.Fatalf("forwarding address: got %v want %v", got, dest)
	}
	// Idempotent: forwarding the same object again returns the same address.
	h.SetForwardingAddress(dest)
	if got := h.ForwardingAddress(); got != dest {
		t.Fatalf("forwarding address not idempotent: got %v want %v", got, dest)
	}
}

func TestHeaderFinalizeRunsOnce(t *testing.T) {
	calls := 0
	var seenAt object.Addr
	h := object.NewHeader(1, func(at object.Addr) {
		calls++
		seenAt = at
	})
	at := object.Addr{Region: 1, Word: 4}
	h.Finalize(at)
	if calls != 1 {
		t.Fatalf("expected exactly one finalizer call, got %d", calls)
	}
	if seenAt != at {
		t.Fatalf("finalizer address: got %v want %v", seenAt, at)
	}
}

func TestActivationStackRootReadWrite(t *testing.T) {
	stack := object.NewActivationStack()
	idx := stack.Push(object.FromInt(1))
	if stack.Len() != 1 {
		t.Fatalf("expected 1 activation, got %d", stack.Len())
	}
	addr := object.Addr{Region: 1, Word: 2}
	stack.SetRoot(idx, object.FromAddress(addr))
	if got := stack.Root(idx).Address(); got != addr {
		t.Fatalf("root round-trip: got %v want %v", got, addr)
	}
	stack.Pop()
	if stack.Len() != 0 {
		t.Fatalf("expected 0 activations after pop, got %d", stack.Len())
	}
}
