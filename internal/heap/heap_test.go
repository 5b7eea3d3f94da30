package heap_test

import (
	"testing"

	"github.com/tusharsadhwani/zigself/internal/heap"
	"github.com/tusharsadhwani/zigself/internal/object"
)

// objWords is a one-payload-word object: header + one slot, 16 bytes.
const objWords = 16

func smallHeap(t *testing.T) *heap.Heap {
	t.Helper()
	return heap.New(heap.Config{
		EdenBytes: 32,
		FromBytes: 32,
		ToBytes:   32,
		OldBytes:  16,
		Debug:     true,
	})
}

func TestAllocateAndWritePayloadRoundTrip(t *testing.T) {
	h := smallHeap(t)
	addr := h.AllocateObject(objWords, nil)
	h.WritePayload(addr, 0, object.FromInt(42))
	if got := h.Payload(addr, 0).Int(); got != 42 {
		t.Fatalf("payload = %d, want 42", got)
	}
}

func TestScavengeKeepsRootedDropsUnreachable(t *testing.T) {
	h := smallHeap(t)

	alive := h.AllocateObject(objWords, nil)
	frame := h.Activations().Push(object.FromAddress(alive))
	defer h.Activations().Pop()

	finalized := false
	h.AllocateObject(objWords, func(object.Addr) { finalized = true })

	h.Scavenge()

	if !finalized {
		t.Fatal("unreachable object's finalizer did not run")
	}

	newAlive := h.Activations().Root(frame).Address()
	stats := h.Stats()
	if stats.From.UsedBytes == 0 {
		t.Fatal("survivor space has no live bytes after scavenge")
	}
	if stats.Eden.UsedBytes != 0 {
		t.Fatal("eden was not reset after scavenge")
	}
	if newAlive.IsNil() {
		t.Fatal("surviving root was forwarded to the nil address")
	}
}

func TestScavengeForwardsRootInPlace(t *testing.T) {
	h := smallHeap(t)

	alive := h.AllocateObject(objWords, nil)
	h.WritePayload(alive, 0, object.FromInt(7))
	frame := h.Activations().Push(object.FromAddress(alive))
	defer h.Activations().Pop()

	h.Scavenge()

	moved := h.Activations().Root(frame).Address()
	if moved == alive {
		t.Fatal("surviving object was not relocated")
	}
	if got := h.Payload(moved, 0).Int(); got != 7 {
		t.Fatalf("payload after relocation = %d, want 7", got)
	}
}

// recursiveCollectionHeap is sized so that, word-for-word, from-space
// can hold exactly two objWords objects: small enough to fill up
// quickly, big enough to make the scavenge-vs-tenure-fallback branch of
// collect_garbage deterministic by hand.
func recursiveCollectionHeap(t *testing.T) *heap.Heap {
	t.Helper()
	return heap.New(heap.Config{
		EdenBytes: objWords,
		FromBytes: 2 * objWords,
		ToBytes:   2 * objWords,
		OldBytes:  objWords,
		Debug:     true,
	})
}

// TestRecursiveCollectionScavengesWithoutTenuring covers spec scenario
// 6's ordinary case: from-space nearly full and eden full, but
// from-space is carrying garbage of its own, so its own collect_garbage
// reclaims enough room by scavenging into to-space and swapping. No
// object is tenured; the survivors simply end up in from-space's new
// memory.
func TestRecursiveCollectionScavengesWithoutTenuring(t *testing.T) {
	h := recursiveCollectionHeap(t)

	x := h.AllocateObject(objWords, nil)
	hx := h.NewHandle(object.FromAddress(x))
	h.Scavenge() // x: eden -> from

	hx.Release() // x is now unreachable garbage sitting in from-space

	y := h.AllocateObject(objWords, nil)
	hy := h.NewHandle(object.FromAddress(y))
	h.Scavenge() // y: eden -> from; from is now full (x garbage + y live)

	z := h.AllocateObject(objWords, nil)
	hz := h.NewHandle(object.FromAddress(z))
	h.Scavenge() // eden full, from has no free room: forces from's own collection

	if got := h.Stats().TenureCount; got != 0 {
		t.Fatalf("tenure count = %d, want 0 (scavenge alone reclaimed enough room)", got)
	}
	if got := h.Stats().Old.UsedBytes; got != 0 {
		t.Fatalf("old-space used bytes = %d, want 0 (nothing should have been tenured)", got)
	}
	if got := h.Stats().From.UsedBytes; got != 2*objWords {
		t.Fatalf("from-space used bytes = %d, want %d (y and z, both live)", got, 2*objWords)
	}
	if hy.Get().Address() == y {
		t.Fatal("y was not relocated by from-space's own scavenge")
	}
	if hz.Get().Address() == z {
		t.Fatal("z was not relocated by eden's scavenge into the new from-space")
	}
}

// TestRecursiveCollectionFallsBackToTenure covers spec scenario 6's
// overflow case: from-space is nearly full of objects that are all
// still live, so scavenging it into to-space reclaims nothing, and
// collect_garbage must fall back to tenuring its survivors into
// old-space to make room.
func TestRecursiveCollectionFallsBackToTenure(t *testing.T) {
	h := recursiveCollectionHeap(t)

	x := h.AllocateObject(objWords, nil)
	hx := h.NewHandle(object.FromAddress(x))
	h.Scavenge() // x: eden -> from

	y := h.AllocateObject(objWords, nil)
	hy := h.NewHandle(object.FromAddress(y))
	h.Scavenge() // y: eden -> from; from is now full, x and y both live

	z := h.AllocateObject(objWords, nil)
	hz := h.NewHandle(object.FromAddress(z))
	h.Scavenge() // eden full, from has no free room and nothing to reclaim: must tenure

	if got := h.Stats().TenureCount; got < 1 {
		t.Fatalf("tenure count = %d, want >= 1 (scavenging alone could not free from-space)", got)
	}
	if got := h.Stats().Old.UsedBytes; got == 0 {
		t.Fatal("old-space has no live bytes; x and y should have been tenured")
	}
	if hx.Get().Address() == x || hy.Get().Address() == y {
		t.Fatal("x and y were not relocated by the tenure fallback")
	}
	if hz.Get().Address() == z {
		t.Fatal("z was not relocated by eden's scavenge into the freed from-space")
	}
}

func TestWriteBarrierRecordsOldToYoungReference(t *testing.T) {
	h := smallHeap(t)

	old := h.AllocateTenured(objWords, nil)
	young := h.AllocateObject(objWords, nil)
	h.WritePayload(young, 0, object.FromInt(99))
	h.WritePayload(old, 0, object.FromAddress(young))

	if got := h.Stats().Old.RememberedLen; got != 1 {
		t.Fatalf("remembered-set length = %d, want 1", got)
	}

	h.Scavenge()

	if got := h.Stats().Old.RememberedLen; got != 1 {
		t.Fatalf("remembered-set length after scavenge = %d, want 1 (young survivor is still young)", got)
	}
	relocated := h.Payload(old, 0)
	if !relocated.IsReference() {
		t.Fatal("old object's field lost its reference across scavenge")
	}
	if got := h.Payload(relocated.Address(), 0).Int(); got != 99 {
		t.Fatalf("payload reached through old->young reference = %d, want 99", got)
	}

	h.ValidateRememberedSet()
}

// TestWriteBarrierRecordsFromToYoungReference covers the generation
// link the old->young case above doesn't: a from-space object holding a
// reference into eden. x tenures into from-space on the first scavenge;
// once there, x->y is written through the barrier while y is still in
// eden. A second scavenge collects eden alone and must still resolve
// x->y correctly, with from-space's own remembered set (not old's)
// carrying the entry.
func TestWriteBarrierRecordsFromToYoungReference(t *testing.T) {
	h := smallHeap(t)

	x := h.AllocateObject(objWords, nil)
	hx := h.NewHandle(object.FromAddress(x))
	h.Scavenge() // x: eden -> from

	y := h.AllocateObject(objWords, nil)
	h.WritePayload(y, 0, object.FromInt(42))
	h.WritePayload(hx.Get().Address(), 0, object.FromAddress(y))

	if got := h.Stats().From.RememberedLen; got != 1 {
		t.Fatalf("from-space remembered-set length = %d, want 1", got)
	}

	h.Scavenge() // eden collects; y is only reachable through x's from-space field

	if got := h.Stats().From.RememberedLen; got != 1 {
		t.Fatalf("from-space remembered-set length after scavenge = %d, want 1", got)
	}
	relocated := h.Payload(hx.Get().Address(), 0)
	if !relocated.IsReference() {
		t.Fatal("x's field lost its reference to y across the scavenge")
	}
	if got := h.Payload(relocated.Address(), 0).Int(); got != 42 {
		t.Fatalf("payload reached through x->y = %d, want 42", got)
	}

	h.ValidateRememberedSet()
}

func TestHandleTracksAcrossEvacuation(t *testing.T) {
	h := smallHeap(t)

	addr := h.AllocateObject(objWords, nil)
	handle := h.NewHandle(object.FromAddress(addr))
	defer handle.Release()

	h.Scavenge()

	if handle.Get().Address() == addr {
		t.Fatal("handle was not updated to the relocated address")
	}
}

func TestOldSpaceGrowsUnderPressure(t *testing.T) {
	h := smallHeap(t)
	before := h.Stats().Old.CapacityBytes

	for i := 0; i < 8; i++ {
		h.AllocateTenured(objWords, nil)
	}

	after := h.Stats().Old.CapacityBytes
	if after <= before {
		t.Fatalf("old-space capacity did not grow: before=%d after=%d", before, after)
	}
}

func TestEnsureSpaceInEdenForcesCollection(t *testing.T) {
	h := smallHeap(t)
	h.AllocateObject(objWords, nil) // fill eden close to capacity, unrooted

	before := h.Stats().ScavengeCount
	h.EnsureSpaceInEden(32) // eden is 32 bytes total; this cannot fit without collecting
	if got := h.Stats().ScavengeCount; got != before+1 {
		t.Fatalf("scavenge count after EnsureSpaceInEden = %d, want %d", got, before+1)
	}
}

func TestEnsureSpaceInEdenNoopWhenRoomAvailable(t *testing.T) {
	h := smallHeap(t)
	before := h.Stats().ScavengeCount
	h.EnsureSpaceInEden(objWords)
	if got := h.Stats().ScavengeCount; got != before {
		t.Fatalf("EnsureSpaceInEden scavenged with room available: count = %d, want %d", got, before)
	}
}

func TestSetActivationStackDetachStopsRooting(t *testing.T) {
	h := smallHeap(t)
	addr := h.AllocateObject(objWords, nil)
	h.Activations().Push(object.FromAddress(addr))

	h.SetActivationStack(nil)
	h.Scavenge() // must not panic with no activation stack installed

	if got := h.Stats().From.UsedBytes; got != 0 {
		t.Fatal("object survived a scavenge with no activation stack rooting it")
	}
}

func TestMarkNeedsFinalizationRunsOnUnreachable(t *testing.T) {
	h := smallHeap(t)
	addr := h.AllocateObject(objWords, nil)
	h.MarkNeedsFinalization(addr)

	h.Scavenge()
	if got := h.Stats().FinalizerRuns; got != 1 {
		t.Fatalf("finalizer runs = %d, want 1 (MarkNeedsFinalization marks it even with no callback set)", got)
	}
}

func TestMarkNeedsFinalizationRejectsAddressOutsideEden(t *testing.T) {
	h := smallHeap(t)
	old := h.AllocateTenured(objWords, nil)

	defer func() {
		if recover() == nil {
			t.Fatal("expected MarkNeedsFinalization to fault on a non-eden address")
		}
	}()
	h.MarkNeedsFinalization(old)
}

// TestCloseRunsRemainingFinalizers covers the heap-teardown half of
// finalizer-exactly-once: an object that survives every collection it
// sees never stops being reachable, so its finalizer only ever runs when
// the heap itself is closed. MarkNeedsFinalization only accepts eden
// addresses, so both objects are marked while still in eden; survivor
// is then scavenged into from-space to prove Close reaches a
// finalization entry that migrated spaces, while resident is left in
// eden untouched to prove Close reaches eden too.
func TestCloseRunsRemainingFinalizers(t *testing.T) {
	h := smallHeap(t)

	fromCalls := 0
	survivor := h.AllocateObject(objWords, func(object.Addr) { fromCalls++ })
	h.MarkNeedsFinalization(survivor)
	hs := h.NewHandle(object.FromAddress(survivor))
	h.Scavenge() // survivor: eden -> from, still marked for finalization

	edenCalls := 0
	resident := h.AllocateObject(objWords, func(object.Addr) { edenCalls++ })
	h.MarkNeedsFinalization(resident)
	hr := h.NewHandle(object.FromAddress(resident))

	before := h.Stats().FinalizerRuns
	h.Close()

	if fromCalls != 1 {
		t.Fatalf("from-resident finalizer ran %d times, want 1", fromCalls)
	}
	if edenCalls != 1 {
		t.Fatalf("eden-resident finalizer ran %d times, want 1", edenCalls)
	}
	if got := h.Stats().FinalizerRuns; got != before+2 {
		t.Fatalf("finalizer runs after Close = %d, want %d", got, before+2)
	}

	hs.Release()
	hr.Release()
}

func TestByteArrayAllocateAndSurviveScavenge(t *testing.T) {
	h := smallHeap(t)

	addr := h.AllocateBytes(8)
	copy(h.Bytes(addr, 8), []byte("zigself!"))
	frame := h.Activations().Push(object.FromAddress(addr))
	defer h.Activations().Pop()

	h.Scavenge()

	moved := h.Activations().Root(frame).Address()
	if got := string(h.Bytes(moved, 8)); got != "zigself!" {
		t.Fatalf("byte array content after scavenge = %q, want %q", got, "zigself!")
	}
}
