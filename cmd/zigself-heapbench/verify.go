package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tusharsadhwani/zigself/internal/heap"
	"github.com/tusharsadhwani/zigself/internal/object"
)

// verifyCmd runs the heap through a fixed checklist of end-to-end
// scenarios, each exercising one externally observable collector
// behavior rather than an internal implementation detail.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the heap through a checklist of end-to-end collection scenarios",
	RunE:  verifyExecution,
}

type verifyCheck struct {
	name string
	run  func() error
}

var verifyChecks = []verifyCheck{
	{"simple allocation", checkSimpleAllocation},
	{"fill eden with no roots", checkFillEdenNoRoots},
	{"tenure with cross-object reference", checkTenureWithCrossReference},
	{"remembered-set preservation (old-space holder)", checkRememberedSetPreservationOldSpace},
	{"remembered-set preservation (from-space holder)", checkRememberedSetPreservationFromSpace},
	{"finalizer fires exactly once", checkFinalizerFires},
	{"recursive collection falls back to from-space, not old", checkRecursiveCollection},
}

func verifyExecution(cmd *cobra.Command, args []string) error {
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed, color.Bold)

	failures := 0
	for _, c := range verifyChecks {
		if err := c.run(); err != nil {
			fail.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", c.name, err)
			failures++
			continue
		}
		pass.Fprintf(cmd.OutOrStdout(), "PASS %s\n", c.name)
	}
	if failures > 0 {
		return fmt.Errorf("%d/%d checks failed", failures, len(verifyChecks))
	}
	return nil
}

func newVerifyHeap() *heap.Heap {
	return heap.New(heap.Config{
		EdenBytes: 256,
		FromBytes: 512,
		ToBytes:   512,
		OldBytes:  256,
		Debug:     true,
	})
}

func checkSimpleAllocation() error {
	h := newVerifyHeap()
	f0 := h.Stats().Eden.FreeBytes
	h.AllocateObject(smallObjectBytes, nil)
	f1 := h.Stats().Eden.FreeBytes
	if f0-f1 != smallObjectBytes {
		return fmt.Errorf("eden free dropped by %d, want %d", f0-f1, smallObjectBytes)
	}
	return nil
}

func checkFillEdenNoRoots() error {
	h := newVerifyHeap()
	f0 := h.Stats().Eden.FreeBytes
	for h.Stats().Eden.FreeBytes >= object.WordSize {
		h.AllocateObject(object.WordSize, nil)
	}
	h.AllocateObject(smallObjectBytes, nil)
	if got := h.Stats().Eden.FreeBytes; got != f0-smallObjectBytes {
		return fmt.Errorf("eden free after refill = %d, want %d", got, f0-smallObjectBytes)
	}
	if got := h.Stats().From.UsedBytes; got != 0 {
		return fmt.Errorf("from-space used = %d, want 0 (nothing was rooted)", got)
	}
	return nil
}

func checkTenureWithCrossReference() error {
	h := newVerifyHeap()

	a := h.AllocateObject(smallObjectBytes, nil)
	h.WritePayload(a, 0, object.FromInt(17))

	b := h.AllocateObject(smallObjectBytes, nil)
	h.WritePayload(b, 0, object.FromAddress(a))
	c := h.AllocateObject(smallObjectBytes, nil)
	h.WritePayload(c, 0, object.FromAddress(a))

	frameB := h.Activations().Push(object.FromAddress(b))
	frameC := h.Activations().Push(object.FromAddress(c))
	defer h.Activations().Pop()
	defer h.Activations().Pop()

	h.Scavenge()

	newB := h.Activations().Root(frameB).Address()
	newC := h.Activations().Root(frameC).Address()
	aThroughB := h.Payload(newB, 0).Address()
	aThroughC := h.Payload(newC, 0).Address()
	if aThroughB != aThroughC {
		return fmt.Errorf("two objects forwarding the same referent disagree: %s vs %s", aThroughB, aThroughC)
	}
	if got := h.Payload(aThroughB, 0).Int(); got != 17 {
		return fmt.Errorf("shared referent's payload = %d, want 17", got)
	}
	return nil
}

// checkRememberedSetPreservationOldSpace exercises the barrier at its
// most familiar scope: an object already in old-space referring to a
// young object. X's field survives the scavenge purely because the
// write barrier recorded the reference when it was written, not because
// anything rescans old-space's live objects on every collection.
func checkRememberedSetPreservationOldSpace() error {
	h := newVerifyHeap()

	x := h.AllocateTenured(smallObjectBytes, nil)
	y := h.AllocateObject(smallObjectBytes, nil)
	h.WritePayload(y, 0, object.FromInt(99))
	h.WritePayload(x, 0, object.FromAddress(y))

	if got := h.Stats().Old.RememberedLen; got != 1 {
		return fmt.Errorf("remembered-set length before scavenge = %d, want 1", got)
	}

	h.Scavenge()

	relocated := h.Payload(x, 0)
	if !relocated.IsReference() {
		return fmt.Errorf("X lost its reference to Y across the scavenge")
	}
	if got := h.Payload(relocated.Address(), 0).Int(); got != 99 {
		return fmt.Errorf("value reached through X->Y = %d, want 99", got)
	}
	if got := h.Stats().Old.RememberedLen; got != 1 {
		return fmt.Errorf("remembered-set length after scavenge = %d, want 1", got)
	}
	h.ValidateRememberedSet()
	return nil
}

// checkRememberedSetPreservationFromSpace exercises the generation link
// one step younger: X tenures into from-space via an ordinary eden
// collection (not AllocateTenured, which would sidestep the scenario
// entirely), then X->Y is written through the barrier while Y is still
// in eden. A second scavenge collects eden alone; from-space's own
// remembered set, not old's, is what keeps X->Y resolvable.
func checkRememberedSetPreservationFromSpace() error {
	h := newVerifyHeap()

	x := h.AllocateObject(smallObjectBytes, nil)
	hx := h.NewHandle(object.FromAddress(x))
	h.Scavenge() // x: eden -> from

	y := h.AllocateObject(smallObjectBytes, nil)
	h.WritePayload(y, 0, object.FromInt(77))
	h.WritePayload(hx.Get().Address(), 0, object.FromAddress(y))

	if got := h.Stats().From.RememberedLen; got != 1 {
		return fmt.Errorf("from-space remembered-set length before scavenge = %d, want 1", got)
	}

	h.Scavenge() // eden collects alone; y is only reachable through x's from-space field

	if got := h.Stats().From.RememberedLen; got != 1 {
		return fmt.Errorf("from-space remembered-set length after scavenge = %d, want 1", got)
	}
	relocated := h.Payload(hx.Get().Address(), 0)
	if !relocated.IsReference() {
		return fmt.Errorf("X lost its reference to Y across the scavenge")
	}
	if got := h.Payload(relocated.Address(), 0).Int(); got != 77 {
		return fmt.Errorf("value reached through X->Y = %d, want 77", got)
	}
	h.ValidateRememberedSet()
	return nil
}

func checkFinalizerFires() error {
	h := newVerifyHeap()
	calls := 0
	h.AllocateObject(smallObjectBytes, func(object.Addr) { calls++ })
	h.Scavenge()
	if calls != 1 {
		return fmt.Errorf("finalizer ran %d times, want 1", calls)
	}
	return nil
}

// checkRecursiveCollection covers the scenario where from-space is
// nearly full and eden is full too, but from-space is carrying garbage
// of its own: from-space's own collect_garbage scavenges into to-space
// and swaps, which alone frees enough room. The surviving roots end up
// in from-space's new memory, not old-space; nothing gets tenured.
func checkRecursiveCollection() error {
	h := heap.New(heap.Config{
		EdenBytes: smallObjectBytes,
		FromBytes: 2 * smallObjectBytes,
		ToBytes:   2 * smallObjectBytes,
		OldBytes:  smallObjectBytes,
		Debug:     true,
	})

	x := h.AllocateObject(smallObjectBytes, nil)
	hx := h.NewHandle(object.FromAddress(x))
	h.Scavenge() // x: eden -> from

	hx.Release() // x is now unreachable garbage sitting in from-space

	y := h.AllocateObject(smallObjectBytes, nil)
	h.WritePayload(y, 0, object.FromInt(5))
	hy := h.NewHandle(object.FromAddress(y))
	h.Scavenge() // y: eden -> from; from is now full (x garbage + y live)

	z := h.AllocateObject(smallObjectBytes, nil)
	hz := h.NewHandle(object.FromAddress(z))
	h.Scavenge() // eden full, from has no free room: forces from's own collection

	if got := h.Stats().TenureCount; got != 0 {
		return fmt.Errorf("tenure count = %d, want 0 (scavenge alone reclaimed enough room)", got)
	}
	if got := h.Stats().Old.UsedBytes; got != 0 {
		return fmt.Errorf("old-space used bytes = %d, want 0", got)
	}
	if got := h.Stats().From.UsedBytes; got != 2*smallObjectBytes {
		return fmt.Errorf("from-space used bytes = %d, want %d", got, 2*smallObjectBytes)
	}
	if hy.Get().Address() == y {
		return fmt.Errorf("y was not relocated by from-space's own scavenge")
	}
	if hz.Get().Address() == z {
		return fmt.Errorf("z was not relocated by eden's scavenge into the new from-space")
	}
	if got := h.Payload(hy.Get().Address(), 0).Int(); got != 5 {
		return fmt.Errorf("y's payload after relocation = %d, want 5", got)
	}
	return nil
}
