package main

import (
	"fmt"
	"math/rand"

	"github.com/tusharsadhwani/zigself/internal/heap"
	"github.com/tusharsadhwani/zigself/internal/object"
)

const smallObjectBytes = 16 // header + 1 payload word

// scenario is one synthetic allocation pattern run against a fresh heap.
// Each scenario is self-contained so a batch of them can run concurrently,
// one heap per scenario, without sharing any mutable state.
type scenario struct {
	name     string
	describe string
	run      func(h *heap.Heap, n int, seed int64)
}

var scenarios = []scenario{
	{
		name:     "churn",
		describe: "allocate and immediately drop short-lived objects; stresses eden/scavenge",
		run:      runChurn,
	},
	{
		name:     "chain",
		describe: "grow one long-lived linked list rooted on the activation stack; stresses tenuring",
		run:      runChain,
	},
	{
		name:     "mixed",
		describe: "random blend of short-lived garbage and rooted survivors",
		run:      runMixed,
	},
}

func findScenario(name string) (scenario, error) {
	for _, s := range scenarios {
		if s.name == name {
			return s, nil
		}
	}
	return scenario{}, fmt.Errorf("unknown scenario %q", name)
}

// runChurn allocates n objects that are never rooted, so every one of
// them is garbage by the time the next scavenge runs.
func runChurn(h *heap.Heap, n int, seed int64) {
	for i := 0; i < n; i++ {
		addr := h.AllocateObject(smallObjectBytes, nil)
		h.WritePayload(addr, 0, object.FromInt(int64(i)))
	}
}

// runChain builds a singly-linked list of n nodes, each holding the
// previous node as its one payload word, rooted for the whole run. Every
// node must survive every scavenge until the run ends, eventually tenuring.
func runChain(h *heap.Heap, n int, seed int64) {
	head := object.Nothing()
	frame := h.Activations().Push(head)
	defer h.Activations().Pop()

	for i := 0; i < n; i++ {
		node := h.AllocateObject(smallObjectBytes, nil)
		// The allocation may have scavenged and moved the previous node;
		// the frame's root holds its current address.
		head = h.Activations().Root(frame)
		h.WritePayload(node, 0, head)
		head = object.FromAddress(node)
		h.Activations().SetRoot(frame, head)
	}
}

// runMixed interleaves churn-style garbage with a handful of rooted
// survivors chosen at random, approximating a real object graph's blend
// of transient and durable allocation.
func runMixed(h *heap.Heap, n int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	survivors := make([]int, 0, 8)

	for i := 0; i < n; i++ {
		addr := h.AllocateObject(smallObjectBytes, nil)
		h.WritePayload(addr, 0, object.FromInt(int64(i)))

		if rng.Intn(20) == 0 && len(survivors) < 8 {
			frame := h.Activations().Push(object.FromAddress(addr))
			survivors = append(survivors, frame)
		}
	}

	for range survivors {
		h.Activations().Pop()
	}
}
