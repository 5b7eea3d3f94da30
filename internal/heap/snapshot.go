package heap

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is a serializable point-in-time summary of a heap, suitable
// for a harness to log between benchmark scenarios or diff across runs.
// It captures occupancy and counters, not raw object content: the heap
// itself is never the unit of transfer between processes.
type Snapshot struct {
	Config Config `msgpack:"config"`
	Stats  Stats  `msgpack:"stats"`
}

// Snapshot captures the heap's current Config and Stats.
func (h *Heap) Snapshot() Snapshot {
	return Snapshot{Config: h.cfg, Stats: h.Stats()}
}

// WriteSnapshot msgpack-encodes a Snapshot to w.
func WriteSnapshot(w io.Writer, snap Snapshot) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode heap snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a single msgpack-encoded Snapshot from r.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode heap snapshot: %w", err)
	}
	return snap, nil
}
