package heap

import (
	"encoding/json"
	"io"

	"github.com/tusharsadhwani/zigself/internal/object"
)

// EventKind identifies the kind of heap event being traced.
type EventKind string

const (
	EventAlloc         EventKind = "alloc"
	EventCollectStart  EventKind = "collect_start"
	EventCollectEnd    EventKind = "collect_end"
	EventScavengeSwap  EventKind = "scavenge_swap"
	EventTenure        EventKind = "tenure"
	EventFinalize      EventKind = "finalize"
	EventSpaceGrow     EventKind = "space_grow"
	EventTrackedHandle EventKind = "tracked_handle"
)

// Event is one point-in-time occurrence inside the heap, emitted to a
// Tracer for offline analysis.
type Event struct {
	Kind    EventKind   `json:"kind"`
	Space   string      `json:"space"`
	Address object.Addr `json:"address,omitzero"`
	Bytes   uint32      `json:"bytes,omitempty"`
}

// Tracer receives heap events. The zero-cost default is NoopTracer; a
// JSONTracer writes one JSON object per line for offline analysis.
type Tracer interface {
	Trace(Event)
}

// NoopTracer discards every event.
type NoopTracer struct{}

// Trace implements Tracer.
func (NoopTracer) Trace(Event) {}

// JSONTracer writes each Event as one line of JSON.
type JSONTracer struct {
	enc *json.Encoder
}

// NewJSONTracer returns a Tracer that writes newline-delimited JSON to w.
func NewJSONTracer(w io.Writer) *JSONTracer {
	return &JSONTracer{enc: json.NewEncoder(w)}
}

// Trace implements Tracer. Encoding errors are swallowed: tracing must
// never be able to fail a collection.
func (t *JSONTracer) Trace(e Event) {
	_ = t.enc.Encode(e)
}
