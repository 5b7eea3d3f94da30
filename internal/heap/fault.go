package heap

import "fmt"

// FaultCode identifies a class of fatal heap failure. The heap is a trust
// boundary: every fault below is a programming bug in a caller or
// collaborator, never a condition the heap itself can recover from.
type FaultCode int

const (
	// FaultInvalidSize reports an allocation size that is zero or not a
	// multiple of the machine word.
	FaultInvalidSize FaultCode = iota + 1
	// FaultUnsatisfiableAllocation reports a live set, after collection,
	// still too large for its target space (or a terminal space that
	// could not grow enough to hold it).
	FaultUnsatisfiableAllocation
	// FaultMissingSetEntry reports a remove on an address absent from an
	// auxiliary set (remembered, finalization, or tracked).
	FaultMissingSetEntry
	// FaultStaleRememberedSet reports a remembered-set entry whose
	// payload, on rescan, held no reference into the space it names.
	FaultStaleRememberedSet
	// FaultBarrierPrecondition reports a write-barrier call whose
	// referrer was not a reference, or was not found in any known space.
	FaultBarrierPrecondition
	// FaultInvalidAddress reports dereferencing an address that does not
	// begin a live object, or does not belong to any known space.
	FaultInvalidAddress
)

func (c FaultCode) String() string {
	switch c {
	case FaultInvalidSize:
		return "invalid allocation size"
	case FaultUnsatisfiableAllocation:
		return "unsatisfiable allocation"
	case FaultMissingSetEntry:
		return "missing set entry"
	case FaultStaleRememberedSet:
		return "stale remembered-set entry"
	case FaultBarrierPrecondition:
		return "barrier precondition violated"
	case FaultInvalidAddress:
		return "invalid address"
	default:
		return fmt.Sprintf("fault(%d)", int(c))
	}
}

// Fault is a fatal, unrecoverable heap invariant violation. It is always
// raised via panic; a harness may recover one to report it, but the heap
// itself never continues past one.
type Fault struct {
	Code  FaultCode
	Space string
	Msg   string
}

func (f *Fault) Error() string {
	if f.Space != "" {
		return fmt.Sprintf("heap fault [%s] in %s: %s", f.Code, f.Space, f.Msg)
	}
	return fmt.Sprintf("heap fault [%s]: %s", f.Code, f.Msg)
}

func fatal(code FaultCode, space, format string, args ...any) {
	panic(&Fault{Code: code, Space: space, Msg: fmt.Sprintf(format, args...)})
}
