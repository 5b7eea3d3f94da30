package object

import "fmt"

// Kind identifies what a Word currently holds.
type Kind uint8

const (
	// KindNothing is the zero value: an empty slot, no literal, no reference.
	KindNothing Kind = iota
	// KindInt is an inline signed integer literal.
	KindInt
	// KindBool is an inline boolean literal.
	KindBool
	// KindRef is a heap reference.
	KindRef
	// KindScrub marks memory filled with the debug scrub pattern; reading
	// one back means something read uninitialized heap memory.
	KindScrub
)

func (k Kind) String() string {
	switch k {
	case KindNothing:
		return "nothing"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindRef:
		return "ref"
	case KindScrub:
		return "scrub"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// scrubPattern is the debug-build fill pattern for uninitialized words,
// mirroring the fixed 0xAB scrub byte used for uninitialized memory.
const scrubPattern = int64(-0x5454545454545455) // 0xABABABABABABABAB as int64

// Word is a tagged machine word: the value tag capability the collector
// needs. It either encodes a heap reference or an inline literal that
// carries no address and therefore needs no tracing.
type Word struct {
	kind Kind
	addr Addr
	i    int64
	b    bool
}

// Nothing returns the empty word.
func Nothing() Word { return Word{kind: KindNothing} }

// FromAddress rebuilds a reference word from a heap address.
func FromAddress(a Addr) Word { return Word{kind: KindRef, addr: a} }

// FromInt returns an inline integer literal word.
func FromInt(n int64) Word { return Word{kind: KindInt, i: n} }

// FromBool returns an inline boolean literal word.
func FromBool(b bool) Word { return Word{kind: KindBool, b: b} }

// Scrub returns the fixed debug fill pattern used for freshly allocated,
// not-yet-written payload words.
func Scrub() Word { return Word{kind: KindScrub, i: scrubPattern} }

// IsReference tests whether this word encodes a heap reference.
func (w Word) IsReference() bool { return w.kind == KindRef }

// IsScrub reports whether this word still holds the debug scrub pattern,
// meaning nothing has written through this slot since allocation.
func (w Word) IsScrub() bool { return w.kind == KindScrub }

// Address extracts the heap address from a reference word. Calling this
// on a non-reference word returns the null address.
func (w Word) Address() Addr {
	if w.kind != KindRef {
		return Addr{}
	}
	return w.addr
}

// Int returns the inline integer payload, or 0 if this is not an integer.
func (w Word) Int() int64 {
	if w.kind != KindInt {
		return 0
	}
	return w.i
}

// Bool returns the inline boolean payload, or false if this is not a bool.
func (w Word) Bool() bool { return w.b }

func (w Word) String() string {
	switch w.kind {
	case KindNothing:
		return "nothing"
	case KindInt:
		return fmt.Sprintf("%d", w.i)
	case KindBool:
		return fmt.Sprintf("%t", w.b)
	case KindRef:
		return fmt.Sprintf("->%s", w.addr)
	case KindScrub:
		return "<scrub>"
	default:
		return "<invalid>"
	}
}
