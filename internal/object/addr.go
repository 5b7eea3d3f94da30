// Package object implements the minimal object-model capabilities the
// managed heap requires from its surrounding runtime: an object header
// that can be tested for and turned into a forwarding reference, a tagged
// machine word that can be tested for and rebuilt from a heap address, and
// a slice-backed activation stack exposing one root per frame. A real
// language runtime's interpreter, parser, and object model are out of
// scope; this package only carries what the collector needs to drive
// against something concrete.
package object

import "fmt"

// WordSize is the size in bytes of a single machine word. Every
// allocation size and object layout in the heap is quantized to this
// unit.
const WordSize = 8

// Addr is a word-granularity heap location: which region (Space) holds
// the word, and the word's index within that region. Region is assigned
// and reassigned by the heap as spaces swap identities during a scavenge;
// the object model stores, compares, and forwards Addr values but never
// interprets them itself.
//
// The zero Addr is the universal null reference: region 0 is never handed
// out to a live Space.
type Addr struct {
	Region uint8
	Word   uint32
}

// IsNil reports whether a is the null address.
func (a Addr) IsNil() bool {
	return a == Addr{}
}

func (a Addr) String() string {
	if a.IsNil() {
		return "<nil>"
	}
	return fmt.Sprintf("r%d:w%d", a.Region, a.Word)
}
