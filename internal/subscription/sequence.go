package subscription

import "sync/atomic"

// SequenceNumberGenerator allocates strictly increasing 32-bit sequence
// numbers for NotificationMessages (spec.md C1). Sequence number 0 is
// never allocated; the counter wraps from MaxUint32 back to 1.
type SequenceNumberGenerator struct {
	next atomic.Uint32
}

// NewSequenceNumberGenerator creates a generator whose first allocation is 1.
func NewSequenceNumberGenerator() *SequenceNumberGenerator {
	g := &SequenceNumberGenerator{}
	g.next.Store(1)
	return g
}

// Next allocates and returns the next sequence number.
func (g *SequenceNumberGenerator) Next() uint32 {
	for {
		cur := g.next.Load()
		nxt := cur + 1
		if nxt == 0 {
			nxt = 1
		}
		if g.next.CompareAndSwap(cur, nxt) {
			return cur
		}
	}
}

// Future previews the sequence number the next call to Next will return,
// without consuming it. Used as the initial "availableSequenceNumbers"
// indicator before any message has been sent.
func (g *SequenceNumberGenerator) Future() uint32 {
	return g.next.Load()
}
