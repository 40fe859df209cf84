// Package window tracks how much of the engine's fixed context is occupied
// by the active sequence.
package window

import "fmt"

// Positions reports the highest occupied position of the active sequence,
// or -1 when the sequence is empty.
type Positions interface {
	SeqPosMax() int
}

// Tracker derives usage from the engine's own bookkeeping; it never counts
// tokens itself.
type Tracker struct {
	pos      Positions
	capacity int
}

// New returns a tracker over pos with a fixed capacity.
func New(pos Positions, capacity int) *Tracker {
	return &Tracker{pos: pos, capacity: capacity}
}

// Used is the number of occupied positions.
func (t *Tracker) Used() int {
	return t.pos.SeqPosMax() + 1
}

// Capacity is the fixed number of positions available.
func (t *Tracker) Capacity() int {
	return t.capacity
}

// IsEmpty reports whether nothing has been decoded into the sequence yet.
func (t *Tracker) IsEmpty() bool {
	return t.pos.SeqPosMax() == -1
}

// WouldOverflow reports whether decoding a batch of n tokens would exceed
// the capacity. It must be consulted before every decode.
func (t *Tracker) WouldOverflow(n int) bool {
	return t.Used()+n > t.capacity
}

// Remaining is the number of free positions.
func (t *Tracker) Remaining() int {
	return max(t.capacity-t.Used(), 0)
}

func (t *Tracker) String() string {
	return fmt.Sprintf("%d/%d", t.Used(), t.capacity)
}
