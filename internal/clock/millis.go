package clock

import (
	"cmp"
	"sync/atomic"
)

// Millis is a thread-safe millisecond count in [0, 65535].
//
// Get and Set are single atomic operations; a Set is visible to every
// subsequent Get on any goroutine. No read-modify-write is exposed: callers
// that need to avoid overlapping writers coordinate through the running
// flag instead.
//
// Share a Millis by pointer. Two values read one after the other are not a
// consistent snapshot of each other.
type Millis struct {
	v atomic.Uint32
}

// NewMillis creates a Millis holding ms.
func NewMillis(ms uint16) *Millis {
	m := &Millis{}
	m.v.Store(uint32(ms))
	return m
}

// Get returns the current value.
func (m *Millis) Get() uint16 {
	return uint16(m.v.Load())
}

// Set stores ms.
func (m *Millis) Set(ms uint16) {
	m.v.Store(uint32(ms))
}

// Compare compares the current values of m and o, returning -1, 0 or +1.
func (m *Millis) Compare(o *Millis) int {
	return cmp.Compare(m.Get(), o.Get())
}
