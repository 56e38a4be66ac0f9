package testutil

import "sync/atomic"

// TraceClock numbers the events of one scenario run on one backend.
// Each backend gets a fresh clock, so runs that agree number their events
// identically and their traces can be compared byte for byte.
type TraceClock struct {
	seq atomic.Int64
}

// NewTraceClock returns a clock whose first Next is 1.
func NewTraceClock() *TraceClock {
	return &TraceClock{}
}

// Next returns the next sequence number. It is safe for concurrent use.
func (c *TraceClock) Next() int64 {
	return c.seq.Add(1)
}
