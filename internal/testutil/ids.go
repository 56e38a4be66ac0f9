package testutil

import "fmt"

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... in order.
//
// It stands in for random build ids (see store.WithBuildIDs) so that
// golden output does not change between runs.
type SequentialIDs struct {
	prefix string
	clock  TraceClock
}

// NewSequentialIDs creates a generator. An empty prefix means "test-build".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "test-build"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id. It is safe for concurrent use.
func (g *SequentialIDs) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.clock.Next())
}
