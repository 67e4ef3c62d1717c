// Package testutil provides deterministic request ids for tests.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... in order.
//
// Unlike the UUIDv7 default, SequentialIDs can be reset so the same test
// can replay with identical request ids.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialIDs creates a generator starting at 0. An empty prefix
// becomes "req".
//
// The first call to Generate() returns "<prefix>-1".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "req"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate increments the sequence and returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Current returns how many ids have been generated since the last reset.
func (g *SequentialIDs) Current() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence. The next Generate() returns "<prefix>-1".
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

// FixedID returns the same id every time.
//
// Thread-safety: FixedID is stateless and safe for concurrent use.
type FixedID struct {
	id string
}

// NewFixedID creates a fixed generator. If id is empty, Generate()
// returns "test-request-default".
func NewFixedID(id string) *FixedID {
	if id == "" {
		id = "test-request-default"
	}
	return &FixedID{id: id}
}

// Generate returns the fixed id.
func (g *FixedID) Generate() string {
	return g.id
}
