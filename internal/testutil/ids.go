// Package testutil provides deterministic stand-ins for the sources of
// nondeterminism in a check run.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates run IDs "<prefix>-0001", "<prefix>-0002", ...
//
// Replaying the same scenario with a fresh SequentialIDs yields the same
// run IDs, so stored runs can be compared byte for byte.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialIDs returns a generator whose first ID ends in 0001. An
// empty prefix becomes "run".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq)
}

// Issued returns how many IDs have been generated since the last Reset.
func (g *SequentialIDs) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence, so the next ID ends in 0001 again.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
