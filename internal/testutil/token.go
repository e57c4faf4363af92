package testutil

import (
	"fmt"
	"sync"
)

// FixedTokenGenerator returns predictable attempt tokens for learning
// sessions: "<prefix>-1", "<prefix>-2", ...
//
// This keeps journal entries and outcome assertions byte-identical between
// runs. Thread-safety: Generate is safe for concurrent use.
type FixedTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedTokenGenerator creates a generator. An empty prefix uses "attempt".
func NewFixedTokenGenerator(prefix string) *FixedTokenGenerator {
	if prefix == "" {
		prefix = "attempt"
	}
	return &FixedTokenGenerator{prefix: prefix}
}

// Generate returns the next token in sequence.
func (g *FixedTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
