package testutil

import (
	"fmt"
	"sync"
)

// SeqTokenGenerator generates predictable numbered tokens.
//
// Each ledger operation consumes two tokens (op token, then event id), so
// with the default prefix the first operation gets "tok-0001"/"tok-0002".
// Unlike ledger.FixedGenerator it never exhausts, which suits scenario
// tests that do not want to count operations up front.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SeqTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqTokenGenerator creates a generator with the given prefix.
// An empty prefix defaults to "tok".
func NewSeqTokenGenerator(prefix string) *SeqTokenGenerator {
	if prefix == "" {
		prefix = "tok"
	}
	return &SeqTokenGenerator{prefix: prefix}
}

// Generate returns the next numbered token.
func (g *SeqTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
