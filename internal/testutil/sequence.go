// Package testutil holds deterministic fixtures shared by package tests
// and the scenario harness.
package testutil

import (
	"fmt"
	"sync"
)

// Sequence is a thread-safe monotonic counter for tests.
//
// The first call to Next returns 1. Reset restarts the sequence so the same
// scenario can run again with identical numbers.
type Sequence struct {
	mu sync.Mutex
	n  int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the next number.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

// Current returns the last number handed out without incrementing.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset restarts the sequence at 0.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}

// StatementIDs generates deterministic statement ids "<prefix>-001",
// "<prefix>-002", ... It implements update.IDGenerator.
//
// The same scenario with a fresh StatementIDs produces byte-identical
// summaries and update logs.
type StatementIDs struct {
	prefix string
	seq    *Sequence
}

// NewStatementIDs creates a statement id generator. An empty prefix
// defaults to "test-statement".
func NewStatementIDs(prefix string) *StatementIDs {
	if prefix == "" {
		prefix = "test-statement"
	}
	return &StatementIDs{prefix: prefix, seq: NewSequence()}
}

// Generate returns the next id.
func (g *StatementIDs) Generate() string {
	return fmt.Sprintf("%s-%03d", g.prefix, g.seq.Next())
}
