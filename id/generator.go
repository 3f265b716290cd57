package id

import "sync/atomic"

// Generator hands out strictly increasing ids.
type Generator interface {
	NextID() int64
}

// Sequence is an in-process Generator starting after a given value.
// Thread-safe; callers that need gap-free ids must only call NextID when the
// id is certain to be used.
type Sequence struct {
	last atomic.Int64
}

// NewSequence creates a sequence whose first id is after+1.
func NewSequence(after int64) *Sequence {
	s := &Sequence{}
	s.last.Store(after)
	return s
}

// NextID returns the next id.
func (s *Sequence) NextID() int64 {
	return s.last.Add(1)
}

// Last returns the most recently issued id, or the starting value if none
// was issued.
func (s *Sequence) Last() int64 {
	return s.last.Load()
}
