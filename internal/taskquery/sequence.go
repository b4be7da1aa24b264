package taskquery

import "sync/atomic"

// Sequence hands out increasing tokens for list reloads so a response that
// arrives after a newer request was issued can be dropped.
type Sequence struct {
	last atomic.Uint64
}

func (s *Sequence) Begin() uint64 {
	return s.last.Add(1)
}

// Latest reports whether token belongs to the most recently issued request.
func (s *Sequence) Latest(token uint64) bool {
	return s.last.Load() == token
}
