package engine

// Sequencer hands out globally increasing sequence numbers. They identify
// trades, order the book's arrival tiebreak, and serve as the nonce
// component of order references. The engine increments it under its
// operation lock, so uniqueness holds without further guarding.
type Sequencer struct {
	next uint64
}

func (s *Sequencer) Next() uint64 {
	s.next++
	return s.next
}

// Current returns the last issued sequence without advancing.
func (s *Sequencer) Current() uint64 { return s.next }
