package dice

import (
	"errors"
	"math/rand/v2"
	"sync"
)

// Roller is the single source of randomness for the game. Intn returns a
// uniform value in [0, n).
type Roller interface {
	Intn(n int) int
}

// Roll draws one uniform face.
func Roll(r Roller) Face {
	return Face(r.Intn(FaceCount))
}

// RollN draws n uniform faces.
func RollN(r Roller, n int) []Face {
	out := make([]Face, n)
	for i := range out {
		out[i] = Roll(r)
	}
	return out
}

// RandRoller is a seeded PCG roller. The same seed always produces the same
// sequence of draws.
type RandRoller struct {
	rng *rand.Rand
}

// NewRandRoller returns a roller seeded with seed.
func NewRandRoller(seed int64) *RandRoller {
	s := uint64(seed)
	return &RandRoller{rng: rand.New(rand.NewPCG(s, s>>16|7))}
}

// Intn implements Roller.
func (r *RandRoller) Intn(n int) int {
	return r.rng.IntN(n)
}

// ErrSequenceExhausted is reported by a Sequence asked for more draws than it holds.
var ErrSequenceExhausted = errors.New("dice sequence exhausted")

// ErrDrawOutOfRange is reported when a recorded draw does not fit the requested range.
var ErrDrawOutOfRange = errors.New("recorded draw out of range")

// Sequence replays a fixed list of draws. Once exhausted, or when a draw does
// not fit the requested range, it returns 0 and records the failure in Err.
type Sequence struct {
	mu    sync.Mutex
	draws []int
	next  int
	err   error
}

// NewSequence returns a roller that yields draws in order.
func NewSequence(draws ...int) *Sequence {
	return &Sequence{draws: append([]int(nil), draws...)}
}

// FacesSequence builds a Sequence from die faces.
func FacesSequence(faces ...Face) *Sequence {
	draws := make([]int, len(faces))
	for i, f := range faces {
		draws[i] = int(f)
	}
	return NewSequence(draws...)
}

// Append adds draws to the end of the sequence.
func (s *Sequence) Append(draws ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws = append(s.draws, draws...)
}

// Intn implements Roller.
func (s *Sequence) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.draws) {
		if s.err == nil {
			s.err = ErrSequenceExhausted
		}
		return 0
	}
	v := s.draws[s.next]
	s.next++
	if v < 0 || v >= n {
		if s.err == nil {
			s.err = ErrDrawOutOfRange
		}
		return 0
	}
	return v
}

// Remaining reports how many draws have not been consumed.
func (s *Sequence) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.draws) - s.next
}

// Err returns the first failure seen while drawing, if any.
func (s *Sequence) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
