// Package random provides seed generation for game dice.
//
// Every game is played with a seeded roller so that its draws can be
// recorded and replayed; the seed itself comes from crypto/rand.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Source hands out game seeds. A fixed base yields a reproducible series
// (base, base+1, ...); a zero base draws every seed from crypto/rand.
type Source struct {
	fixed bool
	next  atomic.Int64
}

// NewSource creates a seed source.
func NewSource(base int64) *Source {
	s := &Source{fixed: base != 0}
	s.next.Store(base)
	return s
}

// Seed returns the next seed.
func (s *Source) Seed() (int64, error) {
	if !s.fixed {
		return NewSeed()
	}
	return s.next.Add(1) - 1, nil
}
