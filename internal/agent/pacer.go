package agent

import (
	"fmt"
	"math/rand"
)

// A Pacer decides, on every edge an actor could make progress, whether the
// actor idles for that cycle instead.
type Pacer interface {
	Idle() bool
}

// NoPacing never idles.
type NoPacing struct{}

// Idle implements Pacer.
func (NoPacing) Idle() bool { return false }

// RandomPacer idles with a fixed probability, drawn from its own seeded
// source so two runs with the same seed idle on the same edges.
type RandomPacer struct {
	rng  *rand.Rand
	prob float64
}

// NewRandomPacer returns a pacer idling with probability prob in [0, 1).
func NewRandomPacer(seed int64, prob float64) (*RandomPacer, error) {
	if prob < 0 || prob >= 1 {
		return nil, fmt.Errorf("pacing probability %v not in [0, 1)", prob)
	}
	return &RandomPacer{rng: rand.New(rand.NewSource(seed)), prob: prob}, nil
}

// Idle implements Pacer.
func (r *RandomPacer) Idle() bool {
	if r.prob == 0 {
		return false
	}
	return r.rng.Float64() < r.prob
}

// SchedulePacer replays a fixed idle pattern, repeating it when exhausted.
type SchedulePacer struct {
	pattern []bool
	next    int
}

// NewSchedulePacer returns a pacer idling where pattern is true.
func NewSchedulePacer(pattern ...bool) *SchedulePacer {
	return &SchedulePacer{pattern: pattern}
}

// Idle implements Pacer.
func (s *SchedulePacer) Idle() bool {
	if len(s.pattern) == 0 {
		return false
	}
	idle := s.pattern[s.next%len(s.pattern)]
	s.next++
	return idle
}
