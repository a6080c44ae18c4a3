// Package runid generates harness run identifiers.
package runid

import (
	"sync"

	"github.com/google/uuid"
)

// A Generator hands out run identifiers.
type Generator interface {
	Generate() string
}

// UUIDv7 generates time-sortable UUIDv7 run identifiers, so runs stored side
// by side sort by start time.
//
// UUIDv7 is stateless and safe for concurrent use.
type UUIDv7 struct{}

// Generate returns a new hyphenated UUIDv7. It panics if the random source
// fails.
func (UUIDv7) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Fixed returns predetermined identifiers, for deterministic reports in
// tests.
type Fixed struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixed returns a generator yielding ids in order.
func NewFixed(ids ...string) *Fixed {
	return &Fixed{ids: ids}
}

// Generate returns the next identifier. It panics once every id has been
// handed out.
func (g *Fixed) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("runid: all fixed ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
