package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fifoverify/internal/agent"
	"github.com/roach88/fifoverify/internal/sim"
)

// createTestStore creates a new in-memory store holding one run, "run-1".
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Memory)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.WriteRun(context.Background(), Run{ID: "run-1", Device: "afifo(depth=16)", Config: "{}"}))
	return s
}

// sample builds a sample outside reset.
func sample(domain string, edge int, req, flag bool) agent.Sample {
	return agent.Sample{
		Domain: domain,
		Edge:   edge,
		At:     sim.Time(edge) * 7 * sim.Nanosecond,
		Req:    sim.Bool(req),
		Flag:   sim.Bool(flag),
		Data:   sim.Known(uint64(edge)),
	}
}
