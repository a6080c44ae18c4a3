package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fifoverify/internal/agent"
	"github.com/roach88/fifoverify/internal/scoreboard"
	"github.com/roach88/fifoverify/internal/sim"
)

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	assert.NoError(t, s.verifyPragma(ctx, "foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma(ctx, "busy_timeout", "5000"))
}

func TestClose_Idempotent(t *testing.T) {
	s, err := Open(Memory)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.NoError(t, (&Store{}).Close())
}

func TestWriteRun_Duplicate(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteRun(context.Background(), Run{ID: "run-1", Device: "x", Config: "{}"})
	assert.Error(t, err)
}

func TestWriteSamples_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteSamples(context.Background(), "no-such-run", "a", 0, []agent.Sample{
		sample(agent.DomainWrite, 1, false, false),
	})
	assert.Error(t, err, "foreign key")

	n, err := s.SampleCount(context.Background(), "no-such-run", "a")
	require.NoError(t, err)
	assert.Zero(t, n, "transaction rolled back")
}

func TestBackpressureViolations(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	unknownFlag := sample(agent.DomainWrite, 4, true, false)
	unknownFlag.Flag = sim.Unknown(1)
	inReset := sample(agent.DomainWrite, 5, true, true)
	inReset.InReset = true

	require.NoError(t, s.WriteSamples(ctx, "run-1", "a", 0, []agent.Sample{
		sample(agent.DomainWrite, 1, true, false),
		sample(agent.DomainWrite, 2, true, true), // write into full
		sample(agent.DomainWrite, 3, false, true),
		unknownFlag, // write with full unknown
		inReset,
		sample(agent.DomainRead, 1, true, true), // read from empty
		sample(agent.DomainRead, 2, true, false),
	}))
	require.NoError(t, s.WriteSamples(ctx, "run-1", "b", 0, []agent.Sample{
		sample(agent.DomainWrite, 1, true, true),
	}))

	n, err := s.BackpressureViolations(ctx, "run-1", "a", agent.DomainWrite)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.BackpressureViolations(ctx, "run-1", "a", agent.DomainRead)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.FlagCycles(ctx, "run-1", "a", agent.DomainWrite)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "edges 2 and 3; unknown and in-reset edges excluded")

	n, err = s.SampleCount(ctx, "run-1", "a")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestWriteSamples_Empty(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.WriteSamples(context.Background(), "run-1", "a", 0, nil))
}

func TestWriteSamples_WideData(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	smp := sample(agent.DomainWrite, 1, true, false)
	smp.Data = sim.Known(^uint64(0))
	require.NoError(t, s.WriteSamples(ctx, "run-1", "a", 0, []agent.Sample{smp}))

	var data int64
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT data FROM samples").Scan(&data))
	assert.Equal(t, ^uint64(0), uint64(data))
}

func TestVerdicts_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mismatch := scoreboard.Compare(scoreboard.Words([]uint64{1, 2}), scoreboard.Words([]uint64{1, 3}), 8)
	require.NoError(t, s.WriteVerdict(ctx, "run-1", "second", mismatch))
	require.NoError(t, s.WriteVerdict(ctx, "run-1", "first", scoreboard.Passed()))

	got, err := s.Verdicts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []VerdictRow{
		{Scenario: "second", Verdict: mismatch},
		{Scenario: "first", Verdict: scoreboard.Passed()},
	}, got)

	assert.Error(t, s.WriteVerdict(ctx, "run-1", "first", scoreboard.Passed()), "one verdict per scenario")

	none, err := s.Verdicts(ctx, "other")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
