package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fifoverify/internal/afifo"
	"github.com/roach88/fifoverify/internal/dut"
	"github.com/roach88/fifoverify/internal/sim"
)

type bench struct {
	k   *sim.Kernel
	pin *dut.Pins
	mon *Monitor
	w   *Writer
	r   *Reader
	rst *ResetSequencer
}

func newBench(t *testing.T, depth, stallLimit int, opts ...afifo.Option) *bench {
	t.Helper()
	k := sim.NewKernel()
	pins, err := dut.NewPins(k, 8)
	require.NoError(t, err)
	mon := NewMonitor(pins)
	f, err := afifo.New(depth, opts...)
	require.NoError(t, err)
	require.NoError(t, f.Mount(k, pins))

	w, err := NewWriter(pins, stallLimit)
	require.NoError(t, err)
	r, err := NewReader(pins, stallLimit)
	require.NoError(t, err)
	rst, err := NewResetSequencer(pins, 4*13*sim.Nanosecond, w, r)
	require.NoError(t, err)

	for _, c := range []struct {
		sig    *sim.Signal
		period sim.Time
	}{{pins.ClkW, 13 * sim.Nanosecond}, {pins.ClkR, 7 * sim.Nanosecond}} {
		d, err := c.sig.Claim("clock-source")
		require.NoError(t, err)
		_, err = sim.StartClock(k, d, c.period, 0)
		require.NoError(t, err)
	}
	return &bench{k: k, pin: pins, mon: mon, w: w, r: r, rst: rst}
}

func words(vs ...uint64) []sim.Value {
	out := make([]sim.Value, len(vs))
	for i, v := range vs {
		out[i] = sim.Known(v)
	}
	return out
}

func counting(n int) []sim.Value {
	out := make([]sim.Value, n)
	for i := range out {
		out[i] = sim.Known(uint64(i))
	}
	return out
}

type transfer struct {
	ws  WriteStats
	rs  ReadStats
	got []sim.Value
	werr, rerr error
}

func (b *bench) concurrent(items []sim.Value, wp, rp Pacer) (transfer, error) {
	var tr transfer
	err := b.k.Run(context.Background(), func(p *sim.Proc) error {
		if err := b.rst.Reset(p); err != nil {
			return err
		}
		wproc := b.k.Spawn("writer", func(q *sim.Proc) error {
			tr.ws, tr.werr = b.w.Write(q, items, wp)
			return nil
		})
		rproc := b.k.Spawn("reader", func(q *sim.Proc) error {
			tr.got, tr.rs, tr.rerr = b.r.Read(q, len(items), rp)
			return nil
		})
		if err := p.Join(wproc); err != nil {
			return err
		}
		return p.Join(rproc)
	})
	return tr, err
}

func TestTransfer_Concurrent(t *testing.T) {
	b := newBench(t, 16, 0)
	items := counting(16)

	tr, err := b.concurrent(items, nil, nil)
	require.NoError(t, err)
	require.NoError(t, tr.werr)
	require.NoError(t, tr.rerr)
	assert.Equal(t, items, tr.got)
	assert.Equal(t, 16, tr.ws.Accepted)
	assert.Equal(t, 16, tr.rs.Captured)
	assert.Zero(t, tr.ws.Idles)
}

func TestTransfer_ScheduledPacing(t *testing.T) {
	b := newBench(t, 16, 0)
	items := counting(16)

	tr, err := b.concurrent(items, NewSchedulePacer(true, false), mustRandomPacer(t, 3, 0.3))
	require.NoError(t, err)
	require.NoError(t, tr.werr)
	require.NoError(t, tr.rerr)
	assert.Equal(t, items, tr.got)
	// one idle before every item, and the FIFO never fills
	assert.Equal(t, 16, tr.ws.Idles)
	assert.Zero(t, tr.ws.Stalls)
}

func mustRandomPacer(t *testing.T, seed int64, prob float64) *RandomPacer {
	t.Helper()
	p, err := NewRandomPacer(seed, prob)
	require.NoError(t, err)
	return p
}

func TestWriter_BackpressureLiveness(t *testing.T) {
	b := newBench(t, 4, 5)

	var ws WriteStats
	var werr error
	err := b.k.Run(context.Background(), func(p *sim.Proc) error {
		if err := b.rst.Reset(p); err != nil {
			return err
		}
		ws, werr = b.w.Write(p, counting(8), nil)
		return nil
	})
	require.NoError(t, err)
	require.Error(t, werr)
	assert.True(t, IsLiveness(werr))

	var le *LivenessError
	require.True(t, errors.As(werr, &le))
	assert.Equal(t, WriterOwner, le.Actor)
	assert.Equal(t, dut.Full, le.Flag)
	assert.Equal(t, 4, le.Index)
	assert.Equal(t, 6, le.Edges)
	assert.Equal(t, 4, ws.Accepted)
	assert.Equal(t, 6, ws.Stalls)
	assert.True(t, b.pin.We.Get().Low(), "we released after giving up")
}

func TestReader_StarvationLiveness(t *testing.T) {
	b := newBench(t, 4, 3)

	var rerr error
	var got []sim.Value
	err := b.k.Run(context.Background(), func(p *sim.Proc) error {
		if err := b.rst.Reset(p); err != nil {
			return err
		}
		got, _, rerr = b.r.Read(p, 1, nil)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	var le *LivenessError
	require.True(t, errors.As(rerr, &le))
	assert.Equal(t, ReaderOwner, le.Actor)
	assert.Equal(t, dut.Empty, le.Flag)
	assert.Equal(t, 0, le.Index)
	assert.Contains(t, le.Error(), "empty asserted for 4 consecutive edges")
}

func TestWriter_EmptyItems(t *testing.T) {
	b := newBench(t, 4, 0)
	err := b.k.Run(context.Background(), func(p *sim.Proc) error {
		st, err := b.w.Write(p, nil, nil)
		assert.Equal(t, WriteStats{}, st)
		return err
	})
	require.NoError(t, err)
}

func TestResetSequencer(t *testing.T) {
	b := newBench(t, 4, 0)
	var start, end sim.Time
	err := b.k.Run(context.Background(), func(p *sim.Proc) error {
		start = p.Now()
		if err := b.rst.Reset(p); err != nil {
			return err
		}
		end = p.Now()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 52*sim.Nanosecond, end-start)
	assert.True(t, b.pin.RstN.Get().High())
	assert.True(t, b.pin.We.Get().Low())
	assert.Equal(t, sim.Known(0), b.pin.WData.Get())
	assert.True(t, b.pin.Re.Get().Low())
	assert.True(t, b.pin.Full.Get().Low())
	assert.True(t, b.pin.Empty.Get().High())
}

func TestResetSequencer_BadHold(t *testing.T) {
	k := sim.NewKernel()
	pins, err := dut.NewPins(k, 8)
	require.NoError(t, err)
	_, err = NewResetSequencer(pins, 0)
	assert.Error(t, err)
}

func TestClaims_Contention(t *testing.T) {
	b := newBench(t, 4, 0)
	_, err := NewWriter(b.pin, 0)
	assert.True(t, errors.Is(err, sim.ErrContention))
	_, err = NewReader(b.pin, 0)
	assert.True(t, errors.Is(err, sim.ErrContention))
	_, err = NewResetSequencer(b.pin, sim.Nanosecond)
	assert.True(t, errors.Is(err, sim.ErrContention))
}

func TestMonitor_SamplesRespectBackpressure(t *testing.T) {
	b := newBench(t, 4, 0)
	items := words(0xa0, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7, 0xa8, 0xa9)

	tr, err := b.concurrent(items, nil, NewSchedulePacer(true, true, false))
	require.NoError(t, err)
	require.NoError(t, tr.werr)
	require.NoError(t, tr.rerr)
	assert.Equal(t, items, tr.got)

	samples := b.mon.Drain()
	require.NotEmpty(t, samples)
	var writes, reads, fullEdges int
	for _, s := range samples {
		switch s.Domain {
		case DomainWrite:
			writes++
			if s.Flag.High() && !s.InReset {
				fullEdges++
			}
			if !s.InReset {
				assert.False(t, s.Req.High() && s.Flag.High(), "write while full at %v", s.At)
			}
		case DomainRead:
			reads++
			if !s.InReset {
				assert.False(t, s.Req.High() && s.Flag.High(), "read while empty at %v", s.At)
			}
		}
	}
	assert.Positive(t, writes)
	assert.Greater(t, reads, writes, "read clock is faster")
	assert.Positive(t, fullEdges, "slow reader fills the FIFO")
	assert.Empty(t, b.mon.Drain())
	assert.Empty(t, b.mon.Violations())
}

func TestMonitor_FlagConflict(t *testing.T) {
	b := newBench(t, 4, 20, afifo.WithFaults(afifo.Faults{ConflictFlags: 2}))

	var seen []Violation
	b.mon.OnViolation(func(v Violation) { seen = append(seen, v) })
	tr, err := b.concurrent(counting(4), nil, nil)
	require.NoError(t, err)
	// both flags stay stuck, so both actors give up
	assert.True(t, IsLiveness(tr.werr))
	assert.True(t, IsLiveness(tr.rerr))

	require.Len(t, seen, 1)
	assert.Equal(t, seen, b.mon.Violations())
	assert.Contains(t, seen[0].Message, "full and empty")
	b.mon.ClearViolations()
	assert.Empty(t, b.mon.Violations())
}

func TestRandomPacer(t *testing.T) {
	a := mustRandomPacer(t, 42, 0.5)
	b := mustRandomPacer(t, 42, 0.5)
	idles := 0
	for i := 0; i < 200; i++ {
		x := a.Idle()
		require.Equal(t, x, b.Idle())
		if x {
			idles++
		}
	}
	assert.Greater(t, idles, 50)
	assert.Less(t, idles, 150)

	never := mustRandomPacer(t, 1, 0)
	for i := 0; i < 100; i++ {
		require.False(t, never.Idle())
	}

	_, err := NewRandomPacer(1, 1)
	assert.Error(t, err)
	_, err = NewRandomPacer(1, -0.1)
	assert.Error(t, err)
}

func TestSchedulePacer(t *testing.T) {
	s := NewSchedulePacer(true, false, false)
	var got []bool
	for i := 0; i < 6; i++ {
		got = append(got, s.Idle())
	}
	assert.Equal(t, []bool{true, false, false, true, false, false}, got)
	assert.False(t, NewSchedulePacer().Idle())
	assert.False(t, NoPacing{}.Idle())
}
