package afifo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fifoverify/internal/dut"
	"github.com/roach88/fifoverify/internal/sim"
)

type bench struct {
	k    *sim.Kernel
	pins *dut.Pins
	fifo *FIFO

	rst, we, wdata, re *sim.Driver
}

func newBench(t *testing.T, f *FIFO) *bench {
	t.Helper()
	k := sim.NewKernel()
	pins, err := dut.NewPins(k, 8)
	require.NoError(t, err)
	require.NoError(t, f.Mount(k, pins))

	b := &bench{k: k, pins: pins, fifo: f}
	b.rst, err = pins.RstN.Claim("test")
	require.NoError(t, err)
	b.we, err = pins.We.Claim("test")
	require.NoError(t, err)
	b.wdata, err = pins.WData.Claim("test")
	require.NoError(t, err)
	b.re, err = pins.Re.Claim("test")
	require.NoError(t, err)
	return b
}

// start resets the FIFO with both clocks running at 10ns, the read clock
// trailing by half a period.
func (b *bench) start(t *testing.T, p *sim.Proc) {
	t.Helper()
	for _, c := range []struct {
		sig   *sim.Signal
		phase sim.Time
	}{{b.pins.ClkW, 0}, {b.pins.ClkR, 5 * sim.Nanosecond}} {
		d, err := c.sig.Claim("clock-source")
		require.NoError(t, err)
		_, err = sim.StartClock(b.k, d, 10*sim.Nanosecond, c.phase)
		require.NoError(t, err)
	}
	b.we.SetBool(false)
	b.re.SetBool(false)
	b.wdata.SetUint(0)
	b.rst.SetBool(false)
	require.NoError(t, p.Sleep(22*sim.Nanosecond))
	b.rst.SetBool(true)
}

// write drives we for one write edge per word, ignoring full.
func (b *bench) write(p *sim.Proc, words ...uint64) error {
	for _, w := range words {
		if err := p.RisingEdge(b.pins.ClkW); err != nil {
			return err
		}
		b.we.SetBool(true)
		b.wdata.SetUint(w)
	}
	if err := p.RisingEdge(b.pins.ClkW); err != nil {
		return err
	}
	b.we.SetBool(false)
	return nil
}

// drain reads until empty stays asserted for a few read edges.
func (b *bench) drain(p *sim.Proc) ([]sim.Value, error) {
	var out []sim.Value
	quiet := 0
	for quiet < 4 {
		if err := p.RisingEdge(b.pins.ClkR); err != nil {
			return nil, err
		}
		if b.re.Signal().Get().High() {
			out = append(out, b.pins.RData.Get())
		}
		if b.pins.Empty.Get().High() {
			b.re.SetBool(false)
			quiet++
			continue
		}
		quiet = 0
		b.re.SetBool(true)
	}
	return out, nil
}

func TestFIFO_ResetState(t *testing.T) {
	f, err := New(4)
	require.NoError(t, err)
	b := newBench(t, f)

	// unknown rst_n at mount is a reset
	assert.True(t, b.pins.Full.Get().Low())
	assert.True(t, b.pins.Empty.Get().High())
	assert.Equal(t, sim.Unknown(8), b.pins.RData.Get())
	assert.Equal(t, "afifo(depth=4)", f.Name())
}

func TestFIFO_WriteThenRead(t *testing.T) {
	f, err := New(4)
	require.NoError(t, err)
	b := newBench(t, f)

	var got []sim.Value
	err = b.k.Run(context.Background(), func(p *sim.Proc) error {
		b.start(t, p)
		if err := b.write(p, 0x11, 0x22, 0x33); err != nil {
			return err
		}
		assert.Equal(t, 3, f.Len())
		assert.True(t, b.pins.Full.Get().Low())
		var err error
		got, err = b.drain(p)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []sim.Value{sim.Known(0x11), sim.Known(0x22), sim.Known(0x33)}, got)
	assert.Equal(t, 0, f.Len())
}

func TestFIFO_FullBlocksWrites(t *testing.T) {
	f, err := New(2)
	require.NoError(t, err)
	b := newBench(t, f)

	var got []sim.Value
	err = b.k.Run(context.Background(), func(p *sim.Proc) error {
		b.start(t, p)
		if err := b.write(p, 1, 2, 3); err != nil {
			return err
		}
		assert.True(t, b.pins.Full.Get().High())
		assert.Equal(t, 2, f.Len())
		var err error
		got, err = b.drain(p)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []sim.Value{sim.Known(1), sim.Known(2)}, got)
}

func TestFIFO_EmptyLatency(t *testing.T) {
	f, err := New(4, WithSyncStages(3))
	require.NoError(t, err)
	b := newBench(t, f)

	err = b.k.Run(context.Background(), func(p *sim.Proc) error {
		b.start(t, p)
		if err := b.write(p, 7); err != nil {
			return err
		}
		assert.True(t, b.pins.Empty.Get().High())
		for b.pins.Empty.Get().High() {
			if err := p.RisingEdge(b.pins.ClkR); err != nil {
				return err
			}
		}
		// written at 40ns, then carried through the read edges at 45, 55
		// and 65ns
		assert.Equal(t, 65*sim.Nanosecond, p.Now())
		return nil
	})
	require.NoError(t, err)
}

func TestFIFO_ResetClearsContents(t *testing.T) {
	f, err := New(4)
	require.NoError(t, err)
	b := newBench(t, f)

	err = b.k.Run(context.Background(), func(p *sim.Proc) error {
		b.start(t, p)
		if err := b.write(p, 1, 2); err != nil {
			return err
		}
		b.rst.SetBool(false)
		assert.Equal(t, 0, f.Len())
		assert.True(t, b.pins.Empty.Get().High())
		assert.Equal(t, sim.Unknown(8), b.pins.RData.Get())
		// writes are ignored while in reset
		if err := b.write(p, 3); err != nil {
			return err
		}
		assert.Equal(t, 0, f.Len())
		return nil
	})
	require.NoError(t, err)
}

func TestFIFO_Faults(t *testing.T) {
	tests := []struct {
		name   string
		faults Faults
		want   []sim.Value
	}{
		{"corrupt", Faults{CorruptWrite: 2}, []sim.Value{sim.Known(0x10), sim.Known(0x21), sim.Known(0x30)}},
		{"drop", Faults{DropWrite: 2}, []sim.Value{sim.Known(0x10), sim.Known(0x30)}},
		{"unknown", Faults{UnknownRead: 1}, []sim.Value{sim.Unknown(8), sim.Known(0x20), sim.Known(0x30)}},
		{"repeat", Faults{RepeatRead: 1}, []sim.Value{sim.Known(0x10), sim.Known(0x10), sim.Known(0x20), sim.Known(0x30)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(4, WithFaults(tt.faults))
			require.NoError(t, err)
			b := newBench(t, f)

			var got []sim.Value
			err = b.k.Run(context.Background(), func(p *sim.Proc) error {
				b.start(t, p)
				if err := b.write(p, 0x10, 0x20, 0x30); err != nil {
					return err
				}
				var err error
				got, err = b.drain(p)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFIFO_StuckFullAndConflict(t *testing.T) {
	f, err := New(4, WithFaults(Faults{StuckFull: true}))
	require.NoError(t, err)
	b := newBench(t, f)
	err = b.k.Run(context.Background(), func(p *sim.Proc) error {
		b.start(t, p)
		if err := b.write(p, 1); err != nil {
			return err
		}
		assert.True(t, b.pins.Full.Get().High())
		return nil
	})
	require.NoError(t, err)

	f, err = New(4, WithFaults(Faults{ConflictFlags: 1}))
	require.NoError(t, err)
	b = newBench(t, f)
	err = b.k.Run(context.Background(), func(p *sim.Proc) error {
		b.start(t, p)
		if err := b.write(p, 1); err != nil {
			return err
		}
		assert.True(t, b.pins.Full.Get().High())
		assert.True(t, b.pins.Empty.Get().High())
		return nil
	})
	require.NoError(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(1)
	assert.Error(t, err)
	_, err = New(4, WithSyncStages(0))
	assert.Error(t, err)
}

func TestMount_Twice(t *testing.T) {
	f, err := New(4)
	require.NoError(t, err)
	_ = newBench(t, f)

	k := sim.NewKernel()
	pins, err := dut.NewPins(k, 8)
	require.NoError(t, err)
	assert.Error(t, f.Mount(k, pins))
}
