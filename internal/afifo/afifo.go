// Package afifo is a behavioral model of an asynchronous dual-clock FIFO.
//
// The model keeps a write pointer in the write domain and a read pointer in
// the read domain. Each pointer crosses into the other domain through a shift
// pipeline of destination-clock flops, so the flags see the far pointer late:
// full is computed only on write edges and empty only on read edges, which
// makes both flags pessimistic. Gray coding is not modeled.
//
// Reset is asynchronous and active low. While rst_n is not a known 1 the FIFO
// is empty, full=0, empty=1 and rdata is unknown.
package afifo

import (
	"fmt"

	"github.com/roach88/fifoverify/internal/dut"
	"github.com/roach88/fifoverify/internal/sim"
)

// Owner is the driver name the model claims its outputs with.
const Owner = "afifo"

// Faults injects defects into the model. Write and read ordinals count from 1
// over the lifetime of the device; zero disables a fault.
type Faults struct {
	// CorruptWrite flips bit 0 of the Nth accepted write.
	CorruptWrite int
	// DropWrite discards the Nth accepted write.
	DropWrite int
	// RepeatRead returns the Nth read word without advancing the read pointer.
	RepeatRead int
	// UnknownRead drives an unknown word on the Nth read.
	UnknownRead int
	// StuckFull asserts full forever after the first write following reset.
	StuckFull bool
	// ConflictFlags asserts full and empty together from the Nth write on.
	ConflictFlags int
}

// Option configures a FIFO.
type Option func(*FIFO)

// WithSyncStages sets the number of synchronizer flops per crossing.
func WithSyncStages(n int) Option {
	return func(f *FIFO) { f.stages = n }
}

// WithFaults enables fault injection.
func WithFaults(faults Faults) Option {
	return func(f *FIFO) { f.faults = faults }
}

// FIFO implements dut.Device.
type FIFO struct {
	depth  int
	stages int
	faults Faults

	pins  *dut.Pins
	rdata *sim.Driver
	full  *sim.Driver
	empty *sim.Driver

	mem   []sim.Value
	wptr  uint64
	rptr  uint64
	wsync []uint64 // write pointer as seen by the read domain, [0] is oldest
	rsync []uint64 // read pointer as seen by the write domain

	isFull   bool
	isEmpty  bool
	stuck    bool
	conflict bool

	writes int
	reads  int
}

// New returns a FIFO holding depth words.
func New(depth int, opts ...Option) (*FIFO, error) {
	f := &FIFO{depth: depth, stages: 2}
	for _, o := range opts {
		o(f)
	}
	if depth < 2 {
		return nil, fmt.Errorf("afifo: depth %d, need at least 2", depth)
	}
	if f.stages < 1 {
		return nil, fmt.Errorf("afifo: %d sync stages, need at least 1", f.stages)
	}
	return f, nil
}

// Name implements dut.Device.
func (f *FIFO) Name() string { return fmt.Sprintf("afifo(depth=%d)", f.depth) }

// Depth returns the capacity in words.
func (f *FIFO) Depth() int { return f.depth }

// Len returns the number of words written and not yet read.
func (f *FIFO) Len() int { return int(f.wptr - f.rptr) }

// Mount implements dut.Device.
func (f *FIFO) Mount(k *sim.Kernel, pins *dut.Pins) error {
	if f.pins != nil {
		return fmt.Errorf("afifo: already mounted")
	}
	var err error
	if f.rdata, err = pins.RData.Claim(Owner); err != nil {
		return fmt.Errorf("afifo: %w", err)
	}
	if f.full, err = pins.Full.Claim(Owner); err != nil {
		return fmt.Errorf("afifo: %w", err)
	}
	if f.empty, err = pins.Empty.Claim(Owner); err != nil {
		return fmt.Errorf("afifo: %w", err)
	}
	f.pins = pins
	f.mem = make([]sim.Value, f.depth)
	f.wsync = make([]uint64, f.stages)
	f.rsync = make([]uint64, f.stages)

	pins.RstN.OnChange(func(_, cur sim.Value) {
		if !cur.High() {
			f.reset()
		}
	})
	pins.ClkW.OnRising(f.writeEdge)
	pins.ClkR.OnRising(f.readEdge)
	if pins.InReset() {
		f.reset()
	}
	return nil
}

func (f *FIFO) reset() {
	f.wptr, f.rptr = 0, 0
	clear(f.wsync)
	clear(f.rsync)
	clear(f.mem)
	f.stuck, f.conflict = false, false
	f.isFull, f.isEmpty = false, true
	f.full.SetBool(false)
	f.empty.SetBool(true)
	f.rdata.Set(sim.Unknown(f.pins.Width))
}

func shift(pipe []uint64, v uint64) {
	copy(pipe, pipe[1:])
	pipe[len(pipe)-1] = v
}

func (f *FIFO) writeEdge() {
	if f.pins.InReset() {
		return
	}
	if f.pins.We.Get().High() && !f.isFull {
		f.writes++
		v := f.pins.WData.Get()
		if f.writes == f.faults.CorruptWrite && v.IsKnown() {
			v.Bits ^= 1
		}
		if f.writes != f.faults.DropWrite {
			f.mem[f.wptr%uint64(f.depth)] = v
			f.wptr++
		}
		if f.faults.StuckFull {
			f.stuck = true
		}
	}
	shift(f.rsync, f.rptr)
	f.isFull = f.wptr-f.rsync[0] >= uint64(f.depth) || f.stuck
	if f.faults.ConflictFlags > 0 && f.writes >= f.faults.ConflictFlags {
		f.conflict = true
		f.empty.SetBool(true)
	}
	f.full.SetBool(f.isFull || f.conflict)
}

func (f *FIFO) readEdge() {
	if f.pins.InReset() {
		return
	}
	if f.pins.Re.Get().High() && !f.isEmpty {
		f.reads++
		v := f.mem[f.rptr%uint64(f.depth)]
		if f.reads == f.faults.UnknownRead {
			v = sim.Unknown(f.pins.Width)
		}
		f.rdata.Set(v)
		if f.reads != f.faults.RepeatRead {
			f.rptr++
		}
	}
	shift(f.wsync, f.wptr)
	f.isEmpty = f.rptr >= f.wsync[0]
	f.empty.SetBool(f.isEmpty || f.conflict)
}
