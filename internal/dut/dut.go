// Package dut defines the pin contract between the verification harness and a
// dual-clock FIFO under test.
//
// The harness creates every pin in a fresh kernel and hands them to a Device,
// which claims the outputs it drives (rdata, full, empty) and attaches its
// logic to the clock edges. Any device honoring the contract is pluggable.
package dut

import (
	"fmt"

	"github.com/roach88/fifoverify/internal/sim"
)

// Pin names.
const (
	ClkW  = "clk_w"
	ClkR  = "clk_r"
	RstN  = "rst_n"
	We    = "we"
	WData = "wdata"
	Re    = "re"
	RData = "rdata"
	Full  = "full"
	Empty = "empty"
)

// Pins is the FIFO pin set.
type Pins struct {
	Width int

	ClkW  *sim.Signal
	ClkR  *sim.Signal
	RstN  *sim.Signal
	We    *sim.Signal
	WData *sim.Signal
	Re    *sim.Signal
	RData *sim.Signal
	Full  *sim.Signal
	Empty *sim.Signal
}

// NewPins creates the FIFO pins in k for a data width of width bits.
func NewPins(k *sim.Kernel, width int) (*Pins, error) {
	p := &Pins{Width: width}
	specs := []struct {
		dst   **sim.Signal
		name  string
		width int
	}{
		{&p.ClkW, ClkW, 1},
		{&p.ClkR, ClkR, 1},
		{&p.RstN, RstN, 1},
		{&p.We, We, 1},
		{&p.WData, WData, width},
		{&p.Re, Re, 1},
		{&p.RData, RData, width},
		{&p.Full, Full, 1},
		{&p.Empty, Empty, 1},
	}
	for _, s := range specs {
		sig, err := k.NewSignal(s.name, s.width)
		if err != nil {
			return nil, fmt.Errorf("create pin %s: %w", s.name, err)
		}
		*s.dst = sig
	}
	return p, nil
}

// InReset reports whether rst_n is not a known 1.
func (p *Pins) InReset() bool { return !p.RstN.Get().High() }

// A Device is a FIFO implementation that can be attached to a pin set.
type Device interface {
	// Name identifies the device in reports.
	Name() string
	// Mount claims the device outputs and registers its edge logic. It is
	// called once per kernel, before the clocks start.
	Mount(k *sim.Kernel, pins *Pins) error
}
