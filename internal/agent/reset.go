package agent

import (
	"fmt"

	"github.com/roach88/fifoverify/internal/dut"
	"github.com/roach88/fifoverify/internal/sim"
)

// A Quiescer drives its outputs to their idle levels.
type Quiescer interface {
	Quiesce()
}

// ResetSequencer drives rst_n. It idles the other control inputs through the
// actors that own them.
type ResetSequencer struct {
	rst    *sim.Driver
	hold   sim.Time
	actors []Quiescer
}

// NewResetSequencer claims rst_n. Reset holds rst_n low for hold.
func NewResetSequencer(pins *dut.Pins, hold sim.Time, actors ...Quiescer) (*ResetSequencer, error) {
	if hold <= 0 {
		return nil, fmt.Errorf("reset: hold time %v must be positive", hold)
	}
	rst, err := pins.RstN.Claim(ResetOwner)
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return &ResetSequencer{rst: rst, hold: hold, actors: actors}, nil
}

// Reset idles every actor, asserts rst_n=0, waits the hold time and releases
// rst_n=1.
func (r *ResetSequencer) Reset(p *sim.Proc) error {
	for _, a := range r.actors {
		a.Quiesce()
	}
	r.rst.SetBool(false)
	if err := p.Sleep(r.hold); err != nil {
		return err
	}
	r.rst.SetBool(true)
	return nil
}
