package sim

import "github.com/pkg/errors"

// A Clock drives a free-running square wave on a 1 bit signal.
type Clock struct {
	k      *Kernel
	drv    *Driver
	period Time
	high   Time
	start  Time
	edges  uint64
}

// StartClock starts toggling the signal behind d forever. The signal is driven
// low immediately and rises first at phase, then every period. It stays high
// for period/2. Edge times are derived from the edge count, so the clock
// never drifts.
func StartClock(k *Kernel, d *Driver, period, phase Time) (*Clock, error) {
	name := d.Signal().Name()
	if d.Signal().Width() != 1 {
		return nil, errors.Errorf("sim: clock %s: signal is %d bits wide", name, d.Signal().Width())
	}
	if period < 2 {
		return nil, errors.Errorf("sim: clock %s: period %v too short", name, period)
	}
	if phase < 0 {
		return nil, errors.Errorf("sim: clock %s: negative phase %v", name, phase)
	}
	c := &Clock{
		k:      k,
		drv:    d,
		period: period,
		high:   period / 2,
		start:  k.Now() + phase,
	}
	d.SetBool(false)
	k.At(c.start, c.rise)
	return c, nil
}

func (c *Clock) rise() {
	c.edges++
	c.drv.SetBool(true)
	c.k.At(c.start+Time(c.edges-1)*c.period+c.high, c.fall)
}

func (c *Clock) fall() {
	c.drv.SetBool(false)
	c.k.At(c.start+Time(c.edges)*c.period, c.rise)
}

// Name returns the name of the clock signal.
func (c *Clock) Name() string { return c.drv.Signal().Name() }

// Signal returns the clock signal.
func (c *Clock) Signal() *Signal { return c.drv.Signal() }

// Period returns the clock period.
func (c *Clock) Period() Time { return c.period }

// Edges returns the number of rising edges so far.
func (c *Clock) Edges() uint64 { return c.edges }
