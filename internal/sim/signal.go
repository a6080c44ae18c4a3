package sim

import "github.com/pkg/errors"

type edge int

const (
	rising edge = iota
	falling
)

type waiter struct {
	p    *Proc
	id   uint64
	edge edge
}

// A Signal is a named wire or bus in a Kernel.
//
// Edges are defined on bit 0: a rising edge is any transition into a known 1,
// a falling edge any transition into a known 0.
type Signal struct {
	k     *Kernel
	name  string
	width int
	val   Value
	owner string

	onChange []func(prev, cur Value)
	onRise   []func()
	onFall   []func()
	waiters  []waiter
}

// Name returns the signal name.
func (s *Signal) Name() string { return s.name }

// Width returns the signal width in bits.
func (s *Signal) Width() int { return s.width }

// Kernel returns the kernel s belongs to.
func (s *Signal) Kernel() *Kernel { return s.k }

// Get returns the current value.
func (s *Signal) Get() Value { return s.val }

// Owner returns the name the signal was claimed by, or "" if it is undriven.
func (s *Signal) Owner() string { return s.owner }

// Claim makes owner the only writer of s.
func (s *Signal) Claim(owner string) (*Driver, error) {
	if owner == "" {
		return nil, errors.Errorf("sim: empty owner claiming %s", s.name)
	}
	if s.owner != "" {
		return nil, errors.Wrapf(ErrContention, "%s is driven by %s, requested by %s", s.name, s.owner, owner)
	}
	s.owner = owner
	return &Driver{s: s}, nil
}

// OnChange registers fn to be called, in registration order, every time the
// value of s changes.
func (s *Signal) OnChange(fn func(prev, cur Value)) {
	s.onChange = append(s.onChange, fn)
}

// OnRising registers fn to be called on every rising edge of s, before any
// process waiting on that edge resumes.
func (s *Signal) OnRising(fn func()) {
	s.onRise = append(s.onRise, fn)
}

// OnFalling registers fn to be called on every falling edge of s.
func (s *Signal) OnFalling(fn func()) {
	s.onFall = append(s.onFall, fn)
}

func (s *Signal) set(v Value) {
	v = v.Trunc(s.width)
	prev := s.val
	if prev == v {
		return
	}
	s.val = v
	for _, fn := range s.onChange {
		fn(prev, v)
	}
	switch {
	case !prev.High() && v.High():
		s.fire(rising, s.onRise)
	case !prev.Low() && v.Low():
		s.fire(falling, s.onFall)
	}
}

func (s *Signal) fire(e edge, callbacks []func()) {
	for _, fn := range callbacks {
		fn()
	}
	if len(s.waiters) == 0 {
		return
	}
	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if w.edge != e {
			kept = append(kept, w)
			continue
		}
		s.k.wake(w.p, w.id)
	}
	s.waiters = kept
}

// A Driver is the write handle of a claimed Signal.
type Driver struct {
	s *Signal
}

// Signal returns the driven signal.
func (d *Driver) Signal() *Signal { return d.s }

// Set drives v, truncated to the signal width.
func (d *Driver) Set(v Value) { d.s.set(v) }

// SetUint drives a known integer value.
func (d *Driver) SetUint(v uint64) { d.s.set(Known(v)) }

// SetBool drives 1 or 0.
func (d *Driver) SetBool(b bool) { d.s.set(Bool(b)) }
