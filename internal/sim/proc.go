package sim

import "github.com/pkg/errors"

// A Proc is a simulation process. Its methods must only be called from the
// process's own function.
type Proc struct {
	k      *Kernel
	name   string
	resume chan bool

	waitID  uint64
	pending bool
	killed  bool
	done    bool
	err     error
	joiners []waiter
}

// Name returns the process name.
func (p *Proc) Name() string { return p.name }

// Kernel returns the kernel running p.
func (p *Proc) Kernel() *Kernel { return p.k }

// Now returns the current simulated time.
func (p *Proc) Now() Time { return p.k.now }

// Done reports whether the process function returned.
func (p *Proc) Done() bool { return p.done }

// Err returns the error the process function returned.
func (p *Proc) Err() error { return p.err }

func (p *Proc) run(fn func(p *Proc) error) {
	if killed := <-p.resume; killed {
		p.err = errors.Wrap(ErrKilled, p.name)
	} else {
		p.err = p.call(fn)
	}
	p.done = true
	for _, j := range p.joiners {
		p.k.wake(j.p, j.id)
	}
	p.joiners = nil
	p.k.yield <- struct{}{}
}

func (p *Proc) call(fn func(p *Proc) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("sim: process %s panicked: %v", p.name, r)
		}
	}()
	return fn(p)
}

// arm starts a new wait. Registrations made under the returned id are
// ignored once the wait completes.
func (p *Proc) arm() (uint64, error) {
	if p.killed {
		return 0, errors.Wrap(ErrKilled, p.name)
	}
	p.waitID++
	return p.waitID, nil
}

func (p *Proc) suspend() error {
	p.pending = true
	p.k.yield <- struct{}{}
	if killed := <-p.resume; killed {
		return errors.Wrap(ErrKilled, p.name)
	}
	return nil
}

func (p *Proc) edge(s *Signal, e edge) error {
	id, err := p.arm()
	if err != nil {
		return err
	}
	s.waiters = append(s.waiters, waiter{p: p, id: id, edge: e})
	return p.suspend()
}

// RisingEdge suspends p until the next rising edge of s.
func (p *Proc) RisingEdge(s *Signal) error { return p.edge(s, rising) }

// FallingEdge suspends p until the next falling edge of s.
func (p *Proc) FallingEdge(s *Signal) error { return p.edge(s, falling) }

// Sleep suspends p for d.
func (p *Proc) Sleep(d Time) error {
	id, err := p.arm()
	if err != nil {
		return err
	}
	p.k.After(d, func() { p.k.wake(p, id) })
	return p.suspend()
}

// Join suspends p until q returns and returns q's error.
func (p *Proc) Join(q *Proc) error {
	if q == p {
		return errors.Errorf("sim: process %s joining itself", p.name)
	}
	for !q.done {
		id, err := p.arm()
		if err != nil {
			return err
		}
		q.joiners = append(q.joiners, waiter{p: p, id: id})
		if err := p.suspend(); err != nil {
			return err
		}
	}
	return q.err
}

// JoinAll suspends p until every process in qs returned or timeout elapsed.
// It reports whether all of them returned. A timeout <= 0 waits forever.
func (p *Proc) JoinAll(timeout Time, qs ...*Proc) (bool, error) {
	deadline := p.k.now + timeout
	for {
		var remaining []*Proc
		for _, q := range qs {
			if q == p {
				return false, errors.Errorf("sim: process %s joining itself", p.name)
			}
			if !q.done {
				remaining = append(remaining, q)
			}
		}
		if len(remaining) == 0 {
			return true, nil
		}
		if timeout > 0 && p.k.now >= deadline {
			return false, nil
		}
		id, err := p.arm()
		if err != nil {
			return false, err
		}
		for _, q := range remaining {
			q.joiners = append(q.joiners, waiter{p: p, id: id})
		}
		if timeout > 0 {
			p.k.At(deadline, func() { p.k.wake(p, id) })
		}
		if err := p.suspend(); err != nil {
			return false, err
		}
	}
}
