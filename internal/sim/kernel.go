package sim

import (
	"container/heap"
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"
)

type event struct {
	at  Time
	seq uint64
	fn  func()
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int)  { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)    { *q = append(*q, x.(*event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger used for kernel diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.log = l
		}
	}
}

// Kernel is a simulation instance. It is not safe for use by goroutines other
// than its own processes.
type Kernel struct {
	now    Time
	seq    uint64
	events eventQueue
	ready  []*Proc
	procs  []*Proc
	yield  chan struct{}
	used   bool

	signals map[string]*Signal
	order   []*Signal

	log *slog.Logger
}

// NewKernel returns an empty kernel at time 0.
func NewKernel(opts ...Option) *Kernel {
	k := &Kernel{
		yield:   make(chan struct{}),
		signals: make(map[string]*Signal),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Now returns the current simulated time.
func (k *Kernel) Now() Time { return k.now }

// NewSignal creates an undriven signal whose bits all start unknown.
func (k *Kernel) NewSignal(name string, width int) (*Signal, error) {
	if name == "" {
		return nil, errors.New("sim: empty signal name")
	}
	if width < 1 || width > MaxWidth {
		return nil, errors.Errorf("sim: signal %s: width %d out of range [1, %d]", name, width, MaxWidth)
	}
	if _, ok := k.signals[name]; ok {
		return nil, errors.Errorf("sim: duplicate signal %s", name)
	}
	s := &Signal{k: k, name: name, width: width, val: Unknown(width)}
	k.signals[name] = s
	k.order = append(k.order, s)
	return s, nil
}

// Lookup returns the named signal.
func (k *Kernel) Lookup(name string) (*Signal, bool) {
	s, ok := k.signals[name]
	return s, ok
}

// Signals returns all signals in creation order.
func (k *Kernel) Signals() []*Signal {
	return append([]*Signal(nil), k.order...)
}

// At schedules fn at absolute time t. Times in the past run at the current time.
// Events at the same time run in scheduling order.
func (k *Kernel) At(t Time, fn func()) {
	if t < k.now {
		t = k.now
	}
	k.seq++
	heap.Push(&k.events, &event{at: t, seq: k.seq, fn: fn})
}

// After schedules fn d after the current time.
func (k *Kernel) After(d Time, fn func()) {
	k.At(k.now+d, fn)
}

// Spawn creates a process running fn. It starts after the currently running
// code suspends.
func (k *Kernel) Spawn(name string, fn func(p *Proc) error) *Proc {
	p := &Proc{k: k, name: name, resume: make(chan bool)}
	k.procs = append(k.procs, p)
	k.ready = append(k.ready, p)
	go p.run(fn)
	return p
}

// Kill stops p: its pending or next wait call returns ErrKilled.
func (k *Kernel) Kill(p *Proc) {
	if p == nil || p.done || p.killed {
		return
	}
	p.killed = true
	if p.pending {
		p.pending = false
		k.ready = append(k.ready, p)
	}
}

func (k *Kernel) wake(p *Proc, id uint64) {
	if !p.pending || p.waitID != id {
		return
	}
	p.pending = false
	k.ready = append(k.ready, p)
}

func (k *Kernel) dispatch(p *Proc) {
	if p.done {
		return
	}
	p.resume <- p.killed
	<-k.yield
}

// Run executes the simulation until main returns, then kills every other
// process and returns the error of main. Run honors ctx between events.
// A kernel can run once.
func (k *Kernel) Run(ctx context.Context, main func(p *Proc) error) error {
	if k.used {
		return ErrKernelUsed
	}
	k.used = true

	m := k.Spawn("main", main)
	for !m.done {
		if err := ctx.Err(); err != nil {
			k.shutdown()
			return errors.Wrapf(err, "sim: run cancelled at %v", k.now)
		}
		if len(k.ready) > 0 {
			p := k.ready[0]
			k.ready = k.ready[1:]
			k.dispatch(p)
			continue
		}
		if k.events.Len() == 0 {
			k.shutdown()
			return errors.Wrapf(ErrDeadlock, "at %v", k.now)
		}
		ev := heap.Pop(&k.events).(*event)
		k.now = ev.at
		ev.fn()
	}
	k.shutdown()
	return m.err
}

func (k *Kernel) shutdown() {
	for {
		alive := 0
		for _, p := range k.procs {
			if !p.done {
				alive++
				k.Kill(p)
			}
		}
		if alive == 0 {
			return
		}
		if len(k.ready) == 0 {
			k.log.Warn("processes left running at shutdown", "count", alive, "sim_time", k.now)
			return
		}
		for len(k.ready) > 0 {
			p := k.ready[0]
			k.ready = k.ready[1:]
			k.dispatch(p)
		}
	}
}
