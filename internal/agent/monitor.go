package agent

import (
	"github.com/roach88/fifoverify/internal/dut"
	"github.com/roach88/fifoverify/internal/sim"
)

// Clock domains as recorded in samples.
const (
	DomainWrite = "write"
	DomainRead  = "read"
)

// Sample is the state of one domain's handshake just before a rising edge of
// its clock, as the device samples it.
type Sample struct {
	Domain  string    `json:"domain"`
	Edge    int       `json:"edge"`
	At      sim.Time  `json:"time_ps"`
	Req     sim.Value `json:"req"`  // we or re
	Flag    sim.Value `json:"flag"` // full or empty
	Data    sim.Value `json:"data"` // wdata or rdata
	InReset bool      `json:"in_reset"`
}

// Violation is a protocol breach seen by the monitor.
type Violation struct {
	At      sim.Time `json:"time_ps"`
	Message string   `json:"message"`
}

// Monitor records every write and read edge and watches the flags for full
// and empty asserted together outside reset.
//
// A Monitor must be created before the device is mounted so that its edge
// callbacks run ahead of the device logic.
type Monitor struct {
	pins *dut.Pins

	samples    []Sample
	writeEdges int
	readEdges  int

	violations  []Violation
	conflicted  bool
	onViolation []func(Violation)
}

// NewMonitor attaches a monitor to pins.
func NewMonitor(pins *dut.Pins) *Monitor {
	m := &Monitor{pins: pins}
	pins.ClkW.OnRising(m.sampleWrite)
	pins.ClkR.OnRising(m.sampleRead)
	check := func(_, _ sim.Value) { m.checkFlags() }
	pins.Full.OnChange(check)
	pins.Empty.OnChange(check)
	pins.RstN.OnChange(check)
	return m
}

func (m *Monitor) sampleWrite() {
	m.writeEdges++
	m.samples = append(m.samples, Sample{
		Domain:  DomainWrite,
		Edge:    m.writeEdges,
		At:      m.pins.ClkW.Kernel().Now(),
		Req:     m.pins.We.Get(),
		Flag:    m.pins.Full.Get(),
		Data:    m.pins.WData.Get(),
		InReset: m.pins.InReset(),
	})
}

func (m *Monitor) sampleRead() {
	m.readEdges++
	m.samples = append(m.samples, Sample{
		Domain:  DomainRead,
		Edge:    m.readEdges,
		At:      m.pins.ClkR.Kernel().Now(),
		Req:     m.pins.Re.Get(),
		Flag:    m.pins.Empty.Get(),
		Data:    m.pins.RData.Get(),
		InReset: m.pins.InReset(),
	})
}

func (m *Monitor) checkFlags() {
	bad := !m.pins.InReset() && m.pins.Full.Get().High() && m.pins.Empty.Get().High()
	if !bad {
		m.conflicted = false
		return
	}
	if m.conflicted {
		return
	}
	m.conflicted = true
	v := Violation{
		At:      m.pins.Full.Kernel().Now(),
		Message: "full and empty asserted together outside reset",
	}
	m.violations = append(m.violations, v)
	for _, fn := range m.onViolation {
		fn(v)
	}
}

// OnViolation registers fn to be called, inside the simulation, the moment a
// violation is detected.
func (m *Monitor) OnViolation(fn func(Violation)) {
	m.onViolation = append(m.onViolation, fn)
}

// Drain returns the samples recorded since the last call and forgets them.
func (m *Monitor) Drain() []Sample {
	s := m.samples
	m.samples = nil
	return s
}

// Violations returns the violations recorded since the last ClearViolations.
func (m *Monitor) Violations() []Violation {
	return append([]Violation(nil), m.violations...)
}

// ClearViolations forgets recorded violations.
func (m *Monitor) ClearViolations() { m.violations = nil }
