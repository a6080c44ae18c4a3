package agent

import (
	"fmt"

	"github.com/roach88/fifoverify/internal/dut"
	"github.com/roach88/fifoverify/internal/sim"
)

// ReadStats counts what a Read call did on the read clock.
type ReadStats struct {
	Captured int `json:"captured"`
	Stalls   int `json:"stalls"`
	Idles    int `json:"idles"`
	Edges    int `json:"edges"`
}

// Reader is the read-side actor. It owns re.
type Reader struct {
	clk   *sim.Signal
	empty *sim.Signal
	rdata *sim.Signal
	re    *sim.Driver

	stallLimit int
}

// NewReader claims re. A stallLimit <= 0 disables the liveness check.
func NewReader(pins *dut.Pins, stallLimit int) (*Reader, error) {
	re, err := pins.Re.Claim(ReaderOwner)
	if err != nil {
		return nil, fmt.Errorf("reader: %w", err)
	}
	return &Reader{
		clk:        pins.ClkR,
		empty:      pins.Empty,
		rdata:      pins.RData,
		re:         re,
		stallLimit: stallLimit,
	}, nil
}

// Quiesce drives re=0.
func (r *Reader) Quiesce() { r.re.SetBool(false) }

// Read pops n words on successive read edges. While empty is asserted or
// unknown it holds re=0. Otherwise pace may idle the cycle. A word is
// captured from rdata, unknown bits included, on the edge following the one
// re was raised on. Read leaves re=0 when it returns.
func (r *Reader) Read(p *sim.Proc, n int, pace Pacer) ([]sim.Value, ReadStats, error) {
	var st ReadStats
	if pace == nil {
		pace = NoPacing{}
	}
	defer r.re.SetBool(false)
	r.re.SetBool(false)
	out := make([]sim.Value, 0, n)
	if n <= 0 {
		return out, st, nil
	}

	edge := func() error {
		if err := p.RisingEdge(r.clk); err != nil {
			return err
		}
		st.Edges++
		return nil
	}
	if err := edge(); err != nil {
		return out, st, err
	}

	starved := 0
	for len(out) < n {
		switch {
		case !r.empty.Get().Low():
			r.re.SetBool(false)
			st.Stalls++
			starved++
			if r.stallLimit > 0 && starved > r.stallLimit {
				return out, st, &LivenessError{
					Actor: ReaderOwner,
					Flag:  dut.Empty,
					Index: len(out),
					Edges: starved,
					At:    p.Now(),
				}
			}
		case pace.Idle():
			starved = 0
			r.re.SetBool(false)
			st.Idles++
		default:
			starved = 0
			r.re.SetBool(true)
			if err := edge(); err != nil {
				return out, st, err
			}
			out = append(out, r.rdata.Get())
			st.Captured++
			continue
		}
		if err := edge(); err != nil {
			return out, st, err
		}
	}
	return out, st, nil
}
