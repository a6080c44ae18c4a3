package agent

import (
	"fmt"

	"github.com/roach88/fifoverify/internal/dut"
	"github.com/roach88/fifoverify/internal/sim"
)

// Driver owner names.
const (
	WriterOwner = "write-actor"
	ReaderOwner = "read-actor"
	ResetOwner  = "reset-sequencer"
)

// WriteStats counts what a Write call did on the write clock.
type WriteStats struct {
	Accepted int `json:"accepted"`
	Stalls   int `json:"stalls"`
	Idles    int `json:"idles"`
	Edges    int `json:"edges"`
}

// Writer is the write-side actor. It owns we and wdata.
type Writer struct {
	clk   *sim.Signal
	full  *sim.Signal
	we    *sim.Driver
	wdata *sim.Driver

	stallLimit int
}

// NewWriter claims we and wdata. A stallLimit <= 0 disables the liveness
// check.
func NewWriter(pins *dut.Pins, stallLimit int) (*Writer, error) {
	we, err := pins.We.Claim(WriterOwner)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}
	wdata, err := pins.WData.Claim(WriterOwner)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}
	return &Writer{
		clk:        pins.ClkW,
		full:       pins.Full,
		we:         we,
		wdata:      wdata,
		stallLimit: stallLimit,
	}, nil
}

// Quiesce drives we=0 and wdata=0.
func (w *Writer) Quiesce() {
	w.we.SetBool(false)
	w.wdata.SetUint(0)
}

// Write pushes items in order on successive write edges. On every edge it
// first honors backpressure: while full is asserted or unknown it holds we=0
// and retries the same item. Otherwise pace may idle the cycle. An item
// counts as accepted on the edge following the one it was presented on.
// Write leaves we=0 when it returns.
func (w *Writer) Write(p *sim.Proc, items []sim.Value, pace Pacer) (WriteStats, error) {
	var st WriteStats
	if pace == nil {
		pace = NoPacing{}
	}
	defer w.we.SetBool(false)
	w.we.SetBool(false)
	if len(items) == 0 {
		return st, nil
	}

	edge := func() error {
		if err := p.RisingEdge(w.clk); err != nil {
			return err
		}
		st.Edges++
		return nil
	}
	if err := edge(); err != nil {
		return st, err
	}

	stalled := 0
	for i := 0; i < len(items); {
		switch {
		case !w.full.Get().Low():
			w.we.SetBool(false)
			st.Stalls++
			stalled++
			if w.stallLimit > 0 && stalled > w.stallLimit {
				return st, &LivenessError{
					Actor: WriterOwner,
					Flag:  dut.Full,
					Index: i,
					Edges: stalled,
					At:    p.Now(),
				}
			}
		case pace.Idle():
			stalled = 0
			w.we.SetBool(false)
			st.Idles++
		default:
			stalled = 0
			w.wdata.Set(items[i])
			w.we.SetBool(true)
			if err := edge(); err != nil {
				return st, err
			}
			st.Accepted++
			i++
			continue
		}
		if err := edge(); err != nil {
			return st, err
		}
	}
	return st, nil
}
