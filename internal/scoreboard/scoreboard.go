// Package scoreboard judges a FIFO transfer: the words read back must be the
// words written, in order, with nothing lost and nothing duplicated.
package scoreboard

import (
	"fmt"

	"github.com/roach88/fifoverify/internal/sim"
)

// Code classifies a verdict.
type Code string

const (
	// CodePass means the scenario passed.
	CodePass Code = "PASS"

	// CodeMismatch means the observed words diverged from the expected ones.
	CodeMismatch Code = "MISMATCH"

	// CodeLiveness means an actor or the step watchdog gave up waiting.
	CodeLiveness Code = "LIVENESS_TIMEOUT"

	// CodeProtocol means the device broke the flag protocol.
	CodeProtocol Code = "PROTOCOL_VIOLATION"

	// CodeAssertion means a scenario assertion did not hold.
	CodeAssertion Code = "ASSERTION_FAILED"
)

// None renders a missing word.
const None = "<none>"

// Verdict is the outcome of one scenario.
type Verdict struct {
	Pass bool `json:"pass"`
	Code Code `json:"code"`

	// Index is the first diverging item, or -1 when the failure is not
	// about a particular item.
	Index int `json:"index"`

	Expected string `json:"expected,omitempty"`
	Observed string `json:"observed,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Passed returns a passing verdict.
func Passed() Verdict {
	return Verdict{Pass: true, Code: CodePass, Index: -1}
}

// Fail returns a failing verdict that does not point at an item.
func Fail(code Code, msg string) Verdict {
	return Verdict{Code: code, Index: -1, Message: msg}
}

// Compare checks observed against expected. Both are masked to width bits.
// An observed word with unknown bits never matches.
func Compare(expected, observed []sim.Value, width int) Verdict {
	n := min(len(expected), len(observed))
	for i := 0; i < n; i++ {
		want := expected[i].Trunc(width)
		got := observed[i].Trunc(width)
		if want.IsKnown() && got == want {
			continue
		}
		return Verdict{
			Code:     CodeMismatch,
			Index:    i,
			Expected: want.Format(width),
			Observed: got.Format(width),
			Message:  fmt.Sprintf("item %d: expected %s, observed %s", i, want.Format(width), got.Format(width)),
		}
	}
	if len(expected) == len(observed) {
		return Passed()
	}

	v := Verdict{Code: CodeMismatch, Index: n, Expected: None, Observed: None}
	if len(expected) > n {
		v.Expected = expected[n].Trunc(width).Format(width)
		v.Message = fmt.Sprintf("lost %d item(s): expected %d, observed %d", len(expected)-n, len(expected), len(observed))
	} else {
		v.Observed = observed[n].Trunc(width).Format(width)
		v.Message = fmt.Sprintf("%d extra item(s): expected %d, observed %d", len(observed)-n, len(expected), len(observed))
	}
	return v
}

// Words converts integers to known values.
func Words(ws []uint64) []sim.Value {
	out := make([]sim.Value, len(ws))
	for i, w := range ws {
		out[i] = sim.Known(w)
	}
	return out
}

func (v Verdict) String() string {
	if v.Pass {
		return string(v.Code)
	}
	if v.Message == "" {
		return string(v.Code)
	}
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}
