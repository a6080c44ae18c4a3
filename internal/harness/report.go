package harness

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/fifoverify/internal/agent"
	"github.com/roach88/fifoverify/internal/scoreboard"
	"github.com/roach88/fifoverify/internal/sim"
	"github.com/roach88/fifoverify/internal/store"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index   int                `json:"index"`
	Mode    string             `json:"mode"`
	Reset   bool               `json:"reset"`
	Items   int                `json:"items"`
	Write   agent.WriteStats   `json:"write"`
	Read    agent.ReadStats    `json:"read"`
	Verdict scoreboard.Verdict `json:"verdict"`
	Start   sim.Time           `json:"start_ps"`
	End     sim.Time           `json:"end_ps"`
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Items       int                `json:"items"`
	Samples     int                `json:"samples"`
	Verdict     scoreboard.Verdict `json:"verdict"`
	Steps       []StepResult       `json:"steps"`
}

// Report is the outcome of a run.
type Report struct {
	RunID     string           `json:"run_id"`
	Device    string           `json:"device"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *Report) add(res ScenarioResult) {
	r.Scenarios = append(r.Scenarios, res)
	r.Total++
	if res.Verdict.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// tally recounts r from the verdicts stored for its run. Every stored row
// must match the scenario result in the same position.
func (r *Report) tally(rows []store.VerdictRow) error {
	if len(rows) != len(r.Scenarios) {
		return fmt.Errorf("%d stored verdicts for %d scenarios", len(rows), len(r.Scenarios))
	}
	r.Passed, r.Failed, r.Total = 0, 0, len(rows)
	for i, row := range rows {
		res := r.Scenarios[i]
		if row.Scenario != res.Name || row.Verdict != res.Verdict {
			return fmt.Errorf("stored verdict %d (%s: %s) differs from %s: %s",
				i, row.Scenario, row.Verdict, res.Name, res.Verdict)
		}
		if row.Verdict.Pass {
			r.Passed++
		} else {
			r.Failed++
		}
	}
	return nil
}

// Pass reports whether every scenario passed.
func (r *Report) Pass() bool { return r.Failed == 0 }

// FirstFailure returns the first failing scenario, or nil.
func (r *Report) FirstFailure() *ScenarioResult {
	for i := range r.Scenarios {
		if !r.Scenarios[i].Verdict.Pass {
			return &r.Scenarios[i]
		}
	}
	return nil
}

// Scenario returns the named scenario result, or nil.
func (r *Report) Scenario(name string) *ScenarioResult {
	for i := range r.Scenarios {
		if r.Scenarios[i].Name == name {
			return &r.Scenarios[i]
		}
	}
	return nil
}

// WriteText renders a human readable summary to w.
func (r *Report) WriteText(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("run %s on %s\n", r.RunID, r.Device)
	for _, s := range r.Scenarios {
		status := "PASS"
		if !s.Verdict.Pass {
			status = "FAIL"
		}
		ew.printf("  %s  %-24s %3d items %6d samples", status, s.Name, s.Items, s.Samples)
		if !s.Verdict.Pass {
			ew.printf("  %s", s.Verdict)
		}
		ew.printf("\n")
	}
	ew.printf("%d scenarios: %d passed, %d failed\n", r.Total, r.Passed, r.Failed)
	if f := r.FirstFailure(); f != nil {
		ew.printf("first failure: %s: %s\n", f.Name, f.Verdict)
	}
	return ew.err
}

// WriteJSON renders the full report as indented JSON to w.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
