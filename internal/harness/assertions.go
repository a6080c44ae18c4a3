package harness

import (
	"context"
	"fmt"

	"github.com/roach88/fifoverify/internal/agent"
	"github.com/roach88/fifoverify/internal/scoreboard"
	"github.com/roach88/fifoverify/internal/store"
)

// AssertionError describes an assertion that did not hold.
type AssertionError struct {
	Type     string
	Domain   string
	Expected int
	Actual   int
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s(%s): expected at least %d, got %d", e.Type, e.Domain, e.Expected, e.Actual)
}

// evaluateAssertions checks every assertion of sc and returns the first
// failure as a verdict.
func evaluateAssertions(ctx context.Context, st *store.Store, runID string, sc *Scenario, res *ScenarioResult) (scoreboard.Verdict, error) {
	for _, a := range sc.Assertions {
		var actual int
		switch a.Type {
		case AssertFlagCycles:
			n, err := st.FlagCycles(ctx, runID, sc.Name, a.Domain)
			if err != nil {
				return scoreboard.Verdict{}, fmt.Errorf("evaluate %s: %w", a.Type, err)
			}
			actual = n
		case AssertIdleCycles:
			actual = idleCycles(res, a.Domain)
		default:
			return scoreboard.Verdict{}, fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if actual < a.Min {
			err := &AssertionError{Type: a.Type, Domain: a.Domain, Expected: a.Min, Actual: actual}
			return scoreboard.Fail(scoreboard.CodeAssertion, err.Error()), nil
		}
	}
	return scoreboard.Passed(), nil
}

func idleCycles(res *ScenarioResult, domain string) int {
	n := 0
	for _, st := range res.Steps {
		if domain == agent.DomainWrite {
			n += st.Write.Idles
		} else {
			n += st.Read.Idles
		}
	}
	return n
}
