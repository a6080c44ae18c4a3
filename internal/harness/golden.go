package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the parts of r that do not depend on the run identifier
// or on wall clock time as canonical JSON.
func Snapshot(r *Report) ([]byte, error) {
	scenarios := make([]any, len(r.Scenarios))
	for i, s := range r.Scenarios {
		m := map[string]any{
			"name":  s.Name,
			"items": s.Items,
			"pass":  s.Verdict.Pass,
			"code":  string(s.Verdict.Code),
			"index": s.Verdict.Index,
		}
		if s.Verdict.Message != "" {
			m["message"] = s.Verdict.Message
		}
		scenarios[i] = m
	}
	return marshalCanonical(map[string]any{
		"passed":    r.Passed,
		"failed":    r.Failed,
		"total":     r.Total,
		"scenarios": scenarios,
	})
}

// AssertGolden compares the snapshot of r against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, r *Report) error {
	t.Helper()

	data, err := Snapshot(r)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
