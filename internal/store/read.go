package store

import (
	"context"
	"fmt"

	"github.com/roach88/fifoverify/internal/scoreboard"
)

// BackpressureViolations counts the edges of domain, outside reset, on
// which the device sampled its request asserted while the controlling flag
// was asserted or unknown: a write into a full FIFO or a read from an empty
// one.
func (s *Store) BackpressureViolations(ctx context.Context, runID, scenario, domain string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM samples
		WHERE run_id = ? AND scenario = ? AND domain = ?
		  AND in_reset = 0
		  AND req = 1
		  AND (flag IS NULL OR flag = 1)
	`, runID, scenario, domain).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("query backpressure violations: %w", err)
	}
	return n, nil
}

// FlagCycles counts the edges of domain, outside reset, on which the
// controlling flag (full for write, empty for read) was asserted.
func (s *Store) FlagCycles(ctx context.Context, runID, scenario, domain string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM samples
		WHERE run_id = ? AND scenario = ? AND domain = ?
		  AND in_reset = 0
		  AND flag = 1
	`, runID, scenario, domain).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("query flag cycles: %w", err)
	}
	return n, nil
}

// SampleCount returns the number of samples stored for a scenario.
func (s *Store) SampleCount(ctx context.Context, runID, scenario string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM samples WHERE run_id = ? AND scenario = ?
	`, runID, scenario).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// VerdictRow is a stored scenario verdict.
type VerdictRow struct {
	Scenario string
	Verdict  scoreboard.Verdict
}

// Verdicts returns the verdicts of a run in the order they were written.
//
// Returns an empty slice (not nil) if the run has no verdicts.
func (s *Store) Verdicts(ctx context.Context, runID string) ([]VerdictRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario, pass, code, item_index, expected, observed, message
		FROM verdicts
		WHERE run_id = ?
		ORDER BY rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	out := []VerdictRow{}
	for rows.Next() {
		var r VerdictRow
		var code string
		if err := rows.Scan(
			&r.Scenario,
			&r.Verdict.Pass,
			&code,
			&r.Verdict.Index,
			&r.Verdict.Expected,
			&r.Verdict.Observed,
			&r.Verdict.Message,
		); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		r.Verdict.Code = scoreboard.Code(code)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}
	return out, nil
}
