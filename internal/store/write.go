package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fifoverify/internal/agent"
	"github.com/roach88/fifoverify/internal/scoreboard"
	"github.com/roach88/fifoverify/internal/sim"
)

// Run identifies a harness run.
type Run struct {
	ID     string
	Device string
	// Config is the configuration the run used, as JSON.
	Config string
}

// WriteRun inserts a run record. Rows of samples and verdicts reference it.
func (s *Store) WriteRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, device, config)
		VALUES (?, ?, ?)
	`, r.ID, r.Device, r.Config)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteSamples appends the samples of one scenario step in a single
// transaction.
func (s *Store) WriteSamples(ctx context.Context, runID, scenario string, step int, samples []agent.Sample) (err error) {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples
		(run_id, scenario, step, domain, edge, time_ps, req, flag, data, in_reset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		_, err = stmt.ExecContext(ctx,
			runID,
			scenario,
			step,
			smp.Domain,
			smp.Edge,
			int64(smp.At),
			nullable(smp.Req),
			nullable(smp.Flag),
			nullable(smp.Data),
			smp.InReset,
		)
		if err != nil {
			return fmt.Errorf("write samples: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}

// nullable maps a value with unknown bits to NULL. Known values are stored
// as their bit pattern reinterpreted as int64.
func nullable(v sim.Value) sql.NullInt64 {
	if !v.IsKnown() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v.Bits), Valid: true}
}

// WriteVerdict records the verdict of a scenario.
func (s *Store) WriteVerdict(ctx context.Context, runID, scenario string, v scoreboard.Verdict) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verdicts
		(run_id, scenario, pass, code, item_index, expected, observed, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		scenario,
		v.Pass,
		string(v.Code),
		v.Index,
		v.Expected,
		v.Observed,
		v.Message,
	)
	if err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}
	return nil
}
