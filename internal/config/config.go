// Package config loads harness configuration.
//
// Configuration is written in CUE and unified with an embedded schema that
// declares every field's type, bounds and default. An empty document yields
// the default configuration; a typical override file reads:
//
//	depth: 8
//	read_period_ps: 9000
//	stall_limit: 64
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fifoverify/internal/sim"
)

//go:embed schema.cue
var schemaSrc string

// Config is the harness configuration.
type Config struct {
	WordWidth     int   `json:"word_width"`
	Depth         int   `json:"depth"`
	WritePeriodPS int64 `json:"write_period_ps"`
	ReadPeriodPS  int64 `json:"read_period_ps"`
	WritePhasePS  int64 `json:"write_phase_ps"`
	ReadPhasePS   int64 `json:"read_phase_ps"`
	SyncStages    int   `json:"sync_stages"`
	ResetCycles   int   `json:"reset_cycles"`
	DrainCycles   int   `json:"drain_cycles"`
	GapCycles     int   `json:"gap_cycles"`
	StallLimit    int   `json:"stall_limit"`
	TimeoutCycles int   `json:"timeout_cycles"`
	Seed          int64 `json:"seed"`
}

// Error is a configuration error, with the CUE position when known.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: config: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

// Default returns the configuration of an empty document.
func Default() Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads and parses the CUE file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse unifies src with the schema and decodes the result. name is used in
// error positions.
func Parse(name string, src []byte) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	user := ctx.CompileBytes(src, cue.Filename(name))
	if err := user.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	v := def.Unify(user)
	if err := v.Validate(); err != nil {
		return Config{}, formatCUEError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the constraints CUE cannot express field by field.
func (c Config) Validate() error {
	if c.WritePhasePS >= c.WritePeriodPS {
		return &Error{Message: fmt.Sprintf("write_phase_ps %d must be below write_period_ps %d", c.WritePhasePS, c.WritePeriodPS)}
	}
	if c.ReadPhasePS >= c.ReadPeriodPS {
		return &Error{Message: fmt.Sprintf("read_phase_ps %d must be below read_period_ps %d", c.ReadPhasePS, c.ReadPeriodPS)}
	}
	if need := c.MinDepth(); c.Depth < need {
		return &Error{Message: fmt.Sprintf("depth %d below %d: full and empty could assert together with %d sync stages at %d/%d ps",
			c.Depth, need, c.SyncStages, c.WritePeriodPS, c.ReadPeriodPS)}
	}
	return nil
}

// MinDepth is the smallest depth at which full and empty can never be
// asserted together.
//
// full compares against a read pointer carried across SyncStages write
// edges, empty against a write pointer carried across SyncStages read edges.
// Both flags can hold at once only if depth is covered by the writes landing
// within SyncStages read periods plus the reads landing within SyncStages
// write periods, each window catching at most one edge more than its ratio.
func (c Config) MinDepth() int {
	s := int64(c.SyncStages)
	writes := s * c.ReadPeriodPS / c.WritePeriodPS
	reads := s * c.WritePeriodPS / c.ReadPeriodPS
	return int(writes+reads) + 3
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	if pos := errors.Positions(first); len(pos) > 0 {
		return &Error{Message: first.Error(), Pos: pos[0]}
	}
	return &Error{Message: first.Error()}
}

// WritePeriod returns the write clock period.
func (c Config) WritePeriod() sim.Time { return sim.Time(c.WritePeriodPS) }

// ReadPeriod returns the read clock period.
func (c Config) ReadPeriod() sim.Time { return sim.Time(c.ReadPeriodPS) }

// SlowPeriod returns the larger of the two clock periods.
func (c Config) SlowPeriod() sim.Time { return max(c.WritePeriod(), c.ReadPeriod()) }

// ResetHold is how long rst_n stays asserted.
func (c Config) ResetHold() sim.Time { return sim.Time(c.ResetCycles) * c.SlowPeriod() }

// DrainTime is the quiet time after the actors finish.
func (c Config) DrainTime() sim.Time { return sim.Time(c.DrainCycles) * c.SlowPeriod() }

// GapTime separates the write and read phases of a write_then_read step.
func (c Config) GapTime() sim.Time { return sim.Time(c.GapCycles) * c.SlowPeriod() }

// Timeout bounds one step.
func (c Config) Timeout() sim.Time { return sim.Time(c.TimeoutCycles) * c.SlowPeriod() }
