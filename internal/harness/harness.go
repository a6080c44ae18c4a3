package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/roach88/fifoverify/internal/agent"
	"github.com/roach88/fifoverify/internal/config"
	"github.com/roach88/fifoverify/internal/dut"
	"github.com/roach88/fifoverify/internal/runid"
	"github.com/roach88/fifoverify/internal/scoreboard"
	"github.com/roach88/fifoverify/internal/sim"
	"github.com/roach88/fifoverify/internal/store"
)

// ClockOwner is the driver name of both clocks.
const ClockOwner = "clock-source"

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRunIDs sets the run identifier generator. The default is UUIDv7.
func WithRunIDs(g runid.Generator) Option {
	return func(r *Runner) {
		if g != nil {
			r.ids = g
		}
	}
}

// Runner executes scenarios against a device.
type Runner struct {
	cfg    config.Config
	device dut.Device
	logger *slog.Logger
	ids    runid.Generator
}

// NewRunner returns a runner for device.
func NewRunner(cfg config.Config, device dut.Device, opts ...Option) (*Runner, error) {
	if device == nil {
		return nil, fmt.Errorf("harness: nil device")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	r := &Runner{
		cfg:    cfg,
		device: device,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:    runid.UUIDv7{},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Run executes scenarios in order in one simulation and returns the report.
// Scenario failures are reported in the Report; an error means the run
// itself could not complete.
//
// A device can be mounted only once, so a Runner is good for one Run.
func (r *Runner) Run(ctx context.Context, scenarios []*Scenario) (*Report, error) {
	if err := r.check(scenarios); err != nil {
		return nil, err
	}

	runID := r.ids.Generate()
	st, err := store.Open(store.Memory)
	if err != nil {
		return nil, fmt.Errorf("harness: trace store: %w", err)
	}
	defer st.Close()

	cfgJSON, err := json.Marshal(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("harness: encode config: %w", err)
	}
	if err := st.WriteRun(ctx, store.Run{ID: runID, Device: r.device.Name(), Config: string(cfgJSON)}); err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}

	s, err := r.newSession(ctx, st, runID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("run started", "run_id", runID, "device", r.device.Name(), "scenarios", len(scenarios))
	err = s.k.Run(ctx, func(p *sim.Proc) error {
		return s.run(p, scenarios)
	})
	if err != nil {
		return nil, fmt.Errorf("harness: run %s: %w", runID, err)
	}

	rows, err := st.Verdicts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	if err := s.report.tally(rows); err != nil {
		return nil, fmt.Errorf("harness: run %s: %w", runID, err)
	}
	r.logger.Info("run finished", "run_id", runID, "passed", s.report.Passed, "failed", s.report.Failed)
	return s.report, nil
}

func (r *Runner) check(scenarios []*Scenario) error {
	if len(scenarios) == 0 {
		return fmt.Errorf("harness: no scenarios")
	}
	seen := make(map[string]bool)
	for i, sc := range scenarios {
		if sc == nil {
			return fmt.Errorf("harness: scenario %d is nil", i)
		}
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("harness: scenario %d (%s): %w", i, sc.Name, err)
		}
		if seen[sc.Name] {
			return fmt.Errorf("harness: duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = true
		for j := range sc.Steps {
			if err := sc.Steps[j].checkWidth(j, r.cfg.WordWidth); err != nil {
				return fmt.Errorf("harness: scenario %s: %w", sc.Name, err)
			}
		}
	}
	return nil
}

// session is the state of one Run inside the simulation.
type session struct {
	ctx   context.Context
	cfg   config.Config
	log   *slog.Logger
	store *store.Store
	runID string

	k    *sim.Kernel
	pins *dut.Pins
	mon  *agent.Monitor
	w    *agent.Writer
	rd   *agent.Reader
	rst  *agent.ResetSequencer

	wdrv, rdrv *sim.Driver
	wclk, rclk *sim.Clock

	state  State
	active []*sim.Proc
	report *Report
}

func (r *Runner) newSession(ctx context.Context, st *store.Store, runID string) (*session, error) {
	k := sim.NewKernel(sim.WithLogger(r.logger))
	pins, err := dut.NewPins(k, r.cfg.WordWidth)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}

	// the monitor samples each edge before the device reacts to it
	mon := agent.NewMonitor(pins)
	if err := r.device.Mount(k, pins); err != nil {
		return nil, fmt.Errorf("harness: mount %s: %w", r.device.Name(), err)
	}

	w, err := agent.NewWriter(pins, r.cfg.StallLimit)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	rd, err := agent.NewReader(pins, r.cfg.StallLimit)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	rst, err := agent.NewResetSequencer(pins, r.cfg.ResetHold(), w, rd)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	wdrv, err := pins.ClkW.Claim(ClockOwner)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	rdrv, err := pins.ClkR.Claim(ClockOwner)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}

	s := &session{
		ctx:    ctx,
		cfg:    r.cfg,
		log:    r.logger.With("run_id", runID),
		store:  st,
		runID:  runID,
		k:      k,
		pins:   pins,
		mon:    mon,
		w:      w,
		rd:     rd,
		rst:    rst,
		wdrv:   wdrv,
		rdrv:   rdrv,
		report: &Report{RunID: runID, Device: r.device.Name(), Scenarios: []ScenarioResult{}},
	}
	mon.OnViolation(s.onViolation)
	return s, nil
}

func (s *session) enter(to State) error {
	if err := checkTransition(s.state, to); err != nil {
		return err
	}
	s.log.Debug("state", "from", s.state, "to", to, "sim_time", s.k.Now())
	s.state = to
	return nil
}

// onViolation stops the running actors as soon as the device breaks the
// flag protocol.
func (s *session) onViolation(v agent.Violation) {
	s.log.Warn("protocol violation", "message", v.Message, "sim_time", v.At)
	for _, p := range s.active {
		s.k.Kill(p)
	}
}

func (s *session) run(p *sim.Proc, scenarios []*Scenario) error {
	if err := s.enter(StateInit); err != nil {
		return err
	}
	var err error
	s.wclk, err = sim.StartClock(s.k, s.wdrv, s.cfg.WritePeriod(), sim.Time(s.cfg.WritePhasePS))
	if err != nil {
		return err
	}
	s.rclk, err = sim.StartClock(s.k, s.rdrv, s.cfg.ReadPeriod(), sim.Time(s.cfg.ReadPhasePS))
	if err != nil {
		return err
	}

	for _, sc := range scenarios {
		res, err := s.runScenario(p, sc)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		s.report.add(res)
	}
	return s.enter(StateDone)
}

func (s *session) runScenario(p *sim.Proc, sc *Scenario) (ScenarioResult, error) {
	log := s.log.With("scenario", sc.Name)
	log.Info("scenario started", "steps", len(sc.Steps), "sim_time", p.Now())

	res := ScenarioResult{
		Name:        sc.Name,
		Description: sc.Description,
		Items:       sc.Items(),
		Steps:       []StepResult{},
	}
	s.mon.ClearViolations()
	rng := rand.New(rand.NewSource(s.cfg.Seed + sc.Seed))

	verdict := scoreboard.Passed()
	for i := range sc.Steps {
		step, err := s.runStep(p, log, sc, i, rng)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", i, err)
		}
		res.Steps = append(res.Steps, step)
		if !step.Verdict.Pass {
			verdict = step.Verdict
			break
		}
	}
	if verdict.Pass {
		v, err := evaluateAssertions(s.ctx, s.store, s.runID, sc, &res)
		if err != nil {
			return res, err
		}
		verdict = v
	}
	res.Verdict = verdict

	if err := s.store.WriteVerdict(s.ctx, s.runID, sc.Name, verdict); err != nil {
		return res, err
	}
	n, err := s.store.SampleCount(s.ctx, s.runID, sc.Name)
	if err != nil {
		return res, err
	}
	res.Samples = n
	log.Info("scenario finished", "code", verdict.Code, "pass", verdict.Pass, "samples", n, "sim_time", p.Now())
	return res, nil
}

// outcome is what the actors produced in one step.
type outcome struct {
	observed []sim.Value
	ws       agent.WriteStats
	rs       agent.ReadStats
	werr     error
	rerr     error
	timedOut bool
}

func (s *session) runStep(p *sim.Proc, log *slog.Logger, sc *Scenario, i int, rng *rand.Rand) (StepResult, error) {
	st := &sc.Steps[i]
	res := StepResult{
		Index: i,
		Mode:  st.mode(),
		Reset: i == 0 || st.Reset,
		Items: st.count(),
		Start: p.Now(),
	}
	items := st.items(rng, s.cfg.WordWidth)
	wseed, rseed := rng.Int63(), rng.Int63()
	log = log.With("step", i)

	if res.Reset {
		if err := s.enter(StateReset); err != nil {
			return res, err
		}
		v, err := s.reset(p)
		if err != nil {
			return res, err
		}
		if !v.Pass {
			if err := s.toVerdict(sc, i); err != nil {
				return res, err
			}
			return s.record(p, log, res, v), nil
		}
	}

	wp, err := newPacer(wseed, st.WritePace)
	if err != nil {
		return res, err
	}
	rp, err := newPacer(rseed, st.ReadPace)
	if err != nil {
		return res, err
	}

	if err := s.enter(StateRunning); err != nil {
		return res, err
	}
	out, err := s.transfer(p, res.Mode, items, wp, rp)
	if err != nil {
		return res, err
	}
	res.Write, res.Read = out.ws, out.rs

	if !out.timedOut && len(s.mon.Violations()) == 0 {
		if err := s.enter(StateDrain); err != nil {
			return res, err
		}
		if err := p.Sleep(s.cfg.DrainTime()); err != nil {
			return res, err
		}
	}

	if err := s.toVerdict(sc, i); err != nil {
		return res, err
	}
	v, err := s.judge(sc, items, out)
	if err != nil {
		return res, err
	}
	return s.record(p, log, res, v), nil
}

// toVerdict enters VERDICT and moves the step's monitor samples into the
// trace store.
func (s *session) toVerdict(sc *Scenario, step int) error {
	if err := s.enter(StateVerdict); err != nil {
		return err
	}
	return s.store.WriteSamples(s.ctx, s.runID, sc.Name, step, s.mon.Drain())
}

func (s *session) record(p *sim.Proc, log *slog.Logger, res StepResult, v scoreboard.Verdict) StepResult {
	res.Verdict = v
	res.End = p.Now()
	log.Debug("step verdict", "code", v.Code, "accepted", res.Write.Accepted, "captured", res.Read.Captured, "sim_time", p.Now())
	return res
}

// reset runs the reset sequence, then checks that both clocks advanced and
// the flags came out of reset as full=0, empty=1.
func (s *session) reset(p *sim.Proc) (scoreboard.Verdict, error) {
	w0, r0 := s.wclk.Edges(), s.rclk.Edges()
	if err := s.rst.Reset(p); err != nil {
		return scoreboard.Verdict{}, err
	}
	for _, c := range []struct {
		clk  *sim.Clock
		from uint64
	}{{s.wclk, w0}, {s.rclk, r0}} {
		if c.clk.Edges() == c.from {
			return scoreboard.Verdict{}, fmt.Errorf("%w: %s stayed at edge %d across reset", ErrClockStalled, c.clk.Name(), c.from)
		}
	}

	full, empty := s.pins.Full.Get(), s.pins.Empty.Get()
	if !full.Low() || !empty.High() {
		return scoreboard.Fail(scoreboard.CodeProtocol, fmt.Sprintf(
			"after reset full=%s empty=%s, want full=0x0 empty=0x1", full.Format(1), empty.Format(1))), nil
	}
	return scoreboard.Passed(), nil
}

func newPacer(seed int64, prob float64) (agent.Pacer, error) {
	if prob == 0 {
		return agent.NoPacing{}, nil
	}
	return agent.NewRandomPacer(seed, prob)
}

func (s *session) transfer(p *sim.Proc, mode string, items []sim.Value, wp, rp agent.Pacer) (outcome, error) {
	var out outcome
	deadline := p.Now() + s.cfg.Timeout()

	writer := func() *sim.Proc {
		return s.k.Spawn(agent.WriterOwner, func(q *sim.Proc) error {
			out.ws, out.werr = s.w.Write(q, items, wp)
			return nil
		})
	}
	reader := func() *sim.Proc {
		return s.k.Spawn(agent.ReaderOwner, func(q *sim.Proc) error {
			out.observed, out.rs, out.rerr = s.rd.Read(q, len(items), rp)
			return nil
		})
	}

	switch mode {
	case ModeConcurrent:
		if err := s.await(p, deadline, &out, writer(), reader()); err != nil {
			return out, err
		}
	case ModeWriteThenRead:
		if err := s.await(p, deadline, &out, writer()); err != nil {
			return out, err
		}
		if out.timedOut || out.werr != nil || len(s.mon.Violations()) > 0 {
			return out, nil
		}
		if err := p.Sleep(s.cfg.GapTime()); err != nil {
			return out, err
		}
		if len(s.mon.Violations()) > 0 {
			return out, nil
		}
		if err := s.await(p, deadline, &out, reader()); err != nil {
			return out, err
		}
	default:
		return out, fmt.Errorf("unknown mode %q", mode)
	}
	return out, nil
}

// await joins procs until deadline. On expiry it kills them, waits for them
// to unwind and marks the outcome timed out.
func (s *session) await(p *sim.Proc, deadline sim.Time, out *outcome, procs ...*sim.Proc) error {
	s.active = procs
	defer func() { s.active = nil }()

	done := false
	if remaining := deadline - p.Now(); remaining > 0 {
		var err error
		done, err = p.JoinAll(remaining, procs...)
		if err != nil {
			return err
		}
	}
	if done {
		return nil
	}

	out.timedOut = true
	s.log.Warn("step watchdog expired", "sim_time", p.Now())
	for _, q := range procs {
		s.k.Kill(q)
	}
	for _, q := range procs {
		if err := p.Join(q); err != nil {
			return err
		}
	}
	return nil
}

// judge turns a step outcome into a verdict, most severe failure first.
func (s *session) judge(sc *Scenario, items []sim.Value, out outcome) (scoreboard.Verdict, error) {
	if vs := s.mon.Violations(); len(vs) > 0 {
		return scoreboard.Fail(scoreboard.CodeProtocol, fmt.Sprintf("%s at %v", vs[0].Message, vs[0].At)), nil
	}
	if out.timedOut {
		return scoreboard.Fail(scoreboard.CodeLiveness, fmt.Sprintf(
			"watchdog: step did not finish within %d cycles (%v)", s.cfg.TimeoutCycles, s.cfg.Timeout())), nil
	}
	for _, err := range []error{out.werr, out.rerr} {
		if err == nil {
			continue
		}
		if agent.IsLiveness(err) {
			return scoreboard.Fail(scoreboard.CodeLiveness, err.Error()), nil
		}
		return scoreboard.Verdict{}, err
	}

	for _, bp := range []struct {
		domain string
		what   string
	}{
		{agent.DomainWrite, "we asserted while full was asserted or unknown"},
		{agent.DomainRead, "re asserted while empty was asserted or unknown"},
	} {
		n, err := s.store.BackpressureViolations(s.ctx, s.runID, sc.Name, bp.domain)
		if err != nil {
			return scoreboard.Verdict{}, err
		}
		if n > 0 {
			return scoreboard.Fail(scoreboard.CodeProtocol, fmt.Sprintf("%s on %d edge(s)", bp.what, n)), nil
		}
	}

	return scoreboard.Compare(items, out.observed, s.cfg.WordWidth), nil
}
