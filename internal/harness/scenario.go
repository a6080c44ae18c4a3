package harness

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fifoverify/internal/agent"
	"github.com/roach88/fifoverify/internal/sim"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

// Scenario is an ordered list of transfer steps run against one device
// lifetime. The device is reset before the first step.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Seed is added to the harness seed to seed random data and pacing.
	Seed int64 `yaml:"seed,omitempty"`

	// Steps run in order. The run stops at the first failing step.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated once every step passed.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step modes.
const (
	// ModeConcurrent runs the writer and the reader at the same time.
	ModeConcurrent = "concurrent"

	// ModeWriteThenRead writes everything, waits the gap time and then reads
	// everything back.
	ModeWriteThenRead = "write_then_read"
)

// Step is one transfer. The words read back must equal the words written.
type Step struct {
	// Reset resets the device before the step. The first step always
	// resets.
	Reset bool `yaml:"reset,omitempty"`

	// Mode is ModeConcurrent (the default) or ModeWriteThenRead.
	Mode string `yaml:"mode,omitempty"`

	// Data lists the words to write.
	Data []uint64 `yaml:"data,omitempty"`

	// Random writes this many seeded random words instead of Data.
	Random int `yaml:"random,omitempty"`

	// WritePace and ReadPace are the probabilities, in [0, 1), that an
	// actor idles on an edge where it could make progress.
	WritePace float64 `yaml:"write_pace,omitempty"`
	ReadPace  float64 `yaml:"read_pace,omitempty"`
}

// Assertion is a property of a whole scenario.
type Assertion struct {
	// Type is AssertFlagCycles or AssertIdleCycles.
	Type string `yaml:"type"`

	// Domain is "write" or "read".
	Domain string `yaml:"domain"`

	// Min is the smallest acceptable count.
	Min int `yaml:"min"`
}

// Assertion type constants.
const (
	// AssertFlagCycles requires the domain's flag (full or empty) to have
	// been sampled asserted, outside reset, on at least Min edges.
	AssertFlagCycles = "flag_cycles"

	// AssertIdleCycles requires the domain's actor to have idled on at least
	// Min edges because of pacing.
	AssertIdleCycles = "idle_cycles"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// DefaultSuite returns the built-in scenarios in file name order.
func DefaultSuite() ([]*Scenario, error) {
	entries, err := fs.ReadDir(builtin, "scenarios")
	if err != nil {
		return nil, fmt.Errorf("read built-in scenarios: %w", err)
	}
	var out []*Scenario
	for _, e := range entries {
		data, err := builtin.ReadFile(path.Join("scenarios", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read built-in scenario %s: %w", e.Name(), err)
		}
		sc, err := ParseScenario(data)
		if err != nil {
			return nil, fmt.Errorf("built-in scenario %s: %w", e.Name(), err)
		}
		out = append(out, sc)
	}
	return out, nil
}

// Validate checks that required fields are present and valid.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Mode {
	case "", ModeConcurrent, ModeWriteThenRead:
	default:
		return fmt.Errorf("steps[%d]: unknown mode %q", index, st.Mode)
	}

	switch {
	case len(st.Data) > 0 && st.Random > 0:
		return fmt.Errorf("steps[%d]: data and random are mutually exclusive", index)
	case st.Random < 0:
		return fmt.Errorf("steps[%d]: random must be non-negative", index)
	case len(st.Data) == 0 && st.Random == 0:
		return fmt.Errorf("steps[%d]: data or random is required", index)
	}

	if st.WritePace < 0 || st.WritePace >= 1 {
		return fmt.Errorf("steps[%d]: write_pace %v not in [0, 1)", index, st.WritePace)
	}
	if st.ReadPace < 0 || st.ReadPace >= 1 {
		return fmt.Errorf("steps[%d]: read_pace %v not in [0, 1)", index, st.ReadPace)
	}

	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFlagCycles, AssertIdleCycles:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	switch a.Domain {
	case agent.DomainWrite, agent.DomainRead:
	default:
		return fmt.Errorf("assertions[%d]: domain must be %q or %q, got %q", index, agent.DomainWrite, agent.DomainRead, a.Domain)
	}

	if a.Min < 0 {
		return fmt.Errorf("assertions[%d]: min must be non-negative", index)
	}

	return nil
}

// mode returns the step mode with the default applied.
func (st *Step) mode() string {
	if st.Mode == "" {
		return ModeConcurrent
	}
	return st.Mode
}

// count returns the number of words the step transfers.
func (st *Step) count() int {
	if st.Random > 0 {
		return st.Random
	}
	return len(st.Data)
}

// checkWidth rejects literal words that do not fit in width bits.
func (st *Step) checkWidth(index, width int) error {
	m := sim.Mask(width)
	for j, w := range st.Data {
		if w&^m != 0 {
			return fmt.Errorf("steps[%d].data[%d]: %#x wider than %d bits", index, j, w, width)
		}
	}
	return nil
}

// items returns the words the step writes. Random words are drawn from rng
// and masked to width.
func (st *Step) items(rng *rand.Rand, width int) []sim.Value {
	if st.Random > 0 {
		out := make([]sim.Value, st.Random)
		for i := range out {
			out[i] = sim.Known(rng.Uint64() & sim.Mask(width))
		}
		return out
	}
	out := make([]sim.Value, len(st.Data))
	for i, w := range st.Data {
		out[i] = sim.Known(w)
	}
	return out
}

// Items returns the number of words the scenario transfers.
func (s *Scenario) Items() int {
	n := 0
	for i := range s.Steps {
		n += s.Steps[i].count()
	}
	return n
}
