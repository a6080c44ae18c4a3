// Package harness runs verification scenarios against a dual-clock FIFO.
//
// A Runner builds one simulation per run: the nine FIFO pins, a monitor,
// the device, a write actor, a read actor, a reset sequencer and two free
// running clocks. Scenarios then execute strictly one after another, each
// step moving through the states
//
//	INIT -> RESET -> RUNNING -> DRAIN -> VERDICT -> (RESET | RUNNING | DONE)
//
// INIT happens once per run and starts the clocks. RESET is entered before
// the first step of every scenario and before any step with reset: true.
//
// # Scenario Format
//
//	name: fill_then_drain
//	description: "What this scenario exercises"
//	seed: 1
//	steps:
//	  - mode: write_then_read   # or concurrent (default)
//	    random: 8               # or data: [1, 2, 3]
//	    write_pace: 0.0
//	    read_pace: 0.4
//	  - reset: true
//	    data: [0xaa, 0x55]
//	assertions:
//	  - type: flag_cycles       # or idle_cycles
//	    domain: write
//	    min: 1
//
// # Verdicts
//
// Every scenario ends in exactly one verdict. A protocol violation seen by
// the monitor wins over a liveness failure, which wins over a backpressure
// breach found in the sample trace, which wins over a data mismatch.
// Assertions are only evaluated when every step passed.
//
// Harness faults are not verdicts. A stalled clock, a pin claimed twice, an
// illegal state transition, a kernel deadlock or a cancelled context abort
// the run and are returned as errors.
//
// # Golden Files
//
// Snapshot renders a Report as canonical JSON (sorted keys, NFC strings,
// no HTML escaping) with only the fields that are stable across runs.
// AssertGolden compares it against testdata/golden/{name}.golden:
//
//	go test ./internal/harness -update
package harness
