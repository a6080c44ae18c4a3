// Package sim is a small cooperative discrete-event simulation kernel.
//
// A Kernel owns simulated time, a set of named Signals and an event queue.
// Signals carry up to 64 bits with per-bit unknown (X) state. Writing a signal
// requires a Driver, obtained by claiming the signal; each signal has exactly
// one owner.
//
// Two kinds of code react to signal activity:
//
//   - Edge and change callbacks (Signal.OnRising, Signal.OnChange) run
//     synchronously inside the event that changed the signal. Device logic and
//     monitors use them, so they always observe the inputs as they were just
//     before the edge.
//   - Processes (Kernel.Spawn) are goroutines that suspend in RisingEdge,
//     FallingEdge, Sleep, Join and JoinAll. Only one process runs at a time and
//     it runs until it suspends again, so a simulation is deterministic.
//
// Processes resumed by an edge run after every callback of that edge.
//
// Usage:
//
//	k := sim.NewKernel()
//	clk, _ := k.NewSignal("clk", 1)
//	drv, _ := clk.Claim("clock")
//	sim.StartClock(k, drv, 10*sim.Nanosecond, 0)
//	err := k.Run(ctx, func(p *sim.Proc) error {
//		for i := 0; i < 4; i++ {
//			if err := p.RisingEdge(clk); err != nil {
//				return err
//			}
//		}
//		return nil
//	})
//
// A process must return once one of its wait calls reports an error: the
// kernel kills every remaining process when the main process returns.
package sim
