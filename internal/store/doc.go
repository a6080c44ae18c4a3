// Package store keeps the trace of a harness run in SQLite.
//
// Every rising edge the monitor samples becomes a row in samples, and every
// scenario verdict a row in verdicts. Protocol properties that span a whole
// trace, such as "we was never asserted while full was", are answered with
// SQL over the samples instead of being tracked by hand during simulation.
//
// # Database Configuration
//
//   - Opened as ":memory:" by the harness; nothing is written to disk
//   - One connection, so every query sees the same in-memory database
//   - busy_timeout=5000 and foreign_keys=ON
//
// Rows are read back in insertion order, which is simulation order.
package store
