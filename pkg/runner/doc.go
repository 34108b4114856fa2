// Package runner drives the viability model across a sequence of inputs and
// accumulates an append-only History.
//
// Three modes share one Runner:
//
//   - RunFixed evaluates caller-supplied inputs once each, in order.
//   - RunSchedule iterates a fixed number of steps. The effectiveness value is
//     explicit StepState threaded through the pure Step function; scheduled
//     mutations apply after the step's result is appended.
//   - RunSweep holds a base input fixed and varies one factor or parameter over
//     an ordered list of probe values.
//
// A Runner holds exactly one run. Every Run* method refuses to start while the
// history is non-empty; call Reset between independent runs. Runner is not
// safe for concurrent use: give each request its own Runner.
package runner
