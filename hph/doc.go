// Package hph evaluates the log-likelihood of a spatiotemporal Hawkes
// self-exciting point process and its analytic gradient with respect to the
// six kernel parameters. It is the inner scoring function of an external
// sampler that repeatedly proposes new event locations and parameters.
//
// # Reading Guide
//
//   - kernel.go: pairwise rate (Gaussian background + causally masked excitation)
//   - dispatch.go: distance evaluation in batches of W lanes with a scalar tail
//   - likelihood.go / gradient.go: per-event reductions built on the kernel
//   - state.go: the store → evaluate → accept/restore transaction protocol
//   - engine.go: construction and the public call surface
//
// # Architecture
//
// The reduction over events is delegated to hph/reduce (sequential or
// chunked parallel), the batch width to hph/vec, and transaction tracing to
// hph/trace. hph/synth simulates event sets for tests and the CLI. None of
// the sub-packages import hph.
//
// An Engine is not safe for concurrent use: the host must serialize state
// mutation and evaluation. Independent engines share nothing except the
// process-wide scheduler handle used by the parallel reducer.
package hph
