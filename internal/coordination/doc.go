// Package coordination implements the cross-venue coordination detection
// engine: similarity metrics over aligned multi-venue series, spread
// convergence episodes, lead-lag matrices and synchronous-move coincidence
// analysis, orchestrated into a single reproducible analysis run.
//
// # Components
//
//   - types.go: result records and input structures
//   - similarity.go: depth-weighted cosine, Jaccard overlap, price
//     correlation and the composite coordination score with bootstrap CI
//   - insights.go: interpretation bands for composite scores
//   - spread.go: cross-venue dispersion, compression episodes, leadership
//     attribution, permutation and chi-square tests
//   - leadlag.go: lagged-regression lead-lag edges, leader rankings and the
//     edge-set independence test
//   - syncmove.go: synchronous jump coincidence against a bootstrapped null
//   - calculator.go: the run orchestrator
//   - persist.go: CSV/JSON output of records and run metadata
//
// # Determinism
//
// Every randomized routine is a pure function of (data, seed, iteration
// count). Sub-seeds are derived from the run seed and a stable task label,
// so two runs with identical inputs and seed produce bit-identical outputs
// regardless of worker scheduling.
//
// # Failure policy
//
// Degenerate input (zero-norm vectors, empty sets, zero-variance series)
// resolves to the metric's neutral value; numerical instability does the
// same but is logged under its own code. Insufficient data fails only the
// affected record. Configuration errors abort the run before any
// computation.
package coordination
