// Package calibration maintains the statistical baseline that coordination
// scores are judged against. Market structure shifts (new participants,
// fee changes, volatility regimes), so yesterday's "normal similarity" is
// not today's.
//
// The package is split by concern:
//
//   - breaks.go: structural break detection over historical score series
//     via recursive mean-shift segmentation with F-tests
//   - drift.go: online drift detectors (CUSUM, Page-Hinkley) for flagging
//     slow baseline decay between full recalibrations
//   - baseline.go: baseline recomputation over the most recent stable
//     segment, with outlier filtering and a bootstrap confidence interval
//   - power.go: detection power, minimum detectable effect and the
//     false-positive backtest by volatility regime
//
// Every randomized routine is a pure function of its inputs and an
// explicit seed. Degenerate inputs (constant series, empty segments)
// resolve to structured errors, never to silently wrong baselines.
package calibration
