package calibration

import (
	"math"

	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
	"coordcli/internal/stats"
)

// cusumSlack is the standard half-sigma drift allowance: shifts smaller
// than this accumulate no evidence.
const cusumSlack = 0.5

// DetectorCUSUM and DetectorPageHinkley identify which online detector
// raised an alarm.
const (
	DetectorCUSUM       = "cusum"
	DetectorPageHinkley = "page_hinkley"
)

// CUSUM runs a two-sided cumulative-sum drift detector over a score
// series. The reference mean and deviation come from the first MinSegment
// observations; both accumulators reset after an alarm so successive
// drifts are reported separately.
func CUSUM(scores []float64, cfg config.CalibrationConfig) ([]DriftAlarm, error) {
	ref := cfg.MinSegment
	if len(scores) < ref+1 {
		return nil, engerr.InsufficientData("cusum needs > %d observations, have %d", ref, len(scores))
	}
	mu := stats.Mean(scores[:ref])
	sigma := stats.StdDev(scores[:ref])
	if sigma <= 0 {
		return nil, engerr.DegenerateInput("cusum reference window has zero variance")
	}

	var alarms []DriftAlarm
	var sPos, sNeg float64
	for i := ref; i < len(scores); i++ {
		z := (scores[i] - mu) / sigma
		sPos = math.Max(0, sPos+z-cusumSlack)
		sNeg = math.Max(0, sNeg-z-cusumSlack)

		if sPos > cfg.CUSUMThreshold || sNeg > cfg.CUSUMThreshold {
			stat := sPos
			if sNeg > sPos {
				stat = sNeg
			}
			alarms = append(alarms, DriftAlarm{Index: i, Statistic: stat, Detector: DetectorCUSUM})
			sPos, sNeg = 0, 0
		}
	}
	return alarms, nil
}

// PageHinkley runs the Page-Hinkley test for upward mean drift. The
// cumulative deviation from the running mean is compared against its
// running minimum; an alarm fires when the gap exceeds the threshold in
// reference-sigma units, no earlier than MinRun observations in.
func PageHinkley(scores []float64, cfg config.CalibrationConfig) ([]DriftAlarm, error) {
	ref := cfg.MinSegment
	if len(scores) < ref+1 {
		return nil, engerr.InsufficientData("page-hinkley needs > %d observations, have %d", ref, len(scores))
	}
	sigma := stats.StdDev(scores[:ref])
	if sigma <= 0 {
		return nil, engerr.DegenerateInput("page-hinkley reference window has zero variance")
	}
	threshold := cfg.PageHinkley * sigma
	delta := cusumSlack * sigma

	var alarms []DriftAlarm
	var runMean, m, minM float64
	count := 0
	for i, x := range scores {
		count++
		runMean += (x - runMean) / float64(count)
		m += x - runMean - delta
		if m < minM {
			minM = m
		}

		if count >= cfg.PageHinkleyMinRun && m-minM > threshold {
			alarms = append(alarms, DriftAlarm{Index: i, Statistic: (m - minM) / sigma, Detector: DetectorPageHinkley})
			m, minM = 0, 0
			count = 0
			runMean = 0
		}
	}
	return alarms, nil
}
