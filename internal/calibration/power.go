package calibration

import (
	"math"

	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
	"coordcli/internal/stats"
)

// Power computes the detection characteristics of a score sample under a
// normal approximation: the standard error of the mean score, the minimum
// detectable effect at the configured alpha and target power, the power
// achieved against the configured effect (detection threshold minus the
// null similarity cap), and the sample size required to reach the target
// power for that effect.
func Power(cfg config.PowerConfig, sigma float64, n int) (*PowerResult, error) {
	if sigma <= 0 {
		return nil, engerr.DegenerateInput("power analysis needs a positive score deviation, got %.4g", sigma)
	}
	if n < 2 {
		return nil, engerr.InsufficientData("power analysis needs >= 2 observations, have %d", n)
	}

	zAlpha := stats.NormalQuantile(1 - cfg.Alpha/2)
	zPower := stats.NormalQuantile(cfg.TargetPower)
	effect := cfg.DetectionThreshold - cfg.NullSimilarityCap

	se := sigma / math.Sqrt(float64(n))
	mde := (zAlpha + zPower) * se
	achieved := stats.NormalCDF(effect/se - zAlpha)
	required := int(math.Ceil(math.Pow((zAlpha+zPower)*sigma/effect, 2)))
	if required < 2 {
		required = 2
	}

	return &PowerResult{
		Alpha:         cfg.Alpha,
		TargetPower:   cfg.TargetPower,
		Effect:        effect,
		Sigma:         sigma,
		SampleSize:    n,
		StandardError: se,
		MDE:           mde,
		AchievedPower: achieved,
		RequiredN:     required,
	}, nil
}

// FalsePositiveBacktest replays historical null-period scores against the
// detection threshold, grouped by volatility regime. Only low-similarity
// sub-periods count as null: the series is cut into calibration-segment
// windows and a window qualifies when its median score stays at or below
// the null similarity cap, so sustained high-coordination stretches never
// inflate the rate. Each score pairs with the volatility prevailing when
// it was produced. The per-regime rate carries a Wilson score interval;
// the slope reports how fast the rate grows per unit of volatility between
// the low and high regimes, the figure that tells reviewers whether
// threshold alerts in stressed markets can be taken at face value.
func FalsePositiveBacktest(scores, vols []float64, calCfg config.CalibrationConfig, powCfg config.PowerConfig) (*FalsePositiveReport, error) {
	if len(scores) == 0 {
		return nil, engerr.InsufficientData("false-positive backtest needs scores")
	}
	if len(scores) != len(vols) {
		return nil, engerr.Configuration("scores and volatilities must pair up: %d vs %d", len(scores), len(vols))
	}

	null := nullPeriodMask(scores, calCfg.MinSegment, powCfg.NullSimilarityCap)

	type bucket struct {
		obs, fps int
		volSum   float64
	}
	buckets := map[VolatilityRegime]*bucket{
		RegimeLow:    {},
		RegimeMedium: {},
		RegimeHigh:   {},
	}
	kept := 0
	for i, score := range scores {
		if !null[i] {
			continue
		}
		kept++
		b := buckets[ClassifyRegime(vols[i], calCfg)]
		b.obs++
		b.volSum += vols[i]
		if score > powCfg.DetectionThreshold {
			b.fps++
		}
	}
	if kept == 0 {
		return nil, engerr.InsufficientData("false-positive backtest found no low-similarity sub-periods")
	}

	report := &FalsePositiveReport{Threshold: powCfg.DetectionThreshold}
	for _, regime := range []VolatilityRegime{RegimeLow, RegimeMedium, RegimeHigh} {
		b := buckets[regime]
		if b.obs == 0 {
			continue
		}
		lo, hi := stats.WilsonInterval(b.fps, b.obs, 0.95)
		report.Regimes = append(report.Regimes, RegimeFalsePositive{
			Regime:         regime,
			Observations:   b.obs,
			FalsePositives: b.fps,
			Rate:           float64(b.fps) / float64(b.obs),
			CILow:          lo,
			CIHigh:         hi,
			MeanVol:        b.volSum / float64(b.obs),
		})
	}

	report.VolSensitivitySlope = volSlope(report.Regimes)
	return report, nil
}

// nullPeriodMask flags the observations belonging to low-similarity
// sub-periods. The series is cut into windows of the calibration segment
// length; a window whose median score stays at or below the null cap is a
// null sub-period. Observations in high-median windows are genuine
// coordination and are excluded from the backtest.
func nullPeriodMask(scores []float64, window int, nullCap float64) []bool {
	if window < 1 {
		window = 1
	}
	mask := make([]bool, len(scores))
	for lo := 0; lo < len(scores); lo += window {
		hi := lo + window
		if hi > len(scores) {
			hi = len(scores)
		}
		if stats.Median(scores[lo:hi]) <= nullCap {
			for i := lo; i < hi; i++ {
				mask[i] = true
			}
		}
	}
	return mask
}

// volSlope is the false-positive rate change per unit of volatility
// between the lowest and highest populated regimes. Zero when fewer than
// two regimes have data or their mean volatilities coincide.
func volSlope(regimes []RegimeFalsePositive) float64 {
	if len(regimes) < 2 {
		return 0
	}
	lo, hi := regimes[0], regimes[len(regimes)-1]
	dv := hi.MeanVol - lo.MeanVol
	if dv == 0 {
		return 0
	}
	return (hi.Rate - lo.Rate) / dv
}
