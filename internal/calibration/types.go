package calibration

import "time"

// VolatilityRegime classifies a score segment by its sample standard
// deviation against the configured bands.
type VolatilityRegime string

const (
	RegimeLow    VolatilityRegime = "low"
	RegimeMedium VolatilityRegime = "medium"
	RegimeHigh   VolatilityRegime = "high"
)

// BreakPoint is one detected structural break. Index is the first
// observation of the post-break segment.
type BreakPoint struct {
	Index  int     `json:"index"`
	FStat  float64 `json:"f_stat"`
	PValue float64 `json:"p_value"`
}

// Segment is one stable stretch between breaks, End exclusive.
type Segment struct {
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// StructuralBreakResult holds the detected breaks and the stable segments
// they delimit, both ordered by index.
type StructuralBreakResult struct {
	Breaks       []BreakPoint `json:"breaks"`
	Segments     []Segment    `json:"segments"`
	Observations int          `json:"observations"`
	Significance float64      `json:"significance_level"`
}

// LastSegment returns the most recent stable segment.
func (r *StructuralBreakResult) LastSegment() Segment {
	return r.Segments[len(r.Segments)-1]
}

// DriftAlarm is one point where an online detector flagged drift.
type DriftAlarm struct {
	Index     int     `json:"index"`
	Statistic float64 `json:"statistic"`
	Detector  string  `json:"detector"`
}

// BaselineCalibration is the output of one baseline recomputation. The
// confidence interval always contains the point estimate.
type BaselineCalibration struct {
	Baseline        float64                `json:"baseline"`
	CILow           float64                `json:"ci_low"`
	CIHigh          float64                `json:"ci_high"`
	SegmentStart    int                    `json:"segment_start"`
	SegmentLength   int                    `json:"segment_length"`
	OutliersRemoved int                    `json:"outliers_removed"`
	Regime          VolatilityRegime       `json:"volatility_regime"`
	SegmentStdDev   float64                `json:"segment_std_dev"`
	Breaks          *StructuralBreakResult `json:"breaks"`
	Seed            int64                  `json:"seed"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// PowerResult quantifies what a score sample of a given size can detect.
type PowerResult struct {
	Alpha         float64 `json:"alpha"`
	TargetPower   float64 `json:"target_power"`
	Effect        float64 `json:"effect"`
	Sigma         float64 `json:"sigma"`
	SampleSize    int     `json:"sample_size"`
	StandardError float64 `json:"standard_error"`
	MDE           float64 `json:"minimum_detectable_effect"`
	AchievedPower float64 `json:"achieved_power"`
	RequiredN     int     `json:"required_n"`
}

// RegimeFalsePositive is the backtested false-positive rate within one
// volatility regime, with its Wilson score interval.
type RegimeFalsePositive struct {
	Regime         VolatilityRegime `json:"regime"`
	Observations   int              `json:"observations"`
	FalsePositives int              `json:"false_positives"`
	Rate           float64          `json:"rate"`
	CILow          float64          `json:"ci_low"`
	CIHigh         float64          `json:"ci_high"`
	MeanVol        float64          `json:"mean_vol"`
}

// FalsePositiveReport is the full backtest: per-regime rates plus the
// sensitivity of the rate to volatility (rate change per unit of
// volatility between the low and high regimes).
type FalsePositiveReport struct {
	Threshold           float64               `json:"detection_threshold"`
	Regimes             []RegimeFalsePositive `json:"regimes"`
	VolSensitivitySlope float64               `json:"vol_sensitivity_slope"`
}
