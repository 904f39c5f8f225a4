package coordination

import (
	"time"

	"coordcli/internal/alignment"
)

// Metric names used in emitted records.
const (
	MetricDepthCosine      = "depth_weighted_cosine"
	MetricJaccard          = "order_placement_jaccard"
	MetricPriceCorrelation = "price_correlation"
	MetricComposite        = "composite_coordination_score"
)

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// DepthSnapshot is a venue's order-book depth at one instant, levels
// ordered best-first.
type DepthSnapshot struct {
	Venue  string      `json:"venue"`
	Time   time.Time   `json:"time"`
	Levels []BookLevel `json:"levels"`
}

// MetricRecord is one result per venue pair (or venue) per analysis
// window. Value lies in [0,1] unless noted; an out-of-range value is a
// computation error, never a valid finding, so producers clamp at the
// documented bounds. A record carries either a value or a failure reason,
// never a silently wrong number.
type MetricRecord struct {
	RunID          string    `json:"run_id"`
	Metric         string    `json:"metric"`
	VenueA         string    `json:"venue_a"`
	VenueB         string    `json:"venue_b,omitempty"`
	Value          float64   `json:"value"`
	CILow          float64   `json:"ci_low"`
	CIHigh         float64   `json:"ci_high"`
	PValue         float64   `json:"p_value"`
	SampleSize     int       `json:"sample_size"`
	Interpretation string    `json:"interpretation,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	Synthetic      bool      `json:"synthetic"`
	FillPolicy     string    `json:"fill_policy"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
}

// Failed reports whether the record represents a failed metric.
func (r MetricRecord) Failed() bool {
	return r.FailureReason != ""
}

// CompressionEpisode is a detected spread-compression interval. Never
// mutated after creation; the episode list is the unit exported to
// evidence.
type CompressionEpisode struct {
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	Duration        time.Duration `json:"duration"`
	StartDispersion float64       `json:"start_dispersion_bps"`
	EndDispersion   float64       `json:"end_dispersion_bps"`
	Leader          string        `json:"leader"`
}

// SpreadResult is the spread-convergence analyzer's output.
type SpreadResult struct {
	Episodes         []CompressionEpisode `json:"episodes"`
	P10Dispersion    float64              `json:"p10_dispersion_bps"`
	MedianDispersion float64              `json:"median_dispersion_bps"`
	MeanDispersion   float64              `json:"mean_dispersion_bps"`
	PermutationP     float64              `json:"permutation_p_value"`
	PermutationIters int                  `json:"permutation_iters"`
	LeaderCounts     map[string]int       `json:"leader_counts"`
	LeadershipChi2   float64              `json:"leadership_chi2"`
	LeadershipP      float64              `json:"leadership_p_value"`
	Observations     int                  `json:"observations"`
}

// LeadLagEdge is one directed predictability edge. It is significant only
// when Valid and PValue is below the configured significance level.
type LeadLagEdge struct {
	Source       string        `json:"source"`
	Dest         string        `json:"dest"`
	Horizon      time.Duration `json:"horizon"`
	Score        float64       `json:"score"` // |t-statistic|, >= 0
	PValue       float64       `json:"p_value"`
	R2           float64       `json:"r2"`
	Observations int           `json:"observations"`
	Valid        bool          `json:"valid"`
}

// Significant reports whether the edge clears the significance level.
func (e LeadLagEdge) Significant(alpha float64) bool {
	return e.Valid && e.PValue < alpha
}

// VenueRank is one venue's position in a per-horizon leader ranking.
type VenueRank struct {
	Venue        string  `json:"venue"`
	NetOutDegree int     `json:"net_out_degree"`
	OutScore     float64 `json:"out_score"`
	Rank         int     `json:"rank"`
}

// LeadLagResult is the lead-lag analyzer's output.
type LeadLagResult struct {
	Edges            []LeadLagEdge                 `json:"edges"`
	Rankings         map[time.Duration][]VenueRank `json:"rankings"`
	IndependenceChi2 float64                       `json:"independence_chi2"`
	IndependenceP    float64                       `json:"independence_p_value"`
	Significance     float64                       `json:"significance_level"`
}

// CoincidenceEvent is one synchronous same-direction move across venues.
type CoincidenceEvent struct {
	Time   time.Time `json:"time"`
	Venues []string  `json:"venues"`
	Sign   int       `json:"sign"` // +1 up, -1 down
}

// SyncMoveResult is the synchronous-move detector's output.
type SyncMoveResult struct {
	Thresholds    map[string]float64 `json:"jump_thresholds"`
	Events        []CoincidenceEvent `json:"events"`
	Observed      int                `json:"observed_coincidences"`
	ExpectedMean  float64            `json:"expected_coincidences"`
	PValue        float64            `json:"p_value"`
	Lift          float64            `json:"lift"` // observed/expected, 0 when expected is 0
	Trials        int                `json:"bootstrap_trials"`
	WindowSteps   int                `json:"window_steps"`
	VenueQuorum   int                `json:"venue_quorum"`
	JumpThreshold float64            `json:"jump_pctile"`
}

// AnalysisInput bundles everything one analysis run consumes. The grid
// holds aligned mid prices; depth and orders are optional per-venue inputs
// for the book and placement metrics.
type AnalysisInput struct {
	Grid   *alignment.Grid
	Depth  map[string]DepthSnapshot
	Orders map[string][]alignment.Order
}

// RunResult is the immutable output of one analysis run.
type RunResult struct {
	RunID       string          `json:"run_id"`
	Seed        int64           `json:"seed"`
	Venues      []string        `json:"venues"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	FillPolicy  string          `json:"fill_policy"`
	Synthetic   bool            `json:"synthetic"`
	Records     []MetricRecord  `json:"records"`
	Spread      *SpreadResult   `json:"spread,omitempty"`
	LeadLag     *LeadLagResult  `json:"lead_lag,omitempty"`
	SyncMoves   *SyncMoveResult `json:"sync_moves,omitempty"`
	Elapsed     time.Duration   `json:"elapsed"`
}

// FailedRecords returns the records that carry a failure reason.
func (r *RunResult) FailedRecords() []MetricRecord {
	var out []MetricRecord
	for _, rec := range r.Records {
		if rec.Failed() {
			out = append(out, rec)
		}
	}
	return out
}
