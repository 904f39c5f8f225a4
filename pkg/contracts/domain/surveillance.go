// Package domain defines the stable shapes shared with downstream report
// and review tooling: analysis run requests, run summaries and baseline
// snapshots. Internal analyzer types stay in internal/; anything here is a
// published contract and changes only with DataFormatVersion.
package domain

import "time"

// AnalysisRequest describes one coordination analysis run as submitted by
// surveillance tooling.
type AnalysisRequest struct {
	DataDir     string    `json:"data_dir" validate:"required"`
	OutputDir   string    `json:"output_dir" validate:"required"`
	Venues      []string  `json:"venues,omitempty"`
	Granularity string    `json:"granularity" validate:"oneof=second minute"`
	FillPolicy  string    `json:"fill_policy" validate:"oneof=inner ffill"`
	WindowStart time.Time `json:"window_start,omitempty"`
	WindowEnd   time.Time `json:"window_end,omitempty"`
	Seed        int64     `json:"seed"`
}

// RunSummary is the headline view of one completed analysis run, the
// shape review queues and dashboards consume.
type RunSummary struct {
	RunID            string        `json:"run_id"`
	Venues           []string      `json:"venues"`
	WindowStart      time.Time     `json:"window_start"`
	WindowEnd        time.Time     `json:"window_end"`
	FillPolicy       string        `json:"fill_policy"`
	Synthetic        bool          `json:"synthetic"`
	Records          int           `json:"records"`
	FailedRecords    int           `json:"failed_records"`
	StrongPairs      int           `json:"strong_pairs"`
	Episodes         int           `json:"episodes"`
	SignificantEdges int           `json:"significant_edges"`
	SyncCoincidences int           `json:"sync_coincidences"`
	Elapsed          time.Duration `json:"elapsed"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

// PairFinding is one venue pair's composite outcome inside a RunSummary
// export.
type PairFinding struct {
	VenueA         string  `json:"venue_a"`
	VenueB         string  `json:"venue_b"`
	Composite      float64 `json:"composite"`
	CILow          float64 `json:"ci_low"`
	CIHigh         float64 `json:"ci_high"`
	Evidence       string  `json:"evidence"`
	Interpretation string  `json:"interpretation,omitempty"`
}

// BaselineSnapshot is the published form of a baseline calibration, the
// record surveillance config management version-controls.
type BaselineSnapshot struct {
	Baseline      float64   `json:"baseline"`
	CILow         float64   `json:"ci_low"`
	CIHigh        float64   `json:"ci_high"`
	Regime        string    `json:"volatility_regime"`
	SegmentLength int       `json:"segment_length"`
	Breaks        int       `json:"breaks"`
	Seed          int64     `json:"seed"`
	GeneratedAt   time.Time `json:"generated_at"`
}
