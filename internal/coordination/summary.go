package coordination

import (
	"time"

	"coordcli/internal/config"
	"coordcli/pkg/contracts/domain"
)

// Summarize flattens a run result into the published summary shape plus
// the per-pair composite findings review tooling consumes.
func Summarize(result *RunResult, cfg config.SimilarityConfig) (domain.RunSummary, []domain.PairFinding) {
	summary := domain.RunSummary{
		RunID:         result.RunID,
		Venues:        result.Venues,
		WindowStart:   result.WindowStart,
		WindowEnd:     result.WindowEnd,
		FillPolicy:    result.FillPolicy,
		Synthetic:     result.Synthetic,
		Records:       len(result.Records),
		FailedRecords: len(result.FailedRecords()),
		Elapsed:       result.Elapsed,
		GeneratedAt:   time.Now().UTC(),
	}
	if result.Spread != nil {
		summary.Episodes = len(result.Spread.Episodes)
	}
	if result.LeadLag != nil {
		for _, e := range result.LeadLag.Edges {
			if e.Significant(result.LeadLag.Significance) {
				summary.SignificantEdges++
			}
		}
	}
	if result.SyncMoves != nil {
		summary.SyncCoincidences = result.SyncMoves.Observed
	}

	var findings []domain.PairFinding
	for _, rec := range result.Records {
		if rec.Metric != MetricComposite || rec.Failed() {
			continue
		}
		evidence := InterpretComposite(rec.Value, cfg)
		if evidence == EvidenceStrong {
			summary.StrongPairs++
		}
		findings = append(findings, domain.PairFinding{
			VenueA:         rec.VenueA,
			VenueB:         rec.VenueB,
			Composite:      rec.Value,
			CILow:          rec.CILow,
			CIHigh:         rec.CIHigh,
			Evidence:       evidence,
			Interpretation: rec.Interpretation,
		})
	}
	return summary, findings
}
