package coordination

import (
	"fmt"

	"coordcli/internal/config"
)

// Interpretation labels for composite coordination scores. The band
// thresholds come from configuration and must be documented alongside any
// report that cites the wording.
const (
	EvidenceStrong   = "strong"
	EvidenceModerate = "moderate"
	EvidenceWeak     = "weak"
	EvidenceNone     = "none"
)

// InterpretComposite maps a composite score onto its evidence band.
func InterpretComposite(score float64, cfg config.SimilarityConfig) string {
	switch {
	case score > cfg.StrongBand:
		return EvidenceStrong
	case score > cfg.ModerateBand:
		return EvidenceModerate
	case score > cfg.WeakBand:
		return EvidenceWeak
	default:
		return EvidenceNone
	}
}

// ExplainComposite renders the economic-interpretation string attached to
// composite metric records.
func ExplainComposite(score float64, cfg config.SimilarityConfig) string {
	switch InterpretComposite(score, cfg) {
	case EvidenceStrong:
		return fmt.Sprintf("strong evidence of coordinated behavior (score %.3f > %.2f): order flow, book shape and prices move together beyond what shared market conditions explain", score, cfg.StrongBand)
	case EvidenceModerate:
		return fmt.Sprintf("moderate evidence of coordination (score %.3f > %.2f): notable cross-venue similarity warranting further review", score, cfg.ModerateBand)
	case EvidenceWeak:
		return fmt.Sprintf("weak evidence of coordination (score %.3f > %.2f): similarity above independent baselines but within plausible common-reaction range", score, cfg.WeakBand)
	default:
		return fmt.Sprintf("no material evidence of coordination (score %.3f <= %.2f)", score, cfg.WeakBand)
	}
}
