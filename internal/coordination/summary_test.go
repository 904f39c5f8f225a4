package coordination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	result := sampleRunResult()
	result.Records = append(result.Records, MetricRecord{
		RunID:  result.RunID,
		Metric: MetricComposite,
		VenueA: "alpha",
		VenueB: "gamma",
		Value:  0.35,
	})
	result.SyncMoves = &SyncMoveResult{Observed: 2}

	summary, findings := Summarize(result, simCfg())

	assert.Equal(t, "run-123", summary.RunID)
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 1, summary.FailedRecords)
	assert.Equal(t, 1, summary.Episodes)
	assert.Equal(t, 1, summary.SignificantEdges)
	assert.Equal(t, 2, summary.SyncCoincidences)
	assert.Equal(t, 1, summary.StrongPairs) // 0.91 clears the 0.8 band
	assert.False(t, summary.GeneratedAt.IsZero())

	require.Len(t, findings, 2)
	assert.Equal(t, EvidenceStrong, findings[0].Evidence)
	assert.Equal(t, "gamma", findings[1].VenueB)
	assert.Equal(t, EvidenceNone, findings[1].Evidence)
	assert.InDelta(t, 0.35, findings[1].Composite, 1e-12)
}
