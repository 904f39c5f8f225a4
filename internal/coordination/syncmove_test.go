package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
)

func syncCfg() config.SyncMoveConfig {
	return config.SyncMoveConfig{
		JumpPctile:      0.90,
		Window:          2 * time.Second,
		MinVenues:       3,
		BootstrapTrials: 200,
	}
}

// jumpSeries builds a return series of alternating ±base with large
// jumps injected at the given indices (negative index means a down jump).
func jumpSeries(n int, base, jump float64, upAt, downAt []int) []float64 {
	out := make([]float64, n)
	sign := 1.0
	for i := range out {
		out[i] = base * sign
		sign = -sign
	}
	for _, i := range upAt {
		out[i] = jump
	}
	for _, i := range downAt {
		out[i] = -jump
	}
	return out
}

func TestAnalyzeSyncMovesDetectsCoincidences(t *testing.T) {
	up := []int{10, 30}
	down := []int{40}
	grid := returnsGrid(t, map[string][]float64{
		"alpha": jumpSeries(50, 0.001, 0.05, up, down),
		"beta":  jumpSeries(50, 0.001, 0.05, up, down),
		"gamma": jumpSeries(50, 0.001, 0.05, up, down),
	})

	result, err := AnalyzeSyncMoves(context.Background(), grid, syncCfg(), 42)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Observed)
	require.Len(t, result.Events, 3)
	assert.Equal(t, grid.Times[10], result.Events[0].Time)
	assert.Equal(t, 1, result.Events[0].Sign)
	assert.Equal(t, -1, result.Events[2].Sign)
	for _, ev := range result.Events {
		assert.ElementsMatch(t, []string{"alpha", "beta", "gamma"}, ev.Venues)
	}

	// Three synchronized bursts are far beyond the independence null.
	assert.Less(t, result.PValue, 0.05)
	assert.Greater(t, float64(result.Observed), result.ExpectedMean)

	for _, threshold := range result.Thresholds {
		assert.InDelta(t, 0.001, threshold, 1e-9)
	}
}

func TestAnalyzeSyncMovesQuorumNotMet(t *testing.T) {
	// Only two of three venues jump together; quorum is three.
	grid := returnsGrid(t, map[string][]float64{
		"alpha": jumpSeries(50, 0.001, 0.05, []int{10}, nil),
		"beta":  jumpSeries(50, 0.001, 0.05, []int{10}, nil),
		"gamma": jumpSeries(50, 0.001, 0.05, []int{40}, nil),
	})

	result, err := AnalyzeSyncMoves(context.Background(), grid, syncCfg(), 42)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Observed)
	assert.Empty(t, result.Events)
	assert.Equal(t, 1.0, result.PValue)
}

func TestAnalyzeSyncMovesWindowBridgesNearMisses(t *testing.T) {
	// Jumps one step apart land inside the two-second window and count as
	// one synchronized event.
	grid := returnsGrid(t, map[string][]float64{
		"alpha": jumpSeries(50, 0.001, 0.05, []int{10}, nil),
		"beta":  jumpSeries(50, 0.001, 0.05, []int{11}, nil),
		"gamma": jumpSeries(50, 0.001, 0.05, []int{12}, nil),
	})

	result, err := AnalyzeSyncMoves(context.Background(), grid, syncCfg(), 42)
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, grid.Times[10], result.Events[0].Time)
	assert.ElementsMatch(t, []string{"alpha", "beta", "gamma"}, result.Events[0].Venues)
}

func TestAnalyzeSyncMovesDeterministic(t *testing.T) {
	grid := returnsGrid(t, map[string][]float64{
		"alpha": jumpSeries(50, 0.001, 0.05, []int{10, 30}, nil),
		"beta":  jumpSeries(50, 0.001, 0.05, []int{10, 30}, nil),
		"gamma": jumpSeries(50, 0.001, 0.05, []int{10, 30}, nil),
	})

	r1, err := AnalyzeSyncMoves(context.Background(), grid, syncCfg(), 7)
	require.NoError(t, err)
	r2, err := AnalyzeSyncMoves(context.Background(), grid, syncCfg(), 7)
	require.NoError(t, err)

	assert.Equal(t, r1.PValue, r2.PValue)
	assert.Equal(t, r1.ExpectedMean, r2.ExpectedMean)
}

func TestAnalyzeSyncMovesInsufficientVenues(t *testing.T) {
	grid := returnsGrid(t, map[string][]float64{
		"alpha": jumpSeries(50, 0.001, 0.05, []int{10}, nil),
		"beta":  jumpSeries(50, 0.001, 0.05, []int{10}, nil),
	})

	_, err := AnalyzeSyncMoves(context.Background(), grid, syncCfg(), 42)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeInsufficientData))
}
