package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coordcli/internal/alignment"
	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
)

func spreadCfg() config.SpreadConfig {
	return config.SpreadConfig{
		CompressionPctile: 0.10,
		Lookback:          10 * time.Second,
		MinDuration:       3 * time.Second,
		Permutations:      200,
	}
}

// dispersionGrid builds a two-venue grid at 1s spacing with prices
// 100±half[i], so the dispersion at step i is exactly half[i]*100 basis
// points around a consensus of 100.
func dispersionGrid(t *testing.T, half []float64) *alignment.Grid {
	t.Helper()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	times := make([]time.Time, len(half))
	alpha := make([]float64, len(half))
	beta := make([]float64, len(half))
	for i, h := range half {
		times[i] = base.Add(time.Duration(i) * time.Second)
		alpha[i] = 100 - h
		beta[i] = 100 + h
	}
	grid, err := alignment.NewGrid(times, map[string][]float64{"alpha": alpha, "beta": beta}, alignment.FillInner)
	require.NoError(t, err)
	return grid
}

// compressionSeries is 60 steps: a normal regime, an elevated burst, then
// a sharp compression that should register as one episode.
func compressionSeries() []float64 {
	half := make([]float64, 60)
	for i := range half {
		half[i] = 0.5 // 50 bps
	}
	for i := 20; i < 25; i++ {
		half[i] = 1.0 // elevated, 100 bps
	}
	compressed := []float64{0.001, 0.002, 0.003, 0.004, 0.005, 0.006, 0.007, 0.008}
	copy(half[25:33], compressed)
	return half
}

func TestAnalyzeSpreadDetectsCompressionEpisode(t *testing.T) {
	grid := dispersionGrid(t, compressionSeries())

	result, err := AnalyzeSpread(context.Background(), grid, spreadCfg(), 42)
	require.NoError(t, err)

	require.Len(t, result.Episodes, 1)
	ep := result.Episodes[0]
	assert.Equal(t, grid.Times[25], ep.Start)
	// Dispersion first rises back above the p10 threshold (0.69 bps) at
	// step 31, which closes the episode.
	assert.Equal(t, grid.Times[31], ep.End)
	assert.Equal(t, 6*time.Second, ep.Duration)
	assert.Less(t, ep.StartDispersion, result.P10Dispersion)
	assert.Greater(t, ep.EndDispersion, result.P10Dispersion)
	assert.InDelta(t, 50.0, result.MedianDispersion, 1e-6)

	// Both venues converge symmetrically toward consensus, so the
	// improvement tie resolves to the first venue in sorted order.
	assert.Equal(t, "alpha", ep.Leader)
	assert.Equal(t, 1, result.LeaderCounts["alpha"])

	// A single start cannot show clustering.
	assert.Equal(t, 1.0, result.PermutationP)
}

func TestAnalyzeSpreadMinDurationFilter(t *testing.T) {
	cfg := spreadCfg()
	cfg.MinDuration = 7 * time.Second // the episode above lasts exactly 6s

	result, err := AnalyzeSpread(context.Background(), dispersionGrid(t, compressionSeries()), cfg, 42)
	require.NoError(t, err)
	assert.Empty(t, result.Episodes)
}

func TestAnalyzeSpreadMinDurationBoundaryKept(t *testing.T) {
	cfg := spreadCfg()
	cfg.MinDuration = 6 * time.Second

	result, err := AnalyzeSpread(context.Background(), dispersionGrid(t, compressionSeries()), cfg, 42)
	require.NoError(t, err)

	require.Len(t, result.Episodes, 1)
	ep := result.Episodes[0]
	assert.Equal(t, cfg.MinDuration, ep.Duration)
	assert.GreaterOrEqual(t, ep.Duration, cfg.MinDuration)
}

func TestAnalyzeSpreadAtThresholdDoesNotExtendEpisode(t *testing.T) {
	// 21 steps at 1s: with the 10th percentile landing exactly on the 50 bps
	// baseline, the two compressed steps after the burst form the whole
	// episode. Baseline steps sitting exactly at the threshold must close
	// it, not carry it to series end.
	half := make([]float64, 21)
	for i := range half {
		half[i] = 0.5
	}
	for i := 5; i < 10; i++ {
		half[i] = 1.0
	}
	half[10] = 0.001
	half[11] = 0.002

	cfg := spreadCfg()
	cfg.MinDuration = 2 * time.Second
	grid := dispersionGrid(t, half)

	result, err := AnalyzeSpread(context.Background(), grid, cfg, 42)
	require.NoError(t, err)

	require.Len(t, result.Episodes, 1)
	ep := result.Episodes[0]
	assert.Equal(t, grid.Times[10], ep.Start)
	assert.Equal(t, grid.Times[12], ep.End)
	assert.Equal(t, 2*time.Second, ep.Duration)
}

func TestAnalyzeSpreadEpisodeRunningToSeriesEnd(t *testing.T) {
	// Compression in the final three steps never sees dispersion rise
	// again, so the episode closes at series end with its end dispersion
	// still below the threshold.
	half := make([]float64, 40)
	for i := range half {
		half[i] = 0.5
	}
	for i := 30; i < 35; i++ {
		half[i] = 1.0
	}
	half[37] = 0.001
	half[38] = 0.002
	half[39] = 0.003

	cfg := spreadCfg()
	cfg.MinDuration = 2 * time.Second
	grid := dispersionGrid(t, half)

	result, err := AnalyzeSpread(context.Background(), grid, cfg, 42)
	require.NoError(t, err)

	require.Len(t, result.Episodes, 1)
	ep := result.Episodes[0]
	assert.Equal(t, grid.Times[37], ep.Start)
	assert.Equal(t, grid.Times[39], ep.End)
	assert.Equal(t, 2*time.Second, ep.Duration)
	assert.Less(t, ep.EndDispersion, result.P10Dispersion)
}

func TestAnalyzeSpreadNoEpisodeWithoutPriorElevation(t *testing.T) {
	// Compression from the very first steps: nothing elevated preceded it,
	// so the quiet stretch is not convergence.
	half := make([]float64, 40)
	for i := range half {
		half[i] = 0.5
	}
	copy(half[0:4], []float64{0.001, 0.002, 0.003, 0.004})

	result, err := AnalyzeSpread(context.Background(), dispersionGrid(t, half), spreadCfg(), 42)
	require.NoError(t, err)
	assert.Empty(t, result.Episodes)
}

func TestAnalyzeSpreadDeterministic(t *testing.T) {
	grid := dispersionGrid(t, compressionSeries())

	r1, err := AnalyzeSpread(context.Background(), grid, spreadCfg(), 7)
	require.NoError(t, err)
	r2, err := AnalyzeSpread(context.Background(), grid, spreadCfg(), 7)
	require.NoError(t, err)

	assert.Equal(t, r1.Episodes, r2.Episodes)
	assert.Equal(t, r1.PermutationP, r2.PermutationP)
}

func TestAnalyzeSpreadInsufficientVenues(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Second)}
	grid, err := alignment.NewGrid(times, map[string][]float64{"alpha": {100, 101}}, alignment.FillInner)
	require.NoError(t, err)

	_, err = AnalyzeSpread(context.Background(), grid, spreadCfg(), 42)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeInsufficientData))
}
