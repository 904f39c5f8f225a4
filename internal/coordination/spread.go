package coordination

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"coordcli/internal/alignment"
	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
	"coordcli/internal/stats"
)

// AnalyzeSpread computes cross-venue dispersion of mid prices, detects
// compression episodes, attributes leadership and runs the permutation and
// chi-square significance tests.
//
// A timestamp starts an episode when its dispersion sits below the
// configured percentile of the full series and dispersion exceeded the
// series median at least once in the preceding lookback window. The
// episode ends at the first subsequent timestamp whose dispersion rises
// back above the threshold, or at series end. Episodes shorter than the
// minimum duration are discarded.
func AnalyzeSpread(ctx context.Context, grid *alignment.Grid, cfg config.SpreadConfig, seed int64) (*SpreadResult, error) {
	logger := slog.Default()

	n := grid.NumRows()
	if len(grid.Venues) < 2 {
		return nil, engerr.InsufficientData("spread analysis needs >= 2 venues, have %d", len(grid.Venues))
	}
	if n < 2 {
		return nil, engerr.InsufficientData("spread analysis needs >= 2 observations, have %d", n)
	}

	step := grid.Granularity
	if step <= 0 {
		step = time.Second
	}
	lookbackSteps := int(cfg.Lookback / step)
	if lookbackSteps < 1 {
		lookbackSteps = 1
	}
	minSteps := int(cfg.MinDuration / step)
	if minSteps < 1 {
		minSteps = 1
	}

	consensus := make([]float64, n)
	dispersion := make([]float64, n)
	for i := 0; i < n; i++ {
		row := grid.Row(i)
		consensus[i] = stats.Median(row)
		if consensus[i] > 0 {
			dispersion[i] = stats.PopStdDev(row) / consensus[i] * 10000
		}
	}

	p10 := stats.Percentile(dispersion, cfg.CompressionPctile)
	median := stats.Percentile(dispersion, 0.5)

	episodes := detectEpisodes(grid, consensus, dispersion, p10, median, lookbackSteps, minSteps)

	leaderCounts := make(map[string]int)
	for _, ep := range episodes {
		if ep.Leader != "" {
			leaderCounts[ep.Leader]++
		}
	}
	chi2, chiP := leadershipUniformityTest(leaderCounts, grid.Venues)

	permP := permutationClusterTest(episodeStartIndices(grid, episodes), n, cfg.Permutations, seed)

	result := &SpreadResult{
		Episodes:         episodes,
		P10Dispersion:    p10,
		MedianDispersion: median,
		MeanDispersion:   stats.Mean(dispersion),
		PermutationP:     permP,
		PermutationIters: cfg.Permutations,
		LeaderCounts:     leaderCounts,
		LeadershipChi2:   chi2,
		LeadershipP:      chiP,
		Observations:     n,
	}

	logger.InfoContext(ctx, "spread convergence analysis complete",
		"episodes", len(episodes),
		"p10_bps", p10,
		"permutation_p", permP,
		"leadership_p", chiP,
	)
	return result, nil
}

func detectEpisodes(grid *alignment.Grid, consensus, dispersion []float64, p10, median float64, lookbackSteps, minSteps int) []CompressionEpisode {
	n := len(dispersion)
	episodes := make([]CompressionEpisode, 0)

	i := 0
	for i < n {
		if dispersion[i] >= p10 || !hadElevatedDispersion(dispersion, i, lookbackSteps, median) {
			i++
			continue
		}

		start := i
		last := i
		for last+1 < n && dispersion[last+1] < p10 {
			last++
		}
		// The episode ends at the first timestamp whose dispersion rises
		// back to or above the threshold, or at series end.
		end := last
		if last+1 < n {
			end = last + 1
		}

		if end-start >= minSteps {
			episodes = append(episodes, CompressionEpisode{
				Start:           grid.Times[start],
				End:             grid.Times[end],
				Duration:        grid.Times[end].Sub(grid.Times[start]),
				StartDispersion: dispersion[start],
				EndDispersion:   dispersion[end],
				Leader:          attributeLeader(grid, consensus, start, lookbackSteps),
			})
		}
		i = end + 1
	}
	return episodes
}

// hadElevatedDispersion reports whether dispersion exceeded the median at
// least once in the lookback window before index i. Without a prior
// elevated phase there is nothing to converge from, so a quiet stretch is
// not a compression episode.
func hadElevatedDispersion(dispersion []float64, i, lookbackSteps int, median float64) bool {
	lo := i - lookbackSteps
	if lo < 0 {
		lo = 0
	}
	for j := lo; j < i; j++ {
		if dispersion[j] > median {
			return true
		}
	}
	return false
}

// attributeLeader picks the venue whose price moved closest toward the
// contemporaneous consensus during the lookback window before the episode
// start, falling back to the venue closest to consensus at the start when
// nothing clearly moved.
func attributeLeader(grid *alignment.Grid, consensus []float64, start, lookbackSteps int) string {
	from := start - lookbackSteps
	if from < 0 {
		from = 0
	}
	if from == start {
		from = start - 1
	}
	if from < 0 {
		return ""
	}

	bestVenue := ""
	bestImprovement := 0.0
	for _, v := range grid.Venues {
		col := grid.MustColumn(v)
		before := math.Abs(col[from] - consensus[from])
		at := math.Abs(col[start] - consensus[start])
		improvement := before - at
		if improvement > bestImprovement {
			bestImprovement = improvement
			bestVenue = v
		}
	}
	if bestVenue != "" {
		return bestVenue
	}

	// Fallback: closest to consensus at the start.
	bestDist := math.Inf(1)
	for _, v := range grid.Venues {
		d := math.Abs(grid.MustColumn(v)[start] - consensus[start])
		if d < bestDist {
			bestDist = d
			bestVenue = v
		}
	}
	return bestVenue
}

func episodeStartIndices(grid *alignment.Grid, episodes []CompressionEpisode) []int {
	idx := make(map[int64]int, grid.NumRows())
	for i, ts := range grid.Times {
		idx[ts.UnixNano()] = i
	}
	out := make([]int, 0, len(episodes))
	for _, ep := range episodes {
		if i, ok := idx[ep.Start.UnixNano()]; ok {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// permutationClusterTest compares the clustering of episode start times
// (coefficient of variation of inter-start intervals) to a null built by
// placing the same number of starts uniformly at random over the series.
// High clustering relative to the null yields a small p-value.
func permutationClusterTest(starts []int, n, iters int, seed int64) float64 {
	if len(starts) < 3 || iters <= 0 || n < len(starts) {
		return 1
	}
	observed := intervalCV(starts)
	if math.IsNaN(observed) {
		return 1
	}

	rng := stats.NewRand(seed, "spread-permutation")
	exceed := 0
	shuffled := make([]int, len(starts))
	for it := 0; it < iters; it++ {
		drawDistinct(rng, n, shuffled)
		sort.Ints(shuffled)
		if cv := intervalCV(shuffled); !math.IsNaN(cv) && cv >= observed {
			exceed++
		}
	}
	return (float64(exceed) + 1) / (float64(iters) + 1)
}

func intervalCV(starts []int) float64 {
	if len(starts) < 3 {
		return math.NaN()
	}
	intervals := make([]float64, len(starts)-1)
	for i := 1; i < len(starts); i++ {
		intervals[i-1] = float64(starts[i] - starts[i-1])
	}
	m := stats.Mean(intervals)
	if m == 0 {
		return math.NaN()
	}
	return stats.PopStdDev(intervals) / m
}

// drawDistinct fills dst with len(dst) distinct indices in [0,n).
func drawDistinct(rng *rand.Rand, n int, dst []int) {
	seen := make(map[int]bool, len(dst))
	for i := range dst {
		for {
			v := rng.Intn(n)
			if !seen[v] {
				seen[v] = true
				dst[i] = v
				break
			}
		}
	}
}

// leadershipUniformityTest runs a chi-square goodness-of-fit test of
// leadership counts against a uniform distribution across venues.
// Fewer than two venues or no attributed episodes yields the neutral
// p-value 1.
func leadershipUniformityTest(counts map[string]int, venues []string) (chi2, p float64) {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 || len(venues) < 2 {
		return 0, 1
	}
	expected := float64(total) / float64(len(venues))
	for _, v := range venues {
		d := float64(counts[v]) - expected
		chi2 += d * d / expected
	}
	return chi2, stats.ChiSquarePValue(chi2, float64(len(venues)-1))
}
