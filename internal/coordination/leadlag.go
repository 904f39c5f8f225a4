package coordination

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"coordcli/internal/alignment"
	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
	"coordcli/internal/stats"
)

// AnalyzeLeadLag computes directional predictability edges between every
// ordered venue pair at every configured horizon, ranks venues per
// horizon, and tests the significant-edge set for non-random directional
// concentration. The input grid must hold log returns.
func AnalyzeLeadLag(ctx context.Context, returns *alignment.Grid, cfg config.LeadLagConfig) (*LeadLagResult, error) {
	logger := slog.Default()

	if len(returns.Venues) < 2 {
		return nil, engerr.InsufficientData("lead-lag analysis needs >= 2 venues, have %d", len(returns.Venues))
	}
	if len(cfg.Horizons) == 0 {
		return nil, engerr.Configuration("lead-lag analysis needs at least one horizon")
	}

	step := returns.Granularity
	if step <= 0 {
		step = time.Second
	}

	var edges []LeadLagEdge
	for _, horizon := range cfg.Horizons {
		steps := int(horizon / step)
		if steps < 1 {
			steps = 1
		}
		for _, src := range returns.Venues {
			for _, dst := range returns.Venues {
				if src == dst {
					continue
				}
				edge := regressEdge(
					returns.MustColumn(src),
					returns.MustColumn(dst),
					src, dst, horizon, steps,
				)
				edges = append(edges, edge)
			}
		}
	}

	rankings := make(map[time.Duration][]VenueRank, len(cfg.Horizons))
	for _, horizon := range cfg.Horizons {
		rankings[horizon] = rankLeaders(edges, returns.Venues, horizon, cfg.Significance)
	}

	chi2, chiP := edgeIndependenceTest(edges, returns.Venues, cfg.Significance)

	result := &LeadLagResult{
		Edges:            edges,
		Rankings:         rankings,
		IndependenceChi2: chi2,
		IndependenceP:    chiP,
		Significance:     cfg.Significance,
	}

	sig := 0
	for _, e := range edges {
		if e.Significant(cfg.Significance) {
			sig++
		}
	}
	logger.InfoContext(ctx, "lead-lag analysis complete",
		"edges", len(edges),
		"significant", sig,
		"independence_p", chiP,
	)
	return result, nil
}

// regressEdge fits dst_t = a + b·mean(src_{t-k..t-1}) and scores the edge
// by |t-statistic| of the slope. The edge is valid only when the
// observation count exceeds steps+1. Zero-variance predictors or targets
// resolve to a zero-score edge with the neutral p-value 1.
func regressEdge(srcRets, dstRets []float64, src, dst string, horizon time.Duration, steps int) LeadLagEdge {
	edge := LeadLagEdge{
		Source:  src,
		Dest:    dst,
		Horizon: horizon,
		PValue:  1,
	}

	n := len(dstRets)
	obs := n - steps
	if obs < 0 {
		obs = 0
	}
	edge.Observations = obs
	edge.Valid = obs > steps+1
	if obs < 3 {
		edge.Valid = false
		return edge
	}

	x := make([]float64, obs)
	y := make([]float64, obs)
	for t := steps; t < n; t++ {
		sum := 0.0
		for k := 1; k <= steps; k++ {
			sum += srcRets[t-k]
		}
		x[t-steps] = sum / float64(steps)
		y[t-steps] = dstRets[t]
	}

	mx, my := stats.Mean(x), stats.Mean(y)
	var sxx, sxy, syy float64
	for i := 0; i < obs; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		// Flat predictor or target: no information to regress on.
		return edge
	}

	beta := sxy / sxx
	sse := syy - beta*sxy
	if sse < 0 {
		sse = 0
	}
	df := float64(obs - 2)
	if df <= 0 {
		return edge
	}

	seBeta := math.Sqrt(sse / df / sxx)
	if seBeta == 0 || math.IsNaN(seBeta) {
		// A perfect fit has no sampling error to test against.
		return edge
	}

	tStat := beta / seBeta
	edge.Score = math.Abs(tStat)
	edge.PValue = stats.StudentTPValue(tStat, df)
	edge.R2 = 1 - sse/syy
	return edge
}

// rankLeaders ranks venues at one horizon by net out-degree over the
// significant edges, tie-broken by total outgoing score, descending.
func rankLeaders(edges []LeadLagEdge, venues []string, horizon time.Duration, alpha float64) []VenueRank {
	net := make(map[string]int, len(venues))
	outScore := make(map[string]float64, len(venues))
	for _, e := range edges {
		if e.Horizon != horizon || !e.Significant(alpha) {
			continue
		}
		net[e.Source]++
		net[e.Dest]--
		outScore[e.Source] += e.Score
	}

	ranks := make([]VenueRank, 0, len(venues))
	for _, v := range venues {
		ranks = append(ranks, VenueRank{
			Venue:        v,
			NetOutDegree: net[v],
			OutScore:     outScore[v],
		})
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].NetOutDegree != ranks[j].NetOutDegree {
			return ranks[i].NetOutDegree > ranks[j].NetOutDegree
		}
		return ranks[i].OutScore > ranks[j].OutScore
	})
	for i := range ranks {
		ranks[i].Rank = i + 1
	}
	return ranks
}

// edgeIndependenceTest runs a chi-square independence test on the
// source×destination contingency table of significant edges (aggregated
// across horizons). Cells with zero expected frequency are skipped rather
// than raised on; an empty edge set yields the neutral p-value 1.
func edgeIndependenceTest(edges []LeadLagEdge, venues []string, alpha float64) (chi2, p float64) {
	k := len(venues)
	if k < 2 {
		return 0, 1
	}
	index := make(map[string]int, k)
	for i, v := range venues {
		index[v] = i
	}

	table := make([][]float64, k)
	for i := range table {
		table[i] = make([]float64, k)
	}
	total := 0.0
	for _, e := range edges {
		if !e.Significant(alpha) {
			continue
		}
		table[index[e.Source]][index[e.Dest]]++
		total++
	}
	if total == 0 {
		return 0, 1
	}

	rowSums := make([]float64, k)
	colSums := make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			rowSums[i] += table[i][j]
			colSums[j] += table[i][j]
		}
	}

	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			expected := rowSums[i] * colSums[j] / total
			if expected == 0 {
				continue
			}
			d := table[i][j] - expected
			chi2 += d * d / expected
		}
	}
	df := float64((k - 1) * (k - 1))
	return chi2, stats.ChiSquarePValue(chi2, df)
}
