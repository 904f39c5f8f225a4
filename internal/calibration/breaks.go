package calibration

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
	"coordcli/internal/stats"
)

// DetectBreaks finds mean-shift structural breaks in a score series by
// recursive binary segmentation. Each candidate split is scored with a
// Chow-type F-test of the one-break model against the no-break model;
// splits are accepted while the p-value clears the configured significance
// level, both resulting segments honor the minimum length, and the break
// budget is not exhausted.
func DetectBreaks(ctx context.Context, scores []float64, cfg config.CalibrationConfig) (*StructuralBreakResult, error) {
	n := len(scores)
	if n < 2*cfg.MinSegment {
		return nil, engerr.InsufficientData("break detection needs >= %d observations, have %d", 2*cfg.MinSegment, n)
	}

	breakSet := make([]BreakPoint, 0, cfg.MaxBreaks)
	segments := [][2]int{{0, n}}

	for len(breakSet) < cfg.MaxBreaks {
		best := BreakPoint{PValue: 1}
		bestSeg := -1
		for si, seg := range segments {
			bp, ok := bestSplit(scores, seg[0], seg[1], cfg.MinSegment)
			if !ok || bp.PValue >= cfg.Significance {
				continue
			}
			if bestSeg == -1 || bp.FStat > best.FStat {
				best = bp
				bestSeg = si
			}
		}
		if bestSeg == -1 {
			break
		}

		seg := segments[bestSeg]
		segments = append(segments[:bestSeg], append([][2]int{
			{seg[0], best.Index},
			{best.Index, seg[1]},
		}, segments[bestSeg+1:]...)...)
		breakSet = append(breakSet, best)
	}

	sort.Slice(breakSet, func(i, j int) bool { return breakSet[i].Index < breakSet[j].Index })
	sort.Slice(segments, func(i, j int) bool { return segments[i][0] < segments[j][0] })

	result := &StructuralBreakResult{
		Breaks:       breakSet,
		Segments:     make([]Segment, 0, len(segments)),
		Observations: n,
		Significance: cfg.Significance,
	}
	for _, seg := range segments {
		vals := scores[seg[0]:seg[1]]
		result.Segments = append(result.Segments, Segment{
			Start:  seg[0],
			End:    seg[1],
			Mean:   stats.Mean(vals),
			StdDev: stats.StdDev(vals),
		})
	}

	slog.Default().InfoContext(ctx, "structural break detection complete",
		"observations", n,
		"breaks", len(breakSet),
		"segments", len(result.Segments),
	)
	return result, nil
}

// bestSplit scans every admissible split of scores[lo:hi] and returns the
// one with the highest F-statistic. Prefix sums keep the scan linear.
func bestSplit(scores []float64, lo, hi, minSegment int) (BreakPoint, bool) {
	n := hi - lo
	if n < 2*minSegment {
		return BreakPoint{}, false
	}

	var sum, sumSq float64
	prefix := make([]float64, n+1)
	prefixSq := make([]float64, n+1)
	for i := 0; i < n; i++ {
		v := scores[lo+i]
		sum += v
		sumSq += v * v
		prefix[i+1] = sum
		prefixSq[i+1] = sumSq
	}
	ssrTotal := sumSq - sum*sum/float64(n)
	if ssrTotal <= 0 {
		// Constant segment: nothing to split.
		return BreakPoint{}, false
	}

	bestIdx := -1
	bestSSR := math.Inf(1)
	for k := minSegment; k <= n-minSegment; k++ {
		leftSum := prefix[k]
		leftSq := prefixSq[k]
		rightSum := sum - leftSum
		rightSq := sumSq - leftSq
		ssr := (leftSq - leftSum*leftSum/float64(k)) +
			(rightSq - rightSum*rightSum/float64(n-k))
		if ssr < bestSSR {
			bestSSR = ssr
			bestIdx = k
		}
	}
	if bestIdx == -1 {
		return BreakPoint{}, false
	}

	df2 := float64(n - 2)
	var fStat, pValue float64
	if bestSSR <= 1e-12 {
		// Perfect split of a non-constant segment.
		fStat = math.Inf(1)
		pValue = 0
	} else {
		fStat = (ssrTotal - bestSSR) / (bestSSR / df2)
		pValue = stats.FPValue(fStat, 1, df2)
	}

	return BreakPoint{Index: lo + bestIdx, FStat: fStat, PValue: pValue}, true
}
