package coordination

import (
	"math"
	"sort"

	"coordcli/internal/alignment"
	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
	"coordcli/internal/stats"
)

// DepthWeightedCosine computes the cosine similarity of two venues'
// depth-size vectors over the top-N book levels, weighted by exponential
// decay w_i = exp(-alpha·i) normalized to sum 1. Vectors shorter than N
// are zero-padded. A zero-norm vector yields the neutral value 0 together
// with a degenerate-input error the caller records for audit.
//
// The metric is symmetric in its arguments and always lies in [0,1].
func DepthWeightedCosine(a, b DepthSnapshot, cfg config.SimilarityConfig) (float64, error) {
	n := cfg.DepthLevels
	if n <= 0 || cfg.DepthDecayAlpha <= 0 {
		return 0, engerr.Configuration("depth cosine needs positive levels and decay alpha, got n=%d alpha=%.4f", n, cfg.DepthDecayAlpha)
	}

	weights := depthWeights(n, cfg.DepthDecayAlpha)
	va := weightedSizeVector(a.Levels, weights)
	vb := weightedSizeVector(b.Levels, weights)

	normA := vectorNorm(va)
	normB := vectorNorm(vb)
	if normA == 0 || normB == 0 {
		return 0, engerr.DegenerateInput("zero-norm depth vector (venue %s: %.3g, venue %s: %.3g)", a.Venue, normA, b.Venue, normB)
	}

	dot := 0.0
	for i := range va {
		dot += va[i] * vb[i]
	}
	return stats.Clamp01(dot / (normA * normB)), nil
}

func depthWeights(n int, alpha float64) []float64 {
	weights := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		weights[i] = math.Exp(-alpha * float64(i))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func weightedSizeVector(levels []BookLevel, weights []float64) []float64 {
	v := make([]float64, len(weights))
	for i := range weights {
		if i < len(levels) {
			v[i] = weights[i] * levels[i].Size
		}
	}
	return v
}

func vectorNorm(v []float64) float64 {
	ss := 0.0
	for _, x := range v {
		ss += x * x
	}
	return math.Sqrt(ss)
}

// placementKey identifies an order placement by its rounded buckets.
// Uniqueness is defined entirely by bucket granularity.
type placementKey struct {
	timeBucket  int64
	priceBucket int64
	sizeBucket  int64
	side        string
}

func bucketOrder(o alignment.Order, cfg config.SimilarityConfig) placementKey {
	return placementKey{
		timeBucket:  o.Time.UnixMilli() / cfg.TimeBucketMillis,
		priceBucket: int64(math.Round(o.Price / cfg.PriceBucket)),
		sizeBucket:  int64(math.Round(o.Size / cfg.SizeBucket)),
		side:        o.Side,
	}
}

// JaccardIndex computes |A ∩ B| / |A ∪ B| over the bucketed placement sets
// of two venues. An empty union yields the neutral value 0 with a
// degenerate-input error.
func JaccardIndex(a, b []alignment.Order, cfg config.SimilarityConfig) (float64, error) {
	if cfg.TimeBucketMillis <= 0 || cfg.PriceBucket <= 0 || cfg.SizeBucket <= 0 {
		return 0, engerr.Configuration("jaccard buckets must be positive: time=%dms price=%.4g size=%.4g",
			cfg.TimeBucketMillis, cfg.PriceBucket, cfg.SizeBucket)
	}

	setA := make(map[placementKey]struct{}, len(a))
	for _, o := range a {
		setA[bucketOrder(o, cfg)] = struct{}{}
	}
	setB := make(map[placementKey]struct{}, len(b))
	for _, o := range b {
		setB[bucketOrder(o, cfg)] = struct{}{}
	}

	union := len(setB)
	inter := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0, engerr.DegenerateInput("empty order-placement union")
	}
	return stats.Clamp01(float64(inter) / float64(union)), nil
}

// PriceCorrelation rescales the Pearson correlation of two aligned price
// series to [0,1] via (r+1)/2. Fewer than two points is degenerate input;
// a NaN correlation from nonzero-length input is numerical instability.
// Both resolve to the neutral value 0.
func PriceCorrelation(a, b []float64) (float64, error) {
	if len(a) < 2 || len(b) < 2 || len(a) != len(b) {
		return 0, engerr.DegenerateInput("price correlation needs >= 2 aligned points, have %d/%d", len(a), len(b))
	}
	r, ok := stats.Pearson(a, b)
	if !ok {
		return 0, engerr.NumericalInstability("undefined correlation over %d points", len(a))
	}
	return stats.Clamp01((r + 1) / 2), nil
}

// CompositeScore blends the three similarity metrics with weights
// renormalized to sum 1, so (1,1,1) and (5,5,5) yield identical scores.
// The result is a convex combination of values in [0,1], clamped anyway
// as a computation-error guard.
func CompositeScore(depthCos, jaccard, correlation float64, cfg config.SimilarityConfig) (float64, error) {
	sum := cfg.DepthWeight + cfg.JaccardWeight + cfg.CorrWeight
	if sum <= 0 {
		return 0, engerr.Configuration("composite weights sum to %.4f, need a positive sum", sum)
	}
	score := (cfg.DepthWeight*depthCos + cfg.JaccardWeight*jaccard + cfg.CorrWeight*correlation) / sum
	return stats.Clamp01(score), nil
}

// CompositeDistribution bootstrap-resamples the aligned price series
// (pairwise, preserving simultaneity), recomputes the composite score at
// each resample with the book and placement components held fixed, and
// returns the resampled scores sorted ascending. Deterministic for a
// fixed seed.
func CompositeDistribution(pricesA, pricesB []float64, depthCos, jaccard float64, cfg config.SimilarityConfig, seed int64) []float64 {
	n := len(pricesA)
	iters := cfg.BootstrapIters
	if n == 0 || iters <= 0 {
		return nil
	}

	rng := stats.NewRand(seed, "composite-bootstrap")
	scores := make([]float64, iters)
	sampleA := make([]float64, n)
	sampleB := make([]float64, n)
	for i := 0; i < iters; i++ {
		for j := 0; j < n; j++ {
			k := rng.Intn(n)
			sampleA[j] = pricesA[k]
			sampleB[j] = pricesB[k]
		}
		corr, err := PriceCorrelation(sampleA, sampleB)
		if err != nil {
			corr = 0
		}
		score, err := CompositeScore(depthCos, jaccard, corr, cfg)
		if err != nil {
			score = 0
		}
		scores[i] = score
	}
	sort.Float64s(scores)
	return scores
}

// CompositeCI returns the 2.5/97.5 percentile interval of a bootstrap
// distribution produced by CompositeDistribution.
func CompositeCI(sortedScores []float64) (lo, hi float64) {
	if len(sortedScores) == 0 {
		return 0, 0
	}
	return stats.PercentileSorted(sortedScores, 0.025), stats.PercentileSorted(sortedScores, 0.975)
}
