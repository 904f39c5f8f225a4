package coordination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coordcli/internal/alignment"
	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
)

func simCfg() config.SimilarityConfig {
	return config.Default().Similarity
}

func book(venue string, sizes ...float64) DepthSnapshot {
	levels := make([]BookLevel, len(sizes))
	for i, s := range sizes {
		levels[i] = BookLevel{Price: 100 - float64(i)*0.01, Size: s}
	}
	return DepthSnapshot{Venue: venue, Time: time.Unix(0, 0).UTC(), Levels: levels}
}

func TestDepthWeightedCosineIdenticalBooks(t *testing.T) {
	a := book("alpha", 10, 8, 6, 4, 2)
	b := book("beta", 10, 8, 6, 4, 2)

	score, err := DepthWeightedCosine(a, b, simCfg())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestDepthWeightedCosineSymmetric(t *testing.T) {
	a := book("alpha", 10, 3, 7, 1)
	b := book("beta", 2, 9, 4, 8)
	cfg := simCfg()

	ab, err := DepthWeightedCosine(a, b, cfg)
	require.NoError(t, err)
	ba, err := DepthWeightedCosine(b, a, cfg)
	require.NoError(t, err)

	assert.InDelta(t, ab, ba, 1e-12)
	assert.GreaterOrEqual(t, ab, 0.0)
	assert.LessOrEqual(t, ab, 1.0)
}

func TestDepthWeightedCosineZeroNormIsDegenerate(t *testing.T) {
	a := book("alpha", 0, 0, 0)
	b := book("beta", 10, 8)

	score, err := DepthWeightedCosine(a, b, simCfg())
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeDegenerateInput))
	assert.Equal(t, 0.0, score)
}

func TestDepthWeightedCosineShortBookZeroPadded(t *testing.T) {
	// A two-level book against a five-level book with identical top levels
	// still scores high but below 1.
	a := book("alpha", 10, 8)
	b := book("beta", 10, 8, 6, 4, 2)

	score, err := DepthWeightedCosine(a, b, simCfg())
	require.NoError(t, err)
	assert.Greater(t, score, 0.85)
	assert.Less(t, score, 1.0)
}

func placements(venue string, prices ...float64) []alignment.Order {
	orders := make([]alignment.Order, len(prices))
	for i, p := range prices {
		orders[i] = alignment.Order{
			Time:  time.Unix(int64(i), 0).UTC(),
			Venue: venue,
			Price: p,
			Size:  1.0,
			Side:  "buy",
		}
	}
	return orders
}

func TestJaccardSelfIsOne(t *testing.T) {
	a := placements("alpha", 100.00, 100.01, 100.02)

	score, err := JaccardIndex(a, a, simCfg())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestJaccardDisjointIsZero(t *testing.T) {
	a := placements("alpha", 100.00, 100.01)
	b := placements("beta", 200.00, 200.01)

	score, err := JaccardIndex(a, b, simCfg())
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestJaccardPartialOverlap(t *testing.T) {
	a := placements("alpha", 100.00, 100.01, 100.02)
	b := placements("beta", 100.00, 100.01, 100.05)

	// Two shared buckets, four in the union.
	score, err := JaccardIndex(a, b, simCfg())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-12)
}

func TestJaccardEmptyUnionIsDegenerate(t *testing.T) {
	score, err := JaccardIndex(nil, nil, simCfg())
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeDegenerateInput))
	assert.Equal(t, 0.0, score)
}

func TestPriceCorrelationRescaled(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{
			name: "perfect positive maps to 1",
			a:    []float64{1, 2, 3, 4},
			b:    []float64{10, 20, 30, 40},
			want: 1.0,
		},
		{
			name: "perfect negative maps to 0",
			a:    []float64{1, 2, 3, 4},
			b:    []float64{40, 30, 20, 10},
			want: 0.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := PriceCorrelation(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, score, 1e-9)
		})
	}
}

func TestPriceCorrelationConstantSeriesIsUnstable(t *testing.T) {
	score, err := PriceCorrelation([]float64{5, 5, 5, 5}, []float64{1, 2, 3, 4})
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeNumericalInstability))
	assert.Equal(t, 0.0, score)
}

func TestPriceCorrelationTooShortIsDegenerate(t *testing.T) {
	score, err := PriceCorrelation([]float64{1}, []float64{2})
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeDegenerateInput))
	assert.Equal(t, 0.0, score)
}

func TestCompositeScoreWeightScaleInvariant(t *testing.T) {
	cfg := simCfg()
	cfg.DepthWeight, cfg.JaccardWeight, cfg.CorrWeight = 1, 1, 1
	s1, err := CompositeScore(0.9, 0.3, 0.6, cfg)
	require.NoError(t, err)

	cfg.DepthWeight, cfg.JaccardWeight, cfg.CorrWeight = 5, 5, 5
	s2, err := CompositeScore(0.9, 0.3, 0.6, cfg)
	require.NoError(t, err)

	assert.InDelta(t, s1, s2, 1e-12)
	assert.InDelta(t, 0.6, s1, 1e-12)
}

func TestCompositeScoreZeroWeightsRejected(t *testing.T) {
	cfg := simCfg()
	cfg.DepthWeight, cfg.JaccardWeight, cfg.CorrWeight = 0, 0, 0

	_, err := CompositeScore(0.9, 0.3, 0.6, cfg)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeConfiguration))
}

func TestCompositeDistributionDeterministic(t *testing.T) {
	cfg := simCfg()
	cfg.BootstrapIters = 200
	a := []float64{100, 101, 100.5, 102, 101.5, 103, 102.5, 104}
	b := []float64{50, 50.6, 50.2, 51.1, 50.9, 51.4, 51.2, 52}

	d1 := CompositeDistribution(a, b, 0.8, 0.4, cfg, 7)
	d2 := CompositeDistribution(a, b, 0.8, 0.4, cfg, 7)
	require.Len(t, d1, 200)
	assert.Equal(t, d1, d2)

	d3 := CompositeDistribution(a, b, 0.8, 0.4, cfg, 8)
	assert.NotEqual(t, d1, d3)

	// Output is sorted ascending.
	for i := 1; i < len(d1); i++ {
		assert.GreaterOrEqual(t, d1[i], d1[i-1])
	}
}

func TestCompositeCIBoundsContainMedian(t *testing.T) {
	cfg := simCfg()
	cfg.BootstrapIters = 500
	a := []float64{100, 101, 100.5, 102, 101.5, 103, 102.5, 104, 103.5, 105}
	b := []float64{50, 50.6, 50.2, 51.1, 50.9, 51.4, 51.2, 52, 51.8, 52.5}

	dist := CompositeDistribution(a, b, 0.8, 0.4, cfg, 11)
	lo, hi := CompositeCI(dist)
	assert.LessOrEqual(t, lo, hi)
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.LessOrEqual(t, hi, 1.0)

	median := dist[len(dist)/2]
	assert.GreaterOrEqual(t, median, lo)
	assert.LessOrEqual(t, median, hi)
}
