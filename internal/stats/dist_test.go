package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalCDF(t *testing.T) {
	assert.InDelta(t, 0.5, NormalCDF(0), 1e-12)
	assert.InDelta(t, 0.9750021, NormalCDF(1.96), 1e-6)
	assert.InDelta(t, 0.0249979, NormalCDF(-1.96), 1e-6)
}

func TestNormalQuantile(t *testing.T) {
	assert.InDelta(t, 0.0, NormalQuantile(0.5), 1e-8)
	assert.InDelta(t, 1.6448536, NormalQuantile(0.95), 1e-6)
	assert.InDelta(t, 1.9599640, NormalQuantile(0.975), 1e-6)
	assert.InDelta(t, -2.3263479, NormalQuantile(0.01), 1e-6)

	// Quantile and CDF are inverses.
	for _, p := range []float64{0.01, 0.1, 0.25, 0.5, 0.9, 0.99} {
		assert.InDelta(t, p, NormalCDF(NormalQuantile(p)), 1e-8)
	}
}

func TestStudentTCDF(t *testing.T) {
	// Reference values from R: pt(2.0, 10) = 0.9633060.
	assert.InDelta(t, 0.9633060, StudentTCDF(2.0, 10), 1e-6)
	assert.InDelta(t, 0.5, StudentTCDF(0, 5), 1e-10)
	// Symmetry.
	assert.InDelta(t, 1-StudentTCDF(1.5, 7), StudentTCDF(-1.5, 7), 1e-10)
	// Approaches the normal for large df.
	assert.InDelta(t, NormalCDF(1.96), StudentTCDF(1.96, 1e6), 1e-4)
}

func TestStudentTPValue(t *testing.T) {
	// R: 2*(1-pt(2.228, 10)) = 0.050007 (the classic t_{0.025,10}).
	assert.InDelta(t, 0.05, StudentTPValue(2.228, 10), 1e-3)
	assert.InDelta(t, 1.0, StudentTPValue(0, 10), 1e-10)
	assert.Equal(t, 1.0, StudentTPValue(2.0, 0))
}

func TestChiSquare(t *testing.T) {
	// R: pchisq(3.84, 1) = 0.9499565.
	assert.InDelta(t, 0.9499565, ChiSquareCDF(3.84, 1), 1e-5)
	// R: pchisq(5.99, 2) = 0.9499634.
	assert.InDelta(t, 0.9499634, ChiSquareCDF(5.99, 2), 1e-5)
	assert.InDelta(t, 0.05, ChiSquarePValue(3.84, 1), 1e-3)
	assert.Zero(t, ChiSquareCDF(-1, 2))
	assert.Equal(t, 1.0, ChiSquarePValue(1, 0))
}

func TestFDistribution(t *testing.T) {
	// R: pf(4.0, 2, 20) = 0.9655... ; qf checks via upper tail.
	assert.InDelta(t, 0.96547, FCDF(4.0, 2, 20), 1e-4)
	// R: 1-pf(3.4928, 2, 20) = 0.05.
	assert.InDelta(t, 0.05, FPValue(3.4928, 2, 20), 1e-3)
	assert.Zero(t, FCDF(0, 2, 20))
}

func TestRegIncBetaBounds(t *testing.T) {
	assert.Equal(t, 0.0, RegIncBeta(2, 3, 0))
	assert.Equal(t, 1.0, RegIncBeta(2, 3, 1))
	// I_x(1,1) = x.
	assert.InDelta(t, 0.3, RegIncBeta(1, 1, 0.3), 1e-10)
}

func TestWilsonInterval(t *testing.T) {
	lo, hi := WilsonInterval(5, 100, 0.95)
	assert.Greater(t, hi, lo)
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.LessOrEqual(t, hi, 1.0)
	// The point estimate sits inside the interval.
	assert.Less(t, lo, 0.05)
	assert.Greater(t, hi, 0.05)

	lo, hi = WilsonInterval(0, 0, 0.95)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func TestSubSeedDeterministic(t *testing.T) {
	a := SubSeed(42, "pair:alpha-beta")
	b := SubSeed(42, "pair:alpha-beta")
	c := SubSeed(42, "pair:alpha-gamma")
	d := SubSeed(43, "pair:alpha-beta")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestBootstrapCI(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	values := make([]float64, 200)
	for i := range values {
		values[i] = rng.NormFloat64() + 10
	}

	ciRng := NewRand(42, "ci")
	lo, hi := BootstrapCI(ciRng, values, 1000, 0.95, Mean)
	require.Less(t, lo, hi)
	// The interval contains the point estimate.
	m := Mean(values)
	assert.LessOrEqual(t, lo, m)
	assert.GreaterOrEqual(t, hi, m)

	// Deterministic for a fixed seed.
	lo2, hi2 := BootstrapCI(NewRand(42, "ci"), values, 1000, 0.95, Mean)
	assert.Equal(t, lo, lo2)
	assert.Equal(t, hi, hi2)

	lo, hi = BootstrapCI(ciRng, nil, 100, 0.95, Mean)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}
