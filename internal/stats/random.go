package stats

import "math/rand"

// SubSeed derives a deterministic sub-seed from a run seed and a label, so
// independent workers (per venue pair, per analyzer) get uncorrelated but
// reproducible random streams regardless of scheduling order.
func SubSeed(runSeed int64, label string) int64 {
	const offset64 = 1469598103934665603
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, c := range []byte(label) {
		h ^= uint64(c)
		h *= prime64
	}
	return runSeed ^ int64(h)
}

// NewRand builds a seeded generator for one worker.
func NewRand(runSeed int64, label string) *rand.Rand {
	return rand.New(rand.NewSource(SubSeed(runSeed, label)))
}

// Resample fills dst with a bootstrap resample (with replacement) of src.
// dst must have the same length as src.
func Resample(rng *rand.Rand, src, dst []float64) {
	n := len(src)
	for i := range dst {
		dst[i] = src[rng.Intn(n)]
	}
}

// BootstrapCI resamples a statistic nIter times and returns the 2.5/97.5
// percentile interval (for 95% confidence) of the resampled statistic.
// The statistic receives a scratch resample slice it must not retain.
func BootstrapCI(rng *rand.Rand, values []float64, nIter int, confidence float64, stat func([]float64) float64) (lo, hi float64) {
	if len(values) == 0 || nIter <= 0 {
		return 0, 0
	}
	alpha := 1 - confidence
	scratch := make([]float64, len(values))
	samples := make([]float64, nIter)
	for i := 0; i < nIter; i++ {
		Resample(rng, values, scratch)
		samples[i] = stat(scratch)
	}
	lo = Percentile(samples, alpha/2)
	hi = Percentile(samples, 1-alpha/2)
	return lo, hi
}
