package alignment

import (
	"math"
	"math/rand"
	"time"

	engerr "coordcli/internal/errors"
)

// SynthesizeSeconds fabricates a second-level series from minute bars when
// no native second data exists. Each minute's net move is linearly
// interpolated across its 60 seconds, volume is split evenly, and a bounded
// seeded perturbation (at most maxNoise of the minute's net move) is added
// per second so the result is not perfectly linear. The returned series is
// flagged Synthetic and callers must carry that flag into output metadata.
//
// The same (series, seed, maxNoise) always produces the identical result.
func SynthesizeSeconds(s VenueSeries, seed int64, maxNoise float64) (VenueSeries, error) {
	if err := s.Validate(); err != nil {
		return VenueSeries{}, err
	}
	if s.Granularity != time.Minute {
		return VenueSeries{}, engerr.Configuration("second synthesis requires minute bars, got granularity %s", s.Granularity)
	}
	if maxNoise < 0 || maxNoise > 0.5 {
		return VenueSeries{}, engerr.Configuration("synthesis noise fraction %.3f outside [0, 0.5]", maxNoise)
	}
	if len(s.Bars) == 0 {
		return VenueSeries{}, engerr.InsufficientData("venue %s: no minute bars to synthesize from", s.Venue)
	}

	rng := rand.New(rand.NewSource(seed))
	out := VenueSeries{
		Venue:       s.Venue,
		Granularity: time.Second,
		Synthetic:   true,
		Bars:        make([]Bar, 0, len(s.Bars)*60),
	}

	for _, mb := range s.Bars {
		netMove := mb.Close - mb.Open
		perSecVol := mb.Volume / 60.0
		noiseBound := math.Abs(netMove) * maxNoise

		prevClose := mb.Open
		for sec := 0; sec < 60; sec++ {
			// Linear path from open to close, perturbed within the bound.
			frac := float64(sec+1) / 60.0
			price := mb.Open + netMove*frac
			if sec < 59 && noiseBound > 0 {
				price += (rng.Float64()*2 - 1) * noiseBound
			}
			// The minute's close is exact so cross-granularity joins agree.
			if sec == 59 {
				price = mb.Close
			}
			if price <= 0 {
				price = prevClose
			}

			hi := math.Max(prevClose, price)
			lo := math.Min(prevClose, price)
			out.Bars = append(out.Bars, Bar{
				Time:   mb.Time.Add(time.Duration(sec) * time.Second),
				Open:   prevClose,
				High:   hi,
				Low:    lo,
				Close:  price,
				Volume: perSecVol,
			})
			prevClose = price
		}
	}
	return out, nil
}

// EnsureSecondData returns the series itself when it already carries second
// bars, and a synthesized second series otherwise. Seeds are derived from
// the run seed and the venue name so venues perturb independently but
// deterministically.
func EnsureSecondData(s VenueSeries, runSeed int64, maxNoise float64) (VenueSeries, error) {
	if s.Granularity == time.Second {
		return s, nil
	}
	return SynthesizeSeconds(s, venueSeed(runSeed, s.Venue), maxNoise)
}

// venueSeed derives a deterministic sub-seed from the run seed and venue
// name (FNV-1a over the name, folded into the seed).
func venueSeed(runSeed int64, venue string) int64 {
	const offset64 = 1469598103934665603
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, c := range []byte(venue) {
		h ^= uint64(c)
		h *= prime64
	}
	return runSeed ^ int64(h)
}
