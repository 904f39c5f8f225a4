package coordination

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"coordcli/internal/alignment"
	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
	"coordcli/internal/stats"
)

// AnalyzeSyncMoves detects simultaneous same-direction price jumps across
// the venue quorum within the configured window and compares the observed
// coincidence count to a bootstrapped independence null. The input grid
// must hold log returns.
func AnalyzeSyncMoves(ctx context.Context, returns *alignment.Grid, cfg config.SyncMoveConfig, seed int64) (*SyncMoveResult, error) {
	logger := slog.Default()

	venues := returns.Venues
	if len(venues) < cfg.MinVenues {
		return nil, engerr.InsufficientData("synchronous move detection needs >= %d venues, have %d", cfg.MinVenues, len(venues))
	}
	n := returns.NumRows()
	if n < 2 {
		return nil, engerr.InsufficientData("synchronous move detection needs >= 2 return observations, have %d", n)
	}

	step := returns.Granularity
	if step <= 0 {
		step = time.Second
	}
	windowSteps := int(cfg.Window / step)
	if windowSteps < 1 {
		windowSteps = 1
	}

	thresholds := make(map[string]float64, len(venues))
	signs := make(map[string][]int, len(venues))
	for _, v := range venues {
		rets := returns.MustColumn(v)
		absRets := make([]float64, len(rets))
		for i, r := range rets {
			absRets[i] = math.Abs(r)
		}
		threshold := stats.Percentile(absRets, cfg.JumpPctile)
		thresholds[v] = threshold
		signs[v] = jumpSigns(rets, threshold)
	}

	events := scanCoincidences(returns.Times, venues, signs, windowSteps, cfg.MinVenues)
	observed := len(events)

	expected, pValue := bootstrapNull(venues, signs, n, windowSteps, cfg.MinVenues, cfg.BootstrapTrials, observed, seed)

	lift := 0.0
	if expected > 0 {
		lift = float64(observed) / expected
	}

	result := &SyncMoveResult{
		Thresholds:    thresholds,
		Events:        events,
		Observed:      observed,
		ExpectedMean:  expected,
		PValue:        pValue,
		Lift:          lift,
		Trials:        cfg.BootstrapTrials,
		WindowSteps:   windowSteps,
		VenueQuorum:   cfg.MinVenues,
		JumpThreshold: cfg.JumpPctile,
	}

	logger.InfoContext(ctx, "synchronous move analysis complete",
		"observed", observed,
		"expected", expected,
		"lift", lift,
		"p_value", pValue,
	)
	return result, nil
}

// jumpSigns marks each return as +1/-1 when |r| exceeds the threshold, 0
// otherwise. A zero threshold (flat history) marks nothing: with no
// variation there is no meaningful jump.
func jumpSigns(rets []float64, threshold float64) []int {
	signs := make([]int, len(rets))
	if threshold <= 0 {
		return signs
	}
	for i, r := range rets {
		if r > threshold {
			signs[i] = 1
		} else if r < -threshold {
			signs[i] = -1
		}
	}
	return signs
}

// scanCoincidences walks the grid forward and, at each anchor where some
// venue jumps, collects the venues jumping with the same sign within the
// window. Once an event is recorded the scan skips past its window so one
// burst is counted once per direction.
func scanCoincidences(times []time.Time, venues []string, signs map[string][]int, windowSteps, quorum int) []CoincidenceEvent {
	n := 0
	for _, s := range signs {
		n = len(s)
		break
	}

	var events []CoincidenceEvent
	nextAllowed := map[int]int{1: 0, -1: 0}

	for t := 0; t < n; t++ {
		for _, dir := range []int{1, -1} {
			if t < nextAllowed[dir] {
				continue
			}
			anchored := false
			for _, v := range venues {
				if signs[v][t] == dir {
					anchored = true
					break
				}
			}
			if !anchored {
				continue
			}

			var members []string
			end := t + windowSteps
			if end >= n {
				end = n - 1
			}
			for _, v := range venues {
				for u := t; u <= end; u++ {
					if signs[v][u] == dir {
						members = append(members, v)
						break
					}
				}
			}
			if len(members) >= quorum {
				events = append(events, CoincidenceEvent{
					Time:   times[t],
					Venues: members,
					Sign:   dir,
				})
				nextAllowed[dir] = end + 1
			}
		}
	}
	return events
}

// bootstrapNull simulates each venue's jumps independently at its
// empirical up/down jump probabilities, re-runs the coincidence scan per
// trial, and returns the mean simulated count plus the empirical p-value
// (fraction of trials meeting or exceeding the observed count).
func bootstrapNull(venues []string, signs map[string][]int, n, windowSteps, quorum, trials, observed int, seed int64) (expected, pValue float64) {
	if trials <= 0 {
		return 0, 1
	}

	type jumpProb struct{ up, down float64 }
	probs := make(map[string]jumpProb, len(venues))
	for _, v := range venues {
		up, down := 0, 0
		for _, s := range signs[v] {
			if s == 1 {
				up++
			} else if s == -1 {
				down++
			}
		}
		probs[v] = jumpProb{
			up:   float64(up) / float64(n),
			down: float64(down) / float64(n),
		}
	}

	rng := stats.NewRand(seed, "syncmove-bootstrap")
	// Reuse timestamps only for the scan API; simulated event times are
	// irrelevant to the count.
	fakeTimes := make([]time.Time, n)

	sum := 0
	meetOrExceed := 0
	simSigns := make(map[string][]int, len(venues))
	for _, v := range venues {
		simSigns[v] = make([]int, n)
	}
	for trial := 0; trial < trials; trial++ {
		for _, v := range venues {
			simulateSigns(rng, probs[v].up, probs[v].down, simSigns[v])
		}
		count := len(scanCoincidences(fakeTimes, venues, simSigns, windowSteps, quorum))
		sum += count
		if count >= observed {
			meetOrExceed++
		}
	}

	expected = float64(sum) / float64(trials)
	pValue = float64(meetOrExceed) / float64(trials)
	return expected, pValue
}

func simulateSigns(rng *rand.Rand, pUp, pDown float64, dst []int) {
	for i := range dst {
		r := rng.Float64()
		switch {
		case r < pUp:
			dst[i] = 1
		case r < pUp+pDown:
			dst[i] = -1
		default:
			dst[i] = 0
		}
	}
}
