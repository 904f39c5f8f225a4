package alignment

import (
	"context"
	"log/slog"
	"sort"
	"time"

	engerr "coordcli/internal/errors"
)

// Align joins venue series onto a common time grid of close prices using
// the given fill policy. Venues with no bars at all do not count toward the
// minimum; an insufficient-data error aborts rather than proceeding with
// fewer venues than requested. All series must share one granularity —
// callers normalize first (see EnsureSecondData) rather than letting one
// venue's spacing silently stand in for the rest.
func Align(ctx context.Context, series []VenueSeries, policy FillPolicy, minVenues int) (*Grid, error) {
	logger := slog.Default()

	if !policy.Valid() {
		return nil, engerr.Configuration("unknown fill policy %q", policy)
	}
	if minVenues < 1 {
		return nil, engerr.Configuration("minimum venues must be at least 1, got %d", minVenues)
	}

	populated := make([]VenueSeries, 0, len(series))
	for _, s := range series {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if len(s.Bars) > 0 {
			populated = append(populated, s)
		}
	}
	if len(populated) < minVenues {
		return nil, engerr.InsufficientData("need %d venues with data, have %d", minVenues, len(populated))
	}

	synthetic := false
	granularity := populated[0].Granularity
	for _, s := range populated[1:] {
		if s.Granularity != granularity {
			return nil, engerr.Configuration("mixed granularities in alignment input: %s has %s, %s has %s",
				populated[0].Venue, granularity, s.Venue, s.Granularity)
		}
	}
	byVenue := make(map[string]map[int64]float64, len(populated))
	venues := make([]string, 0, len(populated))
	for _, s := range populated {
		if _, dup := byVenue[s.Venue]; dup {
			return nil, engerr.Configuration("duplicate venue %s in alignment input", s.Venue)
		}
		venues = append(venues, s.Venue)
		synthetic = synthetic || s.Synthetic
		prices := make(map[int64]float64, len(s.Bars))
		for _, b := range s.Bars {
			prices[b.Time.UnixNano()] = b.Close
		}
		byVenue[s.Venue] = prices
	}
	sort.Strings(venues)

	var stamps []int64
	switch policy {
	case FillInner:
		stamps = intersectTimestamps(byVenue, venues)
	case FillForward:
		stamps = unionTimestamps(byVenue)
	}

	grid := &Grid{
		Times:       make([]time.Time, len(stamps)),
		Venues:      venues,
		columns:     make(map[string][]float64, len(venues)),
		Policy:      policy,
		Synthetic:   synthetic,
		Granularity: granularity,
	}
	for i, ts := range stamps {
		grid.Times[i] = time.Unix(0, ts).UTC()
	}

	for _, v := range venues {
		col := make([]float64, len(stamps))
		prices := byVenue[v]
		switch policy {
		case FillInner:
			for i, ts := range stamps {
				col[i] = prices[ts]
			}
		case FillForward:
			last := 0.0
			for i, ts := range stamps {
				if p, ok := prices[ts]; ok {
					last = p
				}
				col[i] = last
			}
			// Leading gaps take the first real observation.
			first := 0.0
			for _, ts := range stamps {
				if p, ok := prices[ts]; ok {
					first = p
					break
				}
			}
			for i := range col {
				if col[i] == 0 {
					col[i] = first
				} else {
					break
				}
			}
		}
		grid.columns[v] = col
	}

	logger.InfoContext(ctx, "aligned venue series",
		"venues", len(venues),
		"rows", grid.NumRows(),
		"policy", string(policy),
		"synthetic", synthetic,
	)
	return grid, nil
}

// NewGrid builds a grid directly from per-venue columns sharing one
// timestamp index. Intended for tests and for collaborators that already
// hold aligned data.
func NewGrid(times []time.Time, columns map[string][]float64, policy FillPolicy) (*Grid, error) {
	venues := make([]string, 0, len(columns))
	for v, col := range columns {
		if len(col) != len(times) {
			return nil, engerr.Configuration("venue %s column length %d does not match %d timestamps", v, len(col), len(times))
		}
		venues = append(venues, v)
	}
	sort.Strings(venues)
	cols := make(map[string][]float64, len(columns))
	for v, col := range columns {
		cols[v] = append([]float64(nil), col...)
	}
	return &Grid{
		Times:   append([]time.Time(nil), times...),
		Venues:  venues,
		columns: cols,
		Policy:  policy,
	}, nil
}

func intersectTimestamps(byVenue map[string]map[int64]float64, venues []string) []int64 {
	counts := make(map[int64]int)
	for _, v := range venues {
		for ts := range byVenue[v] {
			counts[ts]++
		}
	}
	out := make([]int64, 0, len(counts))
	for ts, c := range counts {
		if c == len(venues) {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func unionTimestamps(byVenue map[string]map[int64]float64) []int64 {
	seen := make(map[int64]bool)
	for _, prices := range byVenue {
		for ts := range prices {
			seen[ts] = true
		}
	}
	out := make([]int64, 0, len(seen))
	for ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
