package alignment

import (
	"fmt"
	"math"
	"time"

	engerr "coordcli/internal/errors"
)

// Bar is one OHLCV observation for a venue.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IsValid checks OHLCV sanity for a single bar.
func (b Bar) IsValid() bool {
	if b.Time.IsZero() || b.Volume < 0 {
		return false
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	hi := math.Max(b.Open, b.Close)
	lo := math.Min(b.Open, b.Close)
	return b.High >= hi && b.Low <= lo
}

// VenueSeries is the ordered bar sequence for one venue. Immutable once
// produced for an analysis window: alignment and synthesis always return
// fresh series.
type VenueSeries struct {
	Venue       string        `json:"venue"`
	Granularity time.Duration `json:"granularity"`
	Synthetic   bool          `json:"synthetic"`
	Bars        []Bar         `json:"bars"`
}

// Validate checks the series invariants: strictly increasing timestamps and
// per-bar OHLCV sanity.
func (s *VenueSeries) Validate() error {
	if s.Venue == "" {
		return engerr.Configuration("venue series missing venue name")
	}
	for i, b := range s.Bars {
		if !b.IsValid() {
			return engerr.Newf(engerr.CodeIO, "venue %s: invalid bar at index %d (%s)", s.Venue, i, b.Time.Format(time.RFC3339))
		}
		if i > 0 && !b.Time.After(s.Bars[i-1].Time) {
			return engerr.Newf(engerr.CodeIO, "venue %s: timestamps not strictly increasing at index %d", s.Venue, i)
		}
	}
	return nil
}

// Order is a single order placement used for overlap analysis.
type Order struct {
	Time  time.Time `json:"time"`
	Venue string    `json:"venue"`
	Price float64   `json:"price"`
	Size  float64   `json:"size"`
	Side  string    `json:"side"` // "buy" or "sell"
}

// IsValid checks order sanity.
func (o Order) IsValid() bool {
	return !o.Time.IsZero() && o.Price > 0 && o.Size > 0 &&
		(o.Side == "buy" || o.Side == "sell")
}

// FillPolicy names the gap-resolution strategy applied when joining venue
// series onto a common grid.
type FillPolicy string

const (
	// FillInner drops timestamps missing on any venue. Used when downstream
	// statistics require complete cases.
	FillInner FillPolicy = "inner"
	// FillForward forward-fills gaps from the previous observation (with a
	// back-fill for leading gaps). Used when continuity matters more than
	// strict simultaneity.
	FillForward FillPolicy = "ffill"
)

// Valid reports whether the policy is one of the supported values.
func (p FillPolicy) Valid() bool {
	return p == FillInner || p == FillForward
}

// Grid is a time-indexed table with one column of a derived quantity per
// venue. All venues share the identical timestamp index.
type Grid struct {
	Times       []time.Time
	Venues      []string
	columns     map[string][]float64
	Policy      FillPolicy
	Synthetic   bool
	Granularity time.Duration
}

// NumRows returns the number of timestamps in the grid.
func (g *Grid) NumRows() int {
	return len(g.Times)
}

// Column returns the value column for a venue, or an error when the venue
// is not part of the grid.
func (g *Grid) Column(venue string) ([]float64, error) {
	col, ok := g.columns[venue]
	if !ok {
		return nil, fmt.Errorf("venue %s not in grid", venue)
	}
	return col, nil
}

// MustColumn returns the column for a venue, panicking when absent. For use
// after venue membership has been established.
func (g *Grid) MustColumn(venue string) []float64 {
	col, err := g.Column(venue)
	if err != nil {
		panic(err)
	}
	return col
}

// Row returns the values of all venues at row index i, in Venues order.
func (g *Grid) Row(i int) []float64 {
	row := make([]float64, len(g.Venues))
	for j, v := range g.Venues {
		row[j] = g.columns[v][i]
	}
	return row
}

// LogReturns derives a new grid of per-venue log returns. The returned grid
// has one fewer row; row i holds ln(p_{i+1}/p_i).
func (g *Grid) LogReturns() *Grid {
	n := g.NumRows()
	out := &Grid{
		Venues:      append([]string(nil), g.Venues...),
		columns:     make(map[string][]float64, len(g.Venues)),
		Policy:      g.Policy,
		Synthetic:   g.Synthetic,
		Granularity: g.Granularity,
	}
	if n < 2 {
		out.Times = nil
		for _, v := range g.Venues {
			out.columns[v] = nil
		}
		return out
	}
	out.Times = append([]time.Time(nil), g.Times[1:]...)
	for _, v := range g.Venues {
		prices := g.columns[v]
		rets := make([]float64, n-1)
		for i := 1; i < n; i++ {
			if prices[i-1] > 0 && prices[i] > 0 {
				rets[i-1] = math.Log(prices[i] / prices[i-1])
			}
		}
		out.columns[v] = rets
	}
	return out
}
