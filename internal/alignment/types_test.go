package alignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "coordcli/internal/errors"
)

func mkTime(sec int) time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second)
}

func mkBar(sec int, close float64) Bar {
	return Bar{
		Time:   mkTime(sec),
		Open:   close,
		High:   close * 1.001,
		Low:    close * 0.999,
		Close:  close,
		Volume: 10,
	}
}

func TestBarIsValid(t *testing.T) {
	tests := []struct {
		name  string
		bar   Bar
		valid bool
	}{
		{"valid", mkBar(0, 100), true},
		{"zero time", Bar{Open: 1, High: 1, Low: 1, Close: 1}, false},
		{"negative volume", Bar{Time: mkTime(0), Open: 1, High: 1, Low: 1, Close: 1, Volume: -1}, false},
		{"high below close", Bar{Time: mkTime(0), Open: 100, High: 99, Low: 98, Close: 100, Volume: 1}, false},
		{"low above open", Bar{Time: mkTime(0), Open: 100, High: 102, Low: 101, Close: 102, Volume: 1}, false},
		{"non-positive price", Bar{Time: mkTime(0), Open: 0, High: 1, Low: 0.5, Close: 1, Volume: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.bar.IsValid())
		})
	}
}

func TestVenueSeriesValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s := VenueSeries{Venue: "alpha", Granularity: time.Second, Bars: []Bar{mkBar(0, 100), mkBar(1, 101)}}
		assert.NoError(t, s.Validate())
	})

	t.Run("missing venue name", func(t *testing.T) {
		s := VenueSeries{Bars: []Bar{mkBar(0, 100)}}
		err := s.Validate()
		require.Error(t, err)
		assert.Equal(t, engerr.CodeConfiguration, engerr.CodeOf(err))
	})

	t.Run("non-increasing timestamps", func(t *testing.T) {
		s := VenueSeries{Venue: "alpha", Bars: []Bar{mkBar(1, 100), mkBar(1, 101)}}
		assert.Error(t, s.Validate())
	})
}

func TestGridLogReturns(t *testing.T) {
	times := []time.Time{mkTime(0), mkTime(1), mkTime(2)}
	grid, err := NewGrid(times, map[string][]float64{
		"alpha": {100, 110, 99},
		"beta":  {50, 50, 50},
	}, FillInner)
	require.NoError(t, err)

	rets := grid.LogReturns()
	assert.Equal(t, 2, rets.NumRows())

	alpha := rets.MustColumn("alpha")
	assert.InDelta(t, 0.0953101798, alpha[0], 1e-9)
	assert.InDelta(t, -0.1053605157, alpha[1], 1e-9)

	beta := rets.MustColumn("beta")
	assert.InDelta(t, 0.0, beta[0], 1e-12)
	assert.InDelta(t, 0.0, beta[1], 1e-12)
}

func TestGridColumnMissingVenue(t *testing.T) {
	grid, err := NewGrid([]time.Time{mkTime(0)}, map[string][]float64{"alpha": {1}}, FillInner)
	require.NoError(t, err)

	_, err = grid.Column("gamma")
	assert.Error(t, err)
	assert.Panics(t, func() { grid.MustColumn("gamma") })
}

func TestNewGridLengthMismatch(t *testing.T) {
	_, err := NewGrid([]time.Time{mkTime(0), mkTime(1)}, map[string][]float64{"alpha": {1}}, FillInner)
	assert.Error(t, err)
}
