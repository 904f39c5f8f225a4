package calibration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "coordcli/internal/errors"
)

func TestCalibrateUsesMostRecentSegment(t *testing.T) {
	scores := levelSeries([]int{100, 100}, []float64{0.4, 0.6}, 0.01)

	cal, err := Calibrate(context.Background(), scores, calCfg(), 42)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, cal.Baseline, 1e-9)
	assert.InDelta(t, 100, cal.SegmentStart, 5)
	assert.InDelta(t, 100, cal.SegmentLength, 5)
	assert.Equal(t, 0, cal.OutliersRemoved)
	assert.Equal(t, RegimeLow, cal.Regime)

	assert.LessOrEqual(t, cal.CILow, cal.Baseline)
	assert.GreaterOrEqual(t, cal.CIHigh, cal.Baseline)

	require.NotNil(t, cal.Breaks)
	require.Len(t, cal.Breaks.Breaks, 1)
	assert.Less(t, cal.Breaks.Breaks[0].PValue, 0.05)
}

func TestCalibrateFiltersOutliers(t *testing.T) {
	scores := levelSeries([]int{100, 100}, []float64{0.4, 0.6}, 0.01)
	for _, i := range []int{120, 150, 180} {
		scores[i] = 0.95
	}

	cal, err := Calibrate(context.Background(), scores, calCfg(), 42)
	require.NoError(t, err)

	assert.Equal(t, 3, cal.OutliersRemoved)
	assert.InDelta(t, 0.6, cal.Baseline, 0.015)
}

func TestCalibrateDeterministic(t *testing.T) {
	scores := levelSeries([]int{100, 100}, []float64{0.4, 0.6}, 0.01)

	c1, err := Calibrate(context.Background(), scores, calCfg(), 7)
	require.NoError(t, err)
	c2, err := Calibrate(context.Background(), scores, calCfg(), 7)
	require.NoError(t, err)

	assert.Equal(t, c1.Baseline, c2.Baseline)
	assert.Equal(t, c1.CILow, c2.CILow)
	assert.Equal(t, c1.CIHigh, c2.CIHigh)
}

func TestCalibrateRegimeClassification(t *testing.T) {
	cfg := calCfg()
	tests := []struct {
		name   string
		stdDev float64
		want   VolatilityRegime
	}{
		{"below low band", 0.01, RegimeLow},
		{"between bands", 0.10, RegimeMedium},
		{"above high band", 0.20, RegimeHigh},
		{"exactly low band is medium", cfg.LowVolBand, RegimeMedium},
		{"exactly high band is high", cfg.HighVolBand, RegimeHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRegime(tt.stdDev, cfg))
		})
	}
}

func TestBaselineSnapshot(t *testing.T) {
	scores := levelSeries([]int{100, 100}, []float64{0.4, 0.6}, 0.01)
	cal, err := Calibrate(context.Background(), scores, calCfg(), 42)
	require.NoError(t, err)

	snap := cal.Snapshot()
	assert.Equal(t, cal.Baseline, snap.Baseline)
	assert.Equal(t, string(cal.Regime), snap.Regime)
	assert.Equal(t, 1, snap.Breaks)
	assert.Equal(t, int64(42), snap.Seed)
	assert.Equal(t, cal.GeneratedAt, snap.GeneratedAt)
}

func TestCalibrateTooFewObservations(t *testing.T) {
	_, err := Calibrate(context.Background(), make([]float64, 10), calCfg(), 42)
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeInsufficientData))
}
