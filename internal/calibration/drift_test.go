package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "coordcli/internal/errors"
)

func TestCUSUMFlagsLevelShift(t *testing.T) {
	scores := levelSeries([]int{30, 30}, []float64{0.4, 0.6}, 0.01)

	alarms, err := CUSUM(scores, calCfg())
	require.NoError(t, err)
	require.NotEmpty(t, alarms)

	// The shift at index 30 is ~20 reference sigmas, far past the
	// threshold, so the first post-shift observation already alarms.
	assert.Equal(t, 30, alarms[0].Index)
	assert.Equal(t, DetectorCUSUM, alarms[0].Detector)
	assert.Greater(t, alarms[0].Statistic, calCfg().CUSUMThreshold)
}

func TestCUSUMQuietSeriesNoAlarm(t *testing.T) {
	scores := levelSeries([]int{60}, []float64{0.5}, 0.01)

	alarms, err := CUSUM(scores, calCfg())
	require.NoError(t, err)
	assert.Empty(t, alarms)
}

func TestCUSUMConstantReferenceRejected(t *testing.T) {
	scores := make([]float64, 40)
	for i := range scores {
		scores[i] = 0.5
	}

	_, err := CUSUM(scores, calCfg())
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeDegenerateInput))
}

func TestPageHinkleyFlagsUpwardDrift(t *testing.T) {
	scores := levelSeries([]int{30, 30}, []float64{0.4, 0.6}, 0.01)

	alarms, err := PageHinkley(scores, calCfg())
	require.NoError(t, err)
	require.NotEmpty(t, alarms)
	assert.Equal(t, 30, alarms[0].Index)
	assert.Equal(t, DetectorPageHinkley, alarms[0].Detector)
}

func TestPageHinkleyQuietSeriesNoAlarm(t *testing.T) {
	scores := levelSeries([]int{60}, []float64{0.5}, 0.01)

	alarms, err := PageHinkley(scores, calCfg())
	require.NoError(t, err)
	assert.Empty(t, alarms)
}

func TestDriftDetectorsNeedData(t *testing.T) {
	short := levelSeries([]int{10}, []float64{0.5}, 0.01)

	_, err := CUSUM(short, calCfg())
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeInsufficientData))

	_, err = PageHinkley(short, calCfg())
	require.Error(t, err)
	assert.True(t, engerr.Is(err, engerr.CodeInsufficientData))
}
