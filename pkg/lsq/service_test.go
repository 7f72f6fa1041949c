package lsq

import (
	"testing"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestWeightedMean_EqualSigmasIsArithmeticMean(t *testing.T) {
	obs := []float64{1.00012, 1.00009, 1.00015, 1.00011}
	sigmas := []float64{0.00003, 0.00003, 0.00003, 0.00003}

	est, err := WeightedMean(obs, sigmas)
	require.NoError(t, err)
	assert.InDelta(t, stat.Mean(obs, nil), est.Value, 1e-12)
	assert.InDelta(t, 4/(0.00003*0.00003), est.Normal, 1e-3)
	assert.InDelta(t, 0.00003/2, est.StdDev(), 1e-15)
}

func TestWeightedMean_Weights(t *testing.T) {
	// weights 1/1 and 1/4 -> (10*1 + 20*0.25) / 1.25 = 12
	est, err := WeightedMean([]float64{10, 20}, []float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 12, est.Value, 1e-12)
	require.Len(t, est.Residuals, 2)
	assert.InDelta(t, 2, est.Residuals[0], 1e-12)
	assert.InDelta(t, -8, est.Residuals[1], 1e-12)

	sd, err := est.ResidualStdDev(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.4472135955, sd, 1e-9)
}

func TestWeightedMean_Single(t *testing.T) {
	est, err := WeightedMean([]float64{3.14159}, []float64{0.0001})
	require.NoError(t, err)
	assert.InDelta(t, 3.14159, est.Value, 1e-12)
	assert.InDelta(t, 0.0, est.Residuals[0], 1e-12)
}

func TestWeightedMean_Errors(t *testing.T) {
	_, err := WeightedMean(nil, nil)
	assert.ErrorIs(t, err, types.ErrInsufficientObservations)

	_, err = WeightedMean([]float64{1, 2}, []float64{0.1, 0})
	assert.ErrorIs(t, err, types.ErrDegenerateEstimate)

	_, err = WeightedMean([]float64{1, 2}, []float64{0.1})
	assert.Error(t, err)
}

func TestResidualStdDev_NonPositiveRadicand(t *testing.T) {
	_, err := ResidualStdDev(0.001, 1/(0.001*0.001))
	assert.ErrorIs(t, err, types.ErrDegenerateEstimate)

	_, err = ResidualStdDev(0.001, 1/(0.002*0.002))
	assert.ErrorIs(t, err, types.ErrDegenerateEstimate)
}
