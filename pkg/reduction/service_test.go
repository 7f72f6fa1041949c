package reduction

import (
	"fmt"
	"math"
	"testing"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSet(label string, readings ...float64) types.ObservationSet {
	set := types.ObservationSet{Label: label}
	for i, r := range readings {
		set.Rows = append(set.Rows, types.ObservationRow{
			Pin:     fmt.Sprintf("%d", i+1),
			Reading: r,
			StdDev:  0.00002,
		})
	}
	return set
}

func TestReduce_CountAndOrder(t *testing.T) {
	for n := 0; n <= 9; n++ {
		readings := make([]float64, n)
		for i := range readings {
			readings[i] = float64(i) * 0.3
		}
		out := Reduce(makeSet("Set1", readings...), 20, types.StaffAttributes{})
		if n < 2 {
			assert.Empty(t, out)
			continue
		}
		require.Len(t, out, n-1)
		for i, d := range out {
			assert.Equal(t, fmt.Sprintf("%d-%d", i+1, i+2), d.Interval)
		}
	}
}

func TestReduce_CorrectionAndPropagation(t *testing.T) {
	set := makeSet("Set1", 0.5, 1.5)
	attrs := types.StaffAttributes{
		CorrectionFactor:    10e-6,
		ThermalCoefficient:  1e-6,
		StandardTemperature: 25,
	}

	out := Reduce(set, 35, attrs)
	require.Len(t, out, 1)
	d := out[0]
	assert.InDelta(t, 1.0, d.MeasuredLength, 1e-12)
	assert.InDelta(t, (1+10e-6)*(1+1e-6*10), d.CorrectedLength, 1e-12)
	assert.InDelta(t, math.Sqrt(2)*0.00002, d.StdDev, 1e-15)
	assert.Equal(t, 35.0, d.Temperature)
	assert.Equal(t, 0.5, d.FromReading)
	assert.Equal(t, 1.5, d.ToReading)
}

func TestReduce_ZeroStdDevFloor(t *testing.T) {
	set := makeSet("Set1", 0.5, 1.5)
	set.Rows[0].StdDev = 0
	set.Rows[1].StdDev = 0

	out := Reduce(set, 25, types.StaffAttributes{StandardTemperature: 25})
	require.Len(t, out, 1)
	assert.InDelta(t, math.Sqrt(2)*types.StdDevFloor, out[0].StdDev, 1e-18)
}

func TestReduceRange(t *testing.T) {
	parsed := &types.ParsedFile{Sets: []types.ObservationSet{
		makeSet("Set1", 0, 1, 2),
		makeSet("Set2", 0, 1, 2, 3),
		makeSet("Set3", 0, 1),
	}}
	attrs := types.StaffAttributes{ThermalCoefficient: 1e-6, StandardTemperature: 20}

	out := ReduceRange(parsed, ExposureTemperatures{"Set1": 20, "Set2": 30}, attrs)
	require.Len(t, out, 5)
	assert.Equal(t, 1, out[0].Set)
	assert.Equal(t, 20.0, out[0].Temperature)
	assert.Equal(t, 2, out[4].Set)
	assert.InDelta(t, 1+1e-5, out[4].CorrectedLength, 1e-12)
}
