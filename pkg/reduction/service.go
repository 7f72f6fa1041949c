// Package reduction turns consecutive pin readings into height differences.
package reduction

import (
	"math"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

// Reduce computes one PairwiseDifference per adjacent pair of readings,
// so N readings yield N-1 differences in survey order.
func Reduce(set types.ObservationSet, temperature float64, attrs types.StaffAttributes) []types.PairwiseDifference {
	if len(set.Rows) < 2 {
		return nil
	}
	correction := (1 + attrs.CorrectionFactor) * (1 + attrs.ThermalCoefficient*(temperature-attrs.StandardTemperature))

	out := make([]types.PairwiseDifference, 0, len(set.Rows)-1)
	for i := 0; i < len(set.Rows)-1; i++ {
		from, to := set.Rows[i], set.Rows[i+1]
		stdI := FloorStdDev(from.StdDev)
		stdJ := FloorStdDev(to.StdDev)

		measured := to.Reading - from.Reading
		out = append(out, types.PairwiseDifference{
			Interval:        types.IntervalLabel(from.Pin, to.Pin),
			Temperature:     temperature,
			FromReading:     from.Reading,
			ToReading:       to.Reading,
			StdDev:          math.Sqrt(stdI*stdI + stdJ*stdJ),
			MeasuredLength:  measured,
			CorrectedLength: measured * correction,
		})
	}
	return out
}

// FloorStdDev substitutes the floor for a zero standard deviation.
func FloorStdDev(s float64) float64 {
	if s == 0 {
		return types.StdDevFloor
	}
	return s
}

// ExposureTemperatures maps set labels to the temperature each was observed at.
type ExposureTemperatures map[string]float64

// ReduceRange reduces every exposure of a range file at its own temperature.
// Sets without a temperature are skipped; the set number follows the label order.
func ReduceRange(parsed *types.ParsedFile, temps ExposureTemperatures, attrs types.StaffAttributes) []types.RawObservation {
	var out []types.RawObservation
	for i, set := range parsed.Sets {
		t, ok := temps[set.Label]
		if !ok {
			continue
		}
		for _, d := range Reduce(set, t, attrs) {
			out = append(out, types.RawObservation{Set: i + 1, PairwiseDifference: d})
		}
	}
	return out
}
