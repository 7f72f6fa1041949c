package aggregator

import (
	"fmt"
	"math"
	"sort"

	"github.com/NotCoffee418/staff_calibration/pkg/calutils"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"gonum.org/v1/gonum/stat"
)

// RobustMean combines the height differences observed for one
// (interval, month) cell. One value is taken as is, two are averaged.
// From three on, the two values with the smallest modified z-score are
// averaged, unless all values agree with the mean. Rounded to 5 decimals.
func RobustMean(values []float64) (float64, error) {
	switch len(values) {
	case 0:
		return 0, fmt.Errorf("robust mean: %w", types.ErrInsufficientObservations)
	case 1:
		return calutils.Round(values[0], 5), nil
	case 2:
		return calutils.Round(stat.Mean(values, nil), 5), nil
	}

	mean := stat.Mean(values, nil)
	dev := make([]float64, len(values))
	var mad float64
	for i, v := range values {
		dev[i] = math.Abs(v - mean)
		mad += dev[i]
	}
	mad /= float64(len(values))
	if mad == 0 {
		return calutils.Round(mean, 5), nil
	}

	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	// Ties keep input order.
	sort.SliceStable(idx, func(a, b int) bool {
		return modifiedZ*dev[idx[a]]/mad < modifiedZ*dev[idx[b]]/mad
	})

	picked := make([]float64, robustPick)
	for i := range picked {
		picked[i] = values[idx[i]]
	}
	return calutils.Round(stat.Mean(picked, nil), 5), nil
}
