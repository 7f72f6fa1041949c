package aggregator

import (
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/calutils"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

// BuildAnnualCycle sums every month column of the reference table and
// expresses each populated month as a deviation from the mean of those sums.
func BuildAnnualCycle(rows []types.RangeParameterRow) AnnualCycle {
	var (
		sums  [12]float64
		found [12]bool
	)
	for _, row := range rows {
		for m := time.January; m <= time.December; m++ {
			if v, ok := row.Value(m); ok {
				sums[m-1] += v
				found[m-1] = true
			}
		}
	}

	var total float64
	var n int
	for i := range sums {
		if found[i] {
			total += sums[i]
			n++
		}
	}

	cycle := AnnualCycle{Rows: rows}
	if n == 0 {
		return cycle
	}
	mean := total / float64(n)
	for i := range sums {
		if !found[i] {
			continue
		}
		m := time.Month(i + 1)
		cycle.Months = append(cycle.Months, MonthDeviation{
			Month:       m,
			Name:        types.MonthName(m),
			SumM:        sums[i],
			DeviationMm: calutils.MetresToMm(sums[i] - mean),
		})
	}
	return cycle
}
