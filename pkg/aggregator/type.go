package aggregator

import (
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

// robustPick is the number of nearest-to-mean values averaged when a cell
// has more than two contributions.
const robustPick = 2

// modifiedZ scales a deviation over the mean absolute deviation.
const modifiedZ = 0.6745

// Result describes one aggregator run.
type Result struct {
	Months       []time.Month `json:"months"`
	Cells        int          `json:"cells"`
	Incorporated []string     `json:"incorporated"`
}

// NoOp reports whether the run found nothing pending.
func (r Result) NoOp() bool {
	return len(r.Incorporated) == 0
}

// MonthDeviation is one month of the annual cycle of the range.
type MonthDeviation struct {
	Month       time.Month `json:"month"`
	Name        string     `json:"name"`
	SumM        float64    `json:"sum_m"`
	DeviationMm float64    `json:"deviation_mm"`
}

// AnnualCycle is the seasonal behaviour of the whole range: for each month
// with data, how far the summed interval lengths sit from the yearly mean.
type AnnualCycle struct {
	Months []MonthDeviation          `json:"months"`
	Rows   []types.RangeParameterRow `json:"rows"`
}

// Chartable reports whether there is more than one month to compare.
func (c AnnualCycle) Chartable() bool {
	return len(c.Months) > 1
}
