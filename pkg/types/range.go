package types

import (
	"fmt"
	"time"
)

// RangeIntervals are the pin intervals of the calibration range, in order.
var RangeIntervals = []string{
	"1-2", "2-3", "3-4", "4-5", "5-6", "6-7", "7-8", "8-9", "9-10", "10-11",
	"11-12", "12-13", "13-14", "14-15", "15-16", "16-17", "17-18", "18-19", "19-20", "20-21",
}

// Month names used as reference table columns.
var MonthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthName returns the column name for a calendar month.
func MonthName(m time.Month) string {
	return MonthNames[m-1]
}

// ParseMonthName is the inverse of MonthName.
func ParseMonthName(name string) (time.Month, error) {
	for i, n := range MonthNames {
		if n == name {
			return time.Month(i + 1), nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", name)
}

// CalibrationEvent is one range measurement session of a staff.
// Incorporated is false while the event waits for the monthly aggregator.
type CalibrationEvent struct {
	UpdateIndex     string    `json:"update_index"`
	StaffNumber     string    `json:"staff_number"`
	LevelNumber     string    `json:"level_number"`
	Surveyor        string    `json:"surveyor"`
	ObservationDate time.Time `json:"observation_date"`
	Incorporated    bool      `json:"incorporated"`
	Fingerprint     string    `json:"fingerprint"`
}

// RawObservation is a persisted PairwiseDifference of a range event.
type RawObservation struct {
	Set int `json:"set"`
	PairwiseDifference
}

// AdjustedObservation is one contributing observation after adjustment.
// Standard deviations are in mm.
type AdjustedObservation struct {
	Interval             string  `json:"interval"`
	AdjustedHeightDiff   float64 `json:"adjusted_height_diff"`
	ObservedHeightDiff   float64 `json:"observed_height_diff"`
	Residual             float64 `json:"residual"`
	ObservedStdDevMm     float64 `json:"observed_std_dev_mm"`
	StdDevOfResidualMm   float64 `json:"std_dev_of_residual_mm"`
	StandardizedResidual float64 `json:"standardized_residual"`
}

// HeightDifferenceSummary is the adjusted result of one interval.
type HeightDifferenceSummary struct {
	Interval           string  `json:"interval"`
	AdjustedHeightDiff float64 `json:"adjusted_height_diff"`
	UncertaintyMm      float64 `json:"uncertainty_mm"`
	ObservationCount   int     `json:"observation_count"`
}

// DatedSummary carries the observation date of the event a summary belongs to.
type DatedSummary struct {
	UpdateIndex     string
	ObservationDate time.Time
	HeightDifferenceSummary
}

// RangeParameterRow is one interval of the reference range table.
// A nil month means no accepted value yet.
type RangeParameterRow struct {
	Interval string       `json:"interval"`
	Months   [12]*float64 `json:"months"`
}

// Value returns the accepted height difference for a month.
func (r *RangeParameterRow) Value(m time.Month) (float64, bool) {
	v := r.Months[m-1]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// ReferenceColumn maps interval to the accepted height difference of one month.
type ReferenceColumn map[string]float64
