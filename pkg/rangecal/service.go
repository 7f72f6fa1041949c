// Package rangecal adjusts repeated pin-to-pin observations of a range
// calibration into one height difference per interval.
package rangecal

import (
	"errors"
	"math"

	"github.com/NotCoffee418/staff_calibration/pkg/calutils"
	"github.com/NotCoffee418/staff_calibration/pkg/lsq"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"gonum.org/v1/gonum/floats"
)

// z-value of the two-sided 95% confidence interval
const z95 = 1.96

// Result holds the adjustment of one calibration event.
// Intervals listed in Issues have no rows in Adjusted or Summaries.
type Result struct {
	Adjusted  []types.AdjustedObservation
	Summaries []types.HeightDifferenceSummary
	Issues    []error
}

// Err joins the per-interval issues, nil when every interval adjusted.
func (r *Result) Err() error {
	return errors.Join(r.Issues...)
}

// Adjust combines the corrected height differences of every interval.
// Intervals are processed in the order they first appear.
func Adjust(updateIndex string, rows []types.RawObservation) *Result {
	res := &Result{}
	for _, interval := range UniqueIntervals(rows) {
		var group []types.RawObservation
		for _, r := range rows {
			if r.Interval == interval {
				group = append(group, r)
			}
		}

		adjusted, summary, err := adjustInterval(interval, group)
		if err != nil {
			res.Issues = append(res.Issues, &types.IntervalError{Event: updateIndex, Interval: interval, Err: err})
			continue
		}
		res.Adjusted = append(res.Adjusted, adjusted...)
		res.Summaries = append(res.Summaries, summary)
	}
	return res
}

// UniqueIntervals lists interval labels in first-seen order.
func UniqueIntervals(rows []types.RawObservation) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		if !seen[r.Interval] {
			seen[r.Interval] = true
			out = append(out, r.Interval)
		}
	}
	return out
}

func adjustInterval(interval string, group []types.RawObservation) ([]types.AdjustedObservation, types.HeightDifferenceSummary, error) {
	if len(group) == 1 {
		o := group[0]
		return []types.AdjustedObservation{{
				Interval:           interval,
				AdjustedHeightDiff: o.CorrectedLength,
				ObservedHeightDiff: o.CorrectedLength,
				ObservedStdDevMm:   calutils.MetresToMm(o.StdDev),
			}}, types.HeightDifferenceSummary{
				Interval:           interval,
				AdjustedHeightDiff: o.CorrectedLength,
				UncertaintyMm:      z95 * calutils.MetresToMm(o.StdDev),
				ObservationCount:   1,
			}, nil
	}

	obs := make([]float64, len(group))
	sigmas := make([]float64, len(group))
	for i, o := range group {
		obs[i] = o.CorrectedLength
		sigmas[i] = o.StdDev
	}
	est, err := lsq.WeightedMean(obs, sigmas)
	if err != nil {
		return nil, types.HeightDifferenceSummary{}, err
	}

	adjusted := make([]types.AdjustedObservation, 0, len(group))
	for i := range group {
		sdr, err := est.ResidualStdDev(i)
		if err != nil {
			return nil, types.HeightDifferenceSummary{}, err
		}
		adjusted = append(adjusted, types.AdjustedObservation{
			Interval:             interval,
			AdjustedHeightDiff:   est.Value,
			ObservedHeightDiff:   obs[i],
			Residual:             est.Residuals[i],
			ObservedStdDevMm:     calutils.MetresToMm(sigmas[i]),
			StdDevOfResidualMm:   calutils.MetresToMm(sdr),
			StandardizedResidual: calutils.Round(est.Residuals[i]/sdr, 1),
		})
	}
	summary := types.HeightDifferenceSummary{
		Interval:           interval,
		AdjustedHeightDiff: est.Value,
		UncertaintyMm:      z95 * calutils.MetresToMm(est.StdDev()),
		ObservationCount:   len(group),
	}
	return adjusted, summary, nil
}

// MeanTemperature is the average exposure temperature over the raw rows.
func MeanTemperature(rows []types.RawObservation) float64 {
	if len(rows) == 0 {
		return math.NaN()
	}
	temps := make([]float64, len(rows))
	for i, r := range rows {
		temps[i] = r.Temperature
	}
	return floats.Sum(temps) / float64(len(temps))
}
