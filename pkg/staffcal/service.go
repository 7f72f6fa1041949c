// Package staffcal estimates the scale factor of a staff against the
// reference range.
//
// The temperature model is SF(t) = SFstd · (1 + α(t - Tstd)). ScaleFactor is
// SF at the observed temperature, estimated from raw measured lengths;
// ScaleFactorAtStdTemp is SFstd.
package staffcal

import (
	"fmt"
	"math"

	"github.com/NotCoffee418/staff_calibration/pkg/calutils"
	"github.com/NotCoffee418/staff_calibration/pkg/lsq"
	"github.com/NotCoffee418/staff_calibration/pkg/reduction"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

const (
	z95 = 1.96

	tableStartC = 0.0
	tableEndC   = 40.0
	tableStepC  = 2.0
)

// Estimate compares the staff's height differences with the reference column
// of the observation month. Intervals are matched by label and only the
// intersection is used.
func Estimate(diffs []types.PairwiseDifference, reference types.ReferenceColumn, meta types.StaffMeta, observedTemp float64) (*types.CorrectionFactorResult, error) {
	alpha := calutils.PpmToFraction(meta.ThermalCoefficientPpm)
	expansion := 1 + alpha*(observedTemp-meta.StandardTemperature)

	res := &types.CorrectionFactorResult{ObservedTemperature: observedTemp}
	var ratios, sigmas []float64
	for _, d := range diffs {
		ref, ok := reference[d.Interval]
		if !ok {
			continue
		}
		if d.MeasuredLength == 0 {
			res.Issues = append(res.Issues, &types.IntervalError{
				Interval: d.Interval,
				Err:      fmt.Errorf("%w: zero measured length", types.ErrDegenerateEstimate),
			})
			continue
		}
		normalized := d.MeasuredLength * expansion
		sigma := reduction.FloorStdDev(d.StdDev)
		res.Corrections = append(res.Corrections, types.StaffCorrection{
			Interval:         d.Interval,
			FromReading:      d.FromReading,
			ToReading:        d.ToReading,
			ReferenceLength:  ref,
			MeasuredLength:   d.MeasuredLength,
			NormalizedLength: normalized,
			Correction:       ref - normalized,
			StdDev:           sigma,
		})
		ratios = append(ratios, ref/d.MeasuredLength)
		sigmas = append(sigmas, sigma)
	}
	if len(ratios) == 0 {
		return nil, fmt.Errorf("%w: no interval matches the reference range", types.ErrInsufficientObservations)
	}

	est, err := lsq.WeightedMean(ratios, sigmas)
	if err != nil {
		return nil, err
	}
	res.ScaleFactor = est.Value
	res.ScaleFactorAtStdTemp = est.Value / expansion

	if u, err := GraduationUncertainty(res.Corrections); err != nil {
		res.Issues = append(res.Issues, err)
	} else {
		res.GraduationUncertaintyMm95 = &u
	}

	if t, err := AltTemperature(res.ScaleFactorAtStdTemp, alpha, meta.StandardTemperature); err != nil {
		res.Issues = append(res.Issues, err)
	} else {
		res.AltTemperatureAtUnityFactor = &t
	}

	res.TemperatureCorrectionTable = CorrectionTable(res.ScaleFactorAtStdTemp, alpha, meta.StandardTemperature)
	return res, nil
}

// GraduationUncertainty is 1.96·sqrt(Σ(reference - normalized)² / (n-1)) in mm.
func GraduationUncertainty(corrections []types.StaffCorrection) (float64, error) {
	n := len(corrections)
	if n < 2 {
		return 0, fmt.Errorf("%w: graduation uncertainty needs at least 2 intervals, have %d", types.ErrInsufficientObservations, n)
	}
	var sum float64
	for _, c := range corrections {
		sum += c.Correction * c.Correction
	}
	return z95 * calutils.MetresToMm(math.Sqrt(sum/float64(n-1))), nil
}

// AltTemperature is the temperature at which the scale factor equals 1.
func AltTemperature(scaleFactorAtStd, alpha, stdTemp float64) (float64, error) {
	if alpha == 0 {
		return 0, fmt.Errorf("%w: zero thermal coefficient", types.ErrDegenerateEstimate)
	}
	if scaleFactorAtStd == 0 {
		return 0, fmt.Errorf("%w: zero scale factor", types.ErrDegenerateEstimate)
	}
	return stdTemp + (1/scaleFactorAtStd-1)/alpha, nil
}

// ScaleFactorAt evaluates the temperature model.
func ScaleFactorAt(t, scaleFactorAtStd, alpha, stdTemp float64) float64 {
	return scaleFactorAtStd * (1 + alpha*(t-stdTemp))
}

// CorrectionTable evaluates the model from 0 to 40 °C in 2 °C steps.
func CorrectionTable(scaleFactorAtStd, alpha, stdTemp float64) []types.TemperatureCorrection {
	var table []types.TemperatureCorrection
	steps := int((tableEndC - tableStartC) / tableStepC)
	for i := 0; i <= steps; i++ {
		t := tableStartC + float64(i)*tableStepC
		sf := ScaleFactorAt(t, scaleFactorAtStd, alpha, stdTemp)
		table = append(table, types.TemperatureCorrection{
			TemperatureC:         t,
			ScaleFactor:          sf,
			CorrectionPerMetreMm: calutils.MetresToMm(sf - 1),
		})
	}
	return table
}
