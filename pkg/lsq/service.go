// Package lsq solves the single-parameter weighted least-squares problem
// W = A·x with A = [1 1 ... 1] and weights P = diag(1/σ²).
package lsq

import (
	"fmt"
	"math"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"gonum.org/v1/gonum/mat"
)

// Estimate is the adjusted value of one parameter.
type Estimate struct {
	Value float64
	// Normal is AᵗPA, the total weight.
	Normal float64
	// Residuals follow the adjusted-minus-observed convention.
	Residuals []float64
	Sigmas    []float64
}

// WeightedMean computes x = (AᵗPW)/(AᵗPA).
func WeightedMean(observations, sigmas []float64) (*Estimate, error) {
	n := len(observations)
	if n == 0 {
		return nil, fmt.Errorf("%w: no observations to adjust", types.ErrInsufficientObservations)
	}
	if len(sigmas) != n {
		return nil, fmt.Errorf("lsq: %d observations but %d standard deviations", n, len(sigmas))
	}

	weights := make([]float64, n)
	ones := make([]float64, n)
	for i, s := range sigmas {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: standard deviation %g at observation %d", types.ErrDegenerateEstimate, s, i)
		}
		weights[i] = 1 / (s * s)
		ones[i] = 1
	}

	P := mat.NewDiagDense(n, weights)
	A := mat.NewVecDense(n, ones)
	W := mat.NewVecDense(n, append([]float64(nil), observations...))

	normal := mat.Inner(A, P, A)
	value := mat.Inner(A, P, W) / normal

	var r mat.VecDense
	r.ScaleVec(value, A)
	r.SubVec(&r, W)

	return &Estimate{
		Value:     value,
		Normal:    normal,
		Residuals: mat.Col(nil, 0, &r),
		Sigmas:    append([]float64(nil), sigmas...),
	}, nil
}

// StdDev is the standard deviation of the estimate, sqrt(1/AᵗPA).
func (e *Estimate) StdDev() float64 {
	return math.Sqrt(1 / e.Normal)
}

// ResidualStdDev is sqrt(σᵢ² - 1/AᵗPA) for observation i.
// A radicand that is not positive cannot standardise a residual.
func (e *Estimate) ResidualStdDev(i int) (float64, error) {
	return ResidualStdDev(e.Sigmas[i], e.Normal)
}

// ResidualStdDev is the standalone form used when the normal value is known.
func ResidualStdDev(sigma, normal float64) (float64, error) {
	radicand := sigma*sigma - 1/normal
	if !(radicand > 0) {
		return 0, fmt.Errorf("%w: residual variance %g", types.ErrDegenerateEstimate, radicand)
	}
	return math.Sqrt(radicand), nil
}
