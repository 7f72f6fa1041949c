package calutils

import (
	"math"
	"time"
)

// Thermal coefficients and correction factors are stored in ppm
func PpmToFraction(ppm float64) float64 {
	return ppm * 1e-6
}

// Scale factor 1.000012 -> 12 ppm
func ScaleFactorToPpm(scaleFactor float64) float64 {
	return (scaleFactor - 1) * 1e6
}

func MetresToMm(m float64) float64 {
	return m * 1000
}

// Round to a fixed number of decimal places, half away from zero
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// MeanTemperature averages the start and end temperature of an exposure.
func MeanTemperature(start, end float64) float64 {
	return (start + end) / 2
}

// EventKey builds the YYYYMMDD-<staff> key shared by range and staff calibrations
func EventKey(date time.Time, staffNumber string) string {
	return date.Format("20060102") + "-" + staffNumber
}
