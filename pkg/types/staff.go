package types

import (
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/calutils"
)

type StaffType struct {
	Name                  string  `json:"name"`
	ThermalCoefficientPpm float64 `json:"thermal_coefficient_ppm"`
}

// StaffMeta is the inventory view of a staff consumed by the estimators.
type StaffMeta struct {
	StaffNumber           string     `json:"staff_number"`
	StaffType             string     `json:"staff_type"`
	LengthM               float64    `json:"length_m"`
	StandardTemperature   float64    `json:"standard_temperature"`
	ThermalCoefficientPpm float64    `json:"thermal_coefficient_ppm"`
	CorrectionFactorPpm   *float64   `json:"correction_factor_ppm,omitempty"`
	CalibrationDate       *time.Time `json:"calibration_date,omitempty"`
}

// Attributes converts the ppm values into reducer attributes.
// A staff that was never calibrated has no correction.
func (s StaffMeta) Attributes() StaffAttributes {
	attrs := StaffAttributes{
		ThermalCoefficient:  calutils.PpmToFraction(s.ThermalCoefficientPpm),
		StandardTemperature: s.StandardTemperature,
	}
	if s.CorrectionFactorPpm != nil {
		attrs.CorrectionFactor = calutils.PpmToFraction(*s.CorrectionFactorPpm)
	}
	return attrs
}

type LevelMeta struct {
	LevelNumber string `json:"level_number"`
	Make        string `json:"make"`
	Model       string `json:"model"`
}

// StaffCorrection is the comparison of one interval against the reference.
type StaffCorrection struct {
	Interval         string  `json:"interval"`
	FromReading      float64 `json:"from_reading"`
	ToReading        float64 `json:"to_reading"`
	ReferenceLength  float64 `json:"reference_length"`
	MeasuredLength   float64 `json:"measured_length"`
	NormalizedLength float64 `json:"normalized_length"`
	Correction       float64 `json:"correction"`
	StdDev           float64 `json:"std_dev"`
}

type TemperatureCorrection struct {
	TemperatureC         float64 `json:"temperature_c"`
	ScaleFactor          float64 `json:"scale_factor"`
	CorrectionPerMetreMm float64 `json:"correction_per_metre_mm"`
}

// CorrectionFactorResult is the outcome of a staff calibration.
// ScaleFactor applies at ObservedTemperature, ScaleFactorAtStdTemp at the
// staff's standard temperature. GraduationUncertaintyMm95 and
// AltTemperatureAtUnityFactor are nil when they cannot be derived; Issues
// says why.
type CorrectionFactorResult struct {
	ObservedTemperature         float64                 `json:"observed_temperature"`
	ScaleFactor                 float64                 `json:"scale_factor"`
	ScaleFactorAtStdTemp        float64                 `json:"scale_factor_at_std_temp"`
	GraduationUncertaintyMm95   *float64                `json:"graduation_uncertainty_mm95"`
	AltTemperatureAtUnityFactor *float64                `json:"alt_temperature_at_unity_factor,omitempty"`
	Corrections                 []StaffCorrection       `json:"corrections"`
	TemperatureCorrectionTable  []TemperatureCorrection `json:"temperature_correction_table"`
	Issues                      []error                 `json:"-"`
}

// StaffCalibrationRecord is the persisted summary of a staff calibration.
type StaffCalibrationRecord struct {
	UpdateIndex               string    `json:"update_index"`
	StaffNumber               string    `json:"staff_number"`
	LevelNumber               string    `json:"level_number"`
	Observer                  string    `json:"observer"`
	CalibrationDate           time.Time `json:"calibration_date"`
	ProcessedDate             time.Time `json:"processed_date"`
	ObservedTemperature       float64   `json:"observed_temperature"`
	StandardTemperature       float64   `json:"standard_temperature"`
	ScaleFactor               float64   `json:"scale_factor"`
	ScaleFactorAtStdTemp      float64   `json:"scale_factor_at_std_temp"`
	GraduationUncertaintyMm95 *float64  `json:"graduation_uncertainty_mm95,omitempty"`
	AltTemperature            *float64  `json:"alt_temperature,omitempty"`
}
