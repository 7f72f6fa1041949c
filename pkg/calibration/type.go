package calibration

import (
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/eventfeed"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

// Publisher receives a notification after each completed workflow.
type Publisher interface {
	Publish(ev eventfeed.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(eventfeed.Event) {}

// Exposure is the start and end air temperature of one level run, in °C.
type Exposure struct {
	StartC float64 `json:"start_c"`
	EndC   float64 `json:"end_c"`
}

// RangeUpload is a range calibration of a staff over two exposures.
type RangeUpload struct {
	StaffNumber     string
	LevelNumber     string
	Surveyor        string
	ObservationDate time.Time
	Set1            Exposure
	Set2            Exposure
	Content         []byte
}

// RangeReport is the adjustment of one calibration event.
// Issues lists intervals that could not be adjusted.
type RangeReport struct {
	Event           types.CalibrationEvent          `json:"event"`
	Dialect         string                          `json:"dialect,omitempty"`
	Raw             []types.RawObservation          `json:"raw"`
	Adjusted        []types.AdjustedObservation     `json:"adjusted"`
	Summaries       []types.HeightDifferenceSummary `json:"summaries"`
	MeanTemperature *float64                        `json:"mean_temperature,omitempty"`
	Issues          []error                         `json:"-"`
}

// IssueMessages renders Issues for transport.
func (r *RangeReport) IssueMessages() []string {
	return messages(r.Issues)
}

// StaffCalibrationRequest is one staff measured on the reference range.
type StaffCalibrationRequest struct {
	StaffNumber     string
	LevelNumber     string
	Observer        string
	CalibrationDate time.Time
	Exposure        Exposure
	Content         []byte
}

type StaffCalibrationReport struct {
	Record   types.StaffCalibrationRecord  `json:"record"`
	Result   *types.CorrectionFactorResult `json:"result"`
	Readings []types.ObservationRow        `json:"readings"`
}

// IssueMessages renders the estimator issues for transport.
func (r *StaffCalibrationReport) IssueMessages() []string {
	if r.Result == nil {
		return nil
	}
	return messages(r.Result.Issues)
}

func messages(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
