package types

import "fmt"

// StdDevFloor replaces a zero standard deviation before weighting.
const StdDevFloor = 1e-5

// ObservationRow is one staff reading taken at a pin.
type ObservationRow struct {
	Pin            string  `json:"pin"`
	Reading        float64 `json:"reading"`
	ReplicateCount *int    `json:"replicate_count,omitempty"`
	StdDev         float64 `json:"std_dev"`
}

// ObservationSet holds the readings of one temperature exposure in survey order.
type ObservationSet struct {
	Label string           `json:"label"`
	Rows  []ObservationRow `json:"rows"`
}

// ParsedFile is the result of decoding one instrument export.
// Sets keeps file order: Set1, Set2, ...
type ParsedFile struct {
	Dialect Dialect          `json:"dialect"`
	Sets    []ObservationSet `json:"sets"`
}

// Set returns the observation set with the given label.
func (p *ParsedFile) Set(label string) (ObservationSet, bool) {
	for _, s := range p.Sets {
		if s.Label == label {
			return s, true
		}
	}
	return ObservationSet{}, false
}

// SetLabel builds the label of the n-th accepted block, starting at 1.
func SetLabel(n int) string {
	return fmt.Sprintf("Set%d", n)
}

type Dialect uint8

const (
	DialectUnknown Dialect = iota
	// DialectBFOD is marked by the literal "BFOD" and uses 11 fields per record.
	DialectBFOD
	// DialectDNA is marked by "Level Type" and uses 10 fields per record.
	DialectDNA
)

func (d Dialect) String() string {
	switch d {
	case DialectBFOD:
		return "BFOD"
	case DialectDNA:
		return "DNA03"
	default:
		return "unknown"
	}
}

// StaffAttributes drives the reducer's length correction.
// Both factors are fractions, not ppm.
type StaffAttributes struct {
	CorrectionFactor    float64
	ThermalCoefficient  float64
	StandardTemperature float64
}

// PairwiseDifference is the height difference between two adjacent pins.
type PairwiseDifference struct {
	Interval        string  `json:"interval"`
	Temperature     float64 `json:"temperature"`
	FromReading     float64 `json:"from_reading"`
	ToReading       float64 `json:"to_reading"`
	StdDev          float64 `json:"std_dev"`
	MeasuredLength  float64 `json:"measured_length"`
	CorrectedLength float64 `json:"corrected_length"`
}

// IntervalLabel joins two pin labels, e.g. "7-8".
func IntervalLabel(from, to string) string {
	return from + "-" + to
}
