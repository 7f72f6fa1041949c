package types

import (
	"errors"
	"strings"
)

var (
	ErrUnsupportedFormat        = errors.New("unsupported instrument file format")
	ErrMalformedRecord          = errors.New("malformed instrument record")
	ErrInsufficientObservations = errors.New("insufficient observations")
	ErrDegenerateEstimate       = errors.New("degenerate estimate")
	ErrDuplicateEvent           = errors.New("calibration event already exists")
	ErrMissingReferenceMonth    = errors.New("no range parameters for month")
	ErrEventNotFound            = errors.New("calibration event not found")
	ErrUnknownStaff             = errors.New("unknown staff")
	ErrUnknownLevel             = errors.New("unknown level")
)

// IntervalError names the event, interval or month a failure belongs to.
type IntervalError struct {
	Event    string
	Interval string
	Month    string
	Err      error
}

func (e *IntervalError) Error() string {
	var parts []string
	if e.Event != "" {
		parts = append(parts, "event "+e.Event)
	}
	if e.Month != "" {
		parts = append(parts, "month "+e.Month)
	}
	if e.Interval != "" {
		parts = append(parts, "interval "+e.Interval)
	}
	if len(parts) == 0 {
		return e.Err.Error()
	}
	return strings.Join(parts, ", ") + ": " + e.Err.Error()
}

func (e *IntervalError) Unwrap() error {
	return e.Err
}
