package eventfeed

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindRangeUploaded    Kind = "range_uploaded"
	KindRangeAdjusted    Kind = "range_adjusted"
	KindEventDeleted     Kind = "event_deleted"
	KindRangeAggregated  Kind = "range_aggregated"
	KindStaffCalibrated  Kind = "staff_calibrated"
	KindInventoryChanged Kind = "inventory_changed"

	KindStaffCalibrationDeleted Kind = "staff_calibration_deleted"
)

// Event is one notification pushed to feed subscribers.
type Event struct {
	Kind        Kind      `json:"kind"`
	UpdateIndex string    `json:"update_index,omitempty"`
	StaffNumber string    `json:"staff_number,omitempty"`
	Message     string    `json:"message,omitempty"`
	Time        time.Time `json:"time"`
}

func (e *Event) ToJsonBytes() []byte {
	b, err := json.Marshal(e)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode feed event")
		return nil
	}
	return b
}

// EventFromJsonBytes returns nil when the payload is not an event.
func EventFromJsonBytes(b []byte) *Event {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil || e.Kind == "" {
		return nil
	}
	return &e
}
