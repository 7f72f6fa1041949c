package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalError(t *testing.T) {
	err := &IntervalError{Event: "20240304-S1", Month: "Mar", Interval: "7-8", Err: ErrDegenerateEstimate}
	assert.Equal(t, "event 20240304-S1, month Mar, interval 7-8: degenerate estimate", err.Error())
	assert.True(t, errors.Is(err, ErrDegenerateEstimate))
}

func TestMonthNames(t *testing.T) {
	assert.Equal(t, "Sep", MonthName(time.September))
	m, err := ParseMonthName("Dec")
	require.NoError(t, err)
	assert.Equal(t, time.December, m)
	_, err = ParseMonthName("December")
	assert.Error(t, err)
	assert.Len(t, RangeIntervals, 20)
}

func TestStaffAttributes(t *testing.T) {
	cf := -6.5
	meta := StaffMeta{ThermalCoefficientPpm: 0.8, StandardTemperature: 25, CorrectionFactorPpm: &cf}
	attrs := meta.Attributes()
	assert.InDelta(t, 0.8e-6, attrs.ThermalCoefficient, 1e-18)
	assert.InDelta(t, -6.5e-6, attrs.CorrectionFactor, 1e-18)
	assert.Equal(t, 25.0, attrs.StandardTemperature)

	meta.CorrectionFactorPpm = nil
	assert.Zero(t, meta.Attributes().CorrectionFactor)
}

func TestParsedFileSet(t *testing.T) {
	p := &ParsedFile{Sets: []ObservationSet{{Label: SetLabel(1)}, {Label: SetLabel(2)}}}
	s, ok := p.Set("Set2")
	assert.True(t, ok)
	assert.Equal(t, "Set2", s.Label)
	_, ok = p.Set("Set3")
	assert.False(t, ok)
}
