package calibdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "calibration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedInventory(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	q := db.Queries()
	require.NoError(t, q.UpsertStaffType(ctx, types.StaffType{Name: "invar", ThermalCoefficientPpm: 0.8}))
	require.NoError(t, q.UpsertStaff(ctx, types.StaffMeta{
		StaffNumber:         "S100",
		StaffType:           "invar",
		LengthM:             3,
		StandardTemperature: 25,
	}))
	require.NoError(t, q.UpsertLevel(ctx, types.LevelMeta{LevelNumber: "L1", Make: "Leica", Model: "LS15"}))
}

func TestInventory(t *testing.T) {
	db := openTestDB(t)
	seedInventory(t, db)
	ctx := context.Background()
	q := db.Queries()

	meta, err := q.StaffMeta(ctx, "S100")
	require.NoError(t, err)
	assert.Equal(t, 0.8, meta.ThermalCoefficientPpm)
	assert.Nil(t, meta.CorrectionFactorPpm)
	assert.Nil(t, meta.CalibrationDate)

	require.NoError(t, q.UpdateStaffCalibration(ctx, "S100", -6.5, date(2024, time.March, 4)))
	meta, err = q.StaffMeta(ctx, "S100")
	require.NoError(t, err)
	require.NotNil(t, meta.CorrectionFactorPpm)
	assert.Equal(t, -6.5, *meta.CorrectionFactorPpm)
	require.NotNil(t, meta.CalibrationDate)
	assert.Equal(t, date(2024, time.March, 4), *meta.CalibrationDate)

	_, err = q.StaffMeta(ctx, "nope")
	assert.ErrorIs(t, err, types.ErrUnknownStaff)
	assert.ErrorIs(t, q.UpdateStaffCalibration(ctx, "nope", 1, date(2024, 1, 1)), types.ErrUnknownStaff)

	l, err := q.Level(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "LS15", l.Model)
	_, err = q.Level(ctx, "L2")
	assert.ErrorIs(t, err, types.ErrUnknownLevel)
}

func TestEventLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	q := db.Queries()

	ev := types.CalibrationEvent{
		UpdateIndex:     "20240304-S100",
		StaffNumber:     "S100",
		LevelNumber:     "L1",
		Surveyor:        "JD",
		ObservationDate: date(2024, time.March, 4),
		Fingerprint:     "ABCD-10",
	}
	require.NoError(t, q.InsertEvent(ctx, ev))
	assert.ErrorIs(t, q.InsertEvent(ctx, ev), types.ErrDuplicateEvent)

	got, err := q.Event(ctx, ev.UpdateIndex)
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	found, ok, err := q.EventByFingerprint(ctx, "ABCD-10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ev.UpdateIndex, found.UpdateIndex)
	_, ok, err = q.EventByFingerprint(ctx, "0000-1")
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err := q.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, q.MarkIncorporated(ctx, []string{ev.UpdateIndex}))
	pending, err = q.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := q.Events(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Incorporated)

	require.NoError(t, q.InsertRawObservations(ctx, ev.UpdateIndex, []types.RawObservation{{
		Set: 1,
		PairwiseDifference: types.PairwiseDifference{
			Interval: "1-2", Temperature: 20, FromReading: 1.2, ToReading: 1.4,
			StdDev: 1.4e-5, MeasuredLength: 0.2, CorrectedLength: 0.19999,
		},
	}}))
	require.NoError(t, q.DeleteEvent(ctx, ev.UpdateIndex))
	raw, err := q.RawObservations(ctx, ev.UpdateIndex)
	require.NoError(t, err)
	assert.Empty(t, raw)

	_, err = q.Event(ctx, ev.UpdateIndex)
	assert.ErrorIs(t, err, types.ErrEventNotFound)
	assert.ErrorIs(t, q.DeleteEvent(ctx, ev.UpdateIndex), types.ErrEventNotFound)
}

func TestReplaceEventResults(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := []types.HeightDifferenceSummary{{Interval: "1-2", AdjustedHeightDiff: 0.1, UncertaintyMm: 0.02, ObservationCount: 2}}
	second := []types.HeightDifferenceSummary{
		{Interval: "1-2", AdjustedHeightDiff: 0.11, UncertaintyMm: 0.02, ObservationCount: 2},
		{Interval: "2-3", AdjustedHeightDiff: -0.3, UncertaintyMm: 0.03, ObservationCount: 3},
	}
	adjusted := []types.AdjustedObservation{{Interval: "1-2", AdjustedHeightDiff: 0.11, ObservedHeightDiff: 0.1101, Residual: -0.0001}}

	for _, sums := range [][]types.HeightDifferenceSummary{first, second} {
		err := db.InTx(ctx, func(q *Queries) error {
			return q.ReplaceEventResults(ctx, "20240304-S100", date(2024, time.March, 4), adjusted, sums)
		})
		require.NoError(t, err)
	}

	q := db.Queries()
	got, err := q.HeightDifferences(ctx, "20240304-S100")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	adj, err := q.AdjustedObservations(ctx, "20240304-S100")
	require.NoError(t, err)
	assert.Len(t, adj, 1)

	march, err := q.SummariesForMonth(ctx, time.March)
	require.NoError(t, err)
	assert.Len(t, march, 2)
	assert.Equal(t, date(2024, time.March, 4), march[0].ObservationDate)

	april, err := q.SummariesForMonth(ctx, time.April)
	require.NoError(t, err)
	assert.Empty(t, april)
}

func TestRangeParameters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	q := db.Queries()

	require.NoError(t, q.SetRangeParameter(ctx, "2-3", time.March, -0.25))
	require.NoError(t, q.SetRangeParameter(ctx, "1-2", time.March, 0.5))
	require.NoError(t, q.SetRangeParameter(ctx, "1-2", time.December, 0.49))
	require.NoError(t, q.SetRangeParameter(ctx, "1-2", time.March, 0.51))

	rows, err := q.RangeParameters(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1-2", rows[0].Interval)
	v, ok := rows[0].Value(time.March)
	assert.True(t, ok)
	assert.Equal(t, 0.51, v)
	_, ok = rows[1].Value(time.December)
	assert.False(t, ok)

	col, err := q.ReferenceColumn(ctx, time.December)
	require.NoError(t, err)
	assert.Equal(t, types.ReferenceColumn{"1-2": 0.49}, col)

	assert.Error(t, q.SetRangeParameter(ctx, "1-2", 13, 1))

	require.NoError(t, q.ResetRangeParameters(ctx))
	rows, err = q.RangeParameters(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStaffCalibrationStorage(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	q := db.Queries()

	count := 3
	gu := 0.12
	rec := types.StaffCalibrationRecord{
		UpdateIndex:               "20240304-S100",
		StaffNumber:               "S100",
		LevelNumber:               "L1",
		Observer:                  "JD",
		CalibrationDate:           date(2024, time.March, 4),
		ProcessedDate:             date(2024, time.March, 5),
		ObservedTemperature:       21.5,
		StandardTemperature:       25,
		ScaleFactor:               0.99999,
		ScaleFactorAtStdTemp:      0.999993,
		GraduationUncertaintyMm95: &gu,
	}
	readings := []types.ObservationRow{
		{Pin: "1", Reading: 0.5, ReplicateCount: &count, StdDev: 1e-5},
		{Pin: "2", Reading: 1.0, StdDev: 2e-5},
	}

	require.NoError(t, q.InsertStaffCalibration(ctx, rec, readings[:1]))
	err := q.InsertStaffCalibration(ctx, rec, readings)
	assert.ErrorIs(t, err, types.ErrDuplicateEvent)

	got, err := q.StaffCalibration(ctx, rec.UpdateIndex)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	list, err := q.StaffCalibrations(ctx, "S100")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	stored, err := q.StaffReadings(ctx, rec.UpdateIndex)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].ReplicateCount)
	assert.Equal(t, 3, *stored[0].ReplicateCount)

	_, err = q.StaffCalibration(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrEventNotFound)
}

func TestDeleteStaffCalibration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	q := db.Queries()

	rec := types.StaffCalibrationRecord{
		UpdateIndex:     "S100-2024-06-01",
		StaffNumber:     "S100",
		CalibrationDate: date(2024, time.June, 1),
		ScaleFactor:     1.00002,
	}
	readings := []types.ObservationRow{{Pin: "1", Reading: 0.5, StdDev: 1e-5}}
	require.NoError(t, q.InsertStaffCalibration(ctx, rec, readings))

	require.NoError(t, q.DeleteStaffCalibration(ctx, rec.UpdateIndex))

	_, err := q.StaffCalibration(ctx, rec.UpdateIndex)
	assert.ErrorIs(t, err, types.ErrEventNotFound)
	stored, err := q.StaffReadings(ctx, rec.UpdateIndex)
	require.NoError(t, err)
	assert.Empty(t, stored)

	err = q.DeleteStaffCalibration(ctx, rec.UpdateIndex)
	assert.ErrorIs(t, err, types.ErrEventNotFound)

	// The key is free again once deleted.
	require.NoError(t, q.InsertStaffCalibration(ctx, rec, readings))
}
