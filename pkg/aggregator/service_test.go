package aggregator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/calibdb"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobustMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"single", []float64{0.123456}, 0.12346},
		{"pair", []float64{1.0, 2.0}, 1.5},
		{"outlier dropped", []float64{10.0, 10.1, 15.0}, 10.05},
		{"identical", []float64{5.0, 5.0, 5.0}, 5.0},
		{"always two picked", []float64{1.0, 1.1, 1.2, 1.3, 9.0}, 1.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RobustMean(tt.values)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := RobustMean(nil)
	assert.ErrorIs(t, err, types.ErrInsufficientObservations)
}

func TestBuildAnnualCycle(t *testing.T) {
	v := func(f float64) *float64 { return &f }
	rows := []types.RangeParameterRow{
		{Interval: "1-2", Months: [12]*float64{0: v(0.5), 6: v(0.501)}},
		{Interval: "2-3", Months: [12]*float64{0: v(0.3), 6: v(0.301)}},
	}

	cycle := BuildAnnualCycle(rows)
	require.Len(t, cycle.Months, 2)
	assert.True(t, cycle.Chartable())
	assert.Equal(t, "Jan", cycle.Months[0].Name)
	assert.InDelta(t, -1.0, cycle.Months[0].DeviationMm, 1e-9)
	assert.InDelta(t, 1.0, cycle.Months[1].DeviationMm, 1e-9)

	single := BuildAnnualCycle(rows[:0])
	assert.Empty(t, single.Months)
	assert.False(t, single.Chartable())
}

func openTestDB(t *testing.T) *calibdb.DB {
	t.Helper()
	db, err := calibdb.Open(filepath.Join(t.TempDir(), "calibration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func addEvent(t *testing.T, db *calibdb.DB, key string, date time.Time, diffs map[string]float64) {
	t.Helper()
	ctx := context.Background()
	var sums []types.HeightDifferenceSummary
	for _, interval := range types.RangeIntervals {
		if d, ok := diffs[interval]; ok {
			sums = append(sums, types.HeightDifferenceSummary{Interval: interval, AdjustedHeightDiff: d, UncertaintyMm: 0.02, ObservationCount: 2})
		}
	}
	err := db.InTx(ctx, func(q *calibdb.Queries) error {
		if err := q.InsertEvent(ctx, types.CalibrationEvent{
			UpdateIndex:     key,
			StaffNumber:     "S1",
			LevelNumber:     "L1",
			ObservationDate: date,
		}); err != nil {
			return err
		}
		return q.ReplaceEventResults(ctx, key, date, nil, sums)
	})
	require.NoError(t, err)
}

func TestUpdateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	march := func(y, d int) time.Time { return time.Date(y, time.March, d, 0, 0, 0, 0, time.UTC) }
	addEvent(t, db, "20230301-S1", march(2023, 1), map[string]float64{"1-2": 10.0, "9-10": 1.0})
	addEvent(t, db, "20240305-S1", march(2024, 5), map[string]float64{"1-2": 10.1})
	addEvent(t, db, "20240312-S1", march(2024, 12), map[string]float64{"1-2": 15.0, "21-22": 3.0})

	res, err := svc.Update(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Month{time.March}, res.Months)
	assert.Len(t, res.Incorporated, 3)

	col, err := db.Queries().ReferenceColumn(ctx, time.March)
	require.NoError(t, err)
	assert.Equal(t, types.ReferenceColumn{"1-2": 10.05, "9-10": 1.0}, col)

	before, err := db.Queries().RangeParameters(ctx)
	require.NoError(t, err)

	res, err = svc.Update(ctx)
	require.NoError(t, err)
	assert.True(t, res.NoOp())

	after, err := db.Queries().RangeParameters(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRebuildAfterDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	addEvent(t, db, "20240305-S1", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), map[string]float64{"1-2": 10.0})
	addEvent(t, db, "20240610-S1", time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), map[string]float64{"1-2": 11.0})
	_, err := svc.Update(ctx)
	require.NoError(t, err)

	require.NoError(t, db.Queries().DeleteEvent(ctx, "20240610-S1"))
	res, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Month{time.March}, res.Months)
	assert.Equal(t, []string{"20240305-S1"}, res.Incorporated)

	rows, err := db.Queries().RangeParameters(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, ok := rows[0].Value(time.June)
	assert.False(t, ok)

	cycle, err := svc.AnnualCycle(ctx)
	require.NoError(t, err)
	assert.False(t, cycle.Chartable())
}

func TestDeleteAndRebuild(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	addEvent(t, db, "20240305-S1", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), map[string]float64{"1-2": 10.0})
	addEvent(t, db, "20240610-S1", time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), map[string]float64{"1-2": 11.0})
	_, err := svc.Update(ctx)
	require.NoError(t, err)

	before, err := db.Queries().RangeParameters(ctx)
	require.NoError(t, err)

	_, err = svc.DeleteAndRebuild(ctx, "20240101-S9")
	assert.ErrorIs(t, err, types.ErrEventNotFound)
	after, err := db.Queries().RangeParameters(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	res, err := svc.DeleteAndRebuild(ctx, "20240610-S1")
	require.NoError(t, err)
	assert.Equal(t, []time.Month{time.March}, res.Months)
	assert.Equal(t, []string{"20240305-S1"}, res.Incorporated)

	_, err = db.Queries().Event(ctx, "20240610-S1")
	assert.ErrorIs(t, err, types.ErrEventNotFound)
	june, err := db.Queries().ReferenceColumn(ctx, time.June)
	require.NoError(t, err)
	assert.Empty(t, june)
}
