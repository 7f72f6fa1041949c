package calibdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

const staffCalibrationColumns = `update_index, staff_number, level_number, observer, calibration_date,
	processed_date, observed_temperature, standard_temperature, scale_factor,
	scale_factor_at_std_temp, graduation_uncertainty_mm95, alt_temperature`

// InsertStaffCalibration stores a staff calibration and its readings.
// An update index that already holds a calibration is rejected.
func (q *Queries) InsertStaffCalibration(ctx context.Context, rec types.StaffCalibrationRecord, readings []types.ObservationRow) error {
	var exists int
	err := q.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM staff_calibrations WHERE update_index = ?", rec.UpdateIndex,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", types.ErrDuplicateEvent, rec.UpdateIndex)
	}

	_, err = q.q.ExecContext(ctx,
		"INSERT INTO staff_calibrations ("+staffCalibrationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.UpdateIndex,
		rec.StaffNumber,
		rec.LevelNumber,
		rec.Observer,
		formatDate(rec.CalibrationDate),
		formatDate(rec.ProcessedDate),
		rec.ObservedTemperature,
		rec.StandardTemperature,
		rec.ScaleFactor,
		rec.ScaleFactorAtStdTemp,
		nullFloat(rec.GraduationUncertaintyMm95),
		nullFloat(rec.AltTemperature),
	)
	if err != nil {
		return err
	}

	for _, r := range readings {
		var count sql.NullInt64
		if r.ReplicateCount != nil {
			count = sql.NullInt64{Int64: int64(*r.ReplicateCount), Valid: true}
		}
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO staff_readings
			(update_index, staff_number, calibration_date, pin, reading, replicate_count, std_dev)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.UpdateIndex,
			rec.StaffNumber,
			formatDate(rec.CalibrationDate),
			r.Pin,
			r.Reading,
			count,
			r.StdDev,
		)
		if err != nil {
			return fmt.Errorf("insert staff reading %s: %w", r.Pin, err)
		}
	}
	return nil
}

// DeleteStaffCalibration removes a staff calibration and its readings.
func (q *Queries) DeleteStaffCalibration(ctx context.Context, updateIndex string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM staff_calibrations WHERE update_index = ?", updateIndex)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrEventNotFound, updateIndex)
	}
	_, err = q.q.ExecContext(ctx, "DELETE FROM staff_readings WHERE update_index = ?", updateIndex)
	return err
}

func (q *Queries) StaffCalibration(ctx context.Context, updateIndex string) (types.StaffCalibrationRecord, error) {
	row := q.q.QueryRowContext(ctx,
		"SELECT "+staffCalibrationColumns+" FROM staff_calibrations WHERE update_index = ?", updateIndex)
	rec, err := scanStaffCalibration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", types.ErrEventNotFound, updateIndex)
	}
	return rec, err
}

// StaffCalibrations lists the calibrations of a staff, newest first.
func (q *Queries) StaffCalibrations(ctx context.Context, staffNumber string) ([]types.StaffCalibrationRecord, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT "+staffCalibrationColumns+" FROM staff_calibrations WHERE staff_number = ? "+
			"ORDER BY calibration_date DESC, update_index DESC", staffNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.StaffCalibrationRecord
	for rows.Next() {
		rec, err := scanStaffCalibration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (q *Queries) StaffReadings(ctx context.Context, updateIndex string) ([]types.ObservationRow, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT pin, reading, replicate_count, std_dev FROM staff_readings WHERE update_index = ? ORDER BY id",
		updateIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ObservationRow
	for rows.Next() {
		var (
			r     types.ObservationRow
			count sql.NullInt64
		)
		if err := rows.Scan(&r.Pin, &r.Reading, &count, &r.StdDev); err != nil {
			return nil, err
		}
		if count.Valid {
			c := int(count.Int64)
			r.ReplicateCount = &c
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanStaffCalibration(s scanner) (types.StaffCalibrationRecord, error) {
	var (
		rec            types.StaffCalibrationRecord
		calDate, pDate string
		gu, alt        sql.NullFloat64
	)
	err := s.Scan(
		&rec.UpdateIndex,
		&rec.StaffNumber,
		&rec.LevelNumber,
		&rec.Observer,
		&calDate,
		&pDate,
		&rec.ObservedTemperature,
		&rec.StandardTemperature,
		&rec.ScaleFactor,
		&rec.ScaleFactorAtStdTemp,
		&gu,
		&alt,
	)
	if err != nil {
		return rec, err
	}
	rec.GraduationUncertaintyMm95 = floatPtr(gu)
	rec.AltTemperature = floatPtr(alt)
	if rec.CalibrationDate, err = parseDate(calDate); err != nil {
		return rec, err
	}
	rec.ProcessedDate, err = parseDate(pDate)
	return rec, err
}
