package calibdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

func (q *Queries) UpsertStaffType(ctx context.Context, st types.StaffType) error {
	_, err := q.q.ExecContext(ctx,
		"INSERT INTO staff_types (name, thermal_coefficient_ppm) VALUES (?, ?) "+
			"ON CONFLICT(name) DO UPDATE SET thermal_coefficient_ppm = excluded.thermal_coefficient_ppm",
		st.Name,
		st.ThermalCoefficientPpm,
	)
	return err
}

func (q *Queries) UpsertStaff(ctx context.Context, s types.StaffMeta) error {
	var calDate sql.NullString
	if s.CalibrationDate != nil {
		calDate = sql.NullString{String: formatDate(*s.CalibrationDate), Valid: true}
	}
	_, err := q.q.ExecContext(ctx,
		"INSERT INTO staffs "+
			"(staff_number, staff_type, length_m, standard_temperature, correction_factor_ppm, calibration_date) "+
			"VALUES (?, ?, ?, ?, ?, ?) "+
			"ON CONFLICT(staff_number) DO UPDATE SET "+
			"staff_type = excluded.staff_type, length_m = excluded.length_m, "+
			"standard_temperature = excluded.standard_temperature, "+
			"correction_factor_ppm = excluded.correction_factor_ppm, "+
			"calibration_date = excluded.calibration_date",
		s.StaffNumber,
		s.StaffType,
		s.LengthM,
		s.StandardTemperature,
		nullFloat(s.CorrectionFactorPpm),
		calDate,
	)
	return err
}

func (q *Queries) UpsertLevel(ctx context.Context, l types.LevelMeta) error {
	_, err := q.q.ExecContext(ctx,
		"INSERT INTO levels (level_number, make, model) VALUES (?, ?, ?) "+
			"ON CONFLICT(level_number) DO UPDATE SET make = excluded.make, model = excluded.model",
		l.LevelNumber,
		l.Make,
		l.Model,
	)
	return err
}

// StaffMeta reads a staff together with the thermal coefficient of its type.
func (q *Queries) StaffMeta(ctx context.Context, staffNumber string) (types.StaffMeta, error) {
	var (
		meta    types.StaffMeta
		cf      sql.NullFloat64
		calDate sql.NullString
	)
	err := q.q.QueryRowContext(ctx, `
		SELECT s.staff_number, s.staff_type, s.length_m, s.standard_temperature,
		       t.thermal_coefficient_ppm, s.correction_factor_ppm, s.calibration_date
		FROM staffs s
		JOIN staff_types t ON t.name = s.staff_type
		WHERE s.staff_number = ?`, staffNumber,
	).Scan(
		&meta.StaffNumber,
		&meta.StaffType,
		&meta.LengthM,
		&meta.StandardTemperature,
		&meta.ThermalCoefficientPpm,
		&cf,
		&calDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return meta, fmt.Errorf("%w: %s", types.ErrUnknownStaff, staffNumber)
	}
	if err != nil {
		return meta, err
	}
	meta.CorrectionFactorPpm = floatPtr(cf)
	if calDate.Valid {
		d, err := parseDate(calDate.String)
		if err != nil {
			return meta, err
		}
		meta.CalibrationDate = &d
	}
	return meta, nil
}

func (q *Queries) Level(ctx context.Context, levelNumber string) (types.LevelMeta, error) {
	var l types.LevelMeta
	err := q.q.QueryRowContext(ctx,
		"SELECT level_number, make, model FROM levels WHERE level_number = ?", levelNumber,
	).Scan(&l.LevelNumber, &l.Make, &l.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return l, fmt.Errorf("%w: %s", types.ErrUnknownLevel, levelNumber)
	}
	return l, err
}

// UpdateStaffCalibration stores the latest correction factor of a staff.
func (q *Queries) UpdateStaffCalibration(ctx context.Context, staffNumber string, correctionFactorPpm float64, date time.Time) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE staffs SET correction_factor_ppm = ?, calibration_date = ? WHERE staff_number = ?",
		correctionFactorPpm,
		formatDate(date),
		staffNumber,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrUnknownStaff, staffNumber)
	}
	return nil
}
