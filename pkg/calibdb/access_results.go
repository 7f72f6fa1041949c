package calibdb

import (
	"context"
	"fmt"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

func (q *Queries) InsertRawObservations(ctx context.Context, updateIndex string, obs []types.RawObservation) error {
	for _, o := range obs {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO raw_observations
			(update_index, obs_set, interval_label, temperature, from_reading, to_reading,
			 std_dev, measured_length, corrected_length)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			updateIndex,
			o.Set,
			o.Interval,
			o.Temperature,
			o.FromReading,
			o.ToReading,
			o.StdDev,
			o.MeasuredLength,
			o.CorrectedLength,
		)
		if err != nil {
			return fmt.Errorf("insert raw observation %s: %w", o.Interval, err)
		}
	}
	return nil
}

// RawObservations returns the stored rows of an event in insertion order.
func (q *Queries) RawObservations(ctx context.Context, updateIndex string) ([]types.RawObservation, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT obs_set, interval_label, temperature, from_reading, to_reading,
		       std_dev, measured_length, corrected_length
		FROM raw_observations WHERE update_index = ? ORDER BY id`, updateIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.RawObservation
	for rows.Next() {
		var o types.RawObservation
		if err := rows.Scan(
			&o.Set,
			&o.Interval,
			&o.Temperature,
			&o.FromReading,
			&o.ToReading,
			&o.StdDev,
			&o.MeasuredLength,
			&o.CorrectedLength,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ReplaceEventResults swaps the adjusted rows and summaries of an event.
// Run it inside InTx so readers never see a half-replaced event.
func (q *Queries) ReplaceEventResults(
	ctx context.Context,
	updateIndex string,
	date time.Time,
	adjusted []types.AdjustedObservation,
	summaries []types.HeightDifferenceSummary,
) error {
	for _, table := range []string{"adjusted_observations", "height_differences"} {
		if _, err := q.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE update_index = ?", updateIndex); err != nil {
			return err
		}
	}

	d := formatDate(date)
	for _, a := range adjusted {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO adjusted_observations
			(update_index, observation_date, interval_label, adjusted_height_diff, observed_height_diff,
			 residual, observed_std_dev_mm, std_dev_of_residual_mm, standardized_residual)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			updateIndex,
			d,
			a.Interval,
			a.AdjustedHeightDiff,
			a.ObservedHeightDiff,
			a.Residual,
			a.ObservedStdDevMm,
			a.StdDevOfResidualMm,
			a.StandardizedResidual,
		)
		if err != nil {
			return err
		}
	}
	for _, s := range summaries {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO height_differences
			(update_index, observation_date, interval_label, adjusted_height_diff, uncertainty_mm, observation_count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			updateIndex,
			d,
			s.Interval,
			s.AdjustedHeightDiff,
			s.UncertaintyMm,
			s.ObservationCount,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) AdjustedObservations(ctx context.Context, updateIndex string) ([]types.AdjustedObservation, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT interval_label, adjusted_height_diff, observed_height_diff, residual,
		       observed_std_dev_mm, std_dev_of_residual_mm, standardized_residual
		FROM adjusted_observations WHERE update_index = ? ORDER BY id`, updateIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.AdjustedObservation
	for rows.Next() {
		var a types.AdjustedObservation
		if err := rows.Scan(
			&a.Interval,
			&a.AdjustedHeightDiff,
			&a.ObservedHeightDiff,
			&a.Residual,
			&a.ObservedStdDevMm,
			&a.StdDevOfResidualMm,
			&a.StandardizedResidual,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) HeightDifferences(ctx context.Context, updateIndex string) ([]types.HeightDifferenceSummary, error) {
	sums, err := q.querySummaries(ctx, `
		SELECT update_index, observation_date, interval_label, adjusted_height_diff, uncertainty_mm, observation_count
		FROM height_differences WHERE update_index = ? ORDER BY id`, updateIndex)
	if err != nil {
		return nil, err
	}
	out := make([]types.HeightDifferenceSummary, len(sums))
	for i, s := range sums {
		out[i] = s.HeightDifferenceSummary
	}
	return out, nil
}

// SummariesForMonth returns every stored summary observed in calendar month m
// of any year.
func (q *Queries) SummariesForMonth(ctx context.Context, m time.Month) ([]types.DatedSummary, error) {
	return q.querySummaries(ctx, `
		SELECT update_index, observation_date, interval_label, adjusted_height_diff, uncertainty_mm, observation_count
		FROM height_differences WHERE strftime('%m', observation_date) = ?
		ORDER BY observation_date, id`, fmt.Sprintf("%02d", int(m)))
}

func (q *Queries) querySummaries(ctx context.Context, query string, args ...any) ([]types.DatedSummary, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.DatedSummary
	for rows.Next() {
		var (
			s    types.DatedSummary
			date string
		)
		if err := rows.Scan(
			&s.UpdateIndex,
			&date,
			&s.Interval,
			&s.AdjustedHeightDiff,
			&s.UncertaintyMm,
			&s.ObservationCount,
		); err != nil {
			return nil, err
		}
		if s.ObservationDate, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
