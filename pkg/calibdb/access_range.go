package calibdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

// RangeParameters returns the reference table ordered as RangeIntervals,
// followed by any other stored interval.
func (q *Queries) RangeParameters(ctx context.Context) ([]types.RangeParameterRow, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT interval_label, "+strings.Join(monthColumns[:], ", ")+" FROM range_parameters")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byInterval := map[string]types.RangeParameterRow{}
	var extra []string
	for rows.Next() {
		var (
			row  types.RangeParameterRow
			vals [12]sql.NullFloat64
		)
		dest := []any{&row.Interval}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			row.Months[i] = floatPtr(v)
		}
		byInterval[row.Interval] = row
		extra = append(extra, row.Interval)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]types.RangeParameterRow, 0, len(byInterval))
	for _, interval := range types.RangeIntervals {
		if row, ok := byInterval[interval]; ok {
			out = append(out, row)
			delete(byInterval, interval)
		}
	}
	for _, interval := range extra {
		if row, ok := byInterval[interval]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// ReferenceColumn returns the accepted height differences of one month.
// Intervals without a value are absent from the map.
func (q *Queries) ReferenceColumn(ctx context.Context, m time.Month) (types.ReferenceColumn, error) {
	col, err := monthColumn(m)
	if err != nil {
		return nil, err
	}
	rows, err := q.q.QueryContext(ctx,
		"SELECT interval_label, "+col+" FROM range_parameters WHERE "+col+" IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := types.ReferenceColumn{}
	for rows.Next() {
		var (
			interval string
			v        float64
		)
		if err := rows.Scan(&interval, &v); err != nil {
			return nil, err
		}
		out[interval] = v
	}
	return out, rows.Err()
}

func (q *Queries) SetRangeParameter(ctx context.Context, interval string, m time.Month, value float64) error {
	col, err := monthColumn(m)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO range_parameters (interval_label, %[1]s) VALUES (?, ?) "+
			"ON CONFLICT(interval_label) DO UPDATE SET %[1]s = excluded.%[1]s", col),
		interval,
		value,
	)
	return err
}

// ResetRangeParameters clears the whole reference table.
func (q *Queries) ResetRangeParameters(ctx context.Context) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM range_parameters")
	return err
}
