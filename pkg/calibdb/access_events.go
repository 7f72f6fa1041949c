package calibdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
)

const eventColumns = "update_index, staff_number, level_number, surveyor, observation_date, incorporated, fingerprint"

// InsertEvent registers a new calibration event as pending.
func (q *Queries) InsertEvent(ctx context.Context, ev types.CalibrationEvent) error {
	var exists int
	err := q.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM calibration_events WHERE update_index = ?", ev.UpdateIndex,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", types.ErrDuplicateEvent, ev.UpdateIndex)
	}

	_, err = q.q.ExecContext(ctx,
		"INSERT INTO calibration_events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, NULL, ?)",
		ev.UpdateIndex,
		ev.StaffNumber,
		ev.LevelNumber,
		ev.Surveyor,
		formatDate(ev.ObservationDate),
		ev.Fingerprint,
	)
	return err
}

func (q *Queries) Event(ctx context.Context, updateIndex string) (types.CalibrationEvent, error) {
	row := q.q.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM calibration_events WHERE update_index = ?", updateIndex)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ev, fmt.Errorf("%w: %s", types.ErrEventNotFound, updateIndex)
	}
	return ev, err
}

// EventByFingerprint finds an event created from identical file content.
// The bool is false when no such event exists.
func (q *Queries) EventByFingerprint(ctx context.Context, fingerprint string) (types.CalibrationEvent, bool, error) {
	if fingerprint == "" {
		return types.CalibrationEvent{}, false, nil
	}
	row := q.q.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM calibration_events WHERE fingerprint = ? LIMIT 1", fingerprint)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ev, false, nil
	}
	if err != nil {
		return ev, false, err
	}
	return ev, true, nil
}

// Events lists all events, oldest observation first.
func (q *Queries) Events(ctx context.Context) ([]types.CalibrationEvent, error) {
	return q.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM calibration_events ORDER BY observation_date, update_index")
}

// PendingEvents lists events not yet folded into the reference table.
func (q *Queries) PendingEvents(ctx context.Context) ([]types.CalibrationEvent, error) {
	return q.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM calibration_events WHERE incorporated IS NULL ORDER BY observation_date, update_index")
}

func (q *Queries) MarkIncorporated(ctx context.Context, updateIndexes []string) error {
	if len(updateIndexes) == 0 {
		return nil
	}
	args := make([]any, len(updateIndexes))
	for i, u := range updateIndexes {
		args[i] = u
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(updateIndexes)), ",")
	_, err := q.q.ExecContext(ctx,
		"UPDATE calibration_events SET incorporated = 1 WHERE update_index IN ("+placeholders+")", args...)
	return err
}

// MarkPending queues an event for the next aggregator run.
func (q *Queries) MarkPending(ctx context.Context, updateIndex string) error {
	_, err := q.q.ExecContext(ctx, "UPDATE calibration_events SET incorporated = NULL WHERE update_index = ?", updateIndex)
	return err
}

func (q *Queries) MarkAllIncorporated(ctx context.Context) error {
	_, err := q.q.ExecContext(ctx, "UPDATE calibration_events SET incorporated = 1")
	return err
}

// DeleteEvent removes an event and every row derived from it.
func (q *Queries) DeleteEvent(ctx context.Context, updateIndex string) error {
	res, err := q.q.ExecContext(ctx, "DELETE FROM calibration_events WHERE update_index = ?", updateIndex)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrEventNotFound, updateIndex)
	}
	for _, table := range []string{"raw_observations", "adjusted_observations", "height_differences"} {
		if _, err := q.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE update_index = ?", updateIndex); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) queryEvents(ctx context.Context, query string, args ...any) ([]types.CalibrationEvent, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []types.CalibrationEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (types.CalibrationEvent, error) {
	var (
		ev           types.CalibrationEvent
		date         string
		incorporated sql.NullInt64
	)
	err := s.Scan(
		&ev.UpdateIndex,
		&ev.StaffNumber,
		&ev.LevelNumber,
		&ev.Surveyor,
		&date,
		&incorporated,
		&ev.Fingerprint,
	)
	if err != nil {
		return ev, err
	}
	ev.Incorporated = incorporated.Valid && incorporated.Int64 != 0
	ev.ObservationDate, err = parseDate(date)
	return ev, err
}
