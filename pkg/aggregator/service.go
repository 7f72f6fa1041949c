// Package aggregator folds adjusted range calibrations into the monthly
// reference table.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/calibdb"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"github.com/sirupsen/logrus"
)

type Service struct {
	db *calibdb.DB
	// mu covers the pending scan-and-clear sequence and full rebuilds.
	mu sync.Mutex
}

func NewService(db *calibdb.DB) *Service {
	return &Service{db: db}
}

// Update recombines every month touched by a pending event and marks those
// events incorporated. Without pending events it changes nothing.
func (s *Service) Update(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	err := s.db.InTx(ctx, func(q *calibdb.Queries) error {
		pending, err := q.PendingEvents(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		res.Months = pendingMonths(pending)
		for _, m := range res.Months {
			n, err := recomputeMonth(ctx, q, m)
			if err != nil {
				return err
			}
			res.Cells += n
		}

		for _, ev := range pending {
			res.Incorporated = append(res.Incorporated, ev.UpdateIndex)
		}
		return q.MarkIncorporated(ctx, res.Incorporated)
	})
	if err != nil {
		return Result{}, fmt.Errorf("aggregate range parameters: %w", err)
	}

	if res.NoOp() {
		logrus.Debug("No pending calibration events to aggregate")
	} else {
		logrus.WithFields(logrus.Fields{
			"events": len(res.Incorporated),
			"months": len(res.Months),
			"cells":  res.Cells,
		}).Info("Range parameters updated")
	}
	return res, nil
}

// Rebuild clears the reference table and recomputes all twelve months from
// every stored event, which are all marked incorporated afterwards.
func (s *Service) Rebuild(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	err := s.db.InTx(ctx, func(q *calibdb.Queries) (err error) {
		res, err = rebuild(ctx, q)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("rebuild range parameters: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"events": len(res.Incorporated),
		"months": len(res.Months),
	}).Info("Range parameters rebuilt")
	return res, nil
}

// DeleteAndRebuild removes an event and rebuilds the range parameters in
// the same transaction, so a failed rebuild leaves the event in place.
func (s *Service) DeleteAndRebuild(ctx context.Context, updateIndex string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	err := s.db.InTx(ctx, func(q *calibdb.Queries) (err error) {
		if err = q.DeleteEvent(ctx, updateIndex); err != nil {
			return err
		}
		res, err = rebuild(ctx, q)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("delete event %s: %w", updateIndex, err)
	}

	logrus.WithFields(logrus.Fields{
		"event":  updateIndex,
		"events": len(res.Incorporated),
		"months": len(res.Months),
	}).Info("Event deleted, range parameters rebuilt")
	return res, nil
}

func rebuild(ctx context.Context, q *calibdb.Queries) (Result, error) {
	var res Result
	if err := q.ResetRangeParameters(ctx); err != nil {
		return res, err
	}
	for m := time.January; m <= time.December; m++ {
		n, err := recomputeMonth(ctx, q, m)
		if err != nil {
			return res, err
		}
		if n > 0 {
			res.Months = append(res.Months, m)
			res.Cells += n
		}
	}

	events, err := q.Events(ctx)
	if err != nil {
		return res, err
	}
	for _, ev := range events {
		res.Incorporated = append(res.Incorporated, ev.UpdateIndex)
	}
	return res, q.MarkAllIncorporated(ctx)
}

func (s *Service) AnnualCycle(ctx context.Context) (AnnualCycle, error) {
	rows, err := s.db.Queries().RangeParameters(ctx)
	if err != nil {
		return AnnualCycle{}, err
	}
	return BuildAnnualCycle(rows), nil
}

// recomputeMonth combines all stored summaries of month m, across years,
// into the reference table. Only the standard range intervals are kept.
func recomputeMonth(ctx context.Context, q *calibdb.Queries, m time.Month) (int, error) {
	sums, err := q.SummariesForMonth(ctx, m)
	if err != nil {
		return 0, err
	}

	values := map[string][]float64{}
	for _, s := range sums {
		values[s.Interval] = append(values[s.Interval], s.AdjustedHeightDiff)
	}

	var cells int
	for _, interval := range types.RangeIntervals {
		vals := values[interval]
		if len(vals) == 0 {
			continue
		}
		v, err := RobustMean(vals)
		if err != nil {
			return cells, &types.IntervalError{Interval: interval, Month: types.MonthName(m), Err: err}
		}
		if err := q.SetRangeParameter(ctx, interval, m, v); err != nil {
			return cells, err
		}
		cells++
	}
	return cells, nil
}

func pendingMonths(events []types.CalibrationEvent) []time.Month {
	seen := map[time.Month]bool{}
	var months []time.Month
	for _, ev := range events {
		m := ev.ObservationDate.Month()
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	return months
}
