// Package calibration runs the request-scoped calibration workflows on top
// of the estimators and the calibration database.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/aggregator"
	"github.com/NotCoffee418/staff_calibration/pkg/calibdb"
	"github.com/NotCoffee418/staff_calibration/pkg/calutils"
	"github.com/NotCoffee418/staff_calibration/pkg/eventfeed"
	"github.com/NotCoffee418/staff_calibration/pkg/instrument"
	"github.com/NotCoffee418/staff_calibration/pkg/rangecal"
	"github.com/NotCoffee418/staff_calibration/pkg/reduction"
	"github.com/NotCoffee418/staff_calibration/pkg/staffcal"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"github.com/sirupsen/logrus"
)

type Service struct {
	db    *calibdb.DB
	agg   *aggregator.Service
	feed  Publisher
	locks *keyedMutex
	now   func() time.Time
}

// NewService wires the workflows. feed may be nil.
func NewService(db *calibdb.DB, agg *aggregator.Service, feed Publisher) *Service {
	if feed == nil {
		feed = nopPublisher{}
	}
	return &Service{
		db:    db,
		agg:   agg,
		feed:  feed,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// UploadRange registers a range calibration event, stores its reduced
// observations and adjusts them. The event stays pending for the aggregator.
func (s *Service) UploadRange(ctx context.Context, req RangeUpload) (*RangeReport, error) {
	parsed, err := instrument.ParseFile(req.Content)
	if err != nil {
		return nil, err
	}

	q := s.db.Queries()
	meta, err := q.StaffMeta(ctx, req.StaffNumber)
	if err != nil {
		return nil, err
	}
	if _, err := q.Level(ctx, req.LevelNumber); err != nil {
		return nil, err
	}

	key := calutils.EventKey(req.ObservationDate, req.StaffNumber)
	unlock := s.locks.Lock(key)
	defer unlock()

	temps := reduction.ExposureTemperatures{
		types.SetLabel(1): calutils.MeanTemperature(req.Set1.StartC, req.Set1.EndC),
		types.SetLabel(2): calutils.MeanTemperature(req.Set2.StartC, req.Set2.EndC),
	}
	fingerprint := instrument.Fingerprint(req.Content)
	raw := reduction.ReduceRange(parsed, temps, meta.Attributes())
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no pin pairs in %s", types.ErrInsufficientObservations, key)
	}

	ev := types.CalibrationEvent{
		UpdateIndex:     key,
		StaffNumber:     req.StaffNumber,
		LevelNumber:     req.LevelNumber,
		Surveyor:        req.Surveyor,
		ObservationDate: dateOnly(req.ObservationDate),
		Fingerprint:     fingerprint,
	}
	// Fingerprint and key checks share the insert transaction.
	err = s.db.InTx(ctx, func(q *calibdb.Queries) error {
		if prev, ok, err := q.EventByFingerprint(ctx, fingerprint); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%w: file already uploaded as %s", types.ErrDuplicateEvent, prev.UpdateIndex)
		}
		if err := q.InsertEvent(ctx, ev); err != nil {
			return err
		}
		return q.InsertRawObservations(ctx, key, raw)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"update_index": key,
		"dialect":      parsed.Dialect.String(),
		"sets":         len(parsed.Sets),
		"observations": len(raw),
	}).Info("Range calibration uploaded")
	s.feed.Publish(eventfeed.Event{Kind: eventfeed.KindRangeUploaded, UpdateIndex: key, StaffNumber: req.StaffNumber})

	report, err := s.adjustLocked(ctx, key)
	if err != nil {
		return nil, err
	}
	report.Dialect = parsed.Dialect.String()
	return report, nil
}

// AdjustEvent reruns the adjustment of a stored event, replacing its
// adjusted rows and summaries, and queues it for the aggregator again.
func (s *Service) AdjustEvent(ctx context.Context, updateIndex string) (*RangeReport, error) {
	unlock := s.locks.Lock(updateIndex)
	defer unlock()
	return s.adjustLocked(ctx, updateIndex)
}

func (s *Service) adjustLocked(ctx context.Context, updateIndex string) (*RangeReport, error) {
	q := s.db.Queries()
	ev, err := q.Event(ctx, updateIndex)
	if err != nil {
		return nil, err
	}
	raw, err := q.RawObservations(ctx, updateIndex)
	if err != nil {
		return nil, err
	}

	res := rangecal.Adjust(updateIndex, raw)
	err = s.db.InTx(ctx, func(q *calibdb.Queries) error {
		if err := q.ReplaceEventResults(ctx, updateIndex, ev.ObservationDate, res.Adjusted, res.Summaries); err != nil {
			return err
		}
		return q.MarkPending(ctx, updateIndex)
	})
	if err != nil {
		return nil, err
	}
	ev.Incorporated = false

	log := logrus.WithFields(logrus.Fields{
		"update_index": updateIndex,
		"intervals":    len(res.Summaries),
	})
	if len(res.Issues) > 0 {
		log.WithError(res.Err()).Warn("Range adjustment finished with issues")
	} else {
		log.Info("Range adjustment finished")
	}
	s.feed.Publish(eventfeed.Event{Kind: eventfeed.KindRangeAdjusted, UpdateIndex: updateIndex, StaffNumber: ev.StaffNumber})

	return &RangeReport{
		Event:           ev,
		Raw:             raw,
		Adjusted:        res.Adjusted,
		Summaries:       res.Summaries,
		MeanTemperature: meanTemperature(raw),
		Issues:          res.Issues,
	}, nil
}

// Report reads back the stored adjustment of an event.
func (s *Service) Report(ctx context.Context, updateIndex string) (*RangeReport, error) {
	q := s.db.Queries()
	ev, err := q.Event(ctx, updateIndex)
	if err != nil {
		return nil, err
	}
	raw, err := q.RawObservations(ctx, updateIndex)
	if err != nil {
		return nil, err
	}
	adjusted, err := q.AdjustedObservations(ctx, updateIndex)
	if err != nil {
		return nil, err
	}
	sums, err := q.HeightDifferences(ctx, updateIndex)
	if err != nil {
		return nil, err
	}
	return &RangeReport{
		Event:           ev,
		Raw:             raw,
		Adjusted:        adjusted,
		Summaries:       sums,
		MeanTemperature: meanTemperature(raw),
	}, nil
}

// DeleteEvent removes an event with everything derived from it and
// rebuilds the reference table from the remaining events.
func (s *Service) DeleteEvent(ctx context.Context, updateIndex string) error {
	unlock := s.locks.Lock(updateIndex)
	_, err := s.agg.DeleteAndRebuild(ctx, updateIndex)
	unlock()
	if err != nil {
		return err
	}

	s.feed.Publish(eventfeed.Event{Kind: eventfeed.KindEventDeleted, UpdateIndex: updateIndex})
	s.feed.Publish(eventfeed.Event{Kind: eventfeed.KindRangeAggregated, Message: "rebuilt"})
	return nil
}

func (s *Service) Aggregate(ctx context.Context) (aggregator.Result, error) {
	res, err := s.agg.Update(ctx)
	if err != nil {
		return res, err
	}
	if !res.NoOp() {
		s.feed.Publish(eventfeed.Event{
			Kind:    eventfeed.KindRangeAggregated,
			Message: fmt.Sprintf("%d events incorporated", len(res.Incorporated)),
		})
	}
	return res, nil
}

// RebuildRange resets the reference table and recomputes it from every event.
func (s *Service) RebuildRange(ctx context.Context) (aggregator.Result, error) {
	res, err := s.agg.Rebuild(ctx)
	if err != nil {
		return res, err
	}
	s.feed.Publish(eventfeed.Event{Kind: eventfeed.KindRangeAggregated, Message: "rebuilt"})
	return res, nil
}

// CalibrateStaff estimates the correction factor of a staff against the
// reference column of the observation month. The result replaces any
// earlier calibration under the same key and becomes the staff's stored
// correction factor.
func (s *Service) CalibrateStaff(ctx context.Context, req StaffCalibrationRequest) (*StaffCalibrationReport, error) {
	set, err := instrument.ParseStaffReadings(req.Content)
	if err != nil {
		return nil, err
	}

	q := s.db.Queries()
	meta, err := q.StaffMeta(ctx, req.StaffNumber)
	if err != nil {
		return nil, err
	}
	if _, err := q.Level(ctx, req.LevelNumber); err != nil {
		return nil, err
	}

	month := req.CalibrationDate.Month()
	reference, err := q.ReferenceColumn(ctx, month)
	if err != nil {
		return nil, err
	}
	if len(reference) == 0 {
		return nil, &types.IntervalError{Month: types.MonthName(month), Err: types.ErrMissingReferenceMonth}
	}

	observedTemp := calutils.MeanTemperature(req.Exposure.StartC, req.Exposure.EndC)
	// Raw staff readings: the estimator applies the staff's own thermal model.
	diffs := reduction.Reduce(set, observedTemp, types.StaffAttributes{})
	result, err := staffcal.Estimate(diffs, reference, meta, observedTemp)
	if err != nil {
		return nil, err
	}

	key := calutils.EventKey(req.CalibrationDate, req.StaffNumber)
	rec := types.StaffCalibrationRecord{
		UpdateIndex:               key,
		StaffNumber:               req.StaffNumber,
		LevelNumber:               req.LevelNumber,
		Observer:                  req.Observer,
		CalibrationDate:           dateOnly(req.CalibrationDate),
		ProcessedDate:             dateOnly(s.now()),
		ObservedTemperature:       observedTemp,
		StandardTemperature:       meta.StandardTemperature,
		ScaleFactor:               result.ScaleFactor,
		ScaleFactorAtStdTemp:      result.ScaleFactorAtStdTemp,
		GraduationUncertaintyMm95: result.GraduationUncertaintyMm95,
		AltTemperature:            result.AltTemperatureAtUnityFactor,
	}

	unlock := s.locks.Lock(key)
	defer unlock()
	err = s.db.InTx(ctx, func(q *calibdb.Queries) error {
		if err := q.InsertStaffCalibration(ctx, rec, set.Rows); err != nil {
			return err
		}
		return q.UpdateStaffCalibration(ctx, req.StaffNumber, calutils.ScaleFactorToPpm(result.ScaleFactorAtStdTemp), rec.CalibrationDate)
	})
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"update_index": key,
		"month":        types.MonthName(month),
		"scale_factor": result.ScaleFactorAtStdTemp,
		"intervals":    len(result.Corrections),
	})
	if len(result.Issues) > 0 {
		log.WithError(errors.Join(result.Issues...)).Warn("Staff calibration finished with issues")
	} else {
		log.Info("Staff calibration finished")
	}
	s.feed.Publish(eventfeed.Event{Kind: eventfeed.KindStaffCalibrated, UpdateIndex: key, StaffNumber: req.StaffNumber})

	return &StaffCalibrationReport{Record: rec, Result: result, Readings: set.Rows}, nil
}

// StaffReport re-runs the estimator over the stored readings of a staff
// calibration against the current reference values for its month.
func (s *Service) StaffReport(ctx context.Context, updateIndex string) (*StaffCalibrationReport, error) {
	q := s.db.Queries()
	rec, err := q.StaffCalibration(ctx, updateIndex)
	if err != nil {
		return nil, err
	}
	readings, err := q.StaffReadings(ctx, updateIndex)
	if err != nil {
		return nil, err
	}
	meta, err := q.StaffMeta(ctx, rec.StaffNumber)
	if err != nil {
		return nil, err
	}

	month := rec.CalibrationDate.Month()
	reference, err := q.ReferenceColumn(ctx, month)
	if err != nil {
		return nil, err
	}
	if len(reference) == 0 {
		return nil, &types.IntervalError{Event: updateIndex, Month: types.MonthName(month), Err: types.ErrMissingReferenceMonth}
	}

	diffs := reduction.Reduce(types.ObservationSet{Rows: readings}, rec.ObservedTemperature, types.StaffAttributes{})
	result, err := staffcal.Estimate(diffs, reference, meta, rec.ObservedTemperature)
	if err != nil {
		return nil, err
	}
	return &StaffCalibrationReport{Record: rec, Result: result, Readings: readings}, nil
}

// DeleteStaffCalibration removes a staff calibration. The staff's inventory
// correction factor falls back to its newest remaining calibration.
func (s *Service) DeleteStaffCalibration(ctx context.Context, updateIndex string) error {
	unlock := s.locks.Lock(updateIndex)
	defer unlock()

	var staffNumber string
	err := s.db.InTx(ctx, func(q *calibdb.Queries) error {
		rec, err := q.StaffCalibration(ctx, updateIndex)
		if err != nil {
			return err
		}
		staffNumber = rec.StaffNumber
		if err := q.DeleteStaffCalibration(ctx, updateIndex); err != nil {
			return err
		}

		remaining, err := q.StaffCalibrations(ctx, staffNumber)
		if err != nil || len(remaining) == 0 {
			return err
		}
		latest := remaining[0]
		return q.UpdateStaffCalibration(ctx, staffNumber, calutils.ScaleFactorToPpm(latest.ScaleFactorAtStdTemp), latest.CalibrationDate)
	})
	if err != nil {
		return err
	}

	logrus.WithField("update_index", updateIndex).Info("Staff calibration deleted")
	s.feed.Publish(eventfeed.Event{Kind: eventfeed.KindStaffCalibrationDeleted, UpdateIndex: updateIndex, StaffNumber: staffNumber})
	return nil
}

func meanTemperature(raw []types.RawObservation) *float64 {
	t := rangecal.MeanTemperature(raw)
	if math.IsNaN(t) {
		return nil
	}
	return &t
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
