package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/aggregator"
	"github.com/NotCoffee418/staff_calibration/pkg/calibdb"
	"github.com/NotCoffee418/staff_calibration/pkg/calibration"
	"github.com/NotCoffee418/staff_calibration/pkg/chart"
	"github.com/NotCoffee418/staff_calibration/pkg/eventfeed"
	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"github.com/sirupsen/logrus"
)

const maxUploadBytes = 32 << 20

type server struct {
	db        *calibdb.DB
	svc       *calibration.Service
	agg       *aggregator.Service
	hub       *eventfeed.Hub
	uploadDir string
}

func newServer(db *calibdb.DB, hub *eventfeed.Hub, uploadDir string) *server {
	agg := aggregator.NewService(db)
	return &server{
		db:        db,
		svc:       calibration.NewService(db, agg, hub),
		agg:       agg,
		hub:       hub,
		uploadDir: uploadDir,
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /ws", s.hub.ServeWS)

	mux.HandleFunc("POST /staff-types", s.handleUpsertStaffType)
	mux.HandleFunc("POST /staffs", s.handleUpsertStaff)
	mux.HandleFunc("GET /staffs/{number}", s.handleGetStaff)
	mux.HandleFunc("GET /staffs/{number}/calibrations", s.handleStaffCalibrations)
	mux.HandleFunc("POST /levels", s.handleUpsertLevel)

	mux.HandleFunc("POST /range/events", s.handleRangeUpload)
	mux.HandleFunc("GET /range/events", s.handleListEvents)
	mux.HandleFunc("GET /range/events/{key}", s.handleRangeReport)
	mux.HandleFunc("POST /range/events/{key}/adjust", s.handleRangeAdjust)
	mux.HandleFunc("DELETE /range/events/{key}", s.handleDeleteEvent)

	mux.HandleFunc("POST /range/aggregate", s.handleAggregate)
	mux.HandleFunc("POST /range/rebuild", s.handleRebuild)
	mux.HandleFunc("GET /range/parameters", s.handleRangeParameters)
	mux.HandleFunc("GET /range/annual-cycle", s.handleAnnualCycle)
	mux.HandleFunc("GET /range/annual-cycle.png", s.handleAnnualCycleChart)

	mux.HandleFunc("POST /staff-calibrations", s.handleStaffCalibration)
	mux.HandleFunc("GET /staff-calibrations/{key}", s.handleGetStaffCalibration)
	mux.HandleFunc("GET /staff-calibrations/{key}/report", s.handleStaffReport)
	mux.HandleFunc("DELETE /staff-calibrations/{key}", s.handleDeleteStaffCalibration)
	return mux
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Staff Calibration API",
		"status":      "running",
		"subscribers": s.hub.ClientCount(),
	})
}

func (s *server) handleUpsertStaffType(w http.ResponseWriter, r *http.Request) {
	var st types.StaffType
	if !decodeJSON(w, r, &st) {
		return
	}
	if st.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if err := s.db.Queries().UpsertStaffType(r.Context(), st); err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.Publish(eventfeed.Event{Kind: eventfeed.KindInventoryChanged, Message: "staff type " + st.Name})
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleUpsertStaff(w http.ResponseWriter, r *http.Request) {
	staff := types.StaffMeta{StandardTemperature: 25}
	if !decodeJSON(w, r, &staff) {
		return
	}
	if staff.StaffNumber == "" || staff.StaffType == "" {
		writeError(w, http.StatusBadRequest, errors.New("staff_number and staff_type are required"))
		return
	}
	if err := s.db.Queries().UpsertStaff(r.Context(), staff); err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.Publish(eventfeed.Event{Kind: eventfeed.KindInventoryChanged, StaffNumber: staff.StaffNumber})
	s.handleGetStaff(w, withPathValue(r, "number", staff.StaffNumber))
}

func (s *server) handleGetStaff(w http.ResponseWriter, r *http.Request) {
	meta, err := s.db.Queries().StaffMeta(r.Context(), r.PathValue("number"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *server) handleStaffCalibrations(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	if _, err := s.db.Queries().StaffMeta(r.Context(), number); err != nil {
		writeFailure(w, err)
		return
	}
	list, err := s.db.Queries().StaffCalibrations(r.Context(), number)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *server) handleUpsertLevel(w http.ResponseWriter, r *http.Request) {
	var l types.LevelMeta
	if !decodeJSON(w, r, &l) {
		return
	}
	if l.LevelNumber == "" {
		writeError(w, http.StatusBadRequest, errors.New("level_number is required"))
		return
	}
	if err := s.db.Queries().UpsertLevel(r.Context(), l); err != nil {
		writeFailure(w, err)
		return
	}
	s.hub.Publish(eventfeed.Event{Kind: eventfeed.KindInventoryChanged, Message: "level " + l.LevelNumber})
	writeJSON(w, http.StatusOK, l)
}

type rangeReportResponse struct {
	*calibration.RangeReport
	Issues []string `json:"issues,omitempty"`
}

func (s *server) handleRangeUpload(w http.ResponseWriter, r *http.Request) {
	form, content, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req := calibration.RangeUpload{
		StaffNumber: form.get("staff_number"),
		LevelNumber: form.get("level_number"),
		Surveyor:    form.optional("surveyor"),
		Content:     content,
	}
	req.ObservationDate = form.date("observation_date")
	req.Set1.StartC = form.float("set1_start_temperature")
	req.Set1.EndC = form.float("set1_end_temperature")
	req.Set2.StartC = form.float("set2_start_temperature")
	req.Set2.EndC = form.float("set2_end_temperature")
	if err := form.err(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.svc.UploadRange(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.keepUpload(report.Event.UpdateIndex+"-range", content)
	writeJSON(w, http.StatusCreated, rangeReportResponse{report, report.IssueMessages()})
}

func (s *server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := s.db.Queries()
	var (
		events []types.CalibrationEvent
		err    error
	)
	if r.URL.Query().Get("pending") == "true" {
		events, err = q.PendingEvents(r.Context())
	} else {
		events, err = q.Events(r.Context())
	}
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (s *server) handleRangeReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Report(r.Context(), r.PathValue("key"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rangeReportResponse{report, nil})
}

func (s *server) handleRangeAdjust(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.AdjustEvent(r.Context(), r.PathValue("key"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rangeReportResponse{report, report.IssueMessages()})
}

func (s *server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteEvent(r.Context(), r.PathValue("key")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Aggregate(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.RebuildRange(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleRangeParameters(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Queries().RangeParameters(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func (s *server) handleAnnualCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.agg.AnnualCycle(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"months":    nonNil(cycle.Months),
		"chartable": cycle.Chartable(),
	})
}

func (s *server) handleAnnualCycleChart(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.agg.AnnualCycle(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !cycle.Chartable() {
		writeError(w, http.StatusNotFound, chart.ErrNotEnoughMonths)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := chart.WriteAnnualCyclePNG(w, cycle); err != nil {
		logrus.WithError(err).Error("Failed to render annual cycle")
	}
}

type staffCalibrationResponse struct {
	*calibration.StaffCalibrationReport
	Issues []string `json:"issues,omitempty"`
}

func (s *server) handleStaffCalibration(w http.ResponseWriter, r *http.Request) {
	form, content, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req := calibration.StaffCalibrationRequest{
		StaffNumber: form.get("staff_number"),
		LevelNumber: form.get("level_number"),
		Observer:    form.optional("observer"),
		Content:     content,
	}
	req.CalibrationDate = form.date("calibration_date")
	req.Exposure.StartC = form.float("start_temperature")
	req.Exposure.EndC = form.float("end_temperature")
	if err := form.err(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.svc.CalibrateStaff(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.keepUpload(report.Record.UpdateIndex+"-staff", content)
	writeJSON(w, http.StatusCreated, staffCalibrationResponse{report, report.IssueMessages()})
}

func (s *server) handleGetStaffCalibration(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	q := s.db.Queries()
	rec, err := q.StaffCalibration(r.Context(), key)
	if err != nil {
		writeFailure(w, err)
		return
	}
	readings, err := q.StaffReadings(r.Context(), key)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"record":   rec,
		"readings": nonNil(readings),
	})
}

func (s *server) handleStaffReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.StaffReport(r.Context(), r.PathValue("key"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, staffCalibrationResponse{report, report.IssueMessages()})
}

func (s *server) handleDeleteStaffCalibration(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteStaffCalibration(r.Context(), r.PathValue("key")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// keepUpload stores the accepted file next to earlier uploads. Failing to
// keep a copy does not fail the request.
func (s *server) keepUpload(name string, content []byte) {
	if s.uploadDir == "" {
		return
	}
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		logrus.WithError(err).Warn("Cannot create upload directory")
		return
	}
	path := filepath.Join(s.uploadDir, name+".asc")
	if err := os.WriteFile(path, content, 0644); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("Cannot keep uploaded file")
	}
}

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, types.ErrDuplicateEvent):
		return http.StatusConflict
	case errors.Is(err, types.ErrEventNotFound),
		errors.Is(err, types.ErrUnknownStaff),
		errors.Is(err, types.ErrUnknownLevel):
		return http.StatusNotFound
	case errors.Is(err, types.ErrMalformedRecord):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrInsufficientObservations),
		errors.Is(err, types.ErrDegenerateEstimate),
		errors.Is(err, types.ErrMissingReferenceMonth):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).Error("Request failed")
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to write response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func withPathValue(r *http.Request, name, value string) *http.Request {
	r.SetPathValue(name, value)
	return r
}

// nonNil keeps empty lists as [] in responses.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// uploadForm reads the fields of a multipart upload and remembers the
// first invalid one.
type uploadForm struct {
	r     *http.Request
	first error
}

func readUpload(w http.ResponseWriter, r *http.Request) (*uploadForm, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, fmt.Errorf("invalid upload: %w", err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("missing file: %w", err)
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, err
	}
	return &uploadForm{r: r}, content, nil
}

func (f *uploadForm) get(name string) string {
	v := strings.TrimSpace(f.r.FormValue(name))
	if v == "" && f.first == nil {
		f.first = fmt.Errorf("%s is required", name)
	}
	return v
}

func (f *uploadForm) optional(name string) string {
	return strings.TrimSpace(f.r.FormValue(name))
}

func (f *uploadForm) float(name string) float64 {
	raw := f.get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && f.first == nil {
		f.first = fmt.Errorf("%s: %w", name, err)
	}
	return v
}

func (f *uploadForm) date(name string) time.Time {
	raw := f.get(name)
	if raw == "" {
		return time.Time{}
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil && f.first == nil {
		f.first = fmt.Errorf("%s: %w", name, err)
	}
	return d
}

func (f *uploadForm) err() error {
	return f.first
}
