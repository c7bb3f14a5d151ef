package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"payplan/internal/core"
	applog "payplan/internal/log"
	"payplan/internal/schedule"
)

var errServiceUnavailable = errors.New("service not configured")

// now is replaced in tests.
var now = time.Now

func (s *Server) loggerFor(r *http.Request) *applog.Logger {
	if l, ok := r.Context().Value(applog.LoggerContextKey).(*applog.Logger); ok {
		return l
	}
	return s.logger
}

// handleMonthView serves the monthly cross-table.
func (s *Server) handleMonthView(w http.ResponseWriter, r *http.Request) {
	if s.svc.Schedule == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	params, err := ParseMonthParams(r.URL.Query(), now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.svc.Schedule.MonthView(r.Context(), params.Year, params.Month)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("month view %d-%02d: %w", params.Year, params.Month, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// dayTotalsResponse keeps the ascending date order a map cannot carry.
type dayTotalsResponse struct {
	Dates []string `json:"dates"`
	schedule.DayTotals
}

func newDayTotalsResponse(t schedule.DayTotals) dayTotalsResponse {
	dates := t.Dates()
	if dates == nil {
		dates = []string{}
	}
	return dayTotalsResponse{Dates: dates, DayTotals: t}
}

// handleDayTotals serves the per-day debit totals of a stored month.
func (s *Server) handleDayTotals(w http.ResponseWriter, r *http.Request) {
	if s.svc.Schedule == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	params, err := ParseMonthParams(r.URL.Query(), now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	totals, err := s.svc.Schedule.DayTotals(r.Context(), params.Year, params.Month)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("day totals %d-%02d: %w", params.Year, params.Month, err))
		return
	}
	writeJSON(w, http.StatusOK, newDayTotalsResponse(totals))
}

// handleDayTotalsFromItems aggregates caller-supplied items, typically an
// unsaved edit. Malformed items are counted as skipped.
func (s *Server) handleDayTotalsFromItems(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, projections, err := schedule.DecodeDayItems(data)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	totals := schedule.BuildDayTotals(entries, projections)
	if totals.Skipped > 0 {
		s.loggerFor(r).InfoContext(r.Context(), "Skipped malformed day items", applog.FieldCount, totals.Skipped)
	}
	writeJSON(w, http.StatusOK, newDayTotalsResponse(totals))
}

// handleCycle computes the cycle of a hypothetical entry.
func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	if s.svc.Instruments == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	q := r.URL.Query()
	instrumentID := sanitizeInput(q.Get("instrument"))
	if instrumentID == "" {
		s.writeError(w, r, fmt.Errorf("%w: instrument is required", errBadRequest))
		return
	}
	occurrence, err := parseDate("date", q.Get("date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cycle, err := s.svc.Instruments.Cycle(r.Context(), instrumentID, occurrence)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	if s.svc.Instruments == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	instruments, err := s.svc.Instruments.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if instruments == nil {
		instruments = []core.Instrument{}
	}
	writeJSON(w, http.StatusOK, instruments)
}

// handleUpdateBilling replaces an instrument's billing configuration and
// recalculates its entries.
func (s *Server) handleUpdateBilling(w http.ResponseWriter, r *http.Request) {
	if s.svc.Instruments == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	var cfg core.BillingConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	update, err := s.svc.Instruments.UpdateBilling(r.Context(), id, cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

// handleCreateEntry records a ledger entry with its computed cycle.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ledger == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	var req EntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := req.Entry()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.svc.Ledger.RecordEntry(r.Context(), e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/entries/"+saved.ID).
		Body(saved).
		Write(w)
}

func (s *Server) handleEditEntry(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ledger == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	var req EntryPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patch, err := req.Patch()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.svc.Ledger.EditEntry(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
