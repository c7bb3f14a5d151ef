package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"payplan/internal/core"
	"payplan/internal/services"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// errBadRequest marks malformed requests that never reached a service.
var errBadRequest = errors.New("bad request")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using the
// current month for missing values. Non-numeric or out of range values are
// rejected.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("%w: invalid year %q", errBadRequest, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("%w: invalid month %q", errBadRequest, v)
		}
		params.Month = m
	}
	if params.Month < 1 || params.Month > 12 {
		return MonthParams{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, params.Month)
	}

	return params, nil
}

// decodeJSON reads one JSON value from the request body into v. Unknown
// fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// readBody reads the raw request body for handlers that decode loosely.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return data, nil
}

// EntryRequest is the body of POST /api/entries. Amount is a decimal string
// in currency units, either "12.34" or "12,34".
type EntryRequest struct {
	OccurrenceDate string `json:"occurrenceDate"`
	Amount         string `json:"amount"`
	InstrumentID   string `json:"instrumentId"`
	Description    string `json:"description"`
	Category       string `json:"category"`
}

// Entry converts the request into an unscheduled ledger entry.
func (req EntryRequest) Entry() (core.LedgerEntry, error) {
	occurrence, err := parseDate("occurrenceDate", req.OccurrenceDate)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("amount %q: %w", req.Amount, err)
	}
	return core.LedgerEntry{
		OccurrenceDate: occurrence,
		Amount:         core.Money{Cents: cents},
		InstrumentID:   sanitizeInput(req.InstrumentID),
		Description:    sanitizeInput(req.Description),
		Category:       sanitizeInput(req.Category),
	}, nil
}

// EntryPatchRequest is the body of PATCH /api/entries/{id}. Absent fields are
// left unchanged.
type EntryPatchRequest struct {
	OccurrenceDate *string `json:"occurrenceDate"`
	Amount         *string `json:"amount"`
	InstrumentID   *string `json:"instrumentId"`
	Description    *string `json:"description"`
	Category       *string `json:"category"`
}

// Patch converts the request into a service patch.
func (req EntryPatchRequest) Patch() (services.EntryPatch, error) {
	var patch services.EntryPatch
	if req.OccurrenceDate != nil {
		d, err := parseDate("occurrenceDate", *req.OccurrenceDate)
		if err != nil {
			return services.EntryPatch{}, err
		}
		patch.OccurrenceDate = &d
	}
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			return services.EntryPatch{}, fmt.Errorf("amount %q: %w", *req.Amount, err)
		}
		patch.Amount = &core.Money{Cents: cents}
	}
	if req.InstrumentID != nil {
		v := sanitizeInput(*req.InstrumentID)
		patch.InstrumentID = &v
	}
	if req.Description != nil {
		v := sanitizeInput(*req.Description)
		patch.Description = &v
	}
	if req.Category != nil {
		v := sanitizeInput(*req.Category)
		patch.Category = &v
	}
	return patch, nil
}
