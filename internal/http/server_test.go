package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"payplan/internal/analyzer"
	"payplan/internal/billing"
	"payplan/internal/core"
	applog "payplan/internal/log"
	"payplan/internal/schedule"
	"payplan/internal/services"
	"payplan/internal/storage"
	"payplan/internal/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.UpsertAccount(ctx, core.Account{ID: "acc-1", Name: "Main"}); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	for _, in := range []core.Instrument{
		{
			ID: "card-1", Label: "Visa", Kind: core.KindCard, AccountID: "acc-1",
			Billing: core.BillingConfig{ClosingDay: core.Literal(10), PaymentDay: core.Literal(25), PaymentMonthShift: 1, AdjustWeekend: true},
		},
		{
			ID: "card-2", Label: "Amex", Kind: core.KindCard, AccountID: "acc-1",
			Billing: core.BillingConfig{ClosingDay: core.MonthEnd, PaymentDay: core.MonthEnd, PaymentMonthShift: 1, AdjustWeekend: true},
		},
	} {
		if err := store.UpsertInstrument(ctx, in); err != nil {
			t.Fatalf("UpsertInstrument(%s) error = %v", in.ID, err)
		}
	}

	calc := billing.Calculator{}
	svc := Services{
		Ledger:      services.NewLedgerService(store, calc, nil),
		Instruments: services.NewInstrumentService(store, calc, nil),
		Fixes:       services.NewFixService(store, calc, nil),
		Schedule:    services.NewScheduleService(store, calc, schedule.NewViewCache(8, time.Minute)),
	}
	logger := applog.New(applog.Config{Level: applog.DefaultConfig().Level, Component: applog.ComponentHTTP, Output: &bytes.Buffer{}})
	srv := NewServer(":0", svc, logger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	empty := NewServer(":0", Services{}, nil)
	defer empty.Shutdown(context.Background())
	if rr := do(t, empty, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz without services status=%d, want 503", rr.Code)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/instruments", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}

	rr = do(t, srv, http.MethodGet, "/api/instruments", "")
	if !strings.HasPrefix(rr.Header().Get(requestIDHeader), "req_") {
		t.Errorf("generated request id = %q", rr.Header().Get(requestIDHeader))
	}
}

func TestCreateEntryAndMonthView(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/entries",
		`{"occurrenceDate":"2025-03-05","amount":"120.50","instrumentId":"card-1","description":"groceries"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[core.LedgerEntry](t, rr)
	if created.ID == "" {
		t.Fatal("created entry has no id")
	}
	if !created.ScheduledPayDate.Equal(core.NewDate(2025, 4, 25)) {
		t.Errorf("ScheduledPayDate = %v, want 2025-04-25", created.ScheduledPayDate)
	}
	if rr.Header().Get("Location") != "/api/entries/"+created.ID {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}

	rr = do(t, srv, http.MethodGet, "/api/schedule?year=2025&month=4", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("schedule status=%d body=%s", rr.Code, rr.Body.String())
	}
	view := decode[schedule.View](t, rr)
	if view.MonthTotal.Cents != 12050 {
		t.Errorf("MonthTotal = %d, want 12050", view.MonthTotal.Cents)
	}
	if len(view.Rows) != 1 || view.Rows[0].InstrumentLabel != "Visa" {
		t.Errorf("Rows = %+v", view.Rows)
	}
	if view.AccountTotals["Main"].Cents != 12050 {
		t.Errorf("AccountTotals = %v", view.AccountTotals)
	}

	rr = do(t, srv, http.MethodGet, "/api/day-totals?year=2025&month=4", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("day totals status=%d", rr.Code)
	}
	totals := decode[dayTotalsResponse](t, rr)
	if len(totals.Dates) != 1 || totals.Dates[0] != "2025-04-25" {
		t.Errorf("Dates = %v", totals.Dates)
	}
	if day := totals.Days["2025-04-25"]; day.CardTransactionTotal.Cents != 12050 || !day.HasCardTransactions {
		t.Errorf("Days[2025-04-25] = %+v", day)
	}
}

func TestCreateEntryErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown instrument", `{"occurrenceDate":"2025-03-05","amount":"1","instrumentId":"nope","description":"x"}`, http.StatusUnprocessableEntity, "unresolved_instrument"},
		{"invalid amount", `{"occurrenceDate":"2025-03-05","amount":"abc","instrumentId":"card-1","description":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"invalid date", `{"occurrenceDate":"05/03/2025","amount":"1","instrumentId":"card-1","description":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"missing instrument", `{"occurrenceDate":"2025-03-05","amount":"1","description":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"malformed body", `{"occurrenceDate":`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/entries", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d (body=%s)", rr.Code, tt.status, rr.Body.String())
			}
			env := decode[errorEnvelope](t, rr)
			if env.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.code)
			}
		})
	}
}

func TestEditEntry(t *testing.T) {
	srv, _ := newTestServer(t)
	created := decode[core.LedgerEntry](t, do(t, srv, http.MethodPost, "/api/entries",
		`{"occurrenceDate":"2025-03-05","amount":"10","instrumentId":"card-1","description":"a"}`))

	rr := do(t, srv, http.MethodPatch, "/api/entries/"+created.ID, `{"occurrenceDate":"2025-03-12"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	edited := decode[core.LedgerEntry](t, rr)
	if !edited.ScheduledPayDate.Equal(core.NewDate(2025, 5, 26)) {
		t.Errorf("ScheduledPayDate = %v, want 2025-05-26 (25th is a Sunday)", edited.ScheduledPayDate)
	}
	if !edited.IsAdjusted {
		t.Error("IsAdjusted = false, want true")
	}

	if rr := do(t, srv, http.MethodPatch, "/api/entries/missing", `{"description":"b"}`); rr.Code != http.StatusNotFound {
		t.Errorf("patch missing entry status=%d, want 404", rr.Code)
	}
}

func TestCycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/cycle?instrument=card-1&date=2025-03-10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	cycle := decode[core.PaymentCycleResult](t, rr)
	if !cycle.ClosingDate.Equal(core.NewDate(2025, 3, 10)) || !cycle.ScheduledPayDate.Equal(core.NewDate(2025, 4, 25)) {
		t.Errorf("cycle = %+v", cycle)
	}

	for path, want := range map[string]int{
		"/api/cycle?date=2025-03-10":                    http.StatusBadRequest,
		"/api/cycle?instrument=card-1":                  http.StatusBadRequest,
		"/api/cycle?instrument=card-1&date=2025-02-30":  http.StatusBadRequest,
		"/api/cycle?instrument=missing&date=2025-03-10": http.StatusUnprocessableEntity,
	} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != want {
			t.Errorf("GET %s status=%d, want %d", path, rr.Code, want)
		}
	}
}

func TestUpdateBilling(t *testing.T) {
	srv, store := newTestServer(t)
	created := decode[core.LedgerEntry](t, do(t, srv, http.MethodPost, "/api/entries",
		`{"occurrenceDate":"2025-03-05","amount":"10","instrumentId":"card-1","description":"a"}`))

	rr := do(t, srv, http.MethodPut, "/api/instruments/card-1/billing",
		`{"closingDay":"15","paymentDay":"5","paymentMonthShift":1,"adjustWeekend":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	update := decode[services.BillingUpdate](t, rr)
	if update.Entries != 1 || update.ChangedEntries != 1 {
		t.Errorf("update = %+v", update)
	}
	got, err := store.GetEntry(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if !got.ScheduledPayDate.Equal(core.NewDate(2025, 4, 5)) {
		t.Errorf("ScheduledPayDate = %v, want 2025-04-05", got.ScheduledPayDate)
	}

	rr = do(t, srv, http.MethodPut, "/api/instruments/card-1/billing", `{"closingDay":"32","paymentDay":"5","paymentMonthShift":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid token status=%d, want 400", rr.Code)
	}
	rr = do(t, srv, http.MethodPut, "/api/instruments/nope/billing", `{"closingDay":"10","paymentDay":"5","paymentMonthShift":1}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown instrument status=%d, want 422", rr.Code)
	}
}

func TestDayTotalsFromItems(t *testing.T) {
	srv, _ := newTestServer(t)
	body := `{
		"entries": [
			{"id":"a","occurrenceDate":"2025-04-01","scheduledPayDate":"2025-04-25","amount":"1050","instrumentKind":"card"},
			{"id":"b","occurrenceDate":"2025-04-02","amount":"-5"},
			"garbage"
		],
		"projections": [
			{"id":"t-1","date":"2025-04-20","scheduledPayDate":"2025-04-25","amount":200}
		]
	}`
	rr := do(t, srv, http.MethodPost, "/api/day-totals", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	totals := decode[dayTotalsResponse](t, rr)
	if totals.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", totals.Skipped)
	}
	day := totals.Days["2025-04-25"]
	if day.TotalAmount.Cents != 1250 || day.ScheduleTotal.Cents != 200 || day.TransactionCount != 1 {
		t.Errorf("Days[2025-04-25] = %+v", day)
	}

	if rr := do(t, srv, http.MethodPost, "/api/day-totals", `[1,2]`); rr.Code != http.StatusBadRequest {
		t.Errorf("non-object payload status=%d, want 400", rr.Code)
	}
}

func TestFixFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/entries",
		`{"occurrenceDate":"2025-05-10","amount":"30","instrumentId":"card-2","description":"flight"}`)

	rr := do(t, srv, http.MethodGet, "/api/analysis", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("analysis status=%d", rr.Code)
	}
	analysis := decode[analyzer.Analysis](t, rr)
	if analysis.Summary.ProblematicCount != 1 || analysis.ProblematicInstruments[0].InstrumentID != "card-2" {
		t.Errorf("analysis = %+v", analysis)
	}

	rr = do(t, srv, http.MethodGet, "/api/fixes/proposed", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("proposed status=%d", rr.Code)
	}
	proposed := rr.Body.String()

	rr = do(t, srv, http.MethodPost, "/api/fixes/preview", proposed)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/fixes/apply", proposed)
	if rr.Code != http.StatusOK {
		t.Fatalf("apply status=%d body=%s", rr.Code, rr.Body.String())
	}
	res := decode[services.ApplyResult](t, rr)
	if res.RunID == "" || res.Status != storage.FixRunCompleted {
		t.Errorf("apply result = %+v", res)
	}

	rr = do(t, srv, http.MethodGet, "/api/fixes/runs?status=completed", "")
	runs := decode[[]storage.FixRun](t, rr)
	if len(runs) != 1 || runs[0].ID != res.RunID {
		t.Errorf("completed runs = %+v", runs)
	}
	if rr := do(t, srv, http.MethodGet, "/api/fixes/runs?status=bogus", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bogus status code=%d, want 400", rr.Code)
	}

	analysis = decode[analyzer.Analysis](t, do(t, srv, http.MethodGet, "/api/analysis", ""))
	if analysis.Summary.ProblematicCount != 0 {
		t.Errorf("ProblematicCount after apply = %d, want 0", analysis.Summary.ProblematicCount)
	}

	rr = do(t, srv, http.MethodPost, "/api/fixes/apply", `{"patches":{"card-1":{}}}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty patch status=%d, want 400 (body=%s)", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/reconcile", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reconcile status=%d", rr.Code)
	}
	rec := decode[services.ReconcileResult](t, rr)
	if rec.Rewritten != 0 || rec.Checked != 1 {
		t.Errorf("reconcile = %+v", rec)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.rateLimiter.stop()
	srv.rateLimiter = newRateLimiter(2, time.Minute)

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/reconcile", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/reconcile", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if rr := do(t, srv, http.MethodGet, "/api/instruments", ""); rr.Code != http.StatusOK {
		t.Errorf("reads must not be limited, status=%d", rr.Code)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	if !rl.allowAt("1.2.3.4", start) {
		t.Fatal("first request refused")
	}
	if rl.allowAt("1.2.3.4", start.Add(time.Second)) {
		t.Error("second request in window allowed")
	}
	if !rl.allowAt("5.6.7.8", start.Add(time.Second)) {
		t.Error("other client refused")
	}
	if !rl.allowAt("1.2.3.4", start.Add(2*time.Minute)) {
		t.Error("request in new window refused")
	}
	if rl.Hits() != 1 {
		t.Errorf("Hits() = %d, want 1", rl.Hits())
	}
	if removed := rl.cleanupStaleEntries(start.Add(time.Hour)); removed != 2 {
		t.Errorf("cleanupStaleEntries() = %d, want 2", removed)
	}
}

func TestMonthViewBadParams(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/api/schedule?month=13", "/api/schedule?month=x", "/api/day-totals?year=abc"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("GET %s status=%d, want 400", path, rr.Code)
		}
	}

	old := now
	now = func() time.Time { return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { now = old }()
	view := decode[schedule.View](t, do(t, srv, http.MethodGet, "/api/schedule", ""))
	if view.Year != 2025 || view.Month != 4 {
		t.Errorf("default month = %d-%d, want 2025-4", view.Year, view.Month)
	}
}
