package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"payplan/internal/core"
)

// DayTotal sums everything debited on one calendar date.
type DayTotal struct {
	Date                 string     `json:"date"`
	TotalAmount          core.Money `json:"totalAmount"`
	TransactionTotal     core.Money `json:"transactionTotal"`
	ScheduleTotal        core.Money `json:"scheduleTotal"`
	CardTransactionTotal core.Money `json:"cardTransactionTotal"`
	BankTransactionTotal core.Money `json:"bankTransactionTotal"`
	TransactionCount     int        `json:"transactionCount"`
	ScheduleCount        int        `json:"scheduleCount"`
	HasTransactions      bool       `json:"hasTransactions"`
	HasSchedule          bool       `json:"hasSchedule"`
	HasCardTransactions  bool       `json:"hasCardTransactions"`
	HasBankTransactions  bool       `json:"hasBankTransactions"`
}

// Add returns the sum of two totals for the same date.
func (d DayTotal) Add(o DayTotal) DayTotal {
	if d.Date == "" {
		d.Date = o.Date
	}
	d.TotalAmount = d.TotalAmount.Add(o.TotalAmount)
	d.TransactionTotal = d.TransactionTotal.Add(o.TransactionTotal)
	d.ScheduleTotal = d.ScheduleTotal.Add(o.ScheduleTotal)
	d.CardTransactionTotal = d.CardTransactionTotal.Add(o.CardTransactionTotal)
	d.BankTransactionTotal = d.BankTransactionTotal.Add(o.BankTransactionTotal)
	d.TransactionCount += o.TransactionCount
	d.ScheduleCount += o.ScheduleCount
	d.HasTransactions = d.HasTransactions || o.HasTransactions
	d.HasSchedule = d.HasSchedule || o.HasSchedule
	d.HasCardTransactions = d.HasCardTransactions || o.HasCardTransactions
	d.HasBankTransactions = d.HasBankTransactions || o.HasBankTransactions
	return d
}

// DayTotals maps ISO dates to their totals. Skipped counts the malformed input
// items that were left out.
type DayTotals struct {
	Days    map[string]DayTotal `json:"days"`
	Skipped int                 `json:"skipped"`
}

// Dates returns the populated dates in ascending order.
func (t DayTotals) Dates() []string {
	keys := maps.Keys(t.Days)
	slices.Sort(keys)
	return keys
}

// Merge adds two aggregates together without touching either.
func Merge(a, b DayTotals) DayTotals {
	out := DayTotals{
		Days:    make(map[string]DayTotal, len(a.Days)+len(b.Days)),
		Skipped: a.Skipped + b.Skipped,
	}
	for k, v := range a.Days {
		out.Days[k] = v
	}
	for k, v := range b.Days {
		out.Days[k] = out.Days[k].Add(v)
	}
	return out
}

// BuildDayTotals groups entries and projections by debit date. Entries are
// dated by their scheduled pay date and fall back to the occurrence date when
// unscheduled. Nil items, items without a date and negative amounts are
// skipped and counted, never reported as errors.
func BuildDayTotals(entries []*core.LedgerEntry, projections []*core.RecurringProjection) DayTotals {
	return Merge(entryTotals(entries), projectionTotals(projections))
}

func entryTotals(entries []*core.LedgerEntry) DayTotals {
	out := DayTotals{Days: make(map[string]DayTotal)}
	for _, e := range entries {
		if e == nil {
			out.Skipped++
			continue
		}
		date := e.ScheduledPayDate
		if date.IsZero() {
			date = e.OccurrenceDate
		}
		if date.IsZero() || e.Amount.Cents < 0 {
			out.Skipped++
			continue
		}
		key := date.String()
		dt := DayTotal{
			Date:             key,
			TotalAmount:      e.Amount,
			TransactionTotal: e.Amount,
			TransactionCount: 1,
			HasTransactions:  true,
		}
		switch e.InstrumentKind {
		case core.KindCard:
			dt.CardTransactionTotal = e.Amount
			dt.HasCardTransactions = true
		case core.KindDirectDebit:
			dt.BankTransactionTotal = e.Amount
			dt.HasBankTransactions = true
		}
		out.Days[key] = out.Days[key].Add(dt)
	}
	return out
}

func projectionTotals(projections []*core.RecurringProjection) DayTotals {
	out := DayTotals{Days: make(map[string]DayTotal)}
	for _, p := range projections {
		if p == nil {
			out.Skipped++
			continue
		}
		date := projectionPayDate(*p)
		if date.IsZero() || p.Amount.Cents < 0 {
			out.Skipped++
			continue
		}
		key := date.String()
		out.Days[key] = out.Days[key].Add(DayTotal{
			Date:          key,
			TotalAmount:   p.Amount,
			ScheduleTotal: p.Amount,
			ScheduleCount: 1,
			HasSchedule:   true,
		})
	}
	return out
}

// DayItemsPayload is the loose wire shape accepted by DecodeDayItems.
type DayItemsPayload struct {
	Entries     []json.RawMessage `json:"entries"`
	Projections []json.RawMessage `json:"projections"`
}

type looseItem struct {
	ID               string          `json:"id"`
	Date             string          `json:"date"`
	OccurrenceDate   string          `json:"occurrenceDate"`
	ScheduledPayDate string          `json:"scheduledPayDate"`
	Amount           json.RawMessage `json:"amount"`
	InstrumentID     string          `json:"instrumentId"`
	InstrumentKind   string          `json:"instrumentKind"`
}

// DecodeDayItems decodes day-total input coming from untrusted edit paths.
// Amounts are in cents and may be numbers or numeric strings. Items that do not
// decode become nil so BuildDayTotals counts them as skipped. Only a payload
// that is not a JSON object is an error.
func DecodeDayItems(data []byte) ([]*core.LedgerEntry, []*core.RecurringProjection, error) {
	var payload DayItemsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("decode day items: %w", err)
	}

	entries := make([]*core.LedgerEntry, 0, len(payload.Entries))
	for _, raw := range payload.Entries {
		item, ok := decodeLoose(raw)
		if !ok {
			entries = append(entries, nil)
			continue
		}
		e := &core.LedgerEntry{
			ID:             item.ID,
			InstrumentID:   item.InstrumentID,
			InstrumentKind: core.InstrumentKind(item.InstrumentKind),
		}
		if e.OccurrenceDate, ok = parseLooseDate(firstNonEmpty(item.OccurrenceDate, item.Date)); !ok {
			entries = append(entries, nil)
			continue
		}
		if e.ScheduledPayDate, ok = parseLooseDate(item.ScheduledPayDate); !ok {
			entries = append(entries, nil)
			continue
		}
		if e.Amount, ok = parseLooseAmount(item.Amount); !ok {
			entries = append(entries, nil)
			continue
		}
		entries = append(entries, e)
	}

	projections := make([]*core.RecurringProjection, 0, len(payload.Projections))
	for _, raw := range payload.Projections {
		item, ok := decodeLoose(raw)
		if !ok {
			projections = append(projections, nil)
			continue
		}
		p := &core.RecurringProjection{TemplateID: item.ID, InstrumentID: item.InstrumentID}
		if p.Date, ok = parseLooseDate(item.Date); !ok {
			projections = append(projections, nil)
			continue
		}
		if p.ScheduledPayDate, ok = parseLooseDate(item.ScheduledPayDate); !ok {
			projections = append(projections, nil)
			continue
		}
		if p.Amount, ok = parseLooseAmount(item.Amount); !ok {
			projections = append(projections, nil)
			continue
		}
		projections = append(projections, p)
	}
	return entries, projections, nil
}

func decodeLoose(raw json.RawMessage) (looseItem, bool) {
	var item looseItem
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return item, false
	}
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return item, false
	}
	return item, true
}

// parseLooseDate accepts an empty string as "no date".
func parseLooseDate(s string) (core.Date, bool) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, true
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, false
	}
	return d, true
}

func parseLooseAmount(raw json.RawMessage) (core.Money, bool) {
	s := strings.Trim(string(bytes.TrimSpace(raw)), `"`)
	if s == "" || s == "null" {
		return core.Money{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return core.Money{}, false
	}
	return core.Money{Cents: d.Round(0).IntPart()}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
