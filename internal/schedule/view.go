// Package schedule aggregates scheduled debits into the monthly cross-table
// and the per-day calendar totals.
package schedule

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"payplan/internal/core"
)

// Row is one (date, instrument label) line of the monthly cross-table.
// Instruments sharing a label share the row. Amounts are keyed by account name.
type Row struct {
	Date            core.Date             `json:"date"`
	InstrumentIDs   []string              `json:"instrumentIds"`
	InstrumentLabel string                `json:"instrumentLabel"`
	AccountAmounts  map[string]core.Money `json:"accountAmounts"`
	Total           core.Money            `json:"total"`
	Items           int                   `json:"items"`
}

// View is the cross-table of one month.
type View struct {
	Year           int                   `json:"year"`
	Month          int                   `json:"month"`
	Rows           []Row                 `json:"rows"`
	AccountTotals  map[string]core.Money `json:"accountTotals"`
	MonthTotal     core.Money            `json:"monthTotal"`
	UniqueAccounts []string              `json:"uniqueAccounts"`
}

type rowKey struct {
	date  string
	label string
}

// BuildView groups every entry and projection debited in the given month by
// date and instrument label, and splits each row by owning account.
//
// Items outside the month are ignored. An item inside the month whose
// instrument or account cannot be resolved fails the whole view: there is no
// "unknown" bucket.
//
// Rows are sorted by date, then instrument label, so the result does not
// depend on input order.
func BuildView(entries []core.LedgerEntry, projections []core.RecurringProjection,
	instruments []core.Instrument, accounts []core.Account, year, month int) (View, error) {
	if month < 1 || month > 12 {
		return View{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}

	instByID := make(map[string]core.Instrument, len(instruments))
	for _, in := range instruments {
		instByID[in.ID] = in
	}
	accountName := make(map[string]string, len(accounts))
	for _, a := range accounts {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = a.ID
		}
		accountName[a.ID] = name
	}

	rows := make(map[rowKey]*Row)
	add := func(itemID, instrumentID string, date core.Date, amount core.Money) error {
		if !date.InMonth(year, month) {
			return nil
		}
		inst, ok := instByID[instrumentID]
		if !ok {
			return &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: instrumentID, ItemID: itemID}
		}
		account, ok := accountName[inst.AccountID]
		if !ok {
			return &core.UnresolvedReferenceError{Kind: core.RefAccount, ID: inst.AccountID, ItemID: itemID}
		}
		label := inst.Label
		if label == "" {
			label = inst.ID
		}
		key := rowKey{date: date.String(), label: label}
		row, ok := rows[key]
		if !ok {
			row = &Row{
				Date:            date,
				InstrumentLabel: label,
				AccountAmounts:  make(map[string]core.Money),
			}
			rows[key] = row
		}
		if !slices.Contains(row.InstrumentIDs, inst.ID) {
			row.InstrumentIDs = append(row.InstrumentIDs, inst.ID)
		}
		row.AccountAmounts[account] = row.AccountAmounts[account].Add(amount)
		row.Total = row.Total.Add(amount)
		row.Items++
		return nil
	}

	for _, e := range entries {
		if err := add(e.ID, e.InstrumentID, e.ScheduledPayDate, e.Amount); err != nil {
			return View{}, err
		}
	}
	for _, p := range projections {
		if err := add(p.TemplateID, p.InstrumentID, projectionPayDate(p), p.Amount); err != nil {
			return View{}, err
		}
	}

	keys := maps.Keys(rows)
	slices.SortFunc(keys, func(a, b rowKey) int {
		if c := strings.Compare(a.date, b.date); c != 0 {
			return c
		}
		return strings.Compare(a.label, b.label)
	})

	view := View{
		Year:          year,
		Month:         month,
		Rows:          make([]Row, 0, len(keys)),
		AccountTotals: make(map[string]core.Money),
	}
	for _, k := range keys {
		row := rows[k]
		slices.Sort(row.InstrumentIDs)
		for account, amount := range row.AccountAmounts {
			view.AccountTotals[account] = view.AccountTotals[account].Add(amount)
		}
		view.MonthTotal = view.MonthTotal.Add(row.Total)
		view.Rows = append(view.Rows, *row)
	}
	view.UniqueAccounts = maps.Keys(view.AccountTotals)
	slices.Sort(view.UniqueAccounts)
	return view, nil
}

// projectionPayDate falls back to the projection date when the cycle has not
// been computed.
func projectionPayDate(p core.RecurringProjection) core.Date {
	if p.ScheduledPayDate.IsZero() {
		return p.Date
	}
	return p.ScheduledPayDate
}
