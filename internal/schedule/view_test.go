package schedule

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"payplan/internal/core"
)

func fixtures() ([]core.Instrument, []core.Account) {
	instruments := []core.Instrument{
		{ID: "visa", Label: "Visa", Kind: core.KindCard, AccountID: "main"},
		{ID: "amex", Label: "Amex", Kind: core.KindCard, AccountID: "joint"},
		{ID: "dd", Label: "Utilities", Kind: core.KindDirectDebit, AccountID: "main"},
	}
	accounts := []core.Account{
		{ID: "main", Name: "Main"},
		{ID: "joint", Name: "Joint"},
	}
	return instruments, accounts
}

func entry(id, instrument string, pay core.Date, cents int64) core.LedgerEntry {
	return core.LedgerEntry{ID: id, InstrumentID: instrument, ScheduledPayDate: pay, OccurrenceDate: pay, Amount: core.Money{Cents: cents}}
}

func TestBuildView(t *testing.T) {
	instruments, accounts := fixtures()
	entries := []core.LedgerEntry{
		entry("e1", "visa", core.NewDate(2025, 8, 10), 1000),
		entry("e2", "visa", core.NewDate(2025, 8, 10), 500),
		entry("e3", "amex", core.NewDate(2025, 8, 10), 700),
		entry("e4", "visa", core.NewDate(2025, 8, 1), 300),
		entry("e5", "visa", core.NewDate(2025, 9, 1), 9999), // next month
		{ID: "e6", InstrumentID: "visa", OccurrenceDate: core.NewDate(2025, 8, 3), Amount: core.Money{Cents: 42}}, // unscheduled
	}
	projections := []core.RecurringProjection{
		{TemplateID: "rent", InstrumentID: "dd", Date: core.NewDate(2025, 8, 31), ScheduledPayDate: core.NewDate(2025, 9, 1), Amount: core.Money{Cents: 90000}},
		{TemplateID: "gym", InstrumentID: "dd", Date: core.NewDate(2025, 8, 10), Amount: core.Money{Cents: 2500}},
	}

	view, err := BuildView(entries, projections, instruments, accounts, 2025, 8)
	assert.NoError(t, err)

	type line struct {
		date, label string
		total       int64
	}
	var got []line
	for _, r := range view.Rows {
		got = append(got, line{r.Date.String(), r.InstrumentLabel, r.Total.Cents})
	}
	assert.Equal(t, []line{
		{"2025-08-01", "Visa", 300},
		{"2025-08-10", "Amex", 700},
		{"2025-08-10", "Utilities", 2500},
		{"2025-08-10", "Visa", 1500},
	}, got)

	assert.Equal(t, map[string]core.Money{"Joint": {Cents: 700}}, view.Rows[1].AccountAmounts)
	assert.Equal(t, map[string]core.Money{"Main": {Cents: 4300}, "Joint": {Cents: 700}}, view.AccountTotals)
	assert.Equal(t, int64(5000), view.MonthTotal.Cents)
	assert.Equal(t, []string{"Joint", "Main"}, view.UniqueAccounts)
}

func TestBuildViewRowTotalsMatchAccounts(t *testing.T) {
	instruments, accounts := fixtures()
	var entries []core.LedgerEntry
	for i := 0; i < 60; i++ {
		inst := []string{"visa", "amex", "dd"}[i%3]
		entries = append(entries, entry(string(rune('a'+i%26))+inst, inst, core.NewDate(2025, 2, 1+i%28), int64(100+i)))
	}
	view, err := BuildView(entries, nil, instruments, accounts, 2025, 2)
	assert.NoError(t, err)

	var sum int64
	known := map[string]bool{"Main": true, "Joint": true}
	for _, r := range view.Rows {
		var rowSum int64
		for account, amount := range r.AccountAmounts {
			assert.True(t, known[account], "unexpected account %q", account)
			rowSum += amount.Cents
		}
		assert.Equal(t, r.Total.Cents, rowSum)
		sum += r.Total.Cents
	}
	assert.Equal(t, view.MonthTotal.Cents, sum)
}

func TestBuildViewIsOrderIndependent(t *testing.T) {
	instruments, accounts := fixtures()
	entries := []core.LedgerEntry{
		entry("e1", "visa", core.NewDate(2025, 8, 10), 1000),
		entry("e2", "amex", core.NewDate(2025, 8, 10), 700),
		entry("e3", "dd", core.NewDate(2025, 8, 2), 300),
	}
	reversed := []core.LedgerEntry{entries[2], entries[1], entries[0]}

	a, err := BuildView(entries, nil, instruments, accounts, 2025, 8)
	assert.NoError(t, err)
	b, err := BuildView(reversed, nil, []core.Instrument{instruments[2], instruments[0], instruments[1]}, accounts, 2025, 8)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildViewMergesInstrumentsSharingALabel(t *testing.T) {
	instruments, accounts := fixtures()
	instruments = append(instruments, core.Instrument{ID: "visa-2", Label: "Visa", Kind: core.KindCard, AccountID: "joint"})
	entries := []core.LedgerEntry{
		entry("e1", "visa-2", core.NewDate(2025, 8, 10), 400),
		entry("e2", "visa", core.NewDate(2025, 8, 10), 1000),
		entry("e3", "visa-2", core.NewDate(2025, 8, 12), 200),
	}

	view, err := BuildView(entries, nil, instruments, accounts, 2025, 8)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(view.Rows))

	merged := view.Rows[0]
	assert.Equal(t, "Visa", merged.InstrumentLabel)
	assert.Equal(t, []string{"visa", "visa-2"}, merged.InstrumentIDs)
	assert.Equal(t, map[string]core.Money{"Main": {Cents: 1000}, "Joint": {Cents: 400}}, merged.AccountAmounts)
	assert.Equal(t, int64(1400), merged.Total.Cents)
	assert.Equal(t, 2, merged.Items)

	assert.Equal(t, []string{"visa-2"}, view.Rows[1].InstrumentIDs)
}

func TestBuildViewRefusesUnresolvedReferences(t *testing.T) {
	instruments, accounts := fixtures()

	_, err := BuildView([]core.LedgerEntry{entry("e1", "ghost", core.NewDate(2025, 8, 1), 1)}, nil, instruments, accounts, 2025, 8)
	assert.True(t, errors.Is(err, core.ErrUnresolvedInstrument), "%v", err)

	orphan := append(instruments, core.Instrument{ID: "orphan", Label: "Orphan", Kind: core.KindCard, AccountID: "closed"})
	_, err = BuildView([]core.LedgerEntry{entry("e1", "orphan", core.NewDate(2025, 8, 1), 1)}, nil, orphan, accounts, 2025, 8)
	assert.True(t, errors.Is(err, core.ErrUnresolvedAccount), "%v", err)
	var ref *core.UnresolvedReferenceError
	assert.True(t, errors.As(err, &ref))
	assert.Equal(t, "e1", ref.ItemID)

	projections := []core.RecurringProjection{{TemplateID: "t", InstrumentID: "ghost", Date: core.NewDate(2025, 8, 5), Amount: core.Money{Cents: 1}}}
	_, err = BuildView(nil, projections, instruments, accounts, 2025, 8)
	assert.True(t, core.IsIntegrityError(err))

	// Outside the month the reference is never looked at.
	_, err = BuildView([]core.LedgerEntry{entry("e1", "ghost", core.NewDate(2025, 7, 1), 1)}, nil, instruments, accounts, 2025, 8)
	assert.NoError(t, err)
}

func TestBuildViewEmptyAndInvalidMonth(t *testing.T) {
	instruments, accounts := fixtures()
	view, err := BuildView(nil, nil, instruments, accounts, 2025, 8)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(view.Rows))
	assert.Equal(t, 0, len(view.UniqueAccounts))
	assert.Equal(t, int64(0), view.MonthTotal.Cents)

	_, err = BuildView(nil, nil, instruments, accounts, 2025, 13)
	assert.True(t, errors.Is(err, core.ErrInvalidMonth))
}
