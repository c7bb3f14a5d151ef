package services

import (
	"context"
	"testing"

	"payplan/internal/billing"
	"payplan/internal/core"
)

func template(every core.Frequency, start, end core.Date) core.RecurringTemplate {
	return core.RecurringTemplate{
		ID:           "t-1",
		StartDate:    start,
		EndDate:      end,
		Every:        every,
		Description:  "subscription",
		Amount:       core.Money{Cents: 999},
		InstrumentID: "card-1",
	}
}

func datesEqual(a, b []core.Date) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func TestOccurrences(t *testing.T) {
	d := core.NewDate
	tests := []struct {
		name     string
		template core.RecurringTemplate
		from, to core.Date
		want     []core.Date
	}{
		{
			name:     "monthly clamps to short months",
			template: template(core.Monthly, d(2024, 1, 31), core.Date{}),
			from:     d(2024, 1, 1),
			to:       d(2024, 4, 30),
			want:     []core.Date{d(2024, 1, 31), d(2024, 2, 29), d(2024, 3, 31), d(2024, 4, 30)},
		},
		{
			name:     "monthly window starting mid month",
			template: template(core.Monthly, d(2024, 1, 15), core.Date{}),
			from:     d(2024, 3, 16),
			to:       d(2024, 5, 15),
			want:     []core.Date{d(2024, 4, 15), d(2024, 5, 15)},
		},
		{
			name:     "weekly stays on the start weekday",
			template: template(core.Weekly, d(2025, 1, 6), core.Date{}),
			from:     d(2025, 1, 10),
			to:       d(2025, 1, 31),
			want:     []core.Date{d(2025, 1, 13), d(2025, 1, 20), d(2025, 1, 27)},
		},
		{
			name:     "daily bounded by end date",
			template: template(core.Daily, d(2025, 2, 26), d(2025, 3, 1)),
			from:     d(2025, 1, 1),
			to:       d(2025, 12, 31),
			want:     []core.Date{d(2025, 2, 26), d(2025, 2, 27), d(2025, 2, 28), d(2025, 3, 1)},
		},
		{
			name:     "yearly leap day",
			template: template(core.Yearly, d(2024, 2, 29), core.Date{}),
			from:     d(2024, 1, 1),
			to:       d(2028, 12, 31),
			want:     []core.Date{d(2024, 2, 29), d(2025, 2, 28), d(2026, 2, 28), d(2027, 2, 28), d(2028, 2, 29)},
		},
		{
			name:     "window before start",
			template: template(core.Monthly, d(2025, 6, 1), core.Date{}),
			from:     d(2025, 1, 1),
			to:       d(2025, 5, 31),
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Occurrences(tt.template, tt.from, tt.to)
			if err != nil {
				t.Fatalf("Occurrences() error = %v", err)
			}
			if !datesEqual(got, tt.want) {
				t.Errorf("Occurrences() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOccurrences_InvalidTemplate(t *testing.T) {
	bad := template(core.Frequency("fortnightly"), core.NewDate(2025, 1, 1), core.Date{})
	if _, err := Occurrences(bad, core.NewDate(2025, 1, 1), core.NewDate(2025, 2, 1)); err == nil {
		t.Error("Occurrences() should reject an unknown frequency")
	}
}

func TestProjectRecurring(t *testing.T) {
	tmpl := template(core.Monthly, core.NewDate(2025, 1, 31), core.Date{})
	got, err := ProjectRecurring(tmpl, core.NewDate(2025, 2, 1), core.NewDate(2025, 3, 31))
	if err != nil {
		t.Fatalf("ProjectRecurring() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ProjectRecurring() = %d projections, want 2", len(got))
	}
	if got[0].TemplateID != "t-1" || got[0].Amount.Cents != 999 || got[0].InstrumentID != "card-1" {
		t.Errorf("ProjectRecurring()[0] = %+v", got[0])
	}
	if !got[0].Date.Equal(core.NewDate(2025, 2, 28)) {
		t.Errorf("ProjectRecurring()[0].Date = %v, want 2025-02-28", got[0].Date)
	}
	if !got[0].ScheduledPayDate.IsZero() {
		t.Error("ProjectRecurring() should leave ScheduledPayDate empty")
	}
}

func TestRecurringProcessor_ProcessDue(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedgerService(store, billing.Calculator{}, nil)
	processor := NewRecurringProcessor(store, ledger)

	tmpl := template(core.Monthly, core.NewDate(2025, 1, 15), core.Date{})
	if err := store.CreateTemplate(ctx, tmpl); err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}

	n, err := processor.ProcessDue(ctx, core.NewDate(2025, 3, 20))
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ProcessDue() = %d, want 3 (Jan, Feb, Mar)", n)
	}

	entries, _ := store.ListEntriesByInstrument(ctx, "card-1")
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	for _, e := range entries {
		if !e.IsScheduled() {
			t.Errorf("entry %s has no scheduled date", e.ID)
		}
	}

	templates, _ := store.ListTemplates(ctx)
	if !templates[0].LastExecution.Equal(core.NewDate(2025, 3, 15)) {
		t.Errorf("LastExecution = %v, want 2025-03-15", templates[0].LastExecution)
	}

	n, err = processor.ProcessDue(ctx, core.NewDate(2025, 3, 31))
	if err != nil {
		t.Fatalf("second ProcessDue() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second ProcessDue() = %d, want 0", n)
	}

	n, _ = processor.ProcessDue(ctx, core.NewDate(2025, 4, 15))
	if n != 1 {
		t.Errorf("ProcessDue() on next occurrence = %d, want 1", n)
	}
}

func TestRecurringProcessor_NotInitialized(t *testing.T) {
	processor := NewRecurringProcessor(nil, nil)
	if _, err := processor.ProcessDue(context.Background(), core.NewDate(2025, 1, 1)); err == nil {
		t.Error("ProcessDue() should fail without a store")
	}
}
