package services

import (
	"context"
	"fmt"
	"log/slog"

	"payplan/internal/billing"
	"payplan/internal/calendar"
	"payplan/internal/core"
	"payplan/internal/schedule"
	"payplan/internal/storage"
)

// lookbackMonths is how far before a month projected occurrences are
// searched, so card statements paid in the month are included.
const lookbackMonths = core.MaxPaymentMonthShift + 1

// ScheduleService loads data for one month and runs the aggregators on it.
type ScheduleService struct {
	store storage.Store
	calc  billing.Calculator
	views *schedule.ViewCache
}

// NewScheduleService creates the service. views may be nil to disable view
// caching.
func NewScheduleService(store storage.Store, calc billing.Calculator, views *schedule.ViewCache) *ScheduleService {
	return &ScheduleService{
		store: store,
		calc:  calc,
		views: views,
	}
}

type monthData struct {
	entries     []core.LedgerEntry
	projections []core.RecurringProjection
	instruments []core.Instrument
	accounts    []core.Account
}

// MonthView builds the cross table of everything paid in the month.
func (s *ScheduleService) MonthView(ctx context.Context, year, month int) (schedule.View, error) {
	if month < 1 || month > 12 {
		return schedule.View{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	data, err := s.load(ctx, year, month)
	if err != nil {
		return schedule.View{}, err
	}
	if s.views == nil {
		return schedule.BuildView(data.entries, data.projections, data.instruments, data.accounts, year, month)
	}
	view, hit, err := s.views.Build(data.entries, data.projections, data.instruments, data.accounts, year, month)
	if err != nil {
		return schedule.View{}, err
	}
	slog.DebugContext(ctx, "Built month view",
		"year", year,
		"month", month,
		"rows", len(view.Rows),
		"cache_hit", hit)
	return view, nil
}

// DayTotals aggregates the month's entries and projections per pay date.
func (s *ScheduleService) DayTotals(ctx context.Context, year, month int) (schedule.DayTotals, error) {
	if month < 1 || month > 12 {
		return schedule.DayTotals{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	data, err := s.load(ctx, year, month)
	if err != nil {
		return schedule.DayTotals{}, err
	}
	entries := make([]*core.LedgerEntry, 0, len(data.entries))
	for i := range data.entries {
		entries = append(entries, &data.entries[i])
	}
	projections := make([]*core.RecurringProjection, 0, len(data.projections))
	for i := range data.projections {
		if data.projections[i].ScheduledPayDate.InMonth(year, month) {
			projections = append(projections, &data.projections[i])
		}
	}
	return schedule.BuildDayTotals(entries, projections), nil
}

// Invalidate drops all cached views.
func (s *ScheduleService) Invalidate() int {
	if s.views == nil {
		return 0
	}
	return s.views.Invalidate()
}

// Projections lists the not yet materialised occurrences of every template
// whose pay date may fall in the month, with scheduled dates filled in.
func (s *ScheduleService) Projections(ctx context.Context, year, month int, instruments []core.Instrument) ([]core.RecurringProjection, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	byID := make(map[string]core.Instrument, len(instruments))
	for _, in := range instruments {
		byID[in.ID] = in
	}

	fromYear, fromMonth := calendar.AddMonths(year, month, -lookbackMonths)
	from := core.NewDate(fromYear, fromMonth, 1)
	_, to := calendar.MonthBounds(year, month)

	var out []core.RecurringProjection
	for _, t := range templates {
		start := from
		if !t.LastExecution.IsZero() {
			if next := calendar.AddDays(t.LastExecution, 1); next.After(start) {
				start = next
			}
		}
		projected, err := ProjectRecurring(t, start, to)
		if err != nil {
			return nil, err
		}
		for _, p := range projected {
			scheduled, err := s.calc.ScheduleProjection(p, byID)
			if err != nil {
				return nil, err
			}
			out = append(out, scheduled)
		}
	}
	return out, nil
}

func (s *ScheduleService) load(ctx context.Context, year, month int) (monthData, error) {
	first, last := calendar.MonthBounds(year, month)
	entries, err := s.store.ListEntriesScheduledBetween(ctx, first, last)
	if err != nil {
		return monthData{}, fmt.Errorf("list entries: %w", err)
	}
	instruments, err := s.store.ListInstruments(ctx)
	if err != nil {
		return monthData{}, fmt.Errorf("list instruments: %w", err)
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return monthData{}, fmt.Errorf("list accounts: %w", err)
	}
	projections, err := s.Projections(ctx, year, month, instruments)
	if err != nil {
		return monthData{}, err
	}
	return monthData{
		entries:     entries,
		projections: projections,
		instruments: instruments,
		accounts:    accounts,
	}, nil
}
