package services

import (
	"fmt"

	"payplan/internal/calendar"
	"payplan/internal/core"
)

// Occurrences lists the dates in [from, to] on which t falls due, bounded by
// the template's start and end dates. Monthly and yearly templates keep the
// start day and clamp it to shorter months, so a template started on the 31st
// falls on Feb 28 (or 29) and returns to the 31st in March.
func Occurrences(t core.RecurringTemplate, from, to core.Date) ([]core.Date, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("template %s: %w", t.ID, err)
	}
	start := t.StartDate
	if from.Before(start) {
		from = start
	}
	if !t.EndDate.IsZero() && t.EndDate.Before(to) {
		to = t.EndDate
	}
	if to.Before(from) {
		return nil, nil
	}

	var out []core.Date
	switch t.Every {
	case core.Daily, core.Weekly:
		step := 1
		if t.Every == core.Weekly {
			step = 7
		}
		k := (calendar.DaysBetween(start, from) + step - 1) / step
		for d := calendar.AddDays(start, k*step); !d.After(to); d = calendar.AddDays(d, step) {
			out = append(out, d)
		}
	case core.Monthly:
		y, m := from.Year(), from.Month()
		for {
			d := clampDay(y, m, start.Day())
			if d.After(to) {
				break
			}
			if !d.Before(from) {
				out = append(out, d)
			}
			y, m = calendar.AddMonths(y, m, 1)
		}
	case core.Yearly:
		for y := from.Year(); ; y++ {
			d := clampDay(y, start.Month(), start.Day())
			if d.After(to) {
				break
			}
			if !d.Before(from) {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

// ProjectRecurring turns the occurrences of t in [from, to] into projections.
// Scheduled pay dates are left for the caller to fill through the billing
// calculator.
func ProjectRecurring(t core.RecurringTemplate, from, to core.Date) ([]core.RecurringProjection, error) {
	dates, err := Occurrences(t, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]core.RecurringProjection, 0, len(dates))
	for _, d := range dates {
		out = append(out, core.RecurringProjection{
			TemplateID:   t.ID,
			Date:         d,
			Amount:       t.Amount,
			InstrumentID: t.InstrumentID,
			Description:  t.Description,
		})
	}
	return out, nil
}

func clampDay(year, month, day int) core.Date {
	if last := calendar.DaysInMonth(year, month); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}
