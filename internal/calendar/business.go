package calendar

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"payplan/internal/core"
)

// MonthDay is a holiday that repeats every year on the same date.
type MonthDay struct {
	Month int
	Day   int
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", md.Month, md.Day)
}

// HolidayCalendar is the set of non-weekend days that are not business days.
// Values are immutable; WithFixed and WithDates return extended copies.
type HolidayCalendar struct {
	fixed map[MonthDay]struct{}
	dated map[string]struct{}
}

// NewYearsDay is the only holiday of the default calendar.
var NewYearsDay = MonthDay{Month: 1, Day: 1}

var defaultCalendar = &HolidayCalendar{
	fixed: map[MonthDay]struct{}{NewYearsDay: {}},
	dated: map[string]struct{}{},
}

// Default returns the shared default calendar.
func Default() *HolidayCalendar {
	return defaultCalendar
}

// WithFixed returns a copy of c that also observes the given yearly holidays.
func (c *HolidayCalendar) WithFixed(days ...MonthDay) *HolidayCalendar {
	next := c.clone()
	for _, md := range days {
		next.fixed[md] = struct{}{}
	}
	return next
}

// WithDates returns a copy of c that also observes the given one-off holidays.
func (c *HolidayCalendar) WithDates(dates ...core.Date) *HolidayCalendar {
	next := c.clone()
	for _, d := range dates {
		next.dated[d.String()] = struct{}{}
	}
	return next
}

func (c *HolidayCalendar) clone() *HolidayCalendar {
	src := c
	if src == nil {
		src = defaultCalendar
	}
	return &HolidayCalendar{
		fixed: maps.Clone(src.fixed),
		dated: maps.Clone(src.dated),
	}
}

// Fixed returns the yearly holidays sorted by month and day.
func (c *HolidayCalendar) Fixed() []MonthDay {
	if c == nil {
		c = defaultCalendar
	}
	out := maps.Keys(c.fixed)
	slices.SortFunc(out, func(a, b MonthDay) int {
		if a.Month != b.Month {
			return a.Month - b.Month
		}
		return a.Day - b.Day
	})
	return out
}

// IsWeekend reports whether d is a Saturday or a Sunday.
func IsWeekend(d core.Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether d is a holiday of c. A nil calendar is the default one.
func (c *HolidayCalendar) IsHoliday(d core.Date) bool {
	if c == nil {
		c = defaultCalendar
	}
	if _, ok := c.fixed[MonthDay{Month: d.Month(), Day: d.Day()}]; ok {
		return true
	}
	_, ok := c.dated[d.String()]
	return ok
}

func (c *HolidayCalendar) IsNonBusinessDay(d core.Date) bool {
	return IsWeekend(d) || c.IsHoliday(d)
}

// maxShift bounds the adjustment loops. A week plus any run of holidays fits
// far below it; reaching it means the calendar has no business days at all.
const maxShift = 370

// AdjustForward returns the first business day on or after d.
func (c *HolidayCalendar) AdjustForward(d core.Date) core.Date {
	return c.adjust(d, 1)
}

// AdjustBackward returns the last business day on or before d.
func (c *HolidayCalendar) AdjustBackward(d core.Date) core.Date {
	return c.adjust(d, -1)
}

func (c *HolidayCalendar) adjust(d core.Date, step int) core.Date {
	for i := 0; i < maxShift; i++ {
		if !c.IsNonBusinessDay(d) {
			return d
		}
		d = AddDays(d, step)
	}
	panic(fmt.Sprintf("calendar: no business day within %d days", maxShift))
}

// IsHoliday checks d against the default calendar.
func IsHoliday(d core.Date) bool { return defaultCalendar.IsHoliday(d) }

// IsNonBusinessDay checks d against the default calendar.
func IsNonBusinessDay(d core.Date) bool { return defaultCalendar.IsNonBusinessDay(d) }

// AdjustForward shifts d forward using the default calendar.
func AdjustForward(d core.Date) core.Date { return defaultCalendar.AdjustForward(d) }

// AdjustBackward shifts d backward using the default calendar.
func AdjustBackward(d core.Date) core.Date { return defaultCalendar.AdjustBackward(d) }

// ParseFixedHolidays parses a comma separated list of MM-DD entries, e.g.
// "04-25,08-15,12-25". Empty input yields no holidays.
func ParseFixedHolidays(s string) ([]MonthDay, error) {
	var out []MonthDay
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var md MonthDay
		if _, err := fmt.Sscanf(part, "%d-%d", &md.Month, &md.Day); err != nil {
			return nil, fmt.Errorf("holiday %q: expected MM-DD", part)
		}
		// 2024 is a leap year, so 02-29 is accepted.
		if md.Month < 1 || md.Month > 12 || md.Day < 1 || md.Day > DaysInMonth(2024, md.Month) {
			return nil, fmt.Errorf("holiday %q: no such day", part)
		}
		out = append(out, md)
	}
	return out, nil
}
