// Package calendar holds the date arithmetic used by the billing engine:
// month lengths, day and month stepping, business-day classification and the
// binding of billing day tokens to concrete months.
//
// Every function is pure and works on core.Date values, which never carry a
// time zone.
package calendar

import (
	"time"

	"payplan/internal/core"
)

// IsLeapYear reports whether year has a 29th of February.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in the given month (1..12).
func DaysInMonth(year, month int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LastDayOfMonth returns the last calendar day of the month.
func LastDayOfMonth(year, month int) core.Date {
	return core.NewDate(year, month, DaysInMonth(year, month))
}

// MonthBounds returns the first and last day of the month, both inclusive.
func MonthBounds(year, month int) (first, last core.Date) {
	return core.NewDate(year, month, 1), LastDayOfMonth(year, month)
}

// AddDays moves d by n days; n may be negative.
func AddDays(d core.Date, n int) core.Date {
	return core.Date{Time: d.AddDate(0, 0, n)}
}

// AddMonths moves a (year, month) pair by n months with year rollover.
func AddMonths(year, month, n int) (int, int) {
	idx := year*12 + (month - 1) + n
	y, m := idx/12, idx%12
	if m < 0 {
		m += 12
		y--
	}
	return y, m + 1
}

// Weekday returns the day of the week of d.
func Weekday(d core.Date) time.Weekday {
	return d.Weekday()
}

// DaysBetween returns the signed number of days from a to b.
func DaysBetween(a, b core.Date) int {
	return int(b.Sub(a.Time).Hours() / 24)
}
