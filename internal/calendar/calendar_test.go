package calendar

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"payplan/internal/core"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year, month, want int
	}{
		{2024, 2, 29},
		{2023, 2, 28},
		{1900, 2, 28},
		{2000, 2, 29},
		{2025, 4, 30},
		{2025, 12, 31},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysInMonth(tt.year, tt.month), "%d-%02d", tt.year, tt.month)
	}
}

func TestIsLeapYear(t *testing.T) {
	assert.True(t, IsLeapYear(2024))
	assert.True(t, IsLeapYear(2000))
	assert.False(t, IsLeapYear(1900))
	assert.False(t, IsLeapYear(2023))
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name                string
		year, month, n      int
		wantYear, wantMonth int
	}{
		{"same year", 2025, 3, 2, 2025, 5},
		{"december rollover", 2023, 12, 1, 2024, 1},
		{"two year jump", 2023, 11, 14, 2025, 1},
		{"backwards into previous year", 2024, 1, -1, 2023, 12},
		{"zero", 2024, 6, 0, 2024, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, m := AddMonths(tt.year, tt.month, tt.n)
			assert.Equal(t, tt.wantYear, y)
			assert.Equal(t, tt.wantMonth, m)
		})
	}
}

func TestDayArithmetic(t *testing.T) {
	d := core.NewDate(2024, 2, 28)
	assert.Equal(t, "2024-02-29", AddDays(d, 1).String())
	assert.Equal(t, "2024-03-01", AddDays(d, 2).String())
	assert.Equal(t, "2023-12-31", AddDays(core.NewDate(2024, 1, 1), -1).String())
	assert.Equal(t, 31, DaysBetween(core.NewDate(2025, 7, 31), core.NewDate(2025, 8, 31)))
	assert.Equal(t, -1, DaysBetween(core.NewDate(2025, 1, 2), core.NewDate(2025, 1, 1)))
	assert.Equal(t, time.Saturday, Weekday(core.NewDate(2025, 5, 31)))

	first, last := MonthBounds(2024, 2)
	assert.Equal(t, "2024-02-01", first.String())
	assert.Equal(t, "2024-02-29", last.String())
}
