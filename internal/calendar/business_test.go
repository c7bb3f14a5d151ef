package calendar

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"payplan/internal/core"
)

func TestBusinessDayClassification(t *testing.T) {
	tests := []struct {
		name     string
		date     core.Date
		weekend  bool
		holiday  bool
		business bool
	}{
		{"plain wednesday", core.NewDate(2025, 7, 2), false, false, true},
		{"saturday", core.NewDate(2025, 5, 31), true, false, false},
		{"sunday", core.NewDate(2025, 6, 1), true, false, false},
		{"new year on wednesday", core.NewDate(2025, 1, 1), false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.weekend, IsWeekend(tt.date))
			assert.Equal(t, tt.holiday, IsHoliday(tt.date))
			assert.Equal(t, !tt.business, IsNonBusinessDay(tt.date))
		})
	}
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name     string
		date     core.Date
		forward  string
		backward string
	}{
		{"business day is identity", core.NewDate(2025, 7, 2), "2025-07-02", "2025-07-02"},
		{"saturday", core.NewDate(2025, 5, 31), "2025-06-02", "2025-05-30"},
		{"sunday", core.NewDate(2025, 8, 31), "2025-09-01", "2025-08-29"},
		// 2022-01-01 is a Saturday holiday followed by Sunday.
		{"holiday weekend", core.NewDate(2022, 1, 1), "2022-01-03", "2021-12-31"},
		{"new year on wednesday", core.NewDate(2025, 1, 1), "2025-01-02", "2024-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.forward, AdjustForward(tt.date).String())
			assert.Equal(t, tt.backward, AdjustBackward(tt.date).String())
		})
	}
}

func TestHolidayCalendarExtensions(t *testing.T) {
	christmas := MonthDay{Month: 12, Day: 25}
	cal := Default().WithFixed(christmas, MonthDay{Month: 12, Day: 26})

	assert.True(t, cal.IsHoliday(core.NewDate(2025, 12, 25)))
	assert.False(t, Default().IsHoliday(core.NewDate(2025, 12, 25)), "default calendar must stay untouched")
	// Thursday 25th and Friday 26th are both holidays, then the weekend.
	assert.Equal(t, "2025-12-29", cal.AdjustForward(core.NewDate(2025, 12, 25)).String())

	oneOff := cal.WithDates(core.NewDate(2025, 6, 2))
	assert.Equal(t, "2025-06-03", oneOff.AdjustForward(core.NewDate(2025, 5, 31)).String())
	assert.Equal(t, "2025-06-02", cal.AdjustForward(core.NewDate(2025, 5, 31)).String())

	assert.Equal(t, []MonthDay{NewYearsDay, christmas, {Month: 12, Day: 26}}, cal.Fixed())

	var nilCal *HolidayCalendar
	assert.True(t, nilCal.IsHoliday(core.NewDate(2030, 1, 1)))
}

func TestParseFixedHolidays(t *testing.T) {
	got, err := ParseFixedHolidays(" 04-25, 12-25 ,02-29")
	assert.NoError(t, err)
	assert.Equal(t, []MonthDay{{4, 25}, {12, 25}, {2, 29}}, got)

	got, err = ParseFixedHolidays("")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(got))

	for _, bad := range []string{"13-01", "02-30", "xx", "04/25"} {
		_, err := ParseFixedHolidays(bad)
		assert.Error(t, err, bad)
	}
}
