package billing

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"payplan/internal/calendar"
	"payplan/internal/core"
)

func card(closing, payment core.DayToken, shift int, adjust bool) core.BillingConfig {
	return core.BillingConfig{ClosingDay: closing, PaymentDay: payment, PaymentMonthShift: shift, AdjustWeekend: adjust}
}

func TestComputeCardCycle(t *testing.T) {
	tests := []struct {
		name       string
		occurrence core.Date
		cfg        core.BillingConfig
		scheduled  string
		closing    string
		original   string
		adjusted   bool
	}{
		{
			name:       "december occurrence pays in january",
			occurrence: core.NewDate(2023, 12, 20),
			cfg:        card(core.Literal(25), core.Literal(25), 1, false),
			scheduled:  "2024-01-25", closing: "2023-12-25", original: "2024-01-25",
		},
		{
			name:       "month-end payment day",
			occurrence: core.NewDate(2025, 7, 1),
			cfg:        card(core.Literal(10), core.MonthEnd, 1, false),
			scheduled:  "2025-08-31", closing: "2025-07-10", original: "2025-08-31",
		},
		{
			name:       "month-end payment shifted off a sunday",
			occurrence: core.NewDate(2025, 7, 1),
			cfg:        card(core.Literal(10), core.MonthEnd, 1, true),
			scheduled:  "2025-09-01", closing: "2025-07-10", original: "2025-08-31", adjusted: true,
		},
		{
			name:       "month-end closing in leap february",
			occurrence: core.NewDate(2024, 2, 15),
			cfg:        card(core.MonthEnd, core.Literal(10), 1, false),
			scheduled:  "2024-03-10", closing: "2024-02-29", original: "2024-03-10",
		},
		{
			name:       "month-end closing in non-leap february",
			occurrence: core.NewDate(2023, 2, 15),
			cfg:        card(core.MonthEnd, core.Literal(10), 1, false),
			scheduled:  "2023-03-10", closing: "2023-02-28", original: "2023-03-10",
		},
		{
			name:       "occurrence on the closing day stays in the cycle",
			occurrence: core.NewDate(2025, 3, 15),
			cfg:        card(core.Literal(15), core.Literal(5), 1, false),
			scheduled:  "2025-04-05", closing: "2025-03-15", original: "2025-04-05",
		},
		{
			name:       "occurrence after closing rolls over the year",
			occurrence: core.NewDate(2023, 12, 20),
			cfg:        card(core.Literal(15), core.Literal(31), 1, false),
			scheduled:  "2024-02-29", closing: "2024-01-15", original: "2024-02-29",
		},
		{
			name:       "closing day clamped in the closing month",
			occurrence: core.NewDate(2025, 1, 31),
			cfg:        card(core.Literal(30), core.Literal(28), 0, false),
			scheduled:  "2025-02-28", closing: "2025-02-28", original: "2025-02-28",
		},
		{
			name:       "payment literal clamped in target month",
			occurrence: core.NewDate(2025, 3, 2),
			cfg:        card(core.Literal(5), core.Literal(31), 1, false),
			scheduled:  "2025-04-30", closing: "2025-03-05", original: "2025-04-30",
		},
		{
			name:       "shift zero pays in the closing month",
			occurrence: core.NewDate(2025, 7, 2),
			cfg:        card(core.Literal(5), core.Literal(20), 0, false),
			scheduled:  "2025-07-20", closing: "2025-07-05", original: "2025-07-20",
		},
		{
			name:       "new year holiday is skipped",
			occurrence: core.NewDate(2024, 11, 20),
			cfg:        card(core.Literal(25), core.Literal(1), 2, true),
			scheduled:  "2025-01-02", closing: "2024-11-25", original: "2025-01-01", adjusted: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ComputeCardCycle(tt.occurrence, tt.cfg)
			assert.NoError(t, err)
			assert.Equal(t, tt.scheduled, res.ScheduledPayDate.String())
			assert.Equal(t, tt.closing, res.ClosingDate.String())
			assert.Equal(t, tt.original, res.OriginalPaymentDate.String())
			assert.Equal(t, tt.adjusted, res.IsAdjusted)
		})
	}
}

func TestComputeCardCycleErrors(t *testing.T) {
	_, err := ComputeCardCycle(core.NewDate(2025, 1, 1), card(core.Literal(40), core.Literal(1), 1, false))
	assert.True(t, errors.Is(err, core.ErrInvalidDayToken), "%v", err)

	_, err = ComputeCardCycle(core.NewDate(2025, 1, 1), card(core.Literal(10), core.DayToken{}, 1, false))
	assert.True(t, errors.Is(err, core.ErrInvalidDayToken), "%v", err)

	_, err = ComputeCardCycle(core.NewDate(2025, 1, 1), card(core.Literal(10), core.Literal(1), -1, false))
	assert.True(t, errors.Is(err, core.ErrInvalidShift), "%v", err)

	_, err = ComputeCardCycle(core.Date{}, card(core.Literal(10), core.Literal(1), 1, false))
	assert.Error(t, err)
}

func TestComputeDirectDebitCycle(t *testing.T) {
	saturday := core.NewDate(2025, 5, 31)

	res := ComputeDirectDebitCycle(saturday, true)
	assert.Equal(t, "2025-06-02", res.ScheduledPayDate.String())
	assert.Equal(t, saturday, res.ClosingDate)
	assert.Equal(t, saturday, res.OriginalPaymentDate)
	assert.True(t, res.IsAdjusted)

	res = ComputeDirectDebitCycle(saturday, false)
	assert.Equal(t, saturday, res.ScheduledPayDate)
	assert.False(t, res.IsAdjusted)
}

func TestCalculatorUsesHolidays(t *testing.T) {
	calc := Calculator{Holidays: calendar.Default().WithFixed(calendar.MonthDay{Month: 6, Day: 2})}
	res := calc.DirectDebitCycle(core.NewDate(2025, 5, 31), true)
	assert.Equal(t, "2025-06-03", res.ScheduledPayDate.String())
}

func TestCycleIsDeterministic(t *testing.T) {
	cfg := card(core.MonthEnd, core.MonthEnd, 2, true)
	occurrence := core.NewDate(2024, 12, 31)
	first, err := ComputeCardCycle(occurrence, cfg)
	assert.NoError(t, err)
	firstDD := ComputeDirectDebitCycle(occurrence, true)
	for i := 0; i < 100; i++ {
		again, err := ComputeCardCycle(occurrence, cfg)
		assert.NoError(t, err)
		assert.Equal(t, first, again)
		assert.Equal(t, firstDD, ComputeDirectDebitCycle(occurrence, true))
	}
}

func TestNoAdjustmentKeepsOriginalDate(t *testing.T) {
	tokens := []core.DayToken{core.Literal(1), core.Literal(15), core.Literal(29), core.Literal(31), core.MonthEnd}
	for d := core.NewDate(2023, 1, 1); d.Before(core.NewDate(2025, 1, 1)); d = calendar.AddDays(d, 3) {
		for _, closing := range tokens {
			for _, payment := range tokens {
				res, err := ComputeCardCycle(d, card(closing, payment, 1, false))
				assert.NoError(t, err)
				assert.Equal(t, res.OriginalPaymentDate, res.ScheduledPayDate)
				assert.False(t, res.IsAdjusted)
			}
		}
		res := ComputeDirectDebitCycle(d, false)
		assert.Equal(t, d, res.ScheduledPayDate)
	}
}

func TestForInstrument(t *testing.T) {
	dd := core.Instrument{ID: "dd", Kind: core.KindDirectDebit, AccountID: "a", Billing: core.BillingConfig{AdjustWeekend: true}}
	res, err := Calculator{}.ForInstrument(core.NewDate(2025, 8, 31), dd)
	assert.NoError(t, err)
	assert.Equal(t, "2025-09-01", res.ScheduledPayDate.String())

	_, err = Calculator{}.ForInstrument(core.NewDate(2025, 8, 31), core.Instrument{Kind: "cash"})
	assert.True(t, errors.Is(err, core.ErrInvalidKind))
}
