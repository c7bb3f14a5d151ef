// Package billing turns an occurrence date and an instrument's billing rules
// into the date the money actually leaves the account.
package billing

import (
	"fmt"

	"payplan/internal/calendar"
	"payplan/internal/core"
)

// Calculator computes payment cycles against a holiday calendar. The zero
// value uses the default calendar.
type Calculator struct {
	Holidays *calendar.HolidayCalendar
}

// ComputeCardCycle computes a card cycle with the default calendar.
func ComputeCardCycle(occurrence core.Date, cfg core.BillingConfig) (core.PaymentCycleResult, error) {
	return Calculator{}.CardCycle(occurrence, cfg)
}

// ComputeDirectDebitCycle computes a direct-debit cycle with the default calendar.
func ComputeDirectDebitCycle(occurrence core.Date, adjustWeekend bool) core.PaymentCycleResult {
	return Calculator{}.DirectDebitCycle(occurrence, adjustWeekend)
}

// CardCycle finds the statement an occurrence belongs to and the debit date of
// that statement.
//
// The statement closes in the occurrence month when the occurrence falls on or
// before the closing day, otherwise in the following month. The closing day is
// bound again in the closing month, so a closing day of 30 closes February on
// its last day. The debit happens PaymentMonthShift months after the closing
// month on the resolved payment day.
func (c Calculator) CardCycle(occurrence core.Date, cfg core.BillingConfig) (core.PaymentCycleResult, error) {
	if err := occurrence.Validate(); err != nil {
		return core.PaymentCycleResult{}, err
	}
	if err := cfg.Validate(); err != nil {
		return core.PaymentCycleResult{}, err
	}

	cutoff, err := calendar.Resolve(cfg.ClosingDay, occurrence.Year(), occurrence.Month())
	if err != nil {
		return core.PaymentCycleResult{}, fmt.Errorf("closing day: %w", err)
	}

	closingYear, closingMonth := occurrence.Year(), occurrence.Month()
	if occurrence.Day() > cutoff {
		closingYear, closingMonth = calendar.AddMonths(closingYear, closingMonth, 1)
	}
	closingDate, err := calendar.ResolveDate(cfg.ClosingDay, closingYear, closingMonth)
	if err != nil {
		return core.PaymentCycleResult{}, fmt.Errorf("closing day: %w", err)
	}

	payYear, payMonth := calendar.AddMonths(closingYear, closingMonth, cfg.PaymentMonthShift)
	original, err := calendar.ResolveDate(cfg.PaymentDay, payYear, payMonth)
	if err != nil {
		return core.PaymentCycleResult{}, fmt.Errorf("payment day: %w", err)
	}

	res := c.settle(original, cfg.AdjustWeekend)
	res.ClosingDate = closingDate
	return res, nil
}

// DirectDebitCycle debits on the occurrence date itself, optionally moved to
// the next business day.
func (c Calculator) DirectDebitCycle(occurrence core.Date, adjustWeekend bool) core.PaymentCycleResult {
	res := c.settle(occurrence, adjustWeekend)
	res.ClosingDate = occurrence
	return res
}

// ForInstrument dispatches on the instrument kind.
func (c Calculator) ForInstrument(occurrence core.Date, inst core.Instrument) (core.PaymentCycleResult, error) {
	switch inst.Kind {
	case core.KindCard:
		return c.CardCycle(occurrence, inst.Billing)
	case core.KindDirectDebit:
		if err := occurrence.Validate(); err != nil {
			return core.PaymentCycleResult{}, err
		}
		return c.DirectDebitCycle(occurrence, inst.Billing.AdjustWeekend), nil
	default:
		return core.PaymentCycleResult{}, fmt.Errorf("%w: %q", core.ErrInvalidKind, inst.Kind)
	}
}

func (c Calculator) settle(original core.Date, adjust bool) core.PaymentCycleResult {
	scheduled := original
	if adjust {
		scheduled = c.Holidays.AdjustForward(original)
	}
	return core.PaymentCycleResult{
		ScheduledPayDate:    scheduled,
		OriginalPaymentDate: original,
		IsAdjusted:          !scheduled.Equal(original),
	}
}
