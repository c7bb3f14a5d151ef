package storage

import (
	"fmt"

	"payplan/internal/core"
)

// Day tokens are stored in their textual form; direct debits leave them empty.
func tokenString(t core.DayToken) string {
	if t.IsZero() {
		return ""
	}
	return t.String()
}

func parseToken(s string) (core.DayToken, error) {
	if s == "" {
		return core.DayToken{}, nil
	}
	return core.ParseDayToken(s)
}

// parseOptionalDate maps the empty string to the zero date.
func parseOptionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func instrumentToRow(in core.Instrument) Instrument {
	return Instrument{
		ID:                in.ID,
		Label:             in.Label,
		Kind:              string(in.Kind),
		AccountID:         in.AccountID,
		ClosingDay:        tokenString(in.Billing.ClosingDay),
		PaymentDay:        tokenString(in.Billing.PaymentDay),
		PaymentMonthShift: int64(in.Billing.PaymentMonthShift),
		AdjustWeekend:     in.Billing.AdjustWeekend,
	}
}

func instrumentFromRow(row Instrument) (core.Instrument, error) {
	closing, err := parseToken(row.ClosingDay)
	if err != nil {
		return core.Instrument{}, fmt.Errorf("instrument %s closing day: %w", row.ID, err)
	}
	payment, err := parseToken(row.PaymentDay)
	if err != nil {
		return core.Instrument{}, fmt.Errorf("instrument %s payment day: %w", row.ID, err)
	}
	return core.Instrument{
		ID:        row.ID,
		Label:     row.Label,
		Kind:      core.InstrumentKind(row.Kind),
		AccountID: row.AccountID,
		Billing: core.BillingConfig{
			ClosingDay:        closing,
			PaymentDay:        payment,
			PaymentMonthShift: int(row.PaymentMonthShift),
			AdjustWeekend:     row.AdjustWeekend,
		},
	}, nil
}

func entryToRow(e core.LedgerEntry) LedgerEntry {
	return LedgerEntry{
		ID:                  e.ID,
		OccurrenceDate:      e.OccurrenceDate.String(),
		AmountCents:         e.Amount.Cents,
		InstrumentID:        e.InstrumentID,
		Description:         e.Description,
		Category:            e.Category,
		ScheduledPayDate:    e.ScheduledPayDate.String(),
		ClosingDate:         e.ClosingDate.String(),
		OriginalPaymentDate: e.OriginalPaymentDate.String(),
		IsAdjusted:          e.IsAdjusted,
	}
}

func entryFromRow(row LedgerEntry) (core.LedgerEntry, error) {
	e := core.LedgerEntry{
		ID:             row.ID,
		Amount:         core.Money{Cents: row.AmountCents},
		InstrumentID:   row.InstrumentID,
		InstrumentKind: core.InstrumentKind(row.InstrumentKind),
		Description:    row.Description,
		Category:       row.Category,
		IsAdjusted:     row.IsAdjusted,
	}
	var err error
	if e.OccurrenceDate, err = core.ParseDate(row.OccurrenceDate); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", row.ID, err)
	}
	if e.ScheduledPayDate, err = parseOptionalDate(row.ScheduledPayDate); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", row.ID, err)
	}
	if e.ClosingDate, err = parseOptionalDate(row.ClosingDate); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", row.ID, err)
	}
	if e.OriginalPaymentDate, err = parseOptionalDate(row.OriginalPaymentDate); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", row.ID, err)
	}
	return e, nil
}

func entriesFromRows(rows []LedgerEntry) ([]core.LedgerEntry, error) {
	out := make([]core.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		e, err := entryFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func templateFromRow(row RecurringTemplate) (core.RecurringTemplate, error) {
	t := core.RecurringTemplate{
		ID:           row.ID,
		Every:        core.Frequency(row.Every),
		Description:  row.Description,
		Amount:       core.Money{Cents: row.AmountCents},
		InstrumentID: row.InstrumentID,
		Category:     row.Category,
	}
	var err error
	if t.StartDate, err = core.ParseDate(row.StartDate); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", row.ID, err)
	}
	if t.EndDate, err = parseOptionalDate(row.EndDate); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", row.ID, err)
	}
	if t.LastExecution, err = parseOptionalDate(row.LastExecutionDate); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", row.ID, err)
	}
	return t, nil
}
