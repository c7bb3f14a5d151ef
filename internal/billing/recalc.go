package billing

import (
	"fmt"

	"payplan/internal/core"
)

// Recalculate re-derives the scheduled pay date of every entry from its
// occurrence date under cfg. Previously stored dates are ignored. The first
// failing entry aborts the batch.
func (c Calculator) Recalculate(entries []core.LedgerEntry, cfg core.BillingConfig) (map[string]core.Date, error) {
	out := make(map[string]core.Date, len(entries))
	for _, e := range entries {
		res, err := c.CardCycle(e.OccurrenceDate, cfg)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		out[e.ID] = res.ScheduledPayDate
	}
	return out, nil
}

// RecalculateCycles is Recalculate for any instrument kind, returning the full
// cycle so callers can persist the metadata too.
func (c Calculator) RecalculateCycles(entries []core.LedgerEntry, inst core.Instrument) (map[string]core.PaymentCycleResult, error) {
	out := make(map[string]core.PaymentCycleResult, len(entries))
	for _, e := range entries {
		res, err := c.ForInstrument(e.OccurrenceDate, inst)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		out[e.ID] = res
	}
	return out, nil
}

// Recalculate uses the default calendar.
func Recalculate(entries []core.LedgerEntry, cfg core.BillingConfig) (map[string]core.Date, error) {
	return Calculator{}.Recalculate(entries, cfg)
}

// Schedule attaches a freshly computed cycle to e. It refuses entries whose
// instrument is not in instruments.
func (c Calculator) Schedule(e core.LedgerEntry, instruments map[string]core.Instrument) (core.LedgerEntry, error) {
	inst, ok := instruments[e.InstrumentID]
	if !ok {
		return core.LedgerEntry{}, &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: e.InstrumentID, ItemID: e.ID}
	}
	res, err := c.ForInstrument(e.OccurrenceDate, inst)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e = e.WithCycle(res)
	e.InstrumentKind = inst.Kind
	return e, nil
}

// ScheduleProjection fills the scheduled pay date of a recurring projection.
func (c Calculator) ScheduleProjection(p core.RecurringProjection, instruments map[string]core.Instrument) (core.RecurringProjection, error) {
	inst, ok := instruments[p.InstrumentID]
	if !ok {
		return core.RecurringProjection{}, &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: p.InstrumentID, ItemID: p.TemplateID}
	}
	res, err := c.ForInstrument(p.Date, inst)
	if err != nil {
		return core.RecurringProjection{}, fmt.Errorf("template %s: %w", p.TemplateID, err)
	}
	p.ScheduledPayDate = res.ScheduledPayDate
	return p, nil
}
