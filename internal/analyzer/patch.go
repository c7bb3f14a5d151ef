package analyzer

import (
	"errors"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"payplan/internal/core"
)

// ConfigPatch changes selected fields of a billing configuration. Nil fields
// are left alone.
type ConfigPatch struct {
	ClosingDay        *core.DayToken `json:"closingDay,omitempty"`
	PaymentDay        *core.DayToken `json:"paymentDay,omitempty"`
	PaymentMonthShift *int           `json:"paymentMonthShift,omitempty"`
	AdjustWeekend     *bool          `json:"adjustWeekend,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ConfigPatch) IsEmpty() bool {
	return p.ClosingDay == nil && p.PaymentDay == nil && p.PaymentMonthShift == nil && p.AdjustWeekend == nil
}

// Apply returns cfg with the patch applied.
func (p ConfigPatch) Apply(cfg core.BillingConfig) core.BillingConfig {
	if p.ClosingDay != nil {
		cfg.ClosingDay = *p.ClosingDay
	}
	if p.PaymentDay != nil {
		cfg.PaymentDay = *p.PaymentDay
	}
	if p.PaymentMonthShift != nil {
		cfg.PaymentMonthShift = *p.PaymentMonthShift
	}
	if p.AdjustWeekend != nil {
		cfg.AdjustWeekend = *p.AdjustWeekend
	}
	return cfg
}

// ValidateFixes checks a fix set before it is applied. Every patched
// instrument must exist, every patch must change something, direct debits
// only accept AdjustWeekend, and the patched configuration must be valid.
// All problems are reported together.
func ValidateFixes(patches map[string]ConfigPatch, instruments []core.Instrument) error {
	if len(patches) == 0 {
		return &core.FixPatchError{Reason: "empty fix set"}
	}
	byID := make(map[string]core.Instrument, len(instruments))
	for _, in := range instruments {
		byID[in.ID] = in
	}

	ids := maps.Keys(patches)
	slices.Sort(ids)

	var errs []error
	for _, id := range ids {
		patch := patches[id]
		inst, ok := byID[id]
		switch {
		case !ok:
			errs = append(errs, &core.FixPatchError{InstrumentID: id, Reason: "unknown instrument"})
			continue
		case patch.IsEmpty():
			errs = append(errs, &core.FixPatchError{InstrumentID: id, Reason: "patch changes nothing"})
			continue
		}

		if inst.Kind == core.KindDirectDebit &&
			(patch.ClosingDay != nil || patch.PaymentDay != nil || patch.PaymentMonthShift != nil) {
			errs = append(errs, &core.FixPatchError{InstrumentID: id, Reason: "direct debits only accept adjustWeekend"})
			continue
		}
		if inst.Kind == core.KindCard {
			if err := patch.Apply(inst.Billing).Validate(); err != nil {
				errs = append(errs, &core.FixPatchError{InstrumentID: id, Reason: err.Error()})
			}
		}
	}
	return errors.Join(errs...)
}
