// Package analyzer finds risky billing configurations, proposes corrected
// settings and previews what a fix would do to existing entries.
package analyzer

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"payplan/internal/billing"
	"payplan/internal/calendar"
	"payplan/internal/core"
)

// ReasonMonthEndAdjust explains the only risky combination known so far.
const ReasonMonthEndAdjust = "payment day is month-end with weekend adjustment: the debit can move into the next month"

// Finding describes one problematic instrument.
type Finding struct {
	InstrumentID string `json:"instrumentId"`
	Label        string `json:"label"`
	Reason       string `json:"reason"`
	// Entries is the number of entries on the instrument; SpilledEntries
	// counts those whose debit currently lands in a later month than the
	// unshifted payment date.
	Entries        int `json:"entries"`
	SpilledEntries int `json:"spilledEntries"`
}

type Summary struct {
	Instruments      int `json:"instruments"`
	ProblematicCount int `json:"problematicCount"`
	AffectedEntries  int `json:"affectedEntries"`
	SpilledEntries   int `json:"spilledEntries"`
}

type Analysis struct {
	ProblematicInstruments []Finding `json:"problematicInstruments"`
	Summary                Summary   `json:"summary"`
}

// Analyzer runs the checks against a calculator. The zero value uses the
// default holiday calendar.
type Analyzer struct {
	Calc billing.Calculator
}

// IsProblematic reports whether inst has the month-end plus adjustment combination.
func IsProblematic(inst core.Instrument) bool {
	return inst.Kind == core.KindCard && inst.Billing.PaymentDay.IsMonthEnd() && inst.Billing.AdjustWeekend
}

// Analyze flags problematic instruments, sorted by instrument id.
func (a Analyzer) Analyze(instruments []core.Instrument, entries []core.LedgerEntry) (Analysis, error) {
	byInstrument := groupEntries(entries)
	out := Analysis{
		ProblematicInstruments: []Finding{},
		Summary:                Summary{Instruments: len(instruments)},
	}
	for _, inst := range sortedInstruments(instruments) {
		if !IsProblematic(inst) {
			continue
		}
		f := Finding{
			InstrumentID: inst.ID,
			Label:        inst.Label,
			Reason:       ReasonMonthEndAdjust,
			Entries:      len(byInstrument[inst.ID]),
		}
		cycles, err := a.Calc.RecalculateCycles(byInstrument[inst.ID], inst)
		if err != nil {
			return Analysis{}, fmt.Errorf("instrument %s: %w", inst.ID, err)
		}
		for _, c := range cycles {
			if !c.ScheduledPayDate.InMonth(c.OriginalPaymentDate.Year(), c.OriginalPaymentDate.Month()) {
				f.SpilledEntries++
			}
		}
		out.ProblematicInstruments = append(out.ProblematicInstruments, f)
		out.Summary.ProblematicCount++
		out.Summary.AffectedEntries += f.Entries
		out.Summary.SpilledEntries += f.SpilledEntries
	}
	return out, nil
}

// ProposeFixes returns the minimal patch for every problematic instrument:
// turning weekend adjustment off.
func ProposeFixes(instruments []core.Instrument) map[string]ConfigPatch {
	out := make(map[string]ConfigPatch)
	for _, inst := range instruments {
		if IsProblematic(inst) {
			off := false
			out[inst.ID] = ConfigPatch{AdjustWeekend: &off}
		}
	}
	return out
}

// InstrumentChange is the before/after of one patched instrument.
type InstrumentChange struct {
	InstrumentID   string             `json:"instrumentId"`
	Label          string             `json:"label"`
	Before         core.BillingConfig `json:"before"`
	After          core.BillingConfig `json:"after"`
	Entries        int                `json:"entries"`
	ChangedEntries int                `json:"changedEntries"`
}

// EntryDateDelta is the move of one entry's scheduled pay date.
type EntryDateDelta struct {
	EntryID      string    `json:"entryId"`
	InstrumentID string    `json:"instrumentId"`
	OldDate      core.Date `json:"oldDate"`
	NewDate      core.Date `json:"newDate"`
	DeltaDays    int       `json:"deltaDays"`
}

type Preview struct {
	PerInstrument []InstrumentChange `json:"perInstrument"`
	PerEntry      []EntryDateDelta   `json:"perEntry"`
	// NewCycles holds the recomputed cycle of every entry on a patched
	// instrument, ready to be persisted.
	NewCycles map[string]core.PaymentCycleResult `json:"-"`
	// NewConfigs holds the patched configurations.
	NewConfigs map[string]core.BillingConfig `json:"-"`
}

// PreviewFixes validates the patches, then recomputes every affected entry
// under the old and the new configuration. Only entries whose date moves are
// listed in PerEntry.
func (a Analyzer) PreviewFixes(patches map[string]ConfigPatch, instruments []core.Instrument, entries []core.LedgerEntry) (Preview, error) {
	if err := ValidateFixes(patches, instruments); err != nil {
		return Preview{}, err
	}
	byInstrument := groupEntries(entries)
	out := Preview{
		PerInstrument: []InstrumentChange{},
		PerEntry:      []EntryDateDelta{},
		NewCycles:     make(map[string]core.PaymentCycleResult),
		NewConfigs:    make(map[string]core.BillingConfig),
	}
	for _, inst := range sortedInstruments(instruments) {
		patch, ok := patches[inst.ID]
		if !ok {
			continue
		}
		patched := inst
		patched.Billing = patch.Apply(inst.Billing)
		own := byInstrument[inst.ID]

		before, err := a.Calc.RecalculateCycles(own, inst)
		if err != nil {
			return Preview{}, fmt.Errorf("instrument %s: %w", inst.ID, err)
		}
		after, err := a.Calc.RecalculateCycles(own, patched)
		if err != nil {
			return Preview{}, fmt.Errorf("instrument %s: %w", inst.ID, err)
		}

		change := InstrumentChange{
			InstrumentID: inst.ID,
			Label:        inst.Label,
			Before:       inst.Billing,
			After:        patched.Billing,
			Entries:      len(own),
		}
		for _, e := range own {
			oldDate, newDate := before[e.ID].ScheduledPayDate, after[e.ID].ScheduledPayDate
			out.NewCycles[e.ID] = after[e.ID]
			if oldDate.Equal(newDate) {
				continue
			}
			change.ChangedEntries++
			out.PerEntry = append(out.PerEntry, EntryDateDelta{
				EntryID:      e.ID,
				InstrumentID: inst.ID,
				OldDate:      oldDate,
				NewDate:      newDate,
				DeltaDays:    calendar.DaysBetween(oldDate, newDate),
			})
		}
		out.NewConfigs[inst.ID] = patched.Billing
		out.PerInstrument = append(out.PerInstrument, change)
	}
	return out, nil
}

func groupEntries(entries []core.LedgerEntry) map[string][]core.LedgerEntry {
	out := make(map[string][]core.LedgerEntry)
	for _, e := range entries {
		out[e.InstrumentID] = append(out[e.InstrumentID], e)
	}
	for _, list := range out {
		slices.SortFunc(list, func(a, b core.LedgerEntry) int { return strings.Compare(a.ID, b.ID) })
	}
	return out
}

func sortedInstruments(instruments []core.Instrument) []core.Instrument {
	byID := make(map[string]core.Instrument, len(instruments))
	for _, in := range instruments {
		byID[in.ID] = in
	}
	ids := maps.Keys(byID)
	slices.Sort(ids)
	out := make([]core.Instrument, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// Analyze runs Analyzer{}.Analyze.
func Analyze(instruments []core.Instrument, entries []core.LedgerEntry) (Analysis, error) {
	return Analyzer{}.Analyze(instruments, entries)
}

// PreviewFixes runs Analyzer{}.PreviewFixes.
func PreviewFixes(patches map[string]ConfigPatch, instruments []core.Instrument, entries []core.LedgerEntry) (Preview, error) {
	return Analyzer{}.PreviewFixes(patches, instruments, entries)
}
