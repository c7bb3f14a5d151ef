package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"payplan/internal/amqp"
	"payplan/internal/billing"
	"payplan/internal/core"
	"payplan/internal/storage"
)

// LedgerService records and edits ledger entries. The scheduled fields of an
// entry are always computed here, never taken from the caller.
type LedgerService struct {
	store     storage.Store
	calc      billing.Calculator
	publisher Publisher
}

func NewLedgerService(store storage.Store, calc billing.Calculator, publisher Publisher) *LedgerService {
	return &LedgerService{
		store:     store,
		calc:      calc,
		publisher: publisher,
	}
}

// EntryPatch changes selected fields of an entry. Nil fields are left alone.
type EntryPatch struct {
	Amount         *core.Money `json:"amount,omitempty"`
	Description    *string     `json:"description,omitempty"`
	Category       *string     `json:"category,omitempty"`
	InstrumentID   *string     `json:"instrumentId,omitempty"`
	OccurrenceDate *core.Date  `json:"occurrenceDate,omitempty"`
}

// RecordEntry validates e, computes its payment cycle and persists it. An
// entry pointing at an unknown instrument is refused.
func (s *LedgerService) RecordEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("%w: entry: %w", core.ErrValidation, err)
	}

	scheduled, err := s.schedule(ctx, e)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	if err := s.store.CreateEntry(ctx, scheduled); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("save entry: %w", err)
	}

	slog.InfoContext(ctx, "Recorded entry",
		"entry_id", scheduled.ID,
		"instrument_id", scheduled.InstrumentID,
		"occurrence_date", scheduled.OccurrenceDate.String(),
		"scheduled_pay_date", scheduled.ScheduledPayDate.String())

	publish(ctx, s.publisher, amqp.ReasonEntryRecorded, []string{scheduled.InstrumentID}, 1)
	return scheduled, nil
}

// EditEntry applies patch to the stored entry. Amount, description and
// category edits keep the scheduled date; a new instrument or occurrence
// date recomputes it.
func (s *LedgerService) EditEntry(ctx context.Context, id string, patch EntryPatch) (core.LedgerEntry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	recompute := false
	if patch.Amount != nil {
		e.Amount = *patch.Amount
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	if patch.InstrumentID != nil && *patch.InstrumentID != e.InstrumentID {
		e.InstrumentID = *patch.InstrumentID
		recompute = true
	}
	if patch.OccurrenceDate != nil && !patch.OccurrenceDate.Equal(e.OccurrenceDate) {
		e.OccurrenceDate = *patch.OccurrenceDate
		recompute = true
	}
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("%w: entry: %w", core.ErrValidation, err)
	}

	if recompute || !e.IsScheduled() {
		if e, err = s.schedule(ctx, e); err != nil {
			return core.LedgerEntry{}, err
		}
	}
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update entry: %w", err)
	}

	if recompute {
		publish(ctx, s.publisher, amqp.ReasonEntryRecorded, []string{e.InstrumentID}, 1)
	}
	return e, nil
}

func (s *LedgerService) schedule(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	inst, err := s.store.GetInstrument(ctx, e.InstrumentID)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	return s.calc.Schedule(e, map[string]core.Instrument{inst.ID: inst})
}
