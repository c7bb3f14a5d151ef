package services

import (
	"context"
	"fmt"
	"log/slog"

	"payplan/internal/amqp"
	"payplan/internal/billing"
	"payplan/internal/core"
	"payplan/internal/storage"
)

type InstrumentService struct {
	store     storage.Store
	calc      billing.Calculator
	publisher Publisher
}

func NewInstrumentService(store storage.Store, calc billing.Calculator, publisher Publisher) *InstrumentService {
	return &InstrumentService{
		store:     store,
		calc:      calc,
		publisher: publisher,
	}
}

// BillingUpdate reports the effect of a billing configuration change.
type BillingUpdate struct {
	Instrument     core.Instrument `json:"instrument"`
	Entries        int             `json:"entries"`
	ChangedEntries int             `json:"changedEntries"`
}

func (s *InstrumentService) List(ctx context.Context) ([]core.Instrument, error) {
	return s.store.ListInstruments(ctx)
}

// Cycle computes the payment cycle an entry on instrumentID occurring on
// occurrence would get, without storing anything.
func (s *InstrumentService) Cycle(ctx context.Context, instrumentID string, occurrence core.Date) (core.PaymentCycleResult, error) {
	inst, err := s.store.GetInstrument(ctx, instrumentID)
	if err != nil {
		return core.PaymentCycleResult{}, err
	}
	return s.calc.ForInstrument(occurrence, inst)
}

// UpdateBilling stores cfg for the instrument and recalculates the scheduled
// dates of all its entries in the same write.
func (s *InstrumentService) UpdateBilling(ctx context.Context, id string, cfg core.BillingConfig) (BillingUpdate, error) {
	inst, err := s.store.GetInstrument(ctx, id)
	if err != nil {
		return BillingUpdate{}, err
	}
	inst.Billing = cfg
	if err := inst.Validate(); err != nil {
		return BillingUpdate{}, fmt.Errorf("%w: instrument %s: %w", core.ErrValidation, id, err)
	}

	entries, err := s.store.ListEntriesByInstrument(ctx, id)
	if err != nil {
		return BillingUpdate{}, fmt.Errorf("list entries: %w", err)
	}
	cycles, err := s.calc.RecalculateCycles(entries, inst)
	if err != nil {
		return BillingUpdate{}, fmt.Errorf("recalculate instrument %s: %w", id, err)
	}

	changed := 0
	for _, e := range entries {
		if !cycles[e.ID].ScheduledPayDate.Equal(e.ScheduledPayDate) {
			changed++
		}
	}

	if err := s.store.UpdateInstrumentBilling(ctx, id, cfg, cycles); err != nil {
		return BillingUpdate{}, fmt.Errorf("update billing: %w", err)
	}

	slog.InfoContext(ctx, "Updated instrument billing",
		"instrument_id", id,
		"entries", len(entries),
		"changed_entries", changed)

	publish(ctx, s.publisher, amqp.ReasonBillingUpdated, []string{id}, len(entries))
	return BillingUpdate{Instrument: inst, Entries: len(entries), ChangedEntries: changed}, nil
}
