// Package storage persists accounts, instruments, ledger entries, recurring
// templates and fix runs.
package storage

import (
	"context"
	"time"

	"payplan/internal/core"
)

// FixRunStatus tracks a configuration fix through its lifecycle.
type FixRunStatus string

const (
	FixRunPending    FixRunStatus = "pending"
	FixRunCompleted  FixRunStatus = "completed"
	FixRunFailed     FixRunStatus = "failed"
	FixRunReconciled FixRunStatus = "reconciled"
)

// FixRun records one application of a fix set. Patches holds the JSON
// encoded patches as submitted.
type FixRun struct {
	ID             string       `json:"id"`
	Status         FixRunStatus `json:"status"`
	Patches        []byte       `json:"-"`
	ChangedEntries int          `json:"changedEntries"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Ports used by the services.
type (
	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		UpsertAccount(ctx context.Context, a core.Account) error
	}

	InstrumentStore interface {
		ListInstruments(ctx context.Context) ([]core.Instrument, error)
		GetInstrument(ctx context.Context, id string) (core.Instrument, error)
		UpsertInstrument(ctx context.Context, in core.Instrument) error
		// UpdateInstrumentBilling stores cfg and the recomputed cycles of the
		// instrument's entries atomically.
		UpdateInstrumentBilling(ctx context.Context, id string, cfg core.BillingConfig, cycles map[string]core.PaymentCycleResult) error
	}

	EntryStore interface {
		CreateEntry(ctx context.Context, e core.LedgerEntry) error
		GetEntry(ctx context.Context, id string) (core.LedgerEntry, error)
		UpdateEntry(ctx context.Context, e core.LedgerEntry) error
		ListEntries(ctx context.Context) ([]core.LedgerEntry, error)
		ListEntriesByInstrument(ctx context.Context, instrumentID string) ([]core.LedgerEntry, error)
		// ListEntriesScheduledBetween returns entries whose scheduled pay date
		// falls in [from, to].
		ListEntriesScheduledBetween(ctx context.Context, from, to core.Date) ([]core.LedgerEntry, error)
		UpdateCycles(ctx context.Context, cycles map[string]core.PaymentCycleResult) error
	}

	TemplateStore interface {
		ListTemplates(ctx context.Context) ([]core.RecurringTemplate, error)
		CreateTemplate(ctx context.Context, t core.RecurringTemplate) error
		MarkTemplateExecuted(ctx context.Context, id string, on core.Date) error
	}

	FixRunStore interface {
		CreateFixRun(ctx context.Context, run FixRun) error
		// ApplyFix stores the patched configurations and recomputed cycles and
		// marks the run completed, all or nothing.
		ApplyFix(ctx context.Context, runID string, configs map[string]core.BillingConfig, cycles map[string]core.PaymentCycleResult) error
		SetFixRunStatus(ctx context.Context, id string, status FixRunStatus, errMsg string) error
		ListFixRuns(ctx context.Context, status FixRunStatus) ([]FixRun, error)
	}

	// Store is everything the services need.
	Store interface {
		AccountStore
		InstrumentStore
		EntryStore
		TemplateStore
		FixRunStore
		Close() error
	}
)
