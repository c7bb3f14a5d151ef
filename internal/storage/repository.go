package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"payplan/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers and keeps the pragmas in force.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction and commits only if fn succeeds.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.Account, len(rows))
	for i, a := range rows {
		out[i] = core.Account{ID: a.ID, Name: a.Name}
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertAccount(ctx context.Context, a core.Account) error {
	if err := r.queries.UpsertAccount(ctx, Account{ID: a.ID, Name: a.Name}); err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListInstruments(ctx context.Context) ([]core.Instrument, error) {
	rows, err := r.queries.ListInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	out := make([]core.Instrument, 0, len(rows))
	for _, row := range rows {
		in, err := instrumentFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func (r *SQLiteRepository) GetInstrument(ctx context.Context, id string) (core.Instrument, error) {
	row, err := r.queries.GetInstrument(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Instrument{}, &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: id}
	}
	if err != nil {
		return core.Instrument{}, fmt.Errorf("get instrument %s: %w", id, err)
	}
	return instrumentFromRow(row)
}

func (r *SQLiteRepository) UpsertInstrument(ctx context.Context, in core.Instrument) error {
	if err := r.queries.UpsertInstrument(ctx, instrumentToRow(in)); err != nil {
		return fmt.Errorf("upsert instrument %s: %w", in.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateInstrumentBilling(ctx context.Context, id string, cfg core.BillingConfig, cycles map[string]core.PaymentCycleResult) error {
	return r.withTx(ctx, func(q *Queries) error {
		if err := updateBilling(ctx, q, id, cfg); err != nil {
			return err
		}
		return updateCycles(ctx, q, cycles)
	})
}

func updateBilling(ctx context.Context, q *Queries, id string, cfg core.BillingConfig) error {
	n, err := q.UpdateInstrumentBilling(ctx, UpdateInstrumentBillingParams{
		ClosingDay:        tokenString(cfg.ClosingDay),
		PaymentDay:        tokenString(cfg.PaymentDay),
		PaymentMonthShift: int64(cfg.PaymentMonthShift),
		AdjustWeekend:     cfg.AdjustWeekend,
		ID:                id,
	})
	if err != nil {
		return fmt.Errorf("update billing of %s: %w", id, err)
	}
	if n == 0 {
		return &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: id}
	}
	return nil
}

func updateCycles(ctx context.Context, q *Queries, cycles map[string]core.PaymentCycleResult) error {
	for id, c := range cycles {
		n, err := q.UpdateEntryCycle(ctx, UpdateEntryCycleParams{
			ScheduledPayDate:    c.ScheduledPayDate.String(),
			ClosingDate:         c.ClosingDate.String(),
			OriginalPaymentDate: c.OriginalPaymentDate.String(),
			IsAdjusted:          c.IsAdjusted,
			ID:                  id,
		})
		if err != nil {
			return fmt.Errorf("update cycle of entry %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("update cycle of entry %s: %w", id, core.ErrNotFound)
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.LedgerEntry) error {
	if err := r.queries.CreateEntry(ctx, entryToRow(e)); err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	slog.InfoContext(ctx, "Entry saved to SQLite",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"instrument_id", e.InstrumentID,
		"scheduled_pay_date", e.ScheduledPayDate.String())
	return nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (core.LedgerEntry, error) {
	row, err := r.queries.GetEntry(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return entryFromRow(row)
}

func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.LedgerEntry) error {
	n, err := r.queries.UpdateEntry(ctx, entryToRow(e))
	if err != nil {
		return fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", e.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.LedgerEntry, error) {
	rows, err := r.queries.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entriesFromRows(rows)
}

func (r *SQLiteRepository) ListEntriesByInstrument(ctx context.Context, instrumentID string) ([]core.LedgerEntry, error) {
	rows, err := r.queries.ListEntriesByInstrument(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", instrumentID, err)
	}
	return entriesFromRows(rows)
}

func (r *SQLiteRepository) ListEntriesScheduledBetween(ctx context.Context, from, to core.Date) ([]core.LedgerEntry, error) {
	rows, err := r.queries.ListEntriesScheduledBetween(ctx, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list entries scheduled between %s and %s: %w", from, to, err)
	}
	return entriesFromRows(rows)
}

func (r *SQLiteRepository) UpdateCycles(ctx context.Context, cycles map[string]core.PaymentCycleResult) error {
	return r.withTx(ctx, func(q *Queries) error {
		return updateCycles(ctx, q, cycles)
	})
}

func (r *SQLiteRepository) ListTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	rows, err := r.queries.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]core.RecurringTemplate, 0, len(rows))
	for _, row := range rows {
		t, err := templateFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t core.RecurringTemplate) error {
	err := r.queries.CreateTemplate(ctx, RecurringTemplate{
		ID:                t.ID,
		StartDate:         t.StartDate.String(),
		EndDate:           t.EndDate.String(),
		Every:             string(t.Every),
		Description:       t.Description,
		AmountCents:       t.Amount.Cents,
		InstrumentID:      t.InstrumentID,
		Category:          t.Category,
		LastExecutionDate: t.LastExecution.String(),
	})
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkTemplateExecuted(ctx context.Context, id string, on core.Date) error {
	n, err := r.queries.MarkTemplateExecuted(ctx, id, on.String())
	if err != nil {
		return fmt.Errorf("mark template %s executed: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateFixRun(ctx context.Context, run FixRun) error {
	now := r.now().UTC()
	err := r.queries.CreateFixRun(ctx, FixRunRow{
		ID:             run.ID,
		Status:         string(run.Status),
		Patches:        string(run.Patches),
		ChangedEntries: int64(run.ChangedEntries),
		Error:          run.Error,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return fmt.Errorf("create fix run: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ApplyFix(ctx context.Context, runID string, configs map[string]core.BillingConfig, cycles map[string]core.PaymentCycleResult) error {
	return r.withTx(ctx, func(q *Queries) error {
		for id, cfg := range configs {
			if err := updateBilling(ctx, q, id, cfg); err != nil {
				return err
			}
		}
		if err := updateCycles(ctx, q, cycles); err != nil {
			return err
		}
		// changed_entries keeps the count recorded with the run.
		n, err := q.SetFixRunStatus(ctx, SetFixRunStatusParams{
			Status:    string(FixRunCompleted),
			UpdatedAt: r.now().UTC(),
			ID:        runID,
		})
		if err != nil {
			return fmt.Errorf("complete fix run %s: %w", runID, err)
		}
		if n == 0 {
			return fmt.Errorf("fix run %s: %w", runID, core.ErrNotFound)
		}
		return nil
	})
}

func (r *SQLiteRepository) SetFixRunStatus(ctx context.Context, id string, status FixRunStatus, errMsg string) error {
	n, err := r.queries.SetFixRunStatus(ctx, SetFixRunStatusParams{
		Status:    string(status),
		Error:     errMsg,
		UpdatedAt: r.now().UTC(),
		ID:        id,
	})
	if err != nil {
		return fmt.Errorf("set fix run %s status: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("fix run %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListFixRuns(ctx context.Context, status FixRunStatus) ([]FixRun, error) {
	rows, err := r.queries.ListFixRunsByStatus(ctx, string(status))
	if err != nil {
		return nil, fmt.Errorf("list fix runs: %w", err)
	}
	out := make([]FixRun, len(rows))
	for i, row := range rows {
		out[i] = FixRun{
			ID:             row.ID,
			Status:         FixRunStatus(row.Status),
			Patches:        []byte(row.Patches),
			ChangedEntries: int(row.ChangedEntries),
			Error:          row.Error,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		}
	}
	return out, nil
}
