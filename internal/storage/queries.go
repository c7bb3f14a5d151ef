package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Account struct {
	ID   string
	Name string
}

type Instrument struct {
	ID                string
	Label             string
	Kind              string
	AccountID         string
	ClosingDay        string
	PaymentDay        string
	PaymentMonthShift int64
	AdjustWeekend     bool
}

type LedgerEntry struct {
	ID                  string
	OccurrenceDate      string
	AmountCents         int64
	InstrumentID        string
	InstrumentKind      string
	Description         string
	Category            string
	ScheduledPayDate    string
	ClosingDate         string
	OriginalPaymentDate string
	IsAdjusted          bool
}

type RecurringTemplate struct {
	ID                string
	StartDate         string
	EndDate           string
	Every             string
	Description       string
	AmountCents       int64
	InstrumentID      string
	Category          string
	LastExecutionDate string
}

type FixRunRow struct {
	ID             string
	Status         string
	Patches        string
	ChangedEntries int64
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const listAccounts = `SELECT id, name FROM accounts ORDER BY id`

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var i Account
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertAccount = `INSERT INTO accounts (id, name) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name`

func (q *Queries) UpsertAccount(ctx context.Context, arg Account) error {
	_, err := q.db.ExecContext(ctx, upsertAccount, arg.ID, arg.Name)
	return err
}

const instrumentColumns = `id, label, kind, account_id, closing_day, payment_day, payment_month_shift, adjust_weekend`

func scanInstrument(sc interface{ Scan(...interface{}) error }) (Instrument, error) {
	var i Instrument
	err := sc.Scan(&i.ID, &i.Label, &i.Kind, &i.AccountID, &i.ClosingDay, &i.PaymentDay, &i.PaymentMonthShift, &i.AdjustWeekend)
	return i, err
}

const listInstruments = `SELECT ` + instrumentColumns + ` FROM instruments ORDER BY id`

func (q *Queries) ListInstruments(ctx context.Context) ([]Instrument, error) {
	rows, err := q.db.QueryContext(ctx, listInstruments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Instrument
	for rows.Next() {
		i, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getInstrument = `SELECT ` + instrumentColumns + ` FROM instruments WHERE id = ?`

func (q *Queries) GetInstrument(ctx context.Context, id string) (Instrument, error) {
	return scanInstrument(q.db.QueryRowContext(ctx, getInstrument, id))
}

const upsertInstrument = `INSERT INTO instruments (` + instrumentColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    label = excluded.label,
    kind = excluded.kind,
    account_id = excluded.account_id,
    closing_day = excluded.closing_day,
    payment_day = excluded.payment_day,
    payment_month_shift = excluded.payment_month_shift,
    adjust_weekend = excluded.adjust_weekend,
    updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertInstrument(ctx context.Context, arg Instrument) error {
	_, err := q.db.ExecContext(ctx, upsertInstrument,
		arg.ID, arg.Label, arg.Kind, arg.AccountID, arg.ClosingDay, arg.PaymentDay, arg.PaymentMonthShift, arg.AdjustWeekend)
	return err
}

const updateInstrumentBilling = `UPDATE instruments
SET closing_day = ?, payment_day = ?, payment_month_shift = ?, adjust_weekend = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateInstrumentBillingParams struct {
	ClosingDay        string
	PaymentDay        string
	PaymentMonthShift int64
	AdjustWeekend     bool
	ID                string
}

func (q *Queries) UpdateInstrumentBilling(ctx context.Context, arg UpdateInstrumentBillingParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateInstrumentBilling,
		arg.ClosingDay, arg.PaymentDay, arg.PaymentMonthShift, arg.AdjustWeekend, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const entryColumns = `e.id, e.occurrence_date, e.amount_cents, e.instrument_id, COALESCE(i.kind, ''), e.description, e.category,
    e.scheduled_pay_date, e.closing_date, e.original_payment_date, e.is_adjusted`

const entryFrom = ` FROM ledger_entries e LEFT JOIN instruments i ON i.id = e.instrument_id`

func scanEntry(sc interface{ Scan(...interface{}) error }) (LedgerEntry, error) {
	var i LedgerEntry
	err := sc.Scan(&i.ID, &i.OccurrenceDate, &i.AmountCents, &i.InstrumentID, &i.InstrumentKind, &i.Description, &i.Category,
		&i.ScheduledPayDate, &i.ClosingDate, &i.OriginalPaymentDate, &i.IsAdjusted)
	return i, err
}

func (q *Queries) queryEntries(ctx context.Context, query string, args ...interface{}) ([]LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		i, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createEntry = `INSERT INTO ledger_entries (
    id, occurrence_date, amount_cents, instrument_id, description, category,
    scheduled_pay_date, closing_date, original_payment_date, is_adjusted
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateEntry(ctx context.Context, arg LedgerEntry) error {
	_, err := q.db.ExecContext(ctx, createEntry,
		arg.ID, arg.OccurrenceDate, arg.AmountCents, arg.InstrumentID, arg.Description, arg.Category,
		arg.ScheduledPayDate, arg.ClosingDate, arg.OriginalPaymentDate, arg.IsAdjusted)
	return err
}

const getEntry = `SELECT ` + entryColumns + entryFrom + ` WHERE e.id = ?`

func (q *Queries) GetEntry(ctx context.Context, id string) (LedgerEntry, error) {
	return scanEntry(q.db.QueryRowContext(ctx, getEntry, id))
}

const updateEntry = `UPDATE ledger_entries SET
    occurrence_date = ?, amount_cents = ?, instrument_id = ?, description = ?, category = ?,
    scheduled_pay_date = ?, closing_date = ?, original_payment_date = ?, is_adjusted = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateEntry(ctx context.Context, arg LedgerEntry) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateEntry,
		arg.OccurrenceDate, arg.AmountCents, arg.InstrumentID, arg.Description, arg.Category,
		arg.ScheduledPayDate, arg.ClosingDate, arg.OriginalPaymentDate, arg.IsAdjusted, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listEntries = `SELECT ` + entryColumns + entryFrom + ` ORDER BY e.occurrence_date, e.id`

func (q *Queries) ListEntries(ctx context.Context) ([]LedgerEntry, error) {
	return q.queryEntries(ctx, listEntries)
}

const listEntriesByInstrument = `SELECT ` + entryColumns + entryFrom + ` WHERE e.instrument_id = ? ORDER BY e.occurrence_date, e.id`

func (q *Queries) ListEntriesByInstrument(ctx context.Context, instrumentID string) ([]LedgerEntry, error) {
	return q.queryEntries(ctx, listEntriesByInstrument, instrumentID)
}

// ISO dates compare correctly as text.
const listEntriesScheduledBetween = `SELECT ` + entryColumns + entryFrom + `
WHERE e.scheduled_pay_date != '' AND e.scheduled_pay_date BETWEEN ? AND ?
ORDER BY e.scheduled_pay_date, e.id`

func (q *Queries) ListEntriesScheduledBetween(ctx context.Context, from, to string) ([]LedgerEntry, error) {
	return q.queryEntries(ctx, listEntriesScheduledBetween, from, to)
}

const updateEntryCycle = `UPDATE ledger_entries
SET scheduled_pay_date = ?, closing_date = ?, original_payment_date = ?, is_adjusted = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateEntryCycleParams struct {
	ScheduledPayDate    string
	ClosingDate         string
	OriginalPaymentDate string
	IsAdjusted          bool
	ID                  string
}

func (q *Queries) UpdateEntryCycle(ctx context.Context, arg UpdateEntryCycleParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateEntryCycle,
		arg.ScheduledPayDate, arg.ClosingDate, arg.OriginalPaymentDate, arg.IsAdjusted, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listTemplates = `SELECT id, start_date, end_date, every, description, amount_cents, instrument_id, category, last_execution_date
FROM recurring_templates ORDER BY id`

func (q *Queries) ListTemplates(ctx context.Context) ([]RecurringTemplate, error) {
	rows, err := q.db.QueryContext(ctx, listTemplates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringTemplate
	for rows.Next() {
		var i RecurringTemplate
		if err := rows.Scan(&i.ID, &i.StartDate, &i.EndDate, &i.Every, &i.Description, &i.AmountCents,
			&i.InstrumentID, &i.Category, &i.LastExecutionDate); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createTemplate = `INSERT INTO recurring_templates (
    id, start_date, end_date, every, description, amount_cents, instrument_id, category, last_execution_date
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTemplate(ctx context.Context, arg RecurringTemplate) error {
	_, err := q.db.ExecContext(ctx, createTemplate,
		arg.ID, arg.StartDate, arg.EndDate, arg.Every, arg.Description, arg.AmountCents,
		arg.InstrumentID, arg.Category, arg.LastExecutionDate)
	return err
}

const markTemplateExecuted = `UPDATE recurring_templates SET last_execution_date = ? WHERE id = ?`

func (q *Queries) MarkTemplateExecuted(ctx context.Context, id, on string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markTemplateExecuted, on, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createFixRun = `INSERT INTO fix_runs (id, status, patches, changed_entries, error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateFixRun(ctx context.Context, arg FixRunRow) error {
	_, err := q.db.ExecContext(ctx, createFixRun,
		arg.ID, arg.Status, arg.Patches, arg.ChangedEntries, arg.Error, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const setFixRunStatus = `UPDATE fix_runs SET status = ?, changed_entries = COALESCE(?, changed_entries), error = ?, updated_at = ? WHERE id = ?`

type SetFixRunStatusParams struct {
	Status         string
	ChangedEntries sql.NullInt64
	Error          string
	UpdatedAt      time.Time
	ID             string
}

func (q *Queries) SetFixRunStatus(ctx context.Context, arg SetFixRunStatusParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, setFixRunStatus, arg.Status, arg.ChangedEntries, arg.Error, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listFixRunsByStatus = `SELECT id, status, patches, changed_entries, error, created_at, updated_at
FROM fix_runs WHERE status = ? ORDER BY created_at, id`

func (q *Queries) ListFixRunsByStatus(ctx context.Context, status string) ([]FixRunRow, error) {
	rows, err := q.db.QueryContext(ctx, listFixRunsByStatus, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FixRunRow
	for rows.Next() {
		var i FixRunRow
		if err := rows.Scan(&i.ID, &i.Status, &i.Patches, &i.ChangedEntries, &i.Error, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
