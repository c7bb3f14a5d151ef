package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"payplan/internal/calendar"
	"payplan/internal/core"
	"payplan/internal/storage"
)

// entryNamespace derives stable entry ids from (template, occurrence) so a
// retried run cannot record the same occurrence twice.
var entryNamespace = uuid.MustParse("6f1c3a52-2d0e-4c8e-9a57-5b8f0d7e4c21")

// RecurringProcessor materialises due recurring templates into ledger
// entries.
type RecurringProcessor struct {
	store  storage.Store
	ledger *LedgerService
}

func NewRecurringProcessor(store storage.Store, ledger *LedgerService) *RecurringProcessor {
	return &RecurringProcessor{
		store:  store,
		ledger: ledger,
	}
}

// ProcessDue records every occurrence of every due template between its last
// execution and today, then advances the template's last execution date.
// Failures are logged per template and do not stop the run.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, today core.Date) (int, error) {
	if p.store == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.store.ListTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring templates",
		"total", len(templates),
		"processing_date", today.String())

	processed := 0
	for _, t := range templates {
		n, err := p.processTemplate(ctx, t, today)
		processed += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring template",
				"template_id", t.ID,
				"description", t.Description,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"processed", processed,
		"total_checked", len(templates))
	return processed, nil
}

func (p *RecurringProcessor) processTemplate(ctx context.Context, t core.RecurringTemplate, today core.Date) (int, error) {
	checker, err := GetDuenessChecker(t.Every)
	if err != nil {
		return 0, err
	}
	if !checker.IsDue(t.LastExecution, today, t.StartDate) {
		return 0, nil
	}

	from := t.StartDate
	if !t.LastExecution.IsZero() {
		from = calendar.AddDays(t.LastExecution, 1)
	}
	dates, err := Occurrences(t, from, today)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, d := range dates {
		entry := core.LedgerEntry{
			ID:             uuid.NewSHA1(entryNamespace, []byte(t.ID+"/"+d.String())).String(),
			OccurrenceDate: d,
			Amount:         t.Amount,
			InstrumentID:   t.InstrumentID,
			Description:    t.Description,
			Category:       t.Category,
		}
		if _, err := p.ledger.RecordEntry(ctx, entry); err != nil {
			return n, fmt.Errorf("record occurrence %s: %w", d, err)
		}
		// advance per occurrence so a failure resumes where it stopped
		if err := p.store.MarkTemplateExecuted(ctx, t.ID, d); err != nil {
			return n, fmt.Errorf("mark executed: %w", err)
		}
		n++
		slog.InfoContext(ctx, "Created entry from recurring template",
			"template_id", t.ID,
			"occurrence_date", d.String(),
			"amount_cents", t.Amount.Cents,
			"frequency", t.Every)
	}
	return n, nil
}
