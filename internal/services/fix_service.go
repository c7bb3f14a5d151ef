package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"payplan/internal/amqp"
	"payplan/internal/analyzer"
	"payplan/internal/billing"
	"payplan/internal/core"
	"payplan/internal/storage"
)

// FixService drives the analyze, preview, apply flow of configuration fixes
// and the reconciliation pass that repairs stale scheduled dates.
type FixService struct {
	store     storage.Store
	analyzer  analyzer.Analyzer
	publisher Publisher
}

func NewFixService(store storage.Store, calc billing.Calculator, publisher Publisher) *FixService {
	return &FixService{
		store:     store,
		analyzer:  analyzer.Analyzer{Calc: calc},
		publisher: publisher,
	}
}

// ApplyResult is the outcome of an applied fix set.
type ApplyResult struct {
	RunID   string               `json:"runId"`
	Preview analyzer.Preview     `json:"preview"`
	Status  storage.FixRunStatus `json:"status"`
}

// ReconcileResult is the outcome of a reconciliation pass.
type ReconcileResult struct {
	Checked        int      `json:"checked"`
	Rewritten      int      `json:"rewritten"`
	Unresolved     []string `json:"unresolved"`
	RunsReconciled int      `json:"runsReconciled"`
}

func (s *FixService) Analyze(ctx context.Context) (analyzer.Analysis, error) {
	instruments, entries, err := s.load(ctx)
	if err != nil {
		return analyzer.Analysis{}, err
	}
	return s.analyzer.Analyze(instruments, entries)
}

// Propose returns the minimal patch set for every problematic instrument.
func (s *FixService) Propose(ctx context.Context) (map[string]analyzer.ConfigPatch, error) {
	instruments, err := s.store.ListInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	return analyzer.ProposeFixes(instruments), nil
}

func (s *FixService) Preview(ctx context.Context, patches map[string]analyzer.ConfigPatch) (analyzer.Preview, error) {
	instruments, entries, err := s.load(ctx)
	if err != nil {
		return analyzer.Preview{}, err
	}
	return s.analyzer.PreviewFixes(patches, instruments, entries)
}

// Apply validates patches, records a fix run and stores the patched
// configurations together with the recomputed cycles of every affected
// entry in one write. A failed write leaves the run marked failed.
func (s *FixService) Apply(ctx context.Context, patches map[string]analyzer.ConfigPatch) (ApplyResult, error) {
	preview, err := s.Preview(ctx, patches)
	if err != nil {
		return ApplyResult{}, err
	}

	raw, err := json.Marshal(patches)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("encode patches: %w", err)
	}
	changed := len(preview.PerEntry)
	run := storage.FixRun{
		ID:             uuid.NewString(),
		Status:         storage.FixRunPending,
		Patches:        raw,
		ChangedEntries: changed,
	}
	if err := s.store.CreateFixRun(ctx, run); err != nil {
		return ApplyResult{}, fmt.Errorf("record fix run: %w", err)
	}

	if err := s.store.ApplyFix(ctx, run.ID, preview.NewConfigs, preview.NewCycles); err != nil {
		if serr := s.store.SetFixRunStatus(ctx, run.ID, storage.FixRunFailed, err.Error()); serr != nil {
			err = errors.Join(err, serr)
		}
		slog.ErrorContext(ctx, "Failed to apply fix", "run_id", run.ID, "error", err)
		return ApplyResult{RunID: run.ID, Preview: preview, Status: storage.FixRunFailed}, fmt.Errorf("apply fix %s: %w", run.ID, err)
	}

	ids := maps.Keys(preview.NewConfigs)
	slices.Sort(ids)
	slog.InfoContext(ctx, "Applied fix",
		"run_id", run.ID,
		"instruments", len(ids),
		"changed_entries", changed)

	publish(ctx, s.publisher, amqp.ReasonFixApplied, ids, len(preview.NewCycles))
	return ApplyResult{RunID: run.ID, Preview: preview, Status: storage.FixRunCompleted}, nil
}

// Reconcile recomputes the cycle of every entry from its occurrence date and
// the current instrument configuration, rewrites the ones that differ and
// closes fix runs left pending or failed. Running it twice changes nothing
// the second time. Entries on unknown instruments are reported, not rewritten.
func (s *FixService) Reconcile(ctx context.Context) (ReconcileResult, error) {
	instruments, entries, err := s.load(ctx)
	if err != nil {
		return ReconcileResult{}, err
	}
	byID := make(map[string]core.Instrument, len(instruments))
	for _, in := range instruments {
		byID[in.ID] = in
	}

	res := ReconcileResult{Checked: len(entries), Unresolved: []string{}}
	stale := make(map[string]core.PaymentCycleResult)
	touched := make(map[string]struct{})
	for _, e := range entries {
		scheduled, err := s.analyzer.Calc.Schedule(e, byID)
		if err != nil {
			if core.IsIntegrityError(err) {
				res.Unresolved = append(res.Unresolved, e.ID)
				continue
			}
			return ReconcileResult{}, err
		}
		if !sameCycle(scheduled.Cycle(), e.Cycle()) {
			stale[e.ID] = scheduled.Cycle()
			touched[e.InstrumentID] = struct{}{}
		}
	}

	if len(stale) > 0 {
		if err := s.store.UpdateCycles(ctx, stale); err != nil {
			return ReconcileResult{}, fmt.Errorf("update cycles: %w", err)
		}
	}
	res.Rewritten = len(stale)

	for _, status := range []storage.FixRunStatus{storage.FixRunPending, storage.FixRunFailed} {
		runs, err := s.store.ListFixRuns(ctx, status)
		if err != nil {
			return res, fmt.Errorf("list %s fix runs: %w", status, err)
		}
		for _, run := range runs {
			if err := s.store.SetFixRunStatus(ctx, run.ID, storage.FixRunReconciled, run.Error); err != nil {
				return res, fmt.Errorf("close fix run %s: %w", run.ID, err)
			}
			res.RunsReconciled++
		}
	}

	if len(res.Unresolved) > 0 {
		slog.WarnContext(ctx, "Entries reference unknown instruments", "count", len(res.Unresolved))
	}
	slog.InfoContext(ctx, "Reconciliation complete",
		"checked", res.Checked,
		"rewritten", res.Rewritten,
		"runs_reconciled", res.RunsReconciled)

	if res.Rewritten > 0 {
		ids := maps.Keys(touched)
		slices.Sort(ids)
		publish(ctx, s.publisher, amqp.ReasonReconciled, ids, res.Rewritten)
	}
	return res, nil
}

func (s *FixService) FixRuns(ctx context.Context, status storage.FixRunStatus) ([]storage.FixRun, error) {
	return s.store.ListFixRuns(ctx, status)
}

func (s *FixService) load(ctx context.Context) ([]core.Instrument, []core.LedgerEntry, error) {
	instruments, err := s.store.ListInstruments(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list instruments: %w", err)
	}
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list entries: %w", err)
	}
	return instruments, entries, nil
}

func sameCycle(a, b core.PaymentCycleResult) bool {
	return a.ScheduledPayDate.Equal(b.ScheduledPayDate) &&
		a.ClosingDate.Equal(b.ClosingDate) &&
		a.OriginalPaymentDate.Equal(b.OriginalPaymentDate) &&
		a.IsAdjusted == b.IsAdjusted
}
