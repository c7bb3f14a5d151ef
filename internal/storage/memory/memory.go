// Package memory is an in-process storage.Store for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"payplan/internal/core"
	"payplan/internal/storage"
)

type Store struct {
	mu          sync.Mutex
	accounts    map[string]core.Account
	instruments map[string]core.Instrument
	entries     map[string]core.LedgerEntry
	templates   map[string]core.RecurringTemplate
	fixRuns     map[string]storage.FixRun
	now         func() time.Time

	// FailApply makes ApplyFix fail after validation, for exercising
	// failure paths.
	FailApply error
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:    make(map[string]core.Account),
		instruments: make(map[string]core.Instrument),
		entries:     make(map[string]core.LedgerEntry),
		templates:   make(map[string]core.RecurringTemplate),
		fixRuns:     make(map[string]storage.FixRun),
		now:         time.Now,
	}
}

// NewFromFiles seeds a store from seed_accounts.txt ("id,name") and
// seed_instruments.txt ("id,label,kind,account,closing,payment,shift,adjust")
// under base. Missing files leave the store empty.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_accounts.txt")) {
		parts := splitFields(line, 2)
		if parts == nil {
			return nil, fmt.Errorf("seed account %q: expected id,name", line)
		}
		s.accounts[parts[0]] = core.Account{ID: parts[0], Name: parts[1]}
	}
	for _, line := range readLines(filepath.Join(base, "seed_instruments.txt")) {
		in, err := parseInstrument(line)
		if err != nil {
			return nil, err
		}
		s.instruments[in.ID] = in
	}
	return s, nil
}

func parseInstrument(line string) (core.Instrument, error) {
	parts := splitFields(line, 8)
	if parts == nil {
		return core.Instrument{}, fmt.Errorf("seed instrument %q: expected 8 fields", line)
	}
	in := core.Instrument{ID: parts[0], Label: parts[1], Kind: core.InstrumentKind(parts[2]), AccountID: parts[3]}
	var err error
	if parts[4] != "" {
		if in.Billing.ClosingDay, err = core.ParseDayToken(parts[4]); err != nil {
			return core.Instrument{}, fmt.Errorf("seed instrument %s: %w", in.ID, err)
		}
	}
	if parts[5] != "" {
		if in.Billing.PaymentDay, err = core.ParseDayToken(parts[5]); err != nil {
			return core.Instrument{}, fmt.Errorf("seed instrument %s: %w", in.ID, err)
		}
	}
	if in.Billing.PaymentMonthShift, err = strconv.Atoi(parts[6]); err != nil {
		return core.Instrument{}, fmt.Errorf("seed instrument %s: shift: %w", in.ID, err)
	}
	if in.Billing.AdjustWeekend, err = strconv.ParseBool(parts[7]); err != nil {
		return core.Instrument{}, fmt.Errorf("seed instrument %s: adjust: %w", in.ID, err)
	}
	if err := in.Validate(); err != nil {
		return core.Instrument{}, fmt.Errorf("seed instrument %s: %w", in.ID, err)
	}
	return in, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.accounts), nil
}

func (s *Store) UpsertAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) ListInstruments(_ context.Context) ([]core.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.instruments), nil
}

func (s *Store) GetInstrument(_ context.Context, id string) (core.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.instruments[id]
	if !ok {
		return core.Instrument{}, &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: id}
	}
	return in, nil
}

func (s *Store) UpsertInstrument(_ context.Context, in core.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[in.AccountID]; !ok {
		return &core.UnresolvedReferenceError{Kind: core.RefAccount, ID: in.AccountID, ItemID: in.ID}
	}
	s.instruments[in.ID] = in
	return nil
}

func (s *Store) UpdateInstrumentBilling(_ context.Context, id string, cfg core.BillingConfig, cycles map[string]core.PaymentCycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(map[string]core.BillingConfig{id: cfg}, cycles); err != nil {
		return err
	}
	s.applyLocked(map[string]core.BillingConfig{id: cfg}, cycles)
	return nil
}

func (s *Store) CreateEntry(_ context.Context, e core.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return fmt.Errorf("entry %s already exists", e.ID)
	}
	in, ok := s.instruments[e.InstrumentID]
	if !ok {
		return &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: e.InstrumentID, ItemID: e.ID}
	}
	e.InstrumentKind = in.Kind
	s.entries[e.ID] = e
	return nil
}

func (s *Store) GetEntry(_ context.Context, id string) (core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (s *Store) UpdateEntry(_ context.Context, e core.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; !ok {
		return fmt.Errorf("entry %s: %w", e.ID, core.ErrNotFound)
	}
	in, ok := s.instruments[e.InstrumentID]
	if !ok {
		return &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: e.InstrumentID, ItemID: e.ID}
	}
	e.InstrumentKind = in.Kind
	s.entries[e.ID] = e
	return nil
}

func (s *Store) ListEntries(_ context.Context) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(core.LedgerEntry) bool { return true }), nil
}

func (s *Store) ListEntriesByInstrument(_ context.Context, instrumentID string) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(e core.LedgerEntry) bool { return e.InstrumentID == instrumentID }), nil
}

func (s *Store) ListEntriesScheduledBetween(_ context.Context, from, to core.Date) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(e core.LedgerEntry) bool {
		return e.IsScheduled() && !e.ScheduledPayDate.Before(from) && !e.ScheduledPayDate.After(to)
	}), nil
}

func (s *Store) UpdateCycles(_ context.Context, cycles map[string]core.PaymentCycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(nil, cycles); err != nil {
		return err
	}
	s.applyLocked(nil, cycles)
	return nil
}

func (s *Store) ListTemplates(_ context.Context) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.templates), nil
}

func (s *Store) CreateTemplate(_ context.Context, t core.RecurringTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instruments[t.InstrumentID]; !ok {
		return &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: t.InstrumentID, ItemID: t.ID}
	}
	s.templates[t.ID] = t
	return nil
}

func (s *Store) MarkTemplateExecuted(_ context.Context, id string, on core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	t.LastExecution = on
	s.templates[id] = t
	return nil
}

func (s *Store) CreateFixRun(_ context.Context, run storage.FixRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	run.CreatedAt, run.UpdatedAt = now, now
	s.fixRuns[run.ID] = run
	return nil
}

func (s *Store) ApplyFix(_ context.Context, runID string, configs map[string]core.BillingConfig, cycles map[string]core.PaymentCycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.fixRuns[runID]
	if !ok {
		return fmt.Errorf("fix run %s: %w", runID, core.ErrNotFound)
	}
	if err := s.checkLocked(configs, cycles); err != nil {
		return err
	}
	if s.FailApply != nil {
		return s.FailApply
	}
	s.applyLocked(configs, cycles)
	run.Status = storage.FixRunCompleted
	run.UpdatedAt = s.now().UTC()
	s.fixRuns[runID] = run
	return nil
}

func (s *Store) SetFixRunStatus(_ context.Context, id string, status storage.FixRunStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.fixRuns[id]
	if !ok {
		return fmt.Errorf("fix run %s: %w", id, core.ErrNotFound)
	}
	run.Status = status
	run.Error = errMsg
	run.UpdatedAt = s.now().UTC()
	s.fixRuns[id] = run
	return nil
}

func (s *Store) ListFixRuns(_ context.Context, status storage.FixRunStatus) ([]storage.FixRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.FixRun
	for _, run := range s.fixRuns {
		if run.Status == status {
			out = append(out, run)
		}
	}
	slices.SortFunc(out, func(a, b storage.FixRun) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// checkLocked verifies every referenced record exists so a write is all or nothing.
func (s *Store) checkLocked(configs map[string]core.BillingConfig, cycles map[string]core.PaymentCycleResult) error {
	for id := range configs {
		if _, ok := s.instruments[id]; !ok {
			return &core.UnresolvedReferenceError{Kind: core.RefInstrument, ID: id}
		}
	}
	for id := range cycles {
		if _, ok := s.entries[id]; !ok {
			return fmt.Errorf("update cycle of entry %s: %w", id, core.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) applyLocked(configs map[string]core.BillingConfig, cycles map[string]core.PaymentCycleResult) {
	for id, cfg := range configs {
		in := s.instruments[id]
		in.Billing = cfg
		s.instruments[id] = in
	}
	for id, c := range cycles {
		s.entries[id] = s.entries[id].WithCycle(c)
	}
}

func (s *Store) filterLocked(keep func(core.LedgerEntry) bool) []core.LedgerEntry {
	var out []core.LedgerEntry
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b core.LedgerEntry) int {
		if c := a.OccurrenceDate.Compare(b.OccurrenceDate.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func sortedValues[T any](m map[string]T) []T {
	keys := maps.Keys(m)
	slices.Sort(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// splitFields splits a comma separated seed line into exactly n trimmed fields.
func splitFields(line string, n int) []string {
	parts := strings.Split(line, ",")
	if len(parts) != n {
		return nil
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
