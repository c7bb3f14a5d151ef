package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"payplan/internal/analyzer"
	"payplan/internal/backend"
	"payplan/internal/billing"
	"payplan/internal/config"
	"payplan/internal/core"
	"payplan/internal/storage"
)

type Globals struct {
	JSON bool `help:"Print JSON instead of tables."`
}

type Commands struct {
	Globals

	Cycle     CycleCmd     `cmd:"" help:"Compute the payment cycle of one occurrence."`
	Analyze   AnalyzeCmd   `cmd:"" help:"List instruments with risky billing configurations."`
	Propose   ProposeCmd   `cmd:"" help:"Print the proposed fix set as JSON."`
	Preview   PreviewCmd   `cmd:"" help:"Show which entries a fix set would move."`
	Apply     ApplyCmd     `cmd:"" help:"Apply a fix set and rewrite the affected entries."`
	Reconcile ReconcileCmd `cmd:"" help:"Recompute stored scheduled dates and repair stale ones."`
	Runs      RunsCmd      `cmd:"" help:"List recorded fix runs."`
	Month     MonthCmd     `cmd:"" help:"Print the monthly payment schedule."`
	Migrate   MigrateCmd   `cmd:"" help:"Manage the SQLite schema."`
}

// openBackend builds the backend the server would use, from the same
// environment.
func openBackend(ctx context.Context) (*backend.Backend, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	// The CLI never consumes events and publishing is best effort.
	bcfg.AMQPURL = ""
	return backend.NewFactory(slog.Default()).CreateBackend(ctx, bcfg)
}

func closeBackend(b *backend.Backend) {
	if err := b.Close(); err != nil {
		slog.Warn("Backend close error", "error", err)
	}
}

type CycleCmd struct {
	Date       string `arg:"" help:"Occurrence date (YYYY-MM-DD)."`
	Instrument string `help:"Use the stored configuration of this instrument." short:"i"`
	Kind       string `help:"Instrument kind when no instrument is given." enum:"card,direct_debit" default:"card"`
	Closing    string `help:"Closing day token: 1-31 or 'month-end'." default:"month-end"`
	Payment    string `help:"Payment day token: 1-31 or 'month-end'." default:"10"`
	Shift      int    `help:"Months between closing and payment." default:"1"`
	Adjust     bool   `help:"Move weekend and holiday debits to the next business day." default:"true" negatable:""`
}

func (cmd *CycleCmd) Run(ctx *kong.Context, globals *Globals) error {
	occurrence, err := core.ParseDate(cmd.Date)
	if err != nil {
		return err
	}

	var result core.PaymentCycleResult
	if cmd.Instrument != "" {
		b, err := openBackend(context.Background())
		if err != nil {
			return err
		}
		defer closeBackend(b)
		result, err = b.Instruments.Cycle(context.Background(), cmd.Instrument, occurrence)
		if err != nil {
			return err
		}
	} else {
		result, err = cmd.compute(occurrence)
		if err != nil {
			return err
		}
	}

	if globals.JSON {
		return writeJSON(ctx.Stdout, result)
	}
	printCycle(ctx.Stdout, occurrence, result)
	return nil
}

func (cmd *CycleCmd) compute(occurrence core.Date) (core.PaymentCycleResult, error) {
	holidays, err := config.Load().HolidayCalendar()
	if err != nil {
		return core.PaymentCycleResult{}, err
	}
	calc := billing.Calculator{Holidays: holidays}

	if core.InstrumentKind(cmd.Kind) == core.KindDirectDebit {
		return calc.DirectDebitCycle(occurrence, cmd.Adjust), nil
	}
	closing, err := core.ParseDayToken(cmd.Closing)
	if err != nil {
		return core.PaymentCycleResult{}, err
	}
	payment, err := core.ParseDayToken(cmd.Payment)
	if err != nil {
		return core.PaymentCycleResult{}, err
	}
	return calc.CardCycle(occurrence, core.BillingConfig{
		ClosingDay:        closing,
		PaymentDay:        payment,
		PaymentMonthShift: cmd.Shift,
		AdjustWeekend:     cmd.Adjust,
	})
}

type AnalyzeCmd struct{}

func (cmd *AnalyzeCmd) Run(ctx *kong.Context, globals *Globals) error {
	b, err := openBackend(context.Background())
	if err != nil {
		return err
	}
	defer closeBackend(b)

	analysis, err := b.Fixes.Analyze(context.Background())
	if err != nil {
		return err
	}
	if globals.JSON {
		return writeJSON(ctx.Stdout, analysis)
	}
	printAnalysis(ctx.Stdout, analysis)
	return nil
}

// patchFile is the on-disk form of a fix set, the same body the HTTP API
// accepts.
type patchFile struct {
	Patches map[string]analyzer.ConfigPatch `json:"patches"`
}

type ProposeCmd struct{}

func (cmd *ProposeCmd) Run(ctx *kong.Context) error {
	b, err := openBackend(context.Background())
	if err != nil {
		return err
	}
	defer closeBackend(b)

	patches, err := b.Fixes.Propose(context.Background())
	if err != nil {
		return err
	}
	return writeJSON(ctx.Stdout, patchFile{Patches: patches})
}

// FixSetFlags selects the fix set: a JSON file, or the proposed fixes.
type FixSetFlags struct {
	Patches string `help:"JSON file with a fix set. Defaults to the proposed fixes." type:"existingfile" short:"p"`
}

func (f FixSetFlags) load(ctx context.Context, b *backend.Backend) (map[string]analyzer.ConfigPatch, error) {
	if f.Patches == "" {
		return b.Fixes.Propose(ctx)
	}
	raw, err := os.ReadFile(f.Patches)
	if err != nil {
		return nil, err
	}
	var pf patchFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Patches, err)
	}
	return pf.Patches, nil
}

type PreviewCmd struct {
	FixSetFlags
}

func (cmd *PreviewCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx := context.Background()
	b, err := openBackend(runCtx)
	if err != nil {
		return err
	}
	defer closeBackend(b)

	patches, err := cmd.load(runCtx, b)
	if err != nil {
		return err
	}
	preview, err := b.Fixes.Preview(runCtx, patches)
	if err != nil {
		return err
	}
	if globals.JSON {
		return writeJSON(ctx.Stdout, preview)
	}
	printPreview(ctx.Stdout, preview)
	return nil
}

type ApplyCmd struct {
	FixSetFlags
	Yes bool `help:"Apply the fix set. Without it only the preview is printed." short:"y"`
}

var errNotConfirmed = errors.New("fix set not applied: pass --yes to confirm")

func (cmd *ApplyCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx := context.Background()
	b, err := openBackend(runCtx)
	if err != nil {
		return err
	}
	defer closeBackend(b)

	patches, err := cmd.load(runCtx, b)
	if err != nil {
		return err
	}
	if !cmd.Yes {
		preview, err := b.Fixes.Preview(runCtx, patches)
		if err != nil {
			return err
		}
		printPreview(ctx.Stdout, preview)
		return errNotConfirmed
	}

	result, err := b.Fixes.Apply(runCtx, patches)
	if err != nil {
		if result.RunID != "" {
			printInfof(ctx.Stderr, "run %s recorded as %s", result.RunID, result.Status)
		}
		return err
	}
	if globals.JSON {
		return writeJSON(ctx.Stdout, result)
	}
	printPreview(ctx.Stdout, result.Preview)
	printSuccess(ctx.Stdout, fmt.Sprintf("run %s %s", result.RunID, result.Status))
	return nil
}

type ReconcileCmd struct{}

func (cmd *ReconcileCmd) Run(ctx *kong.Context, globals *Globals) error {
	b, err := openBackend(context.Background())
	if err != nil {
		return err
	}
	defer closeBackend(b)

	result, err := b.Fixes.Reconcile(context.Background())
	if err != nil {
		return err
	}
	if globals.JSON {
		return writeJSON(ctx.Stdout, result)
	}
	printSuccess(ctx.Stdout, fmt.Sprintf("checked %d entries, rewrote %d, reconciled %d runs",
		result.Checked, result.Rewritten, result.RunsReconciled))
	for _, id := range result.Unresolved {
		printError(ctx.Stdout, "unresolved instrument for entry "+id)
	}
	return nil
}

type RunsCmd struct {
	Status string `help:"Run status to list." enum:"pending,completed,failed,reconciled" default:"pending"`
}

func (cmd *RunsCmd) Run(ctx *kong.Context, globals *Globals) error {
	b, err := openBackend(context.Background())
	if err != nil {
		return err
	}
	defer closeBackend(b)

	runs, err := b.Fixes.FixRuns(context.Background(), storage.FixRunStatus(cmd.Status))
	if err != nil {
		return err
	}
	if globals.JSON {
		return writeJSON(ctx.Stdout, runs)
	}
	printRuns(ctx.Stdout, runs)
	return nil
}

type MonthCmd struct {
	Year  int  `help:"Year, defaults to the current one."`
	Month int  `help:"Month 1-12, defaults to the current one."`
	Days  bool `help:"Print per-day totals instead of the cross-table."`
}

func (cmd *MonthCmd) Run(ctx *kong.Context, globals *Globals) error {
	now := time.Now()
	year, month := cmd.Year, cmd.Month
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}

	runCtx := context.Background()
	b, err := openBackend(runCtx)
	if err != nil {
		return err
	}
	defer closeBackend(b)

	if cmd.Days {
		totals, err := b.Schedule.DayTotals(runCtx, year, month)
		if err != nil {
			return err
		}
		if globals.JSON {
			return writeJSON(ctx.Stdout, totals)
		}
		printDayTotals(ctx.Stdout, totals)
		return nil
	}

	view, err := b.Schedule.MonthView(runCtx, year, month)
	if err != nil {
		return err
	}
	if globals.JSON {
		return writeJSON(ctx.Stdout, view)
	}
	printView(ctx.Stdout, view)
	return nil
}

type MigrateCmd struct {
	Up      MigrateUpCmd      `cmd:"" help:"Apply pending migrations."`
	Version MigrateVersionCmd `cmd:"" help:"Show the applied schema version."`
}

type MigrateFlags struct {
	DB string `help:"SQLite database path. Defaults to SQLITE_DB_PATH." type:"path"`
}

func (f MigrateFlags) path() string {
	if f.DB != "" {
		return f.DB
	}
	return config.Load().SQLiteDBPath
}

type MigrateUpCmd struct {
	MigrateFlags
}

func (cmd *MigrateUpCmd) Run(ctx *kong.Context) error {
	path := cmd.path()
	if err := storage.RunMigrations(path); err != nil {
		return err
	}
	printSuccess(ctx.Stdout, "schema up to date: "+pathStyle.Render(path))
	return nil
}

type MigrateVersionCmd struct {
	MigrateFlags
}

func (cmd *MigrateVersionCmd) Run(ctx *kong.Context) error {
	version, dirty, err := storage.MigrationVersion(cmd.path())
	if err != nil {
		return err
	}
	if dirty {
		printError(ctx.Stdout, fmt.Sprintf("schema version %d is dirty", version))
		return nil
	}
	printInfof(ctx.Stdout, "schema version %d", version)
	return nil
}
