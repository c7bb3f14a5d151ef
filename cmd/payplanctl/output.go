package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"payplan/internal/analyzer"
	"payplan/internal/core"
	"payplan/internal/schedule"
	"payplan/internal/storage"
)

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D7D7", Dark: "#00D7D7"})
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		successStyle.Render(successSymbol),
		message,
	)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n",
		errorStyle.Render(errorSymbol),
		errorStyle.Render(message),
	)
}

func printInfof(w io.Writer, format string, args ...interface{}) {
	formatted := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(w, "%s %s\n",
		infoStyle.Render(infoSymbol),
		formatted,
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table renders left-aligned columns sized to their widest cell.
type table struct {
	headers []string
	rows    [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = style.Width(widths[i]).Render(cell)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	_, _ = fmt.Fprintln(w, line(t.headers, headerStyle))
	for _, row := range t.rows {
		_, _ = fmt.Fprintln(w, line(row, lipgloss.NewStyle()))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printCycle(w io.Writer, occurrence core.Date, r core.PaymentCycleResult) {
	t := &table{headers: []string{"occurrence", "closing", "original", "scheduled", "adjusted"}}
	closing := r.ClosingDate.String()
	if r.ClosingDate.IsZero() {
		closing = mutedStyle.Render("-")
	}
	t.add(occurrence.String(), closing, r.OriginalPaymentDate.String(), r.ScheduledPayDate.String(), yesNo(r.IsAdjusted))
	t.render(w)
}

func printAnalysis(w io.Writer, a analyzer.Analysis) {
	if len(a.ProblematicInstruments) == 0 {
		printSuccess(w, fmt.Sprintf("%d instruments checked, nothing to fix", a.Summary.Instruments))
		return
	}
	t := &table{headers: []string{"instrument", "label", "entries", "spilled", "reason"}}
	for _, f := range a.ProblematicInstruments {
		t.add(f.InstrumentID, f.Label, strconv.Itoa(f.Entries), strconv.Itoa(f.SpilledEntries), f.Reason)
	}
	t.render(w)
	_, _ = fmt.Fprintln(w)
	printError(w, fmt.Sprintf("%d of %d instruments need attention, %d entries affected",
		a.Summary.ProblematicCount, a.Summary.Instruments, a.Summary.AffectedEntries))
}

func describeConfig(c core.BillingConfig) string {
	return fmt.Sprintf("close %s, pay %s +%dm, adjust %s",
		c.ClosingDay, c.PaymentDay, c.PaymentMonthShift, yesNo(c.AdjustWeekend))
}

func printPreview(w io.Writer, p analyzer.Preview) {
	if len(p.PerInstrument) == 0 {
		printInfof(w, "empty fix set")
		return
	}
	instruments := &table{headers: []string{"instrument", "before", "after", "entries", "moved"}}
	for _, c := range p.PerInstrument {
		instruments.add(c.InstrumentID, describeConfig(c.Before), describeConfig(c.After),
			strconv.Itoa(c.Entries), strconv.Itoa(c.ChangedEntries))
	}
	instruments.render(w)

	if len(p.PerEntry) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	entries := &table{headers: []string{"entry", "instrument", "old date", "new date", "days"}}
	for _, d := range p.PerEntry {
		entries.add(d.EntryID, d.InstrumentID, d.OldDate.String(), d.NewDate.String(), fmt.Sprintf("%+d", d.DeltaDays))
	}
	entries.render(w)
}

func printRuns(w io.Writer, runs []storage.FixRun) {
	if len(runs) == 0 {
		printInfof(w, "no runs")
		return
	}
	t := &table{headers: []string{"run", "status", "changed", "updated", "error"}}
	for _, r := range runs {
		t.add(r.ID, string(r.Status), strconv.Itoa(r.ChangedEntries), r.UpdatedAt.Format("2006-01-02 15:04"), r.Error)
	}
	t.render(w)
}

func printView(w io.Writer, v schedule.View) {
	headers := append([]string{"date", "instrument"}, v.UniqueAccounts...)
	headers = append(headers, "total")
	t := &table{headers: headers}
	for _, row := range v.Rows {
		cells := []string{row.Date.String(), row.InstrumentLabel}
		for _, acc := range v.UniqueAccounts {
			amount, ok := row.AccountAmounts[acc]
			if !ok {
				cells = append(cells, mutedStyle.Render("-"))
				continue
			}
			cells = append(cells, amount.String())
		}
		t.add(append(cells, row.Total.String())...)
	}

	totals := []string{headerStyle.Render("total"), ""}
	for _, acc := range v.UniqueAccounts {
		totals = append(totals, v.AccountTotals[acc].String())
	}
	t.add(append(totals, headerStyle.Render(v.MonthTotal.String()))...)

	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%04d-%02d", v.Year, v.Month)))
	t.render(w)
}

func printDayTotals(w io.Writer, totals schedule.DayTotals) {
	t := &table{headers: []string{"date", "total", "cards", "bank", "scheduled", "items"}}
	for _, date := range totals.Dates() {
		d := totals.Days[date]
		t.add(date, d.TotalAmount.String(), d.CardTransactionTotal.String(), d.BankTransactionTotal.String(),
			d.ScheduleTotal.String(), strconv.Itoa(d.TransactionCount+d.ScheduleCount))
	}
	t.render(w)
	if totals.Skipped > 0 {
		printInfof(w, "%d items skipped", totals.Skipped)
	}
}
