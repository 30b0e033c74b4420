package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pthm/sqlstride/pkg/migrator"
	"github.com/pthm/sqlstride/pkg/parser"
)

var (
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	appliedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	summaryStyle = lipgloss.NewStyle().Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// styledReporter prints one colored status line per step. Dry-run SQL goes
// through the plain migrator.TextReporter so it stays copy-pasteable.
type styledReporter struct {
	w     io.Writer
	plain *migrator.TextReporter
}

func newReporter(w io.Writer) migrator.Reporter {
	if quiet {
		return nil
	}
	return &styledReporter{w: w, plain: migrator.NewTextReporter(w)}
}

func (r *styledReporter) Skipped(step parser.Step) {
	_, _ = fmt.Fprintf(r.w, "%s %s\n", statusLabel("skip", skipStyle), skipStyle.Render(step.String()))
}

func (r *styledReporter) Applied(step migrator.PlannedStep, elapsed time.Duration) {
	_, _ = fmt.Fprintf(r.w, "%s %s %s\n",
		statusLabel("applied", appliedStyle), step.Step, faintStyle.Render(elapsed.Round(time.Millisecond).String()))
}

func (r *styledReporter) Previewed(step migrator.PlannedStep) {
	r.plain.Previewed(step)
}

func (r *styledReporter) Failed(step migrator.PlannedStep, err error) {
	_, _ = fmt.Fprintf(r.w, "%s %s %s\n", statusLabel("failed", errorStyle), step.Step, faintStyle.Render(err.Error()))
}

func (r *styledReporter) Summary(res migrator.Result) {
	style := summaryStyle
	if res.Failed != nil {
		style = errorStyle
	}
	_, _ = fmt.Fprintln(r.w, style.Render(migrator.SummaryLine(res)))
}

// statusLabel renders a fixed-width label for status listings.
func statusLabel(label string, style lipgloss.Style) string {
	return style.Render(fmt.Sprintf("%-8s", label))
}
