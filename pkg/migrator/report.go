package migrator

import (
	"fmt"
	"io"
	"time"

	"github.com/pthm/sqlstride/pkg/parser"
)

// Result summarizes a run.
type Result struct {
	DryRun    bool
	Applied   []parser.Key
	Previewed []parser.Key
	Skipped   int

	// Failed is the step that stopped the run, if any.
	Failed *parser.Key
}

// Reporter receives one call per step and a final summary. Reporters write
// user-facing output; diagnostics go to the engine's logger.
type Reporter interface {
	Skipped(step parser.Step)
	Applied(step PlannedStep, elapsed time.Duration)
	Previewed(step PlannedStep)
	Failed(step PlannedStep, err error)
	Summary(r Result)
}

// TextReporter writes plain status lines. In dry-run mode the rendered SQL
// of each pending step follows its status line, so the output can be saved
// and reviewed as a script.
type TextReporter struct {
	w io.Writer
}

// NewTextReporter returns a Reporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) Skipped(step parser.Step) {
	_, _ = fmt.Fprintf(r.w, "skip     %s\n", step)
}

func (r *TextReporter) Applied(step PlannedStep, elapsed time.Duration) {
	_, _ = fmt.Fprintf(r.w, "applied  %s (%s)\n", step.Step, elapsed.Round(time.Millisecond))
}

func (r *TextReporter) Previewed(step PlannedStep) {
	_, _ = fmt.Fprintf(r.w, "pending  %s\n", step.Step)
	_, _ = fmt.Fprintf(r.w, "-- ============================================================\n")
	_, _ = fmt.Fprintf(r.w, "-- %s\n", step.Step)
	_, _ = fmt.Fprintf(r.w, "-- checksum: %s\n", step.Checksum)
	_, _ = fmt.Fprintf(r.w, "-- ============================================================\n")
	_, _ = fmt.Fprintf(r.w, "%s\n\n", step.Rendered)
}

func (r *TextReporter) Failed(step PlannedStep, err error) {
	_, _ = fmt.Fprintf(r.w, "failed   %s: %v\n", step.Step, err)
}

func (r *TextReporter) Summary(res Result) {
	_, _ = fmt.Fprintln(r.w, SummaryLine(res))
}

// SummaryLine formats the final line of a run.
func SummaryLine(res Result) string {
	switch {
	case res.Failed != nil:
		return fmt.Sprintf("failed on %s after %d step(s) applied, %d already applied", *res.Failed, len(res.Applied), res.Skipped)
	case res.DryRun && len(res.Previewed) == 0, !res.DryRun && len(res.Applied) == 0:
		return fmt.Sprintf("up to date (%d step(s) already applied)", res.Skipped)
	case res.DryRun:
		return fmt.Sprintf("dry run: %d step(s) pending, %d already applied", len(res.Previewed), res.Skipped)
	default:
		return fmt.Sprintf("applied %d step(s), %d already applied", len(res.Applied), res.Skipped)
	}
}

type discardReporter struct{}

func (discardReporter) Skipped(parser.Step) {}
func (discardReporter) Applied(PlannedStep, time.Duration) {}
func (discardReporter) Previewed(PlannedStep) {}
func (discardReporter) Failed(PlannedStep, error) {}
func (discardReporter) Summary(Result) {}
