package printer

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/slok/deploywatch/internal/model"
)

// TablePrinter prints operation information in a human friendly format.
// Updates are streamed: only the log lines not printed yet are written.
type TablePrinter struct {
	writer io.Writer

	mu           sync.Mutex
	printedLines int
	lastStatus   model.Status
	lastDone     int
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w, lastDone: -1}
}

// PrintUpdate prints the new log lines of the update and a progress line when the
// status or the completed steps changed.
func (t *TablePrinter) PrintUpdate(u model.Update) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(u.Lines) < t.printedLines {
		fmt.Fprintln(t.writer, "--- log buffer was truncated by the backend ---")
		t.printedLines = 0
	}
	for _, l := range u.Lines[t.printedLines:] {
		fmt.Fprintf(t.writer, "  | %s\n", l)
	}
	t.printedLines = len(u.Lines)

	st := u.State
	if st.Status == t.lastStatus && st.CompletedStepCount == t.lastDone {
		return nil
	}
	t.lastStatus = st.Status
	t.lastDone = st.CompletedStepCount

	fmt.Fprintf(t.writer, "==> %s %s\n", st.Status, ProgressBar(st.Progress()))

	return nil
}

// PrintResult prints the summary of a finished operation.
func (t *TablePrinter) PrintResult(r Result) error {
	st := r.State

	fmt.Fprintln(t.writer)
	fmt.Fprintf(t.writer, "Operation:  %s\n", st.OperationID)
	fmt.Fprintf(t.writer, "Session:    %s\n", r.SessionID)
	fmt.Fprintf(t.writer, "Status:     %s\n", st.Status)
	if st.Reason != model.ReasonNone {
		fmt.Fprintf(t.writer, "Reason:     %s\n", st.Reason)
	}
	fmt.Fprintf(t.writer, "Progress:   %s\n", ProgressBar(st.Progress()))
	fmt.Fprintf(t.writer, "Ticks:      %d\n", st.TotalTicks)

	if st.LastClassification.FailureLine != "" {
		fmt.Fprintf(t.writer, "Failure:    %s\n", st.LastClassification.FailureLine)
	}
	if st.LastError != "" {
		fmt.Fprintf(t.writer, "Last error: %s\n", st.LastError)
	}

	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(r.FinishedAt))
		if !r.StartedAt.IsZero() {
			fmt.Fprintf(t.writer, "Elapsed:    %s\n", FormatElapsed(r.FinishedAt.Sub(r.StartedAt)))
		}
	}

	return nil
}

// PrintInspection prints the classification of a captured log.
func (t *TablePrinter) PrintInspection(i Inspection) error {
	c := i.Classification

	fmt.Fprintf(t.writer, "File:             %s\n", i.Path)
	fmt.Fprintf(t.writer, "Lines:            %d\n", i.LineCount)
	fmt.Fprintf(t.writer, "Status:           %s\n", i.Status)
	if i.Reason != model.ReasonNone {
		fmt.Fprintf(t.writer, "Reason:           %s\n", i.Reason)
	}
	fmt.Fprintf(t.writer, "Progress:         %s\n", ProgressBar(i.Progress))
	fmt.Fprintf(t.writer, "Failure:          %s\n", yesNo(c.HasFailure))
	if c.FailureLine != "" {
		fmt.Fprintf(t.writer, "Failure line:     %s\n", c.FailureLine)
	}
	fmt.Fprintf(t.writer, "Actively running: %s\n", yesNo(c.IsActivelyRunning))
	fmt.Fprintf(t.writer, "Final success:    %s\n", yesNo(c.HasFinalSuccess))
	fmt.Fprintf(t.writer, "Recent step done: %s\n", yesNo(c.HasRecentStepCompletion))

	return nil
}

// PrintTemplateList prints templates in a table format.
func (t *TablePrinter) PrintTemplateList(templates []model.Template) error {
	if len(templates) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tKIND\tSTEPS\tDESCRIPTION")
	for _, tpl := range templates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tpl.Name, tpl.Kind, strings.Join(tpl.Steps, ","), tpl.Description)
	}

	return nil
}

// PrintMessage prints a simple message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
