package printer

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/slok/deploywatch/internal/model"
)

// JSONPrinter prints operation information in JSON format. Updates are printed
// as one JSON object per line so they can be streamed.
type JSONPrinter struct {
	writer io.Writer

	mu           sync.Mutex
	printedLines int
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type progressOutput struct {
	Done    int  `json:"done"`
	Total   int  `json:"total"`
	Percent *int `json:"percent"`
}

func mapProgress(p model.Progress) progressOutput {
	out := progressOutput{Done: p.Done, Total: p.Total}
	if pct, ok := p.Percent(); ok {
		out.Percent = &pct
	}
	return out
}

type updateOutput struct {
	SessionID   string         `json:"session_id"`
	OperationID string         `json:"operation_id"`
	Status      string         `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Tick        int            `json:"tick"`
	Progress    progressOutput `json:"progress"`
	NewLines    []string       `json:"new_lines"`
	LastError   string         `json:"last_error,omitempty"`
	At          time.Time      `json:"at"`
}

type resultOutput struct {
	SessionID   string         `json:"session_id"`
	OperationID string         `json:"operation_id"`
	Status      string         `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Progress    progressOutput `json:"progress"`
	TotalTicks  int            `json:"total_ticks"`
	FailureLine string         `json:"failure_line,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

type classificationOutput struct {
	HasFailure              bool   `json:"has_failure"`
	FailureLine             string `json:"failure_line,omitempty"`
	CompletedStepCount      int    `json:"completed_step_count"`
	IsActivelyRunning       bool   `json:"is_actively_running"`
	HasFinalSuccess         bool   `json:"has_final_success"`
	HasRecentStepCompletion bool   `json:"has_recent_step_completion"`
}

type inspectionOutput struct {
	Path           string               `json:"path"`
	LineCount      int                  `json:"line_count"`
	Status         string               `json:"status"`
	Reason         string               `json:"reason,omitempty"`
	Progress       progressOutput       `json:"progress"`
	Classification classificationOutput `json:"classification"`
}

type templateOutput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Kind        string   `json:"kind"`
	Steps       []string `json:"steps"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintUpdate prints the update as a single line JSON object with the log lines
// not printed yet.
func (j *JSONPrinter) PrintUpdate(u model.Update) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(u.Lines) < j.printedLines {
		j.printedLines = 0
	}
	newLines := append([]string{}, u.Lines[j.printedLines:]...)
	j.printedLines = len(u.Lines)

	st := u.State
	out := updateOutput{
		SessionID:   u.SessionID,
		OperationID: st.OperationID,
		Status:      string(st.Status),
		Reason:      string(st.Reason),
		Tick:        st.TotalTicks,
		Progress:    mapProgress(st.Progress()),
		NewLines:    newLines,
		LastError:   st.LastError,
		At:          u.At,
	}

	return json.NewEncoder(j.writer).Encode(out)
}

// PrintResult prints the summary of a finished operation.
func (j *JSONPrinter) PrintResult(r Result) error {
	st := r.State
	out := resultOutput{
		SessionID:   r.SessionID,
		OperationID: st.OperationID,
		Status:      string(st.Status),
		Reason:      string(st.Reason),
		Progress:    mapProgress(st.Progress()),
		TotalTicks:  st.TotalTicks,
		FailureLine: st.LastClassification.FailureLine,
		LastError:   st.LastError,
		StartedAt:   timePtr(r.StartedAt),
		FinishedAt:  timePtr(r.FinishedAt),
	}

	return j.encode(out)
}

// PrintInspection prints the classification of a captured log.
func (j *JSONPrinter) PrintInspection(i Inspection) error {
	c := i.Classification
	out := inspectionOutput{
		Path:      i.Path,
		LineCount: i.LineCount,
		Status:    string(i.Status),
		Reason:    string(i.Reason),
		Progress:  mapProgress(i.Progress),
		Classification: classificationOutput{
			HasFailure:              c.HasFailure,
			FailureLine:             c.FailureLine,
			CompletedStepCount:      c.CompletedStepCount,
			IsActivelyRunning:       c.IsActivelyRunning,
			HasFinalSuccess:         c.HasFinalSuccess,
			HasRecentStepCompletion: c.HasRecentStepCompletion,
		},
	}

	return j.encode(out)
}

// PrintTemplateList prints templates in JSON format.
func (j *JSONPrinter) PrintTemplateList(templates []model.Template) error {
	items := make([]templateOutput, 0, len(templates))
	for _, t := range templates {
		steps := t.Steps
		if steps == nil {
			steps = []string{}
		}
		items = append(items, templateOutput{
			Name:        t.Name,
			Description: t.Description,
			Kind:        string(t.Kind),
			Steps:       steps,
		})
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
