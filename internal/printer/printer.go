package printer

import (
	"time"

	"github.com/slok/deploywatch/internal/model"
)

// Printer knows how to print operation information in different formats.
type Printer interface {
	// PrintUpdate prints a session update. Log lines already printed by a previous
	// update are not printed again.
	PrintUpdate(u model.Update) error
	PrintResult(r Result) error
	PrintInspection(i Inspection) error
	PrintTemplateList(templates []model.Template) error
	PrintMessage(msg string) error
}

// Result is the outcome of a watched operation.
type Result struct {
	SessionID  string
	State      model.SessionState
	StartedAt  time.Time
	FinishedAt time.Time
}

// Inspection is the classification of a captured log file.
type Inspection struct {
	Path           string
	LineCount      int
	Classification model.Classification
	Progress       model.Progress
	Status         model.Status
	Reason         model.Reason
}
