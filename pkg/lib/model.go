package lib

import (
	"errors"
	"time"

	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/session"
)

// Sentinel errors for use with [errors.Is].
var (
	// ErrNotFound is returned when a template does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when the input is invalid.
	ErrNotValid = errors.New("not valid")
	// ErrTransport is returned when the backend could not be reached.
	ErrTransport = errors.New("transport error")
)

// BackendType identifies the operations backend implementation.
type BackendType string

const (
	// BackendHTTP talks to the operations HTTP API at [Config].BackendURL.
	BackendHTTP BackendType = "http"

	// BackendFake runs scripted demo deployments in memory.
	// Use this for testing without a real backend.
	BackendFake BackendType = "fake"
)

// Status is the inferred state of a watched operation.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Reason explains why an operation reached its final status.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonBackend             Reason = "backend"
	ReasonConfirmedSuccess    Reason = "confirmed_success"
	ReasonFailureMarker       Reason = "failure_marker"
	ReasonTransport           Reason = "transport"
	ReasonAmbiguousCompletion Reason = "ambiguous_completion"
	ReasonStall               Reason = "stall"
	ReasonTimeout             Reason = "timeout"
)

// OperationKind is the kind of backend action an operation runs.
type OperationKind string

const (
	OperationKindShell    OperationKind = "shell"
	OperationKindSystemd  OperationKind = "systemd"
	OperationKindDeploy   OperationKind = "deploy"
	OperationKindTemplate OperationKind = "template"
)

// Classification is the verdict of a log buffer.
type Classification struct {
	// HasFailure is true when a terminal failure marker is present in the recent lines.
	HasFailure bool
	// FailureLine is the most recent failure marker line.
	FailureLine string
	// CompletedStepCount is the number of distinct steps logged as completed.
	CompletedStepCount int
	// IsActivelyRunning is true when the recent lines show work in progress.
	IsActivelyRunning bool
	// HasFinalSuccess is true when the recent lines show the whole operation succeeded.
	HasFinalSuccess bool
	// HasRecentStepCompletion is true when a step completed in the recent lines.
	HasRecentStepCompletion bool
}

// Progress is the step based completion of an operation. Total is 0 when unknown.
type Progress struct {
	Done  int
	Total int
	// Percent is the completion percentage, nil when the total is unknown.
	Percent *int
}

// SessionState is the state of a watched operation.
type SessionState struct {
	OperationID string
	Status      Status
	Reason      Reason
	Progress    Progress
	// TotalTicks is the number of log fetches.
	TotalTicks int
	// Classification is the verdict of the latest fetched log buffer.
	Classification Classification
	// LastError is the latest fetch error, empty after a successful fetch.
	LastError string
}

// Update is emitted after every log fetch of a watched operation.
type Update struct {
	SessionID string
	State     SessionState
	// Lines is the full log buffer of the operation.
	Lines []string
	At    time.Time
}

// Template is a multi-step deployment template.
type Template struct {
	Name        string
	Description string
	Kind        OperationKind
	Steps       []string
}

// Thresholds are the tick budgets a watch uses to decide when to give up.
// Zero values use the defaults.
type Thresholds struct {
	// ErrorTickWeight is how much a failed fetch uses of the error budget. Default: 5.
	ErrorTickWeight int
	// ErrorTickBudget is the budget of consecutive failed fetches. Default: 30.
	ErrorTickBudget int
	// StallPendingTicks is the silence tolerated with pending steps before warning. Default: 30.
	StallPendingTicks int
	// StallDoneTicks is the silence tolerated once all steps are done. Default: 10.
	StallDoneTicks int
	// StallCeilingTicks is the silence that always fails the watch. Default: 60.
	StallCeilingTicks int
	// MaxTicks is the maximum number of fetches of a watch. Default: 600.
	MaxTicks int
}

func (t Thresholds) toInternal() session.Thresholds {
	return session.Thresholds{
		ErrorTickWeight:   t.ErrorTickWeight,
		ErrorTickBudget:   t.ErrorTickBudget,
		StallPendingTicks: t.StallPendingTicks,
		StallDoneTicks:    t.StallDoneTicks,
		StallCeilingTicks: t.StallCeilingTicks,
		MaxTicks:          t.MaxTicks,
	}
}

func fromInternalClassification(c model.Classification) Classification {
	return Classification{
		HasFailure:              c.HasFailure,
		FailureLine:             c.FailureLine,
		CompletedStepCount:      c.CompletedStepCount,
		IsActivelyRunning:       c.IsActivelyRunning,
		HasFinalSuccess:         c.HasFinalSuccess,
		HasRecentStepCompletion: c.HasRecentStepCompletion,
	}
}

func fromInternalProgress(p model.Progress) Progress {
	res := Progress{Done: p.Done, Total: p.Total}
	if pct, ok := p.Percent(); ok {
		res.Percent = &pct
	}
	return res
}

func fromInternalSessionState(s model.SessionState) SessionState {
	return SessionState{
		OperationID:    s.OperationID,
		Status:         Status(s.Status),
		Reason:         Reason(s.Reason),
		Progress:       fromInternalProgress(s.Progress()),
		TotalTicks:     s.TotalTicks,
		Classification: fromInternalClassification(s.LastClassification),
		LastError:      s.LastError,
	}
}

func fromInternalUpdate(u model.Update) Update {
	lines := make([]string, len(u.Lines))
	copy(lines, u.Lines)

	return Update{
		SessionID: u.SessionID,
		State:     fromInternalSessionState(u.State),
		Lines:     lines,
		At:        u.At,
	}
}

func toInternalTemplate(t Template) model.Template {
	return model.Template{
		Name:        t.Name,
		Description: t.Description,
		Kind:        model.OperationKind(t.Kind),
		Steps:       append([]string{}, t.Steps...),
	}
}

func fromInternalTemplate(t model.Template) Template {
	return Template{
		Name:        t.Name,
		Description: t.Description,
		Kind:        OperationKind(t.Kind),
		Steps:       append([]string{}, t.Steps...),
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	case errors.Is(err, model.ErrTransport):
		return joinErrors(err, ErrTransport)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
