package session

import (
	"fmt"

	"github.com/slok/deploywatch/internal/model"
)

// Thresholds are the tick budgets a session uses to decide when to give up. Ticks
// happen on a fixed cadence so they are also a wall clock budget. Stall budgets
// only count fetches where the buffer is unchanged and shows no activity.
type Thresholds struct {
	// ErrorTickWeight is how much a failed fetch adds to the error budget.
	ErrorTickWeight int
	// ErrorTickBudget is the error budget, exceeding it fails the session.
	ErrorTickBudget int
	// StallPendingTicks is the silence tolerated while steps are pending before warning.
	StallPendingTicks int
	// StallDoneTicks is the silence tolerated once all steps are logged but success is not confirmed.
	// It only applies when the step total is known, an unknown total (0) waits up to StallCeilingTicks.
	StallDoneTicks int
	// StallCeilingTicks is the silence that always fails the session.
	StallCeilingTicks int
	// MaxTicks is the absolute number of ticks a session can last.
	MaxTicks int
}

// DefaultThresholds returns the default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ErrorTickWeight:   5,
		ErrorTickBudget:   30,
		StallPendingTicks: 30,
		StallDoneTicks:    10,
		StallCeilingTicks: 60,
		MaxTicks:          600,
	}
}

func (t *Thresholds) defaults() error {
	d := DefaultThresholds()
	if t.ErrorTickWeight == 0 {
		t.ErrorTickWeight = d.ErrorTickWeight
	}
	if t.ErrorTickBudget == 0 {
		t.ErrorTickBudget = d.ErrorTickBudget
	}
	if t.StallPendingTicks == 0 {
		t.StallPendingTicks = d.StallPendingTicks
	}
	if t.StallDoneTicks == 0 {
		t.StallDoneTicks = d.StallDoneTicks
	}
	if t.StallCeilingTicks == 0 {
		t.StallCeilingTicks = d.StallCeilingTicks
	}
	if t.MaxTicks == 0 {
		t.MaxTicks = d.MaxTicks
	}

	if t.ErrorTickWeight < 0 || t.ErrorTickBudget < 0 || t.StallPendingTicks < 0 ||
		t.StallDoneTicks < 0 || t.StallCeilingTicks < 0 || t.MaxTicks < 0 {
		return fmt.Errorf("thresholds must be positive: %w", model.ErrNotValid)
	}

	if t.StallCeilingTicks < t.StallPendingTicks {
		return fmt.Errorf("stall ceiling (%d) can't be lower than the pending stall threshold (%d): %w", t.StallCeilingTicks, t.StallPendingTicks, model.ErrNotValid)
	}

	return nil
}

// Classifier classifies a log buffer.
type Classifier interface {
	Classify(lines []string) model.Classification
}

// TickOutcome is the result of a single fetch attempt.
type TickOutcome struct {
	Snapshot model.LogSnapshot
	Err      error
}

// Reducer is the session state machine. Reduce is a pure function of its inputs
// so the state machine can be tested without any scheduling.
type Reducer struct {
	thresholds Thresholds
	classifier Classifier
}

// NewReducer returns a new Reducer.
func NewReducer(th Thresholds, c Classifier) (*Reducer, error) {
	if err := th.defaults(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	return &Reducer{thresholds: th, classifier: c}, nil
}

// Thresholds returns the thresholds the reducer uses.
func (r *Reducer) Thresholds() Thresholds { return r.thresholds }

// NewState returns the initial state of a session.
func NewState(operationID string, totalSteps int) model.SessionState {
	return model.SessionState{
		OperationID:    operationID,
		Status:         model.StatusIdle,
		TotalStepCount: totalSteps,
	}
}

// Reduce applies a tick outcome to the session state and returns the new state.
// Terminal states are never changed.
func (r *Reducer) Reduce(st model.SessionState, out TickOutcome) model.SessionState {
	if st.Status.IsTerminal() {
		return st
	}

	st.Status = model.StatusRunning
	st.TotalTicks++
	st.TickCount++

	if out.Err != nil {
		return r.reduceFetchError(st, out.Err)
	}

	st.ErrorTicks = 0
	st.LastError = ""

	lines := out.Snapshot.Lines
	changed := len(lines) != st.LastObservedBufferLength
	if changed {
		st.TickCount = 0
		st.LastObservedBufferLength = len(lines)
	}

	cls := r.classifier.Classify(lines)
	st.LastClassification = cls
	st.CompletedStepCount = cls.CompletedStepCount

	switch out.Snapshot.Status {
	case model.BackendStatusSuccess:
		return finish(st, model.StatusSuccess, model.ReasonBackend)
	case model.BackendStatusFailed:
		return finish(st, model.StatusFailed, model.ReasonBackend)
	}

	stepsDone := st.CompletedStepCount >= st.TotalStepCount
	if stepsDone && cls.HasFinalSuccess {
		return finish(st, model.StatusSuccess, model.ReasonConfirmedSuccess)
	}

	if cls.HasFailure && !cls.IsActivelyRunning {
		return finish(st, model.StatusFailed, model.ReasonFailureMarker)
	}

	if st.TotalTicks >= r.thresholds.MaxTicks {
		return r.timeout(st)
	}

	// Activity resets stall tracking, only the absolute timeout bounds it.
	if changed || cls.IsActivelyRunning {
		st.StallTicks = 0
		return st
	}

	st.StallTicks++
	stepsKnownDone := st.TotalStepCount > 0 && stepsDone
	limit := r.thresholds.StallCeilingTicks
	if stepsKnownDone {
		limit = r.thresholds.StallDoneTicks
	}
	if st.StallTicks < limit {
		return st
	}

	if stepsKnownDone {
		return finish(st, model.StatusFailed, model.ReasonAmbiguousCompletion)
	}
	return finish(st, model.StatusFailed, model.ReasonStall)
}

// StallWarning returns true when the state just reached the pending stall threshold,
// the session keeps waiting up to the stall ceiling.
func (r *Reducer) StallWarning(st model.SessionState) bool {
	return st.Status == model.StatusRunning && st.StallTicks == r.thresholds.StallPendingTicks &&
		st.StallTicks < r.thresholds.StallCeilingTicks
}

func (r *Reducer) reduceFetchError(st model.SessionState, err error) model.SessionState {
	st.ErrorTicks += r.thresholds.ErrorTickWeight
	st.LastError = err.Error()

	if st.ErrorTicks > r.thresholds.ErrorTickBudget {
		return finish(st, model.StatusFailed, model.ReasonTransport)
	}

	if st.TotalTicks >= r.thresholds.MaxTicks {
		return r.timeout(st)
	}

	return st
}

// timeout forces a terminal decision once the absolute tick budget is exhausted.
func (r *Reducer) timeout(st model.SessionState) model.SessionState {
	cls := st.LastClassification
	if st.CompletedStepCount >= st.TotalStepCount && (cls.HasFinalSuccess || cls.HasRecentStepCompletion) {
		return finish(st, model.StatusSuccess, model.ReasonTimeout)
	}
	return finish(st, model.StatusFailed, model.ReasonTimeout)
}

func finish(st model.SessionState, status model.Status, reason model.Reason) model.SessionState {
	st.Status = status
	st.Reason = reason
	return st
}
