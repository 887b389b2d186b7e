package model

import "time"

// Progress is the step based completion of an operation.
type Progress struct {
	Done  int
	Total int
}

// Percent returns the completion percentage clamped to [0, 100]. It returns false
// when the total is unknown and no percentage can be computed.
func (p Progress) Percent() (int, bool) {
	if p.Total <= 0 {
		return 0, false
	}

	pct := p.Done * 100 / p.Total
	switch {
	case pct < 0:
		pct = 0
	case pct > 100:
		pct = 100
	}

	return pct, true
}

// SessionState is the state a polling session keeps for a single operation.
type SessionState struct {
	OperationID string
	Status      Status
	Reason      Reason

	// TickCount is the number of fetch attempts since the buffer last changed.
	TickCount int
	// TotalTicks is the number of fetch attempts since the session started.
	TotalTicks int
	// StallTicks is the number of consecutive ticks with an unchanged, inactive buffer.
	StallTicks int
	// ErrorTicks is the weighted count of consecutive failed fetches.
	ErrorTicks int

	LastObservedBufferLength int
	CompletedStepCount       int
	TotalStepCount           int

	// LastClassification is the classification of the latest fetched buffer.
	LastClassification Classification
	// LastError is the latest fetch error message, empty after a successful fetch.
	LastError string
}

// Progress returns the step progress of the session. A successful session is
// always complete.
func (s SessionState) Progress() Progress {
	p := Progress{Done: s.CompletedStepCount, Total: s.TotalStepCount}
	if s.Status == StatusSuccess && p.Total > 0 && p.Done < p.Total {
		p.Done = p.Total
	}
	return p
}

// Update is what a session emits to its observers after every tick.
type Update struct {
	SessionID string
	State     SessionState
	Lines     []string
	At        time.Time
}
