package metrics

import (
	"context"
	"time"

	"github.com/slok/deploywatch/internal/model"
)

// Recorder knows how to record session metrics.
type Recorder interface {
	// ObserveSessionTick records a single polling tick, fetchFailed is true when the
	// backend could not be reached.
	ObserveSessionTick(ctx context.Context, fetchFailed bool)
	// ObserveSessionFinished records a session reaching a terminal status.
	ObserveSessionFinished(ctx context.Context, status model.Status, reason model.Reason, duration time.Duration)
	// AddActiveSessions adds delta to the number of sessions being polled.
	AddActiveSessions(ctx context.Context, delta int)
}

// Noop is a recorder that doesn't record anything.
const Noop = noop(0)

type noop int

func (noop) ObserveSessionTick(context.Context, bool)                                       {}
func (noop) ObserveSessionFinished(context.Context, model.Status, model.Reason, time.Duration) {}
func (noop) AddActiveSessions(context.Context, int)                                          {}
