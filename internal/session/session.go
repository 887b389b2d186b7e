package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/slok/deploywatch/internal/classify"
	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/metrics"
	"github.com/slok/deploywatch/internal/model"
)

// DefaultInterval is the default time between ticks.
const DefaultInterval = time.Second

// Fetcher returns the full accumulated log buffer of an operation.
type Fetcher interface {
	FetchLogs(ctx context.Context, operationID string) (model.LogSnapshot, error)
}

// RunnerConfig is the configuration of the session runner.
type RunnerConfig struct {
	Fetcher    Fetcher
	Classifier Classifier
	Thresholds Thresholds
	// Interval is the time between the start of two consecutive ticks.
	Interval        time.Duration
	MetricsRecorder metrics.Recorder
	Logger          log.Logger
	TimeNow         func() time.Time
}

func (c *RunnerConfig) defaults() error {
	if c.Fetcher == nil {
		return fmt.Errorf("fetcher is required")
	}

	if c.Classifier == nil {
		c.Classifier = classify.Default()
	}

	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval can't be negative: %w", model.ErrNotValid)
	}

	if c.MetricsRecorder == nil {
		c.MetricsRecorder = metrics.Noop
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "session.Runner"})

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	return nil
}

// Runner starts polling sessions. Sessions started by the same runner share no
// mutable state, many of them can run at the same time.
type Runner struct {
	fetcher  Fetcher
	reducer  *Reducer
	interval time.Duration
	metrics  metrics.Recorder
	logger   log.Logger
	timeNow  func() time.Time
}

// NewRunner returns a new session runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reducer, err := NewReducer(cfg.Thresholds, cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("could not create reducer: %w", err)
	}

	return &Runner{
		fetcher:  cfg.Fetcher,
		reducer:  reducer,
		interval: cfg.Interval,
		metrics:  cfg.MetricsRecorder,
		logger:   cfg.Logger,
		timeNow:  cfg.TimeNow,
	}, nil
}

// StartRequest is the request to start polling an operation.
type StartRequest struct {
	OperationID string
	// TotalStepCount is the number of steps the operation declares, 0 when unknown.
	TotalStepCount int
}

func (r StartRequest) validate() error {
	if r.OperationID == "" {
		return fmt.Errorf("operation id is required: %w", model.ErrNotValid)
	}
	if r.TotalStepCount < 0 {
		return fmt.Errorf("total step count can't be negative: %w", model.ErrNotValid)
	}
	return nil
}

// Start starts polling the operation in the background and returns the handle to
// control and observe it. The first fetch happens right away. Cancelling ctx has
// the same effect as cancelling the handle.
func (r *Runner) Start(ctx context.Context, req StartRequest) (*Handle, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	id := ulid.Make().String()
	ctx = r.logger.SetValuesOnCtx(ctx, log.Kv{"operation-id": req.OperationID, "session-id": id})
	ctx, cancel := context.WithCancel(ctx)

	state := NewState(req.OperationID, req.TotalStepCount)
	state.Status = model.StatusRunning
	primary := newSubscriber()
	h := &Handle{
		id:      id,
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   state,
		updates: primary.out,
		subs:    []*subscriber{primary},
	}

	limit := rate.Inf
	if r.interval > 0 {
		limit = rate.Every(r.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	r.metrics.AddActiveSessions(ctx, 1)
	go r.run(ctx, h, limiter)

	return h, nil
}

func (r *Runner) run(ctx context.Context, h *Handle, limiter *rate.Limiter) {
	logger := r.logger.WithCtxValues(ctx)
	start := r.timeNow()
	state := h.State()
	var lines []string

	defer func() {
		r.metrics.AddActiveSessions(ctx, -1)
		h.finish()
	}()

	logger.Debugf("Session started with %d expected steps", state.TotalStepCount)

	for {
		if h.isInert(ctx) {
			logger.Debugf("Session cancelled")
			return
		}

		// Waits between ticks, the first tick doesn't wait.
		// Wait fails early when the context deadline comes before the next tick.
		if err := limiter.Wait(ctx); err != nil {
			h.inert.Store(true)
			logger.Debugf("Session cancelled while waiting next tick: %s", err)
			return
		}
		if h.isInert(ctx) {
			return
		}

		snapshot, err := r.fetcher.FetchLogs(ctx, state.OperationID)

		// The session may have been cancelled while the fetch was in flight.
		if h.isInert(ctx) {
			logger.Debugf("Discarding fetch result of cancelled session")
			return
		}

		r.metrics.ObserveSessionTick(ctx, err != nil)
		if err != nil {
			logger.Warningf("Could not fetch operation logs: %s", err)
		} else {
			lines = snapshot.Lines
		}

		state = r.reducer.Reduce(state, TickOutcome{Snapshot: snapshot, Err: err})
		if r.reducer.StallWarning(state) {
			logger.Warningf("No log activity for %d ticks with %d/%d steps completed, waiting", state.StallTicks, state.CompletedStepCount, state.TotalStepCount)
		}

		h.publish(model.Update{
			SessionID: h.id,
			State:     state,
			Lines:     lines,
			At:        r.timeNow(),
		})

		if state.Status.IsTerminal() {
			r.logFinished(logger, state)
			r.metrics.ObserveSessionFinished(ctx, state.Status, state.Reason, r.timeNow().Sub(start))
			return
		}
	}
}

func (r *Runner) logFinished(logger log.Logger, st model.SessionState) {
	logger = logger.WithValues(log.Kv{"status": st.Status, "reason": st.Reason, "ticks": st.TotalTicks})

	switch {
	case st.Status == model.StatusSuccess:
		logger.Infof("Operation succeeded")
	case st.Reason == model.ReasonAmbiguousCompletion:
		logger.Warningf("All %d steps logged complete but success was never confirmed, assuming failure", st.TotalStepCount)
	case st.Reason == model.ReasonTransport:
		logger.Errorf("Backend unreachable, giving up: %s", st.LastError)
	case st.Reason == model.ReasonFailureMarker:
		logger.Errorf("Operation failed: %s", st.LastClassification.FailureLine)
	default:
		logger.Errorf("Operation failed")
	}
}

// Handle controls and observes a running session.
type Handle struct {
	id      string
	cancel  context.CancelFunc
	inert   atomic.Bool
	done    chan struct{}
	updates <-chan model.Update

	mu       sync.Mutex
	state    model.SessionState
	last     *model.Update
	subs     []*subscriber
	finished bool
}

// ID returns the session ID.
func (h *Handle) ID() string { return h.id }

// Cancel stops the session. The session status is not changed and no update is
// emitted after it returns. It is safe to call it many times or after the session ended.
// Callers must call Cancel once they are done with the handle, undelivered updates are
// held until then.
func (h *Handle) Cancel() {
	if h.inert.Swap(true) {
		return
	}
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.abort()
	}
}

// Done returns a channel that is closed when the session stops, either by reaching
// a terminal status or by being cancelled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State returns the latest session state.
func (h *Handle) State() model.SessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Wait blocks until the session stops and returns its latest state.
func (h *Handle) Wait(ctx context.Context) (model.SessionState, error) {
	select {
	case <-h.done:
		return h.State(), nil
	case <-ctx.Done():
		return h.State(), ctx.Err()
	}
}

// Updates returns the channel that receives every update of the session from the
// first tick. The channel is closed when the session stops.
func (h *Handle) Updates() <-chan model.Update { return h.updates }

// Subscribe returns a channel that receives the latest update, if any, and every
// update after it. The channel is closed when the session stops.
func (h *Handle) Subscribe() <-chan model.Update {
	s := newSubscriber()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last != nil {
		s.push(*h.last)
	}

	switch {
	case h.inert.Load():
		s.abort()
	case h.finished:
		s.close()
		fallthrough
	default:
		h.subs = append(h.subs, s)
	}

	return s.out
}

func (h *Handle) isInert(ctx context.Context) bool {
	if ctx.Err() != nil {
		h.inert.Store(true)
	}
	return h.inert.Load()
}

func (h *Handle) publish(u model.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inert.Load() {
		return
	}

	h.state = u.State
	h.last = &u
	for _, s := range h.subs {
		s.push(u)
	}
}

func (h *Handle) finish() {
	h.mu.Lock()
	h.finished = true
	// Subscribers stay registered until Cancel releases them.
	for _, s := range h.subs {
		s.close()
	}
	h.mu.Unlock()

	h.cancel()
	close(h.done)
}
