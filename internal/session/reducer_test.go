package session_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/slok/deploywatch/internal/classify"
	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/session"
)

var errConnRefused = errors.New("connection refused")

func lines(ls ...string) session.TickOutcome {
	return session.TickOutcome{Snapshot: model.LogSnapshot{Lines: ls}}
}

func fetchErr() session.TickOutcome {
	return session.TickOutcome{Err: errConnRefused}
}

func withStatus(st model.BackendStatus, ls ...string) session.TickOutcome {
	return session.TickOutcome{Snapshot: model.LogSnapshot{Lines: ls, Status: st}}
}

func repeat(n int, o session.TickOutcome) []session.TickOutcome {
	os := make([]session.TickOutcome, 0, n)
	for i := 0; i < n; i++ {
		os = append(os, o)
	}
	return os
}

func noise(n int) []string {
	ls := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ls = append(ls, fmt.Sprintf("copying file %d of %d", i+1, n))
	}
	return ls
}

func concat(outcomes ...[]session.TickOutcome) []session.TickOutcome {
	var all []session.TickOutcome
	for _, o := range outcomes {
		all = append(all, o...)
	}
	return all
}

// growingTasks returns outcomes whose buffer grows a task start line on every tick.
func growingTasks(n int, prefix ...string) []session.TickOutcome {
	var os []session.TickOutcome
	buf := append([]string{}, prefix...)
	for i := 0; i < n; i++ {
		buf = append(buf, fmt.Sprintf("TASK [task %d] ****", i))
		os = append(os, lines(append([]string{}, buf...)...))
	}
	return os
}

func TestReducerReduce(t *testing.T) {
	tests := map[string]struct {
		thresholds session.Thresholds
		totalSteps int
		outcomes   []session.TickOutcome
		expStatus  model.Status
		expReason  model.Reason
		expTicks   int
		expPercent int
	}{
		"A growing buffer that ends with all steps and the success banner should succeed.": {
			totalSteps: 2,
			outcomes: []session.TickOutcome{
				lines("Starting step 1: install packages"),
				lines("Starting step 1: install packages", "Step 1 completed successfully"),
				lines("Starting step 1: install packages", "Step 1 completed successfully",
					"Step 2 completed successfully", "=== Template Deployment SUCCESS ==="),
			},
			expStatus:  model.StatusSuccess,
			expReason:  model.ReasonConfirmedSuccess,
			expTicks:   3,
			expPercent: 100,
		},

		"A fatal marker after a task start should fail on the same tick.": {
			totalSteps: 3,
			outcomes: []session.TickOutcome{
				lines("TASK [install nginx] ****"),
				lines("TASK [install nginx] ****", "fatal: [web1] => unreachable host"),
			},
			expStatus: model.StatusFailed,
			expReason: model.ReasonFailureMarker,
			expTicks:  2,
		},

		"Success should win over a failure in the same tick.": {
			totalSteps: 1,
			outcomes: []session.TickOutcome{
				lines("Step 1 completed successfully", "fatal: [web2] => ignored", "=== Template Deployment SUCCESS ==="),
			},
			expStatus:  model.StatusSuccess,
			expReason:  model.ReasonConfirmedSuccess,
			expTicks:   1,
			expPercent: 100,
		},

		"A stalled buffer with pending steps should fail at the stall ceiling.": {
			totalSteps: 3,
			outcomes:   repeat(100, lines(append([]string{"Step 1 completed successfully"}, noise(15)...)...)),
			expStatus:  model.StatusFailed,
			expReason:  model.ReasonStall,
			expTicks:   61,
			expPercent: 33,
		},

		"A silent buffer with all steps done and no confirmation should fail fast as ambiguous.": {
			totalSteps: 2,
			outcomes: repeat(100, lines(append([]string{
				"Step 1 completed successfully",
				"Step 2 completed successfully",
			}, noise(15)...)...)),
			expStatus:  model.StatusFailed,
			expReason:  model.ReasonAmbiguousCompletion,
			expTicks:   11,
			expPercent: 100,
		},

		"A silent buffer with all steps done and a recent step should keep running until the timeout.": {
			totalSteps: 2,
			outcomes:   repeat(700, lines("Step 1 completed successfully", "Step 2 completed successfully")),
			expStatus:  model.StatusSuccess,
			expReason:  model.ReasonTimeout,
			expTicks:   600,
			expPercent: 100,
		},

		"A step completed successfully with a zero failed tasks note should count the step.": {
			totalSteps: 1,
			outcomes: []session.TickOutcome{
				lines("Step 1 completed successfully (0 failed tasks)", "=== Template Deployment SUCCESS ==="),
			},
			expStatus:  model.StatusSuccess,
			expReason:  model.ReasonConfirmedSuccess,
			expTicks:   1,
			expPercent: 100,
		},

		"Five consecutive fetch errors should be recovered.": {
			totalSteps: 1,
			outcomes: concat(
				repeat(5, fetchErr()),
				[]session.TickOutcome{lines("Step 1 completed successfully", "=== Template Deployment SUCCESS ===")},
			),
			expStatus:  model.StatusSuccess,
			expReason:  model.ReasonConfirmedSuccess,
			expTicks:   6,
			expPercent: 100,
		},

		"Seven consecutive fetch errors should exceed the error budget.": {
			totalSteps: 1,
			outcomes:   repeat(10, fetchErr()),
			expStatus:  model.StatusFailed,
			expReason:  model.ReasonTransport,
			expTicks:   7,
		},

		"Fetch errors interleaved with successful fetches should reset the error budget.": {
			totalSteps: 1,
			outcomes: concat(
				repeat(6, fetchErr()),
				[]session.TickOutcome{lines("TASK [a] ****")},
				repeat(6, fetchErr()),
				[]session.TickOutcome{lines("TASK [a] ****", "Step 1 completed successfully", "=== Template Deployment SUCCESS ===")},
			),
			expStatus:  model.StatusSuccess,
			expReason:  model.ReasonConfirmedSuccess,
			expTicks:   14,
			expPercent: 100,
		},

		"A backend success status should be trusted over the logs.": {
			totalSteps: 3,
			outcomes:   []session.TickOutcome{withStatus(model.BackendStatusSuccess, "fatal: [web1] => boom")},
			expStatus:  model.StatusSuccess,
			expReason:  model.ReasonBackend,
			expTicks:   1,
			expPercent: 100,
		},

		"A backend failed status should be trusted over the logs.": {
			totalSteps: 1,
			outcomes:   []session.TickOutcome{withStatus(model.BackendStatusFailed, "Step 1 completed successfully")},
			expStatus:  model.StatusFailed,
			expReason:  model.ReasonBackend,
			expTicks:   1,
			expPercent: 100,
		},

		"A backend running status should fall back to the classifier.": {
			totalSteps: 1,
			outcomes: []session.TickOutcome{
				withStatus(model.BackendStatusRunning, "TASK [a] ****"),
				withStatus(model.BackendStatusRunning, "TASK [a] ****", "fatal: [web1] => boom"),
			},
			expStatus: model.StatusFailed,
			expReason: model.ReasonFailureMarker,
			expTicks:  2,
		},

		"An always active operation should time out as failed when steps are pending.": {
			thresholds: session.Thresholds{MaxTicks: 20},
			totalSteps: 2,
			outcomes:   growingTasks(50),
			expStatus:  model.StatusFailed,
			expReason:  model.ReasonTimeout,
			expTicks:   20,
		},

		"An always active operation should time out as succeeded when steps are done and recent.": {
			thresholds: session.Thresholds{MaxTicks: 10},
			totalSteps: 1,
			outcomes:   growingTasks(50, "Step 1 completed successfully"),
			expStatus:  model.StatusSuccess,
			expReason:  model.ReasonTimeout,
			expTicks:   10,
			expPercent: 100,
		},

		"Fetch errors at the absolute timeout should time out.": {
			thresholds: session.Thresholds{MaxTicks: 3},
			totalSteps: 1,
			outcomes:   repeat(10, fetchErr()),
			expStatus:  model.StatusFailed,
			expReason:  model.ReasonTimeout,
			expTicks:   3,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			r, err := session.NewReducer(test.thresholds, classify.Default())
			require.NoError(err)

			st := session.NewState("op-1", test.totalSteps)
			for _, o := range test.outcomes {
				st = r.Reduce(st, o)
				if st.Status.IsTerminal() {
					break
				}
			}

			assert.Equal(test.expStatus, st.Status)
			assert.Equal(test.expReason, st.Reason)
			assert.Equal(test.expTicks, st.TotalTicks)
			percent, ok := st.Progress().Percent()
			assert.True(ok)
			assert.Equal(test.expPercent, percent)
		})
	}
}

func TestReducerStalledWithPendingSteps(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	r, err := session.NewReducer(session.Thresholds{}, classify.Default())
	require.NoError(err)

	silent := lines(append([]string{"Step 1 completed successfully"}, noise(15)...)...)
	st := session.NewState("op-1", 3)
	st = r.Reduce(st, silent)
	require.Equal(model.StatusRunning, st.Status)

	warnings := 0
	for i := 1; i < 60; i++ {
		st = r.Reduce(st, silent)
		require.Equal(model.StatusRunning, st.Status, "tick %d", i)
		require.Equal(i, st.StallTicks)
		if r.StallWarning(st) {
			warnings++
			assert.Equal(30, st.StallTicks)
		}
	}
	assert.Equal(1, warnings)

	st = r.Reduce(st, silent)
	assert.Equal(model.StatusFailed, st.Status)
	assert.Equal(model.ReasonStall, st.Reason)
	assert.False(r.StallWarning(st))
}

func TestReducerFrozenActiveBuffer(t *testing.T) {
	tests := map[string]struct {
		totalSteps int
		buffer     []string
		expStatus  model.Status
	}{
		"A frozen task start with pending steps should only fail at the timeout.": {
			totalSteps: 2,
			buffer:     []string{"TASK [install nginx] ****"},
			expStatus:  model.StatusFailed,
		},

		"A frozen buffer with every step recently completed should succeed at the timeout.": {
			totalSteps: 2,
			buffer:     []string{"Step 1 completed successfully", "Step 2 completed successfully"},
			expStatus:  model.StatusSuccess,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			r, err := session.NewReducer(session.Thresholds{}, classify.Default())
			require.NoError(err)
			maxTicks := r.Thresholds().MaxTicks

			st := session.NewState("op-1", test.totalSteps)
			for i := 1; i < maxTicks; i++ {
				st = r.Reduce(st, lines(test.buffer...))
				require.Equal(model.StatusRunning, st.Status, "tick %d", i)
				require.Zero(st.StallTicks, "tick %d", i)
				require.True(st.LastClassification.IsActivelyRunning)
			}

			st = r.Reduce(st, lines(test.buffer...))
			assert.Equal(test.expStatus, st.Status)
			assert.Equal(model.ReasonTimeout, st.Reason)
			assert.Equal(maxTicks, st.TotalTicks)
		})
	}
}

func TestReducerTerminalStateIsFinal(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	r, err := session.NewReducer(session.Thresholds{}, classify.Default())
	require.NoError(err)

	st := session.NewState("op-1", 0)
	st = r.Reduce(st, withStatus(model.BackendStatusFailed))
	require.Equal(model.StatusFailed, st.Status)

	got := r.Reduce(st, withStatus(model.BackendStatusSuccess, "=== Template Deployment SUCCESS ==="))
	assert.Equal(st, got)
}

func TestReducerUnknownStepTotal(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	r, err := session.NewReducer(session.Thresholds{}, classify.Default())
	require.NoError(err)

	st := session.NewState("op-1", 0)
	for i := 0; i < 30; i++ {
		st = r.Reduce(st, lines("$ systemctl restart nginx"))
	}
	require.Equal(model.StatusRunning, st.Status)

	_, ok := st.Progress().Percent()
	assert.False(ok)

	st = r.Reduce(st, lines("$ systemctl restart nginx", "Deployment completed successfully"))
	assert.Equal(model.StatusSuccess, st.Status)
	assert.Equal(model.ReasonConfirmedSuccess, st.Reason)
}

func TestReducerUnknownStepTotalWaitsForTheCeiling(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	r, err := session.NewReducer(session.Thresholds{}, classify.Default())
	require.NoError(err)

	silent := lines(noise(3)...)
	st := session.NewState("op-1", 0)
	for i := 0; i < 60; i++ {
		st = r.Reduce(st, silent)
		require.Equal(model.StatusRunning, st.Status, "tick %d", i)
	}

	st = r.Reduce(st, silent)
	assert.Equal(model.StatusFailed, st.Status)
	assert.Equal(model.ReasonStall, st.Reason)
	assert.Equal(61, st.TotalTicks)
}

func TestNewReducerInvalid(t *testing.T) {
	tests := map[string]struct {
		thresholds session.Thresholds
		classifier session.Classifier
	}{
		"A missing classifier should fail.": {},
		"Negative thresholds should fail.": {
			thresholds: session.Thresholds{MaxTicks: -1},
			classifier: classify.Default(),
		},
		"A stall ceiling lower than the pending threshold should fail.": {
			thresholds: session.Thresholds{StallPendingTicks: 40, StallCeilingTicks: 20},
			classifier: classify.Default(),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := session.NewReducer(test.thresholds, test.classifier)
			assert.Error(t, err)
		})
	}
}

var tickLines = []string{
	"TASK [install packages] ****",
	"changed: [web1]",
	"copying files",
	"Step 1 completed successfully",
	"Step 2 completed successfully",
	"fatal: [web1] => boom",
	"PLAY RECAP ****** ok=5 changed=2 unreachable=0 failed=0",
	"=== Template Deployment SUCCESS ===",
}

func TestReducerAlwaysTerminates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r, err := session.NewReducer(session.Thresholds{}, classify.Default())
		if err != nil {
			t.Fatalf("could not create reducer: %s", err)
		}
		maxTicks := r.Thresholds().MaxTicks

		st := session.NewState("op-1", rapid.IntRange(0, 4).Draw(t, "steps"))
		var buf []string
		for i := 0; i < maxTicks; i++ {
			var o session.TickOutcome
			switch rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("kind-%d", i)) {
			case 0:
				o = fetchErr()
			case 1:
				buf = append(buf, rapid.SampledFrom(tickLines).Draw(t, fmt.Sprintf("line-%d", i)))
				o = lines(append([]string{}, buf...)...)
			default:
				o = lines(append([]string{}, buf...)...)
			}

			prev := st
			st = r.Reduce(st, o)
			if prev.Status.IsTerminal() && prev != st {
				t.Fatalf("terminal state changed at tick %d", i)
			}
		}

		if !st.Status.IsTerminal() {
			t.Fatalf("session not terminated after %d ticks: %+v", maxTicks, st)
		}
		if st.TotalTicks > maxTicks {
			t.Fatalf("session used %d ticks, more than %d", st.TotalTicks, maxTicks)
		}
	})
}
