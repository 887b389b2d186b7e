package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/deploywatch/internal/model"
)

func TestProgressPercent(t *testing.T) {
	tests := map[string]struct {
		progress model.Progress
		expPct   int
		expKnown bool
	}{
		"No steps done should be 0%.": {
			progress: model.Progress{Done: 0, Total: 4},
			expPct:   0,
			expKnown: true,
		},
		"One of four steps should be 25%.": {
			progress: model.Progress{Done: 1, Total: 4},
			expPct:   25,
			expKnown: true,
		},
		"All steps should be 100%.": {
			progress: model.Progress{Done: 4, Total: 4},
			expPct:   100,
			expKnown: true,
		},
		"More steps than total should be clamped to 100%.": {
			progress: model.Progress{Done: 7, Total: 4},
			expPct:   100,
			expKnown: true,
		},
		"Partial steps should round down.": {
			progress: model.Progress{Done: 1, Total: 3},
			expPct:   33,
			expKnown: true,
		},
		"Unknown total should not compute a percentage.": {
			progress: model.Progress{Done: 3, Total: 0},
			expPct:   0,
			expKnown: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			pct, known := test.progress.Percent()
			assert.Equal(test.expPct, pct)
			assert.Equal(test.expKnown, known)
		})
	}
}

func TestSessionStateProgress(t *testing.T) {
	tests := map[string]struct {
		state       model.SessionState
		expProgress model.Progress
	}{
		"A running session should report the completed steps.": {
			state:       model.SessionState{Status: model.StatusRunning, CompletedStepCount: 1, TotalStepCount: 3},
			expProgress: model.Progress{Done: 1, Total: 3},
		},
		"A successful session should always be complete.": {
			state:       model.SessionState{Status: model.StatusSuccess, CompletedStepCount: 1, TotalStepCount: 3},
			expProgress: model.Progress{Done: 3, Total: 3},
		},
		"A failed session should keep the completed steps.": {
			state:       model.SessionState{Status: model.StatusFailed, CompletedStepCount: 2, TotalStepCount: 3},
			expProgress: model.Progress{Done: 2, Total: 3},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expProgress, test.state.Progress())
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, model.StatusIdle.IsTerminal())
	assert.False(t, model.StatusRunning.IsTerminal())
	assert.True(t, model.StatusSuccess.IsTerminal())
	assert.True(t, model.StatusFailed.IsTerminal())
}

func TestParseBackendStatus(t *testing.T) {
	tests := map[string]struct {
		raw       string
		expStatus model.BackendStatus
	}{
		"Running should be parsed.": {raw: "running", expStatus: model.BackendStatusRunning},
		"Success should be parsed.": {raw: "success", expStatus: model.BackendStatusSuccess},
		"Failed should be parsed.":  {raw: "failed", expStatus: model.BackendStatusFailed},
		"Empty should be unknown.":  {raw: "", expStatus: model.BackendStatusUnknown},
		"Garbage should be unknown.": {raw: "SUCCESS!", expStatus: model.BackendStatusUnknown},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expStatus, model.ParseBackendStatus(test.raw))
		})
	}
}
