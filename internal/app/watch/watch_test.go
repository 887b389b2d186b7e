package watch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/deploywatch/internal/app/watch"
	"github.com/slok/deploywatch/internal/backend/backendmock"
	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/session"
)

func newRunner(t *testing.T, f session.Fetcher) *session.Runner {
	r, err := session.NewRunner(session.RunnerConfig{Fetcher: f, Interval: time.Microsecond})
	require.NoError(t, err)
	return r
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config watch.ServiceConfig
		expErr bool
	}{
		"valid config should create service": {
			config: watch.ServiceConfig{
				SessionStarter: newRunner(t, &backendmock.MockClient{}),
				Logger:         log.Noop,
			},
		},
		"missing session starter should fail": {
			config: watch.ServiceConfig{Logger: log.Noop},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			svc, err := watch.NewService(test.config)
			if test.expErr {
				require.Error(err)
				require.Nil(svc)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		mock       func(m *backendmock.MockClient)
		req        watch.Request
		expStatus  model.Status
		expReason  model.Reason
		expUpdates int
		expErr     bool
	}{
		"A successful operation should return the success state.": {
			mock: func(m *backendmock.MockClient) {
				m.On("FetchLogs", mock.Anything, "op-1").Once().Return(model.LogSnapshot{Lines: []string{"TASK [a] ****"}}, nil)
				m.On("FetchLogs", mock.Anything, "op-1").Once().Return(model.LogSnapshot{
					Lines: []string{"TASK [a] ****", "Step 1 completed successfully", "=== Template Deployment SUCCESS ==="},
				}, nil)
			},
			req:        watch.Request{OperationID: "op-1", TotalSteps: 1},
			expStatus:  model.StatusSuccess,
			expReason:  model.ReasonConfirmedSuccess,
			expUpdates: 2,
		},

		"A failed operation should return the failed state without error.": {
			mock: func(m *backendmock.MockClient) {
				m.On("FetchLogs", mock.Anything, "op-1").Once().Return(model.LogSnapshot{Lines: []string{"ERROR: disk full"}}, nil)
			},
			req:        watch.Request{OperationID: "op-1", TotalSteps: 1},
			expStatus:  model.StatusFailed,
			expReason:  model.ReasonFailureMarker,
			expUpdates: 1,
		},

		"An unreachable backend should return the failed state.": {
			mock: func(m *backendmock.MockClient) {
				m.On("FetchLogs", mock.Anything, "op-1").Times(7).Return(model.LogSnapshot{}, errors.New("connection refused"))
			},
			req:        watch.Request{OperationID: "op-1"},
			expStatus:  model.StatusFailed,
			expReason:  model.ReasonTransport,
			expUpdates: 7,
		},

		"An invalid request should fail.": {
			mock:   func(m *backendmock.MockClient) {},
			req:    watch.Request{},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			m := backendmock.NewMockClient(t)
			test.mock(m)

			svc, err := watch.NewService(watch.ServiceConfig{SessionStarter: newRunner(t, m)})
			require.NoError(err)

			var updates []model.Update
			req := test.req
			req.OnUpdate = func(u model.Update) { updates = append(updates, u) }

			st, err := svc.Run(context.Background(), req)
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expStatus, st.Status)
			assert.Equal(test.expReason, st.Reason)
			assert.Len(updates, test.expUpdates)
			assert.Equal(*st, updates[len(updates)-1].State)
		})
	}
}

func TestServiceRunContextCancel(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	m := backendmock.NewMockClient(t)
	m.On("FetchLogs", mock.Anything, "op-1").Return(model.LogSnapshot{Lines: []string{"TASK [a] ****"}}, nil)

	r, err := session.NewRunner(session.RunnerConfig{Fetcher: m, Interval: time.Hour})
	require.NoError(err)
	svc, err := watch.NewService(watch.ServiceConfig{SessionStarter: r})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = svc.Run(ctx, watch.Request{
		OperationID: "op-1",
		OnUpdate:    func(model.Update) { cancel() },
	})
	assert.ErrorIs(err, context.Canceled)
}
