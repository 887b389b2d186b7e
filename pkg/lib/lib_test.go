package lib_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/deploywatch/pkg/lib"
)

func newFakeClient(t *testing.T, templates ...lib.Template) *lib.Client {
	t.Helper()

	client, err := lib.New(lib.Config{
		Backend:      lib.BackendFake,
		Templates:    templates,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	return client
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg    lib.Config
		expErr bool
		expIs  error
	}{
		"A fake backend doesn't need a URL.": {
			cfg: lib.Config{Backend: lib.BackendFake},
		},

		"An HTTP backend without URL should fail.": {
			cfg:    lib.Config{},
			expErr: true,
		},

		"An unknown backend should fail.": {
			cfg:    lib.Config{Backend: "grpc"},
			expErr: true,
			expIs:  lib.ErrNotValid,
		},

		"Invalid templates should fail.": {
			cfg: lib.Config{
				Backend:   lib.BackendFake,
				Templates: []lib.Template{{Name: "x", Kind: lib.OperationKindTemplate}},
			},
			expErr: true,
			expIs:  lib.ErrNotValid,
		},

		"Invalid thresholds should fail.": {
			cfg: lib.Config{
				Backend:    lib.BackendFake,
				Thresholds: lib.Thresholds{StallPendingTicks: 50, StallCeilingTicks: 10},
			},
			expErr: true,
			expIs:  lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := lib.New(test.cfg)
			if test.expErr {
				require.Error(t, err)
				if test.expIs != nil {
					assert.ErrorIs(t, err, test.expIs)
				}
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClassify(t *testing.T) {
	got := lib.Classify([]string{
		"Starting step 1: install",
		"Step 1 completed successfully",
		"fatal: [web1] => unreachable",
	})

	assert.True(t, got.HasFailure)
	assert.Equal(t, "fatal: [web1] => unreachable", got.FailureLine)
	assert.Equal(t, 1, got.CompletedStepCount)
}

func TestClientLaunch(t *testing.T) {
	tests := map[string]struct {
		opts        lib.LaunchOpts
		expErr      bool
		expIs       error
		expStatus   lib.Status
		expReason   lib.Reason
		expProgress int
	}{
		"Launching a template should succeed with all its steps.": {
			opts:        lib.LaunchOpts{Template: "web-stack"},
			expStatus:   lib.StatusSuccess,
			expReason:   lib.ReasonConfirmedSuccess,
			expProgress: 2,
		},

		"Launching an ad hoc operation should succeed.": {
			opts:      lib.LaunchOpts{Kind: lib.OperationKindShell},
			expStatus: lib.StatusSuccess,
			expReason: lib.ReasonConfirmedSuccess,
		},

		"Launching a missing template should fail.": {
			opts:   lib.LaunchOpts{Template: "missing"},
			expErr: true,
			expIs:  lib.ErrNotFound,
		},

		"Launching without template or kind should fail.": {
			opts:   lib.LaunchOpts{},
			expErr: true,
			expIs:  lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			client := newFakeClient(t, lib.Template{
				Name:  "web-stack",
				Kind:  lib.OperationKindTemplate,
				Steps: []string{"install", "restart"},
			})

			var updates int
			test.opts.OnUpdate = func(lib.Update) { updates++ }
			res, err := client.Launch(context.Background(), test.opts)
			if test.expErr {
				require.Error(err)
				assert.ErrorIs(err, test.expIs)
				return
			}
			require.NoError(err)

			assert.NotEmpty(res.OperationID)
			assert.Equal(test.expStatus, res.State.Status)
			assert.Equal(test.expReason, res.State.Reason)
			assert.Equal(res.State.TotalTicks, updates)
			if test.expProgress > 0 {
				require.NotNil(res.State.Progress.Percent)
				assert.Equal(100, *res.State.Progress.Percent)
				assert.Equal(test.expProgress, res.State.Progress.Done)
			}
		})
	}
}

func TestClientWatchHTTP(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/operations/op-1/logs", r.URL.Path)
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"lines":["TASK [deploy] ****"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"lines":["TASK [deploy] ****","ERROR: disk full"]}`))
	}))
	defer srv.Close()

	client, err := lib.New(lib.Config{BackendURL: srv.URL, PollInterval: time.Millisecond})
	require.NoError(err)

	st, err := client.Watch(context.Background(), lib.WatchOpts{OperationID: "op-1", TotalSteps: 2})
	require.NoError(err)

	assert.Equal(lib.StatusFailed, st.Status)
	assert.Equal(lib.ReasonFailureMarker, st.Reason)
	assert.Equal("ERROR: disk full", st.Classification.FailureLine)
	assert.Equal(3, st.TotalTicks)
}

func TestClientWatchCancel(t *testing.T) {
	client := newFakeClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Watch(ctx, lib.WatchOpts{OperationID: "op-1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientListTemplates(t *testing.T) {
	client := newFakeClient(t,
		lib.Template{Name: "zeta", Kind: lib.OperationKindShell},
		lib.Template{Name: "alpha", Kind: lib.OperationKindTemplate, Steps: []string{"a"}},
	)

	got, err := client.ListTemplates(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "zeta", got[1].Name)
}
