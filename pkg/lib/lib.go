package lib

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slok/deploywatch/internal/app/launch"
	"github.com/slok/deploywatch/internal/app/templatelist"
	"github.com/slok/deploywatch/internal/app/watch"
	"github.com/slok/deploywatch/internal/backend"
	"github.com/slok/deploywatch/internal/backend/fake"
	backendhttp "github.com/slok/deploywatch/internal/backend/http"
	"github.com/slok/deploywatch/internal/classify"
	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/session"
	"github.com/slok/deploywatch/internal/storage/memory"
)

// Config configures the SDK client.
//
// All fields except BackendURL are optional. When Backend is [BackendFake]
// no URL is needed.
type Config struct {
	// Backend selects the backend implementation.
	// Default: [BackendHTTP].
	Backend BackendType

	// BackendURL is the operations backend base URL (e.g. "http://localhost:8080").
	// Required for [BackendHTTP].
	BackendURL string

	// HTTPClient is used for every backend request.
	// Default: a client with a 30s timeout.
	HTTPClient *http.Client

	// Templates are the deployment templates available to [Client.Launch].
	Templates []Template

	// Thresholds are the budgets of every watch.
	Thresholds Thresholds

	// PollInterval is the time between two log fetches.
	// Default: 1s.
	PollInterval time.Duration

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Backend == "" {
		c.Backend = BackendHTTP
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point to launch and watch operations.
//
// Create a Client with [New]. A Client is safe for concurrent use.
type Client struct {
	templates *templatelist.Service
	watcher   *watch.Service
	launcher  *launch.Service
}

// New creates a new SDK client.
func New(cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	b, err := newBackend(cfg)
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create backend: %w", err))
	}

	templates := make([]model.Template, 0, len(cfg.Templates))
	for _, t := range cfg.Templates {
		templates = append(templates, toInternalTemplate(t))
	}
	repo, err := memory.NewRepository(memory.RepositoryConfig{
		Templates: templates,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create template repository: %w", err))
	}

	runner, err := session.NewRunner(session.RunnerConfig{
		Fetcher:    b,
		Thresholds: cfg.Thresholds.toInternal(),
		Interval:   cfg.PollInterval,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create session runner: %w", err))
	}

	watcher, err := watch.NewService(watch.ServiceConfig{
		SessionStarter: runner,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create watch service: %w", err)
	}

	launcher, err := launch.NewService(launch.ServiceConfig{
		Launcher:   b,
		Repository: repo,
		Watcher:    watcher,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create launch service: %w", err)
	}

	lister, err := templatelist.NewService(templatelist.ServiceConfig{
		Repository: repo,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create template list service: %w", err)
	}

	return &Client{
		templates: lister,
		watcher:   watcher,
		launcher:  launcher,
	}, nil
}

func newBackend(cfg Config) (backend.Client, error) {
	switch cfg.Backend {
	case BackendHTTP:
		return backendhttp.NewClient(backendhttp.ClientConfig{
			BaseURL:    cfg.BackendURL,
			HTTPClient: cfg.HTTPClient,
			Logger:     cfg.Logger,
		})
	case BackendFake:
		return fake.NewBackend(fake.BackendConfig{Logger: cfg.Logger})
	default:
		return nil, fmt.Errorf("unsupported backend type: %s: %w", cfg.Backend, model.ErrNotValid)
	}
}

// Classify returns the verdict of a log buffer. It has no side effects and the
// same lines always give the same classification.
func Classify(lines []string) Classification {
	return fromInternalClassification(classify.Classify(lines))
}

// WatchOpts are the options of [Client.Watch].
type WatchOpts struct {
	// OperationID is the backend operation to watch.
	OperationID string
	// TotalSteps is the number of steps the operation declares, 0 when unknown.
	TotalSteps int
	// OnUpdate is called after every log fetch, in order. It must not block for long.
	OnUpdate func(Update)
}

// Watch polls the operation until it reaches a final status. A failed operation
// is not an error. Cancelling the context stops the watch and returns the context
// error.
func (c *Client) Watch(ctx context.Context, opts WatchOpts) (*SessionState, error) {
	st, err := c.watcher.Run(ctx, watch.Request{
		OperationID: opts.OperationID,
		TotalSteps:  opts.TotalSteps,
		OnUpdate:    onUpdate(opts.OnUpdate),
	})
	if err != nil {
		return nil, mapError(err)
	}

	res := fromInternalSessionState(*st)
	return &res, nil
}

// LaunchOpts are the options of [Client.Launch]. Exactly one of Template or Kind
// must be set.
type LaunchOpts struct {
	// Template is the name of a configured template.
	Template string
	// Kind is the kind of an ad hoc operation.
	Kind       OperationKind
	Parameters map[string]string
	// TotalSteps overrides the template step count, 0 uses the template steps.
	TotalSteps int
	OnUpdate   func(Update)
}

// LaunchResult is the result of [Client.Launch].
type LaunchResult struct {
	OperationID string
	State       SessionState
}

// Launch starts an operation on the backend and watches it until it reaches a
// final status.
func (c *Client) Launch(ctx context.Context, opts LaunchOpts) (*LaunchResult, error) {
	resp, err := c.launcher.Run(ctx, launch.Request{
		Template:   opts.Template,
		Kind:       model.OperationKind(opts.Kind),
		Parameters: opts.Parameters,
		TotalSteps: opts.TotalSteps,
		OnUpdate:   onUpdate(opts.OnUpdate),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &LaunchResult{
		OperationID: resp.OperationID,
		State:       fromInternalSessionState(resp.State),
	}, nil
}

// ListTemplates returns the configured templates sorted by name.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	ts, err := c.templates.Run(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	res := make([]Template, 0, len(ts))
	for _, t := range ts {
		res = append(res, fromInternalTemplate(t))
	}
	return res, nil
}

func onUpdate(f func(Update)) func(model.Update) {
	if f == nil {
		return nil
	}
	return func(u model.Update) { f(fromInternalUpdate(u)) }
}
