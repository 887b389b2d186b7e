package launch

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/deploywatch/internal/app/watch"
	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/storage"
)

const (
	// ParamTemplate is the launch parameter with the template name.
	ParamTemplate = "template"
	// ParamSteps is the launch parameter with the comma separated template steps.
	ParamSteps = "steps"
)

// Launcher starts backend operations.
type Launcher interface {
	Launch(ctx context.Context, req model.LaunchRequest) (string, error)
}

// ServiceConfig is the configuration for the launch service.
type ServiceConfig struct {
	Launcher   Launcher
	Repository storage.TemplateRepository
	Watcher    *watch.Service
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Launcher == nil {
		return fmt.Errorf("launcher is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Watcher == nil {
		return fmt.Errorf("watcher is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Launch"})

	return nil
}

// Service launches operations and watches them until they finish.
type Service struct {
	launcher Launcher
	repo     storage.TemplateRepository
	watcher  *watch.Service
	logger   log.Logger
}

// NewService creates a new launch service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		launcher: cfg.Launcher,
		repo:     cfg.Repository,
		watcher:  cfg.Watcher,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the launch request parameters.
type Request struct {
	// Template is the template to launch, exclusive with Kind.
	Template string
	// Kind is the kind of an ad hoc operation, exclusive with Template.
	Kind       model.OperationKind
	Parameters map[string]string
	// TotalSteps overrides the step count, 0 uses the template steps.
	TotalSteps int
	// OnLaunched is called with the operation ID once the backend accepted it.
	OnLaunched func(operationID string)
	OnUpdate   func(model.Update)
}

func (r Request) validate() error {
	if r.Template == "" && r.Kind == "" {
		return fmt.Errorf("template or kind is required: %w", model.ErrNotValid)
	}
	if r.Template != "" && r.Kind != "" {
		return fmt.Errorf("template and kind can't be used at the same time: %w", model.ErrNotValid)
	}
	if r.TotalSteps < 0 {
		return fmt.Errorf("total steps can't be negative: %w", model.ErrNotValid)
	}
	return nil
}

// Response is the result of a launch.
type Response struct {
	OperationID string
	State       model.SessionState
}

// Run launches the operation and watches it until it finishes.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	lreq := model.LaunchRequest{
		Kind:       req.Kind,
		Parameters: map[string]string{},
	}
	for k, v := range req.Parameters {
		lreq.Parameters[k] = v
	}
	totalSteps := req.TotalSteps

	if req.Template != "" {
		tpl, err := s.repo.GetTemplate(ctx, req.Template)
		if err != nil {
			return nil, fmt.Errorf("could not get template: %w", err)
		}

		lreq.Kind = tpl.Kind
		lreq.Parameters[ParamTemplate] = tpl.Name
		if len(tpl.Steps) > 0 {
			lreq.Parameters[ParamSteps] = strings.Join(tpl.Steps, ",")
		}
		if totalSteps == 0 {
			totalSteps = tpl.TotalSteps()
		}
	}

	id, err := s.launcher.Launch(ctx, lreq)
	if err != nil {
		return nil, fmt.Errorf("could not launch operation: %w", err)
	}
	s.logger.Infof("Launched %s operation %s", lreq.Kind, id)
	if req.OnLaunched != nil {
		req.OnLaunched(id)
	}

	st, err := s.watcher.Run(ctx, watch.Request{
		OperationID: id,
		TotalSteps:  totalSteps,
		OnUpdate:    req.OnUpdate,
	})
	if err != nil {
		return nil, fmt.Errorf("could not watch operation %s: %w", id, err)
	}

	return &Response{OperationID: id, State: *st}, nil
}
