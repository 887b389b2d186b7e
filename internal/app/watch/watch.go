package watch

import (
	"context"
	"fmt"

	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/session"
)

// SessionStarter starts polling sessions.
type SessionStarter interface {
	Start(ctx context.Context, req session.StartRequest) (*session.Handle, error)
}

// ServiceConfig is the configuration for the watch service.
type ServiceConfig struct {
	SessionStarter SessionStarter
	Logger         log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.SessionStarter == nil {
		return fmt.Errorf("session starter is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Watch"})

	return nil
}

// Service watches a running operation until it finishes.
type Service struct {
	starter SessionStarter
	logger  log.Logger
}

// NewService creates a new watch service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		starter: cfg.SessionStarter,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the watch request parameters.
type Request struct {
	OperationID string
	// TotalSteps is the number of steps the operation declares, 0 when unknown.
	TotalSteps int
	// OnUpdate is called with every session update, in order.
	OnUpdate func(model.Update)
}

// Run watches the operation and returns its terminal state. A failed operation is
// not an error, callers decide how to report it. Cancelling the context cancels
// the session.
func (s *Service) Run(ctx context.Context, req Request) (*model.SessionState, error) {
	h, err := s.starter.Start(ctx, session.StartRequest{
		OperationID:    req.OperationID,
		TotalStepCount: req.TotalSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("could not start session: %w", err)
	}
	defer h.Cancel()

	s.logger.Debugf("Watching operation %s with session %s", req.OperationID, h.ID())

	updates := h.Updates()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case u, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				st := h.State()
				return &st, nil
			}
			if req.OnUpdate != nil {
				req.OnUpdate(u)
			}
		}
	}
}
