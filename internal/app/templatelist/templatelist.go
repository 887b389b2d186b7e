package templatelist

import (
	"context"
	"fmt"

	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/storage"
)

// ServiceConfig is the configuration for the template list service.
type ServiceConfig struct {
	Repository storage.TemplateRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists deployment templates.
type Service struct {
	repo   storage.TemplateRepository
	logger log.Logger
}

// NewService creates a new template list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Run returns all templates sorted by name.
func (s *Service) Run(ctx context.Context) ([]model.Template, error) {
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list templates: %w", err)
	}

	s.logger.Debugf("Listed %d templates", len(templates))

	return templates, nil
}
