package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	// Templates are loaded on creation.
	Templates []model.Template
	Logger    log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.TemplateRepository.
type Repository struct {
	templates map[string]model.Template
	mu        sync.RWMutex
	logger    log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Repository{
		templates: make(map[string]model.Template),
		logger:    cfg.Logger,
	}
	for _, t := range cfg.Templates {
		if err := r.CreateTemplate(context.Background(), t); err != nil {
			return nil, fmt.Errorf("could not load template: %w", err)
		}
	}

	return r, nil
}

// CreateTemplate stores a new template.
func (r *Repository) CreateTemplate(ctx context.Context, t model.Template) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[t.Name]; ok {
		return fmt.Errorf("template %s: %w", t.Name, model.ErrAlreadyExists)
	}

	r.templates[t.Name] = copyTemplate(t)
	r.logger.Debugf("Created template in repository: %s", t.Name)

	return nil
}

// GetTemplate retrieves a template by name.
func (r *Repository) GetTemplate(ctx context.Context, name string) (*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", name, model.ErrNotFound)
	}

	tc := copyTemplate(t)
	return &tc, nil
}

// ListTemplates returns all templates sorted by name.
func (r *Repository) ListTemplates(ctx context.Context) ([]model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]model.Template, 0, len(r.templates))
	for _, t := range r.templates {
		templates = append(templates, copyTemplate(t))
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })

	return templates, nil
}

func copyTemplate(t model.Template) model.Template {
	t.Steps = append([]string(nil), t.Steps...)
	return t
}
