package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/deploywatch/internal/model"
)

// TemplateCatalogYAMLRepository loads deployment templates from YAML catalog files.
type TemplateCatalogYAMLRepository struct {
	fs fs.FS
}

// NewTemplateCatalogYAMLRepository creates a new YAML template catalog repository.
func NewTemplateCatalogYAMLRepository(filesystem fs.FS) *TemplateCatalogYAMLRepository {
	return &TemplateCatalogYAMLRepository{fs: filesystem}
}

// ListTemplates loads the catalog file and returns its validated templates in file order.
func (r *TemplateCatalogYAMLRepository) ListTemplates(ctx context.Context, path string) ([]model.Template, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading template catalog file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var catalog TemplateCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := catalog.validate(); err != nil {
		return nil, fmt.Errorf("invalid template catalog: %w", err)
	}

	return catalog.toModel(), nil
}

// TemplateCatalog represents the YAML structure of a template catalog.
type TemplateCatalog struct {
	Templates []Template `yaml:"templates"`
}

// Template represents the YAML structure of a deployment template.
type Template struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Kind        string   `yaml:"kind"`
	Steps       []string `yaml:"steps"`
}

func (c TemplateCatalog) validate() error {
	seen := map[string]struct{}{}
	for i, t := range c.Templates {
		if err := t.toModel().Validate(); err != nil {
			return fmt.Errorf("template %d: %w", i, err)
		}

		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("template %q is declared more than once: %w", t.Name, model.ErrNotValid)
		}
		seen[t.Name] = struct{}{}
	}

	return nil
}

func (c TemplateCatalog) toModel() []model.Template {
	templates := make([]model.Template, 0, len(c.Templates))
	for _, t := range c.Templates {
		templates = append(templates, t.toModel())
	}
	return templates
}

func (t Template) toModel() model.Template {
	kind := model.OperationKind(t.Kind)
	if kind == "" {
		kind = model.OperationKindTemplate
	}

	return model.Template{
		Name:        t.Name,
		Description: t.Description,
		Kind:        kind,
		Steps:       t.Steps,
	}
}
