package storage

import (
	"context"

	"github.com/slok/deploywatch/internal/model"
)

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name TemplateRepository --structname MockTemplateRepository

// TemplateRepository is the interface for deployment template lookups.
type TemplateRepository interface {
	GetTemplate(ctx context.Context, name string) (*model.Template, error)
	// ListTemplates returns all templates sorted by name.
	ListTemplates(ctx context.Context) ([]model.Template, error)
}
