package model

import "fmt"

// Template is a multi-step deployment template. Templates declare their steps
// up front so the expected step count is known before launching.
type Template struct {
	Name        string
	Description string
	Kind        OperationKind
	Steps       []string
}

// TotalSteps returns the number of steps the template declares.
func (t Template) TotalSteps() int { return len(t.Steps) }

// Validate validates the template.
func (t Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}

	if err := t.Kind.Validate(); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}

	if t.Kind == OperationKindTemplate && len(t.Steps) == 0 {
		return fmt.Errorf("template %q requires at least one step: %w", t.Name, ErrNotValid)
	}

	for i, s := range t.Steps {
		if s == "" {
			return fmt.Errorf("template %q step %d has no name: %w", t.Name, i+1, ErrNotValid)
		}
	}

	return nil
}
