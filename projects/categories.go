package projects

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"prism-projects/domain"
)

// AddCategory adds a category to the project.
func (m *Manager) AddCategory(ctx context.Context, project, name string) error {
	return m.addCategory(ctx, nil, project, name)
}

// RemoveCategory moves every task of the category to the default category and
// then drops it. The default category itself cannot be removed.
func (m *Manager) RemoveCategory(ctx context.Context, project, name string) error {
	return m.removeCategory(ctx, nil, project, name)
}

func (m *Manager) addCategory(ctx context.Context, g gate, project, name string) (err error) {
	ctx, c := m.begin(ctx, "AddCategory", project, attribute.String("category.name", name))
	defer c.end(&err)

	if err := domain.ValidateCategory(name); err != nil {
		return err
	}
	_, err = m.update(ctx, project, g, func(p *domain.Project) error {
		if p.HasCategory(name) {
			return fmt.Errorf("category %q in project %q: %w", name, project, domain.ErrDuplicate)
		}
		p.Categories = append(p.Categories, name)
		return nil
	})
	return err
}

func (m *Manager) removeCategory(ctx context.Context, g gate, project, name string) (err error) {
	ctx, c := m.begin(ctx, "RemoveCategory", project, attribute.String("category.name", name))
	defer c.end(&err)

	if name == domain.DefaultCategory {
		return fmt.Errorf("%w: category %q cannot be removed", domain.ErrValidation, name)
	}
	moved := 0
	_, err = m.update(ctx, project, g, func(p *domain.Project) error {
		if !p.HasCategory(name) {
			return fmt.Errorf("category %q in project %q: %w", name, project, domain.ErrNotFound)
		}
		for i := range p.Tasks {
			if p.Tasks[i].Category == name {
				p.Tasks[i].Category = domain.DefaultCategory
				moved++
			}
		}
		p.Categories = slices.DeleteFunc(p.Categories, func(cat string) bool { return cat == name })
		return nil
	})
	if err == nil && moved > 0 {
		m.log.WithField("project", project).WithField("category", name).Debugf("moved %d tasks to %s", moved, domain.DefaultCategory)
	}
	return err
}
