package projects

import (
	"context"
	"errors"
	"maps"
	"slices"

	"prism-projects/authz"
	"prism-projects/domain"
)

// GetProject returns the stored project.
func (m *Manager) GetProject(ctx context.Context, name string) (*domain.Project, error) {
	return m.load(ctx, name, nil)
}

// ProjectExists reports whether a project named name is stored.
func (m *Manager) ProjectExists(ctx context.Context, name string) (bool, error) {
	_, err := m.store.Get(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// GetCollaborators returns the collaborators of project and their roles.
func (m *Manager) GetCollaborators(ctx context.Context, project string) (map[string]domain.Role, error) {
	return m.getCollaborators(ctx, nil, project)
}

// GetTaskList returns the project's tasks in insertion order.
func (m *Manager) GetTaskList(ctx context.Context, project string) ([]domain.Task, error) {
	return m.getTaskList(ctx, nil, project)
}

// GetCategoryList returns the project's categories.
func (m *Manager) GetCategoryList(ctx context.Context, project string) ([]string, error) {
	return m.getCategoryList(ctx, nil, project)
}

// CategoryExists reports whether project has a category called name.
func (m *Manager) CategoryExists(ctx context.Context, project, name string) (bool, error) {
	cats, err := m.GetCategoryList(ctx, project)
	if err != nil {
		return false, err
	}
	return slices.Contains(cats, name), nil
}

// GetRole returns username's role in project.
func (m *Manager) GetRole(ctx context.Context, project, username string) (domain.Role, error) {
	p, err := m.store.Get(ctx, project)
	if err != nil {
		return 0, err
	}
	return authz.RoleOf(p, username)
}

// ListProjects returns the projects username collaborates on, as recorded in
// the account index.
func (m *Manager) ListProjects(ctx context.Context, username string) ([]string, error) {
	return m.index.ListProjects(ctx, username)
}

// UserHasProject reports whether project appears in username's index entry.
func (m *Manager) UserHasProject(ctx context.Context, username, project string) (bool, error) {
	names, err := m.index.ListProjects(ctx, username)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, project), nil
}

func (m *Manager) getCollaborators(ctx context.Context, g gate, project string) (map[string]domain.Role, error) {
	p, err := m.load(ctx, project, g)
	if err != nil {
		return nil, err
	}
	return maps.Clone(p.Collaborators), nil
}

func (m *Manager) getTaskList(ctx context.Context, g gate, project string) ([]domain.Task, error) {
	p, err := m.load(ctx, project, g)
	if err != nil {
		return nil, err
	}
	return p.Tasks, nil
}

func (m *Manager) getCategoryList(ctx context.Context, g gate, project string) ([]string, error) {
	p, err := m.load(ctx, project, g)
	if err != nil {
		return nil, err
	}
	return p.Categories, nil
}
