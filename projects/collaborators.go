package projects

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"prism-projects/domain"
)

// AddCollaborator grants username role on project and records the project in
// the user's index entry.
func (m *Manager) AddCollaborator(ctx context.Context, project, username string, role domain.Role) error {
	return m.addCollaborator(ctx, nil, project, username, role)
}

// UpdateRole changes the role of an existing collaborator. The last owner of a
// project cannot be demoted.
func (m *Manager) UpdateRole(ctx context.Context, project, username string, role domain.Role) error {
	return m.updateRole(ctx, nil, project, username, role)
}

// RemoveCollaborator drops username from project and from the user's index
// entry. The last owner of a project cannot be removed.
func (m *Manager) RemoveCollaborator(ctx context.Context, project, username string) error {
	return m.removeCollaborator(ctx, nil, project, username)
}

func (m *Manager) addCollaborator(ctx context.Context, g gate, project, username string, role domain.Role) (err error) {
	ctx, c := m.begin(ctx, "AddCollaborator", project, attribute.String("user.name", username), attribute.String("user.role", role.String()))
	defer c.end(&err)

	if !role.Valid() {
		return fmt.Errorf("%w: invalid role %s", domain.ErrValidation, role)
	}
	if err := m.requireAccount(ctx, username); err != nil {
		return err
	}
	_, err = m.update(ctx, project, g, func(p *domain.Project) error {
		if _, ok := p.Collaborators[username]; ok {
			return fmt.Errorf("collaborator %q in project %q: %w", username, project, domain.ErrDuplicate)
		}
		p.Collaborators[username] = role
		return nil
	})
	if err != nil {
		return err
	}
	if err := m.index.AddProjectRef(ctx, username, project); err != nil {
		return m.indexFailed(ctx, project, []string{username}, err)
	}
	return nil
}

func (m *Manager) updateRole(ctx context.Context, g gate, project, username string, role domain.Role) (err error) {
	ctx, c := m.begin(ctx, "UpdateRole", project, attribute.String("user.name", username), attribute.String("user.role", role.String()))
	defer c.end(&err)

	if !role.Valid() {
		return fmt.Errorf("%w: invalid role %s", domain.ErrValidation, role)
	}
	_, err = m.update(ctx, project, g, func(p *domain.Project) error {
		cur, ok := p.Collaborators[username]
		if !ok {
			return fmt.Errorf("user %q in project %q: %w", username, project, domain.ErrNotCollaborator)
		}
		if cur == domain.RoleOwner && role != domain.RoleOwner && p.Owners() == 1 {
			return fmt.Errorf("%w: project %q must keep an owner", domain.ErrValidation, project)
		}
		p.Collaborators[username] = role
		return nil
	})
	return err
}

func (m *Manager) removeCollaborator(ctx context.Context, g gate, project, username string) (err error) {
	ctx, c := m.begin(ctx, "RemoveCollaborator", project, attribute.String("user.name", username))
	defer c.end(&err)

	_, err = m.update(ctx, project, g, func(p *domain.Project) error {
		cur, ok := p.Collaborators[username]
		if !ok {
			return fmt.Errorf("user %q in project %q: %w", username, project, domain.ErrNotCollaborator)
		}
		if cur == domain.RoleOwner && p.Owners() == 1 {
			return fmt.Errorf("%w: project %q must keep an owner", domain.ErrValidation, project)
		}
		delete(p.Collaborators, username)
		return nil
	})
	if err != nil {
		return err
	}
	if err := m.index.RemoveProjectRef(ctx, username, project); err != nil {
		return m.indexFailed(ctx, project, []string{username}, err)
	}
	return nil
}
