package projects

import (
	"context"

	"prism-projects/authz"
	"prism-projects/domain"
)

// Session performs operations on behalf of an authenticated user. Each call
// checks the actor's role against the same project document it then edits.
type Session struct {
	m     *Manager
	actor string
}

// As returns a Session acting as actor. The username is trusted as confirmed
// by the caller's authentication layer.
func (m *Manager) As(actor string) *Session {
	return &Session{m: m, actor: actor}
}

// Actor returns the username the session acts for.
func (s *Session) Actor() string { return s.actor }

func (s *Session) require(perm authz.Permission) gate {
	return func(p *domain.Project) error {
		return authz.Require(p, s.actor, perm)
	}
}

// CreateProject creates a project owned by the actor.
func (s *Session) CreateProject(ctx context.Context, name string) error {
	return s.m.CreateProject(ctx, name, s.actor)
}

func (s *Session) DeleteProject(ctx context.Context, name string) error {
	return s.m.deleteProject(ctx, s.require(authz.DeleteProject), name)
}

func (s *Session) UpdateDescription(ctx context.Context, project, description string) error {
	return s.m.updateDescription(ctx, s.require(authz.MutateContent), project, description)
}

func (s *Session) AddCollaborator(ctx context.Context, project, username string, role domain.Role) error {
	return s.m.addCollaborator(ctx, s.require(authz.ManageCollaborators), project, username, role)
}

func (s *Session) UpdateRole(ctx context.Context, project, username string, role domain.Role) error {
	return s.m.updateRole(ctx, s.require(authz.ManageCollaborators), project, username, role)
}

func (s *Session) RemoveCollaborator(ctx context.Context, project, username string) error {
	return s.m.removeCollaborator(ctx, s.require(authz.ManageCollaborators), project, username)
}

func (s *Session) AddTask(ctx context.Context, project string, task domain.Task) error {
	return s.m.addTask(ctx, s.require(authz.MutateContent), project, task)
}

func (s *Session) ReplaceTaskList(ctx context.Context, project string, tasks []domain.Task) error {
	return s.m.replaceTaskList(ctx, s.require(authz.MutateContent), project, tasks)
}

func (s *Session) AddCategory(ctx context.Context, project, name string) error {
	return s.m.addCategory(ctx, s.require(authz.MutateContent), project, name)
}

func (s *Session) RemoveCategory(ctx context.Context, project, name string) error {
	return s.m.removeCategory(ctx, s.require(authz.MutateContent), project, name)
}

func (s *Session) GetCollaborators(ctx context.Context, project string) (map[string]domain.Role, error) {
	return s.m.getCollaborators(ctx, s.require(authz.Read), project)
}

func (s *Session) GetTaskList(ctx context.Context, project string) ([]domain.Task, error) {
	return s.m.getTaskList(ctx, s.require(authz.Read), project)
}

func (s *Session) GetCategoryList(ctx context.Context, project string) ([]string, error) {
	return s.m.getCategoryList(ctx, s.require(authz.Read), project)
}

// Role returns the actor's own role in project.
func (s *Session) Role(ctx context.Context, project string) (domain.Role, error) {
	return s.m.GetRole(ctx, project, s.actor)
}

// Projects lists the projects the actor collaborates on.
func (s *Session) Projects(ctx context.Context) ([]string, error) {
	return s.m.ListProjects(ctx, s.actor)
}
