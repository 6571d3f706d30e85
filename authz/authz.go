// Package authz maps project roles to the operations they permit. It holds no
// state and blocks nothing by itself; callers check before mutating.
package authz

import (
	"fmt"

	"prism-projects/domain"
)

// Permission names a class of gated operations.
type Permission int

const (
	// Read covers every read of a project's collaborators, tasks and categories.
	Read Permission = iota
	// MutateContent covers task, category and description edits.
	MutateContent
	// ManageCollaborators covers adding, removing and re-roling collaborators.
	ManageCollaborators
	// DeleteProject covers removing the whole project.
	DeleteProject
)

func (p Permission) String() string {
	switch p {
	case Read:
		return "read"
	case MutateContent:
		return "mutate content"
	case ManageCollaborators:
		return "manage collaborators"
	case DeleteProject:
		return "delete project"
	default:
		return fmt.Sprintf("Permission(%d)", int(p))
	}
}

// RoleOf returns username's role in p.
func RoleOf(p *domain.Project, username string) (domain.Role, error) {
	r, ok := p.RoleOf(username)
	if !ok {
		return 0, fmt.Errorf("user %q in project %q: %w", username, p.Name, domain.ErrNotCollaborator)
	}
	return r, nil
}

// CanRead is true for every valid role.
func CanRead(r domain.Role) bool {
	switch r {
	case domain.RoleOwner, domain.RoleMember, domain.RoleGuest:
		return true
	default:
		return false
	}
}

// CanMutateContent is true for OWNER and MEMBER; GUEST is read-only.
func CanMutateContent(r domain.Role) bool {
	switch r {
	case domain.RoleOwner, domain.RoleMember:
		return true
	case domain.RoleGuest:
		return false
	default:
		return false
	}
}

// CanManageCollaborators is true only for OWNER.
func CanManageCollaborators(r domain.Role) bool {
	switch r {
	case domain.RoleOwner:
		return true
	case domain.RoleMember, domain.RoleGuest:
		return false
	default:
		return false
	}
}

// CanDeleteProject follows the collaborator management rule.
func CanDeleteProject(r domain.Role) bool {
	return CanManageCollaborators(r)
}

// Allows reports whether r grants perm.
func Allows(r domain.Role, perm Permission) bool {
	switch perm {
	case Read:
		return CanRead(r)
	case MutateContent:
		return CanMutateContent(r)
	case ManageCollaborators:
		return CanManageCollaborators(r)
	case DeleteProject:
		return CanDeleteProject(r)
	default:
		return false
	}
}

// Require returns nil when username collaborates on p with a role granting
// perm, ErrNotCollaborator when username is not a member, and ErrNotAuthorized
// otherwise.
func Require(p *domain.Project, username string, perm Permission) error {
	r, err := RoleOf(p, username)
	if err != nil {
		return err
	}
	if !Allows(r, perm) {
		return fmt.Errorf("%s may not %s in project %q: %w", r, perm, p.Name, domain.ErrNotAuthorized)
	}
	return nil
}
