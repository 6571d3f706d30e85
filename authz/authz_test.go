package authz

import (
	"errors"
	"testing"

	"prism-projects/domain"
)

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role       domain.Role
		read       bool
		mutate     bool
		manage     bool
		deleteProj bool
	}{
		{role: domain.RoleOwner, read: true, mutate: true, manage: true, deleteProj: true},
		{role: domain.RoleMember, read: true, mutate: true},
		{role: domain.RoleGuest, read: true},
		{role: domain.Role(0)},
		{role: domain.Role(99)},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			if got := CanRead(tt.role); got != tt.read {
				t.Fatalf("CanRead(%s) = %v, want %v", tt.role, got, tt.read)
			}
			if got := CanMutateContent(tt.role); got != tt.mutate {
				t.Fatalf("CanMutateContent(%s) = %v, want %v", tt.role, got, tt.mutate)
			}
			if got := CanManageCollaborators(tt.role); got != tt.manage {
				t.Fatalf("CanManageCollaborators(%s) = %v, want %v", tt.role, got, tt.manage)
			}
			if got := CanDeleteProject(tt.role); got != tt.deleteProj {
				t.Fatalf("CanDeleteProject(%s) = %v, want %v", tt.role, got, tt.deleteProj)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	p := domain.NewProject("Proj1", "alice")
	p.Collaborators["bob"] = domain.RoleMember
	p.Collaborators["carol"] = domain.RoleGuest

	if err := Require(p, "alice", ManageCollaborators); err != nil {
		t.Fatalf("owner manage: %v", err)
	}
	if err := Require(p, "bob", MutateContent); err != nil {
		t.Fatalf("member mutate: %v", err)
	}
	if err := Require(p, "bob", ManageCollaborators); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for member, got %v", err)
	}
	if err := Require(p, "carol", MutateContent); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for guest, got %v", err)
	}
	if err := Require(p, "carol", Read); err != nil {
		t.Fatalf("guest read: %v", err)
	}
	if err := Require(p, "dave", Read); !errors.Is(err, domain.ErrNotCollaborator) {
		t.Fatalf("expected ErrNotCollaborator, got %v", err)
	}
}

func TestRoleOf(t *testing.T) {
	p := domain.NewProject("Proj1", "alice")
	r, err := RoleOf(p, "alice")
	if err != nil || r != domain.RoleOwner {
		t.Fatalf("RoleOf(alice) = %v, %v", r, err)
	}
	if _, err := RoleOf(p, "bob"); !errors.Is(err, domain.ErrNotCollaborator) {
		t.Fatalf("expected ErrNotCollaborator, got %v", err)
	}
}
