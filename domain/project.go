package domain

import (
	"slices"

	"cloud.google.com/go/civil"
)

// DefaultCategory is the sentinel category every project carries. Tasks fall
// back to it when their category is removed.
const DefaultCategory = "None"

// Project is the aggregate persisted as one document in the project store.
type Project struct {
	Name          string
	Description   string
	Collaborators map[string]Role
	Tasks         []Task
	Categories    []string
	// Revision is maintained by the store and used as the compare-and-swap
	// token on replace. Zero means the project has never been stored.
	Revision int64
}

// Task is a single work item inside a project.
type Task struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Deadline    civil.Date `json:"deadline"`
	Category    string     `json:"category"`
	Status      Status     `json:"status"`
	Assignee    string     `json:"assignee"`
}

// Account is a user entry of the account index.
type Account struct {
	Username     string
	PasswordHash string
	Projects     []string
}

// NewProject returns a project with owner as its single collaborator and the
// default category.
func NewProject(name, owner string) *Project {
	return &Project{
		Name:          name,
		Collaborators: map[string]Role{owner: RoleOwner},
		Tasks:         []Task{},
		Categories:    []string{DefaultCategory},
	}
}

// RoleOf returns the collaborator's role and whether username is a collaborator.
func (p *Project) RoleOf(username string) (Role, bool) {
	r, ok := p.Collaborators[username]
	return r, ok
}

// HasCategory reports whether name is one of the project's categories.
func (p *Project) HasCategory(name string) bool {
	return slices.Contains(p.Categories, name)
}

// Owners returns the number of collaborators holding RoleOwner.
func (p *Project) Owners() int {
	n := 0
	for _, r := range p.Collaborators {
		if r == RoleOwner {
			n++
		}
	}
	return n
}

// CollaboratorNames returns the collaborator usernames in sorted order.
func (p *Project) CollaboratorNames() []string {
	names := make([]string, 0, len(p.Collaborators))
	for u := range p.Collaborators {
		names = append(names, u)
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Collaborators = make(map[string]Role, len(p.Collaborators))
	for u, r := range p.Collaborators {
		c.Collaborators[u] = r
	}
	c.Tasks = slices.Clone(p.Tasks)
	if c.Tasks == nil {
		c.Tasks = []Task{}
	}
	c.Categories = slices.Clone(p.Categories)
	return &c
}
