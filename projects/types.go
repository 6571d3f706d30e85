package projects

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"prism-projects/domain"
)

// ProjectStore persists whole project documents keyed by project name.
type ProjectStore interface {
	// Put stores a new project and fails with domain.ErrDuplicate when the
	// name is taken. On success p.Revision is set to 1.
	Put(ctx context.Context, p *domain.Project) error
	// Get loads a project or fails with domain.ErrNotFound or domain.ErrCorruptData.
	Get(ctx context.Context, name string) (*domain.Project, error)
	// Replace overwrites the stored document if its revision still equals
	// p.Revision and advances p.Revision. It fails with domain.ErrConflict when
	// another writer got there first and domain.ErrNotFound when the project is gone.
	Replace(ctx context.Context, p *domain.Project) error
	// Delete removes a project if its stored revision still equals revision.
	// It fails with domain.ErrNotFound when the project is gone and
	// domain.ErrConflict when another writer advanced the revision.
	Delete(ctx context.Context, name string, revision int64) error
	// List yields every project name. Each range over the sequence re-queries the store.
	List(ctx context.Context) iter.Seq2[string, error]
}

// AccountIndex maps usernames to the projects they collaborate on.
type AccountIndex interface {
	// CreateUser registers an account and fails with domain.ErrDuplicate when it exists.
	CreateUser(ctx context.Context, username, passwordHash string) error
	// EnsureUser creates an empty entry unless one exists.
	EnsureUser(ctx context.Context, username string) error
	GetAccount(ctx context.Context, username string) (domain.Account, error)
	// AddProjectRef appends project unless present; domain.ErrNotFound for unknown users.
	AddProjectRef(ctx context.Context, username, project string) error
	// RemoveProjectRef drops project if present.
	RemoveProjectRef(ctx context.Context, username, project string) error
	// ListProjects returns the user's projects in insertion order.
	ListProjects(ctx context.Context, username string) ([]string, error)
	// SetProjectRefs replaces the user's projects wholesale.
	SetProjectRefs(ctx context.Context, username string, projects []string) error
	// Users yields every username with an entry.
	Users(ctx context.Context) iter.Seq2[string, error]
}

// IndexRepairer receives usernames whose index entry could not be updated
// after a committed project write.
type IndexRepairer interface {
	RequestRepair(ctx context.Context, usernames ...string) error
}

// IndexSyncError reports that a project write was committed but the follow-up
// account index write failed for some users. Their entries are stale until
// SyncUser or RebuildIndex runs.
type IndexSyncError struct {
	Project string
	Users   []string
	Err     error
}

func (e *IndexSyncError) Error() string {
	return fmt.Sprintf("project %q committed but account index not updated for %s: %v", e.Project, strings.Join(e.Users, ", "), e.Err)
}

func (e *IndexSyncError) Unwrap() error { return e.Err }
