package projects

import (
	"context"
	"errors"
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"prism-projects/domain"
)

// membership is the account index as derived from the project store.
type membership struct {
	byUser map[string][]string
	// unreadable holds projects whose documents failed to decode; references
	// to them are kept as-is because their collaborators are unknown.
	unreadable map[string]bool
	projects   int
}

func (m *Manager) scan(ctx context.Context) (*membership, error) {
	ms := &membership{byUser: map[string][]string{}, unreadable: map[string]bool{}}
	for name, err := range m.store.List(ctx) {
		if err != nil {
			return nil, err
		}
		p, err := m.store.Get(ctx, name)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				// deleted while scanning
				continue
			case errors.Is(err, domain.ErrCorruptData):
				m.log.WithField("project", name).WithError(err).Warn("skipping unreadable project during index scan")
				ms.unreadable[name] = true
				continue
			default:
				return nil, err
			}
		}
		ms.projects++
		for _, u := range p.CollaboratorNames() {
			ms.byUser[u] = append(ms.byUser[u], name)
		}
	}
	return ms, nil
}

// reconcile merges username's current references with the ones derived from
// the scan, keeping the existing order and appending new references. The scan
// is a snapshot, so a reference the two sides disagree on is settled by
// re-reading that project.
func (m *Manager) reconcile(ctx context.Context, username string, existing []string, ms *membership) ([]string, error) {
	derived := ms.byUser[username]
	out := make([]string, 0, len(existing)+len(derived))
	keep := func(project string, agreed bool) error {
		if slices.Contains(out, project) {
			return nil
		}
		if !agreed {
			ok, err := m.isCollaborator(ctx, project, username)
			if err != nil || !ok {
				return err
			}
		}
		out = append(out, project)
		return nil
	}
	for _, p := range existing {
		if err := keep(p, ms.unreadable[p] || slices.Contains(derived, p)); err != nil {
			return nil, err
		}
	}
	for _, p := range derived {
		if err := keep(p, slices.Contains(existing, p)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// isCollaborator reports whether username currently collaborates on project.
// Unreadable projects count as a match so their references survive.
func (m *Manager) isCollaborator(ctx context.Context, project, username string) (bool, error) {
	p, err := m.store.Get(ctx, project)
	switch {
	case err == nil:
		_, ok := p.Collaborators[username]
		return ok, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	case errors.Is(err, domain.ErrCorruptData):
		return true, nil
	default:
		return false, fmt.Errorf("recheck project %q: %w", project, err)
	}
}

func (m *Manager) syncFrom(ctx context.Context, ms *membership, username string) (bool, error) {
	existing, err := m.index.ListProjects(ctx, username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	missing := err != nil
	refs, err := m.reconcile(ctx, username, existing, ms)
	if err != nil {
		return false, err
	}
	if missing && len(refs) == 0 {
		return false, nil
	}
	if !missing && slices.Equal(refs, existing) {
		return false, nil
	}
	if err := m.index.EnsureUser(ctx, username); err != nil {
		return false, err
	}
	if err := m.index.SetProjectRefs(ctx, username, refs); err != nil {
		return false, err
	}
	return true, nil
}

// SyncUser re-derives username's index entry from the project store.
func (m *Manager) SyncUser(ctx context.Context, username string) (err error) {
	ctx, c := m.begin(ctx, "SyncUser", "", attribute.String("user.name", username))
	defer c.end(&err)

	if err := domain.ValidateName("user", username); err != nil {
		return err
	}
	ms, err := m.scan(ctx)
	if err != nil {
		return fmt.Errorf("scan projects: %w", err)
	}
	changed, err := m.syncFrom(ctx, ms, username)
	if err != nil {
		return fmt.Errorf("sync %q: %w", username, err)
	}
	if changed {
		m.log.WithField("user", username).Info("account index entry repaired")
	}
	return nil
}

// RebuildReport summarizes a RebuildIndex run.
type RebuildReport struct {
	Projects   int
	Unreadable int
	Users      int
	Repaired   int
}

// RebuildIndex re-derives every index entry from the project store, including
// entries of users that no longer collaborate on any project.
func (m *Manager) RebuildIndex(ctx context.Context) (report RebuildReport, err error) {
	ctx, c := m.begin(ctx, "RebuildIndex", "")
	defer c.end(&err)

	ms, err := m.scan(ctx)
	if err != nil {
		return report, fmt.Errorf("scan projects: %w", err)
	}
	report.Projects = ms.projects
	report.Unreadable = len(ms.unreadable)

	users := make([]string, 0, len(ms.byUser))
	for u := range ms.byUser {
		users = append(users, u)
	}
	for u, err := range m.index.Users(ctx) {
		if err != nil {
			return report, fmt.Errorf("list users: %w", err)
		}
		if _, ok := ms.byUser[u]; !ok {
			users = append(users, u)
		}
	}
	slices.Sort(users)

	var errs []error
	for _, u := range users {
		changed, err := m.syncFrom(ctx, ms, u)
		if err != nil {
			errs = append(errs, fmt.Errorf("sync %q: %w", u, err))
			continue
		}
		report.Users++
		if changed {
			report.Repaired++
		}
	}
	m.log.WithFields(log.Fields{
		"projects":   report.Projects,
		"unreadable": report.Unreadable,
		"users":      report.Users,
		"repaired":   report.Repaired,
	}).Info("account index rebuilt")
	return report, errors.Join(errs...)
}
