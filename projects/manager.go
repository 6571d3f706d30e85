package projects

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prism-projects/domain"
)

const tracerName = "prism-projects/projects"

// Manager orchestrates project operations across the project store and the
// account index. Every mutation is a load, an in-memory edit and a
// compare-and-swap replace; collaborator changes then update the index.
type Manager struct {
	store  ProjectStore
	index  AccountIndex
	repair IndexRepairer
	log    *log.Logger
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithRepairer makes the manager hand usernames with stale index entries to r.
func WithRepairer(r IndexRepairer) Option {
	return func(m *Manager) { m.repair = r }
}

// NewManager creates a Manager using the provided stores and logger.
func NewManager(store ProjectStore, index AccountIndex, logger *log.Logger, opts ...Option) *Manager {
	if store == nil || index == nil {
		panic("projects.NewManager: store and index are required")
	}
	if logger == nil {
		panic("Logger is not initialized")
	}
	m := &Manager{store: store, index: index, log: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// gate runs against the freshly loaded project before a mutation is applied.
type gate func(p *domain.Project) error

type call struct {
	m       *Manager
	op      string
	project string
	span    trace.Span
}

func (m *Manager) begin(ctx context.Context, op, project string, attrs ...attribute.KeyValue) (context.Context, *call) {
	attrs = append(attrs, attribute.String("project.name", project))
	ctx, span := otel.Tracer(tracerName).Start(ctx, "projects."+op, trace.WithAttributes(attrs...))
	return ctx, &call{m: m, op: op, project: project, span: span}
}

func (c *call) end(errp *error) {
	fields := log.Fields{"op": c.op, "project": c.project}
	if err := *errp; err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
		fields["error"] = err.Error()
		c.m.log.WithFields(fields).Debug("project.op.failed")
	} else {
		c.m.log.WithFields(fields).Debug("project.op")
	}
	c.span.End()
}

// update loads the project, checks g, applies fn and writes the result back.
func (m *Manager) update(ctx context.Context, name string, g gate, fn func(p *domain.Project) error) (*domain.Project, error) {
	p, err := m.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if g != nil {
		if err := g(p); err != nil {
			return nil, err
		}
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := m.store.Replace(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Manager) load(ctx context.Context, name string, g gate) (*domain.Project, error) {
	p, err := m.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if g != nil {
		if err := g(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// requireAccount fails with domain.ErrNotFound when username has no index entry.
func (m *Manager) requireAccount(ctx context.Context, username string) error {
	if err := domain.ValidateName("user", username); err != nil {
		return err
	}
	if _, err := m.index.GetAccount(ctx, username); err != nil {
		return fmt.Errorf("user %q: %w", username, err)
	}
	return nil
}

// indexFailed reports a committed project write whose index follow-up failed
// and hands the affected users to the repairer when one is configured.
func (m *Manager) indexFailed(ctx context.Context, project string, users []string, err error) error {
	m.log.WithFields(log.Fields{"project": project, "users": users}).WithError(err).Error("account index update failed")
	if m.repair != nil {
		if rerr := m.repair.RequestRepair(context.WithoutCancel(ctx), users...); rerr != nil {
			m.log.WithFields(log.Fields{"project": project, "users": users}).WithError(rerr).Error("index repair request failed")
		}
	}
	return &IndexSyncError{Project: project, Users: users, Err: err}
}

// CreateProject stores a new project owned by owner and records it in the
// owner's index entry. The owner must already have an account.
func (m *Manager) CreateProject(ctx context.Context, name, owner string) (err error) {
	ctx, c := m.begin(ctx, "CreateProject", name, attribute.String("user.name", owner))
	defer c.end(&err)

	if err := domain.ValidateName("project", name); err != nil {
		return err
	}
	if err := m.requireAccount(ctx, owner); err != nil {
		return err
	}
	if err := m.store.Put(ctx, domain.NewProject(name, owner)); err != nil {
		return err
	}
	if err := m.index.AddProjectRef(ctx, owner, name); err != nil {
		return m.indexFailed(ctx, name, []string{owner}, err)
	}
	m.log.WithFields(log.Fields{"project": name, "owner": owner}).Info("project created")
	return nil
}

func (m *Manager) deleteProject(ctx context.Context, g gate, name string) (err error) {
	ctx, c := m.begin(ctx, "DeleteProject", name)
	defer c.end(&err)

	p, err := m.load(ctx, name, g)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, name, p.Revision); err != nil {
		return err
	}
	var failed []string
	var errs []error
	for _, u := range p.CollaboratorNames() {
		if err := m.index.RemoveProjectRef(ctx, u, name); err != nil {
			failed = append(failed, u)
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
		}
	}
	if len(failed) > 0 {
		return m.indexFailed(ctx, name, failed, errors.Join(errs...))
	}
	m.log.WithField("project", name).Info("project deleted")
	return nil
}

// DeleteProject removes the project and then every former collaborator's
// reference to it. The delete is conditioned on the revision that was loaded,
// so a concurrent edit makes it fail with domain.ErrConflict.
func (m *Manager) DeleteProject(ctx context.Context, name string) error {
	return m.deleteProject(ctx, nil, name)
}

// UpdateDescription replaces the project's description.
func (m *Manager) UpdateDescription(ctx context.Context, project, description string) error {
	return m.updateDescription(ctx, nil, project, description)
}

func (m *Manager) updateDescription(ctx context.Context, g gate, project, description string) (err error) {
	ctx, c := m.begin(ctx, "UpdateDescription", project)
	defer c.end(&err)

	_, err = m.update(ctx, project, g, func(p *domain.Project) error {
		p.Description = description
		return nil
	})
	return err
}
