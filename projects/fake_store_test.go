package projects

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"prism-projects/domain"
)

type memStore struct {
	mu   sync.Mutex
	docs map[string]*domain.Project
	// corrupt names fail Get with domain.ErrCorruptData.
	corrupt map[string]bool
	// beforeReplace runs once, before the next Replace is applied.
	beforeReplace func()
	// beforeDelete runs once, before the next Delete is applied.
	beforeDelete func()
	// afterList runs once, after the next List has yielded every name.
	afterList func()
	replaces  int
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*domain.Project{}, corrupt: map[string]bool{}}
}

func (s *memStore) Put(ctx context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[p.Name]; ok || s.corrupt[p.Name] {
		return fmt.Errorf("project %q: %w", p.Name, domain.ErrDuplicate)
	}
	p.Revision = 1
	s.docs[p.Name] = p.Clone()
	return nil
}

func (s *memStore) Get(ctx context.Context, name string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupt[name] {
		return nil, fmt.Errorf("project %q: %w", name, domain.ErrCorruptData)
	}
	p, ok := s.docs[name]
	if !ok {
		return nil, fmt.Errorf("project %q: %w", name, domain.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *memStore) Replace(ctx context.Context, p *domain.Project) error {
	if hook := s.beforeReplace; hook != nil {
		s.beforeReplace = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[p.Name]
	if !ok {
		return fmt.Errorf("project %q: %w", p.Name, domain.ErrNotFound)
	}
	if cur.Revision != p.Revision {
		return fmt.Errorf("project %q: %w", p.Name, domain.ErrConflict)
	}
	p.Revision++
	s.docs[p.Name] = p.Clone()
	s.replaces++
	return nil
}

func (s *memStore) Delete(ctx context.Context, name string, revision int64) error {
	if hook := s.beforeDelete; hook != nil {
		s.beforeDelete = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[name]
	if !ok {
		return fmt.Errorf("project %q: %w", name, domain.ErrNotFound)
	}
	if cur.Revision != revision {
		return fmt.Errorf("project %q: %w", name, domain.ErrConflict)
	}
	delete(s.docs, name)
	return nil
}

func (s *memStore) List(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		names := make([]string, 0, len(s.docs)+len(s.corrupt))
		for n := range s.docs {
			names = append(names, n)
		}
		for n := range s.corrupt {
			names = append(names, n)
		}
		s.mu.Unlock()
		slices.Sort(names)
		for _, n := range names {
			if !yield(n, nil) {
				return
			}
		}
		if hook := s.afterList; hook != nil {
			s.afterList = nil
			hook()
		}
	}
}

type memIndex struct {
	mu    sync.Mutex
	users map[string][]string
	// failAdd and failRemove make ref writes for the named users fail.
	failAdd    map[string]error
	failRemove map[string]error
}

func newMemIndex(users ...string) *memIndex {
	ix := &memIndex{users: map[string][]string{}, failAdd: map[string]error{}, failRemove: map[string]error{}}
	for _, u := range users {
		ix.users[u] = []string{}
	}
	return ix
}

func (ix *memIndex) CreateUser(ctx context.Context, username, passwordHash string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.users[username]; ok {
		return fmt.Errorf("user %q: %w", username, domain.ErrDuplicate)
	}
	ix.users[username] = []string{}
	return nil
}

func (ix *memIndex) EnsureUser(ctx context.Context, username string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.users[username]; !ok {
		ix.users[username] = []string{}
	}
	return nil
}

func (ix *memIndex) GetAccount(ctx context.Context, username string) (domain.Account, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	refs, ok := ix.users[username]
	if !ok {
		return domain.Account{}, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	return domain.Account{Username: username, Projects: slices.Clone(refs)}, nil
}

func (ix *memIndex) AddProjectRef(ctx context.Context, username, project string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.failAdd[username]; err != nil {
		return err
	}
	refs, ok := ix.users[username]
	if !ok {
		return fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	if !slices.Contains(refs, project) {
		ix.users[username] = append(refs, project)
	}
	return nil
}

func (ix *memIndex) RemoveProjectRef(ctx context.Context, username, project string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.failRemove[username]; err != nil {
		return err
	}
	if refs, ok := ix.users[username]; ok {
		ix.users[username] = slices.DeleteFunc(refs, func(p string) bool { return p == project })
	}
	return nil
}

func (ix *memIndex) ListProjects(ctx context.Context, username string) ([]string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	refs, ok := ix.users[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	return slices.Clone(refs), nil
}

func (ix *memIndex) SetProjectRefs(ctx context.Context, username string, projects []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.users[username]; !ok {
		return fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	ix.users[username] = slices.Clone(projects)
	return nil
}

func (ix *memIndex) Users(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ix.mu.Lock()
		names := make([]string, 0, len(ix.users))
		for u := range ix.users {
			names = append(names, u)
		}
		ix.mu.Unlock()
		slices.Sort(names)
		for _, u := range names {
			if !yield(u, nil) {
				return
			}
		}
	}
}

type fakeRepairer struct {
	mu       sync.Mutex
	requests []string
	err      error
}

func (r *fakeRepairer) RequestRepair(ctx context.Context, usernames ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, usernames...)
	return r.err
}
