package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"prism-projects/domain"
)

type accountEntity struct {
	entityKeys
	PasswordHash string `json:"PasswordHash"`
}

// membershipEntity records one project reference. PartitionKey is the
// username, RowKey the project name; AddedAt orders the references.
type membershipEntity struct {
	entityKeys
	AddedAt     int64  `json:"AddedAt,string"`
	AddedAtType string `json:"AddedAt@odata.type"`
}

func (s *Storage) addAccount(ctx context.Context, username, passwordHash string) error {
	payload, err := sonic.ConfigStd.Marshal(accountEntity{
		entityKeys:   entityKeys{PartitionKey: username, RowKey: username},
		PasswordHash: passwordHash,
	})
	if err != nil {
		return err
	}
	_, err = s.accountTable.AddEntity(ctx, payload, nil)
	return classify(err, "create user %q", username)
}

// CreateUser registers a new account.
func (s *Storage) CreateUser(ctx context.Context, username, passwordHash string) error {
	return s.addAccount(ctx, username, passwordHash)
}

// EnsureUser creates an empty account entry unless one exists.
func (s *Storage) EnsureUser(ctx context.Context, username string) error {
	err := s.addAccount(ctx, username, "")
	if errors.Is(err, domain.ErrDuplicate) {
		return nil
	}
	return err
}

func (s *Storage) getAccount(ctx context.Context, username string) (accountEntity, error) {
	resp, err := s.accountTable.GetEntity(ctx, username, username, nil)
	if err != nil {
		return accountEntity{}, classify(err, "user %q", username)
	}
	var ent accountEntity
	if err := sonic.ConfigStd.Unmarshal(resp.Value, &ent); err != nil {
		return accountEntity{}, fmt.Errorf("user %q: %w: %v", username, domain.ErrCorruptData, err)
	}
	return ent, nil
}

// GetAccount returns the account and its project references.
func (s *Storage) GetAccount(ctx context.Context, username string) (domain.Account, error) {
	ent, err := s.getAccount(ctx, username)
	if err != nil {
		return domain.Account{}, err
	}
	refs, err := s.listMemberships(ctx, username)
	if err != nil {
		return domain.Account{}, err
	}
	return domain.Account{Username: username, PasswordHash: ent.PasswordHash, Projects: names(refs)}, nil
}

// AddProjectRef records project for username. Existing references are kept.
func (s *Storage) AddProjectRef(ctx context.Context, username, project string) error {
	if _, err := s.getAccount(ctx, username); err != nil {
		return err
	}
	payload, err := s.membership(username, project, s.now().UnixNano())
	if err != nil {
		return err
	}
	if _, err := s.membershipTable.AddEntity(ctx, payload, nil); err != nil && statusCode(err) != 409 {
		return classify(err, "add project %q to user %q", project, username)
	}
	return nil
}

// RemoveProjectRef drops project from username's references if present.
func (s *Storage) RemoveProjectRef(ctx context.Context, username, project string) error {
	if _, err := s.membershipTable.DeleteEntity(ctx, username, project, nil); err != nil && statusCode(err) != 404 {
		return classify(err, "remove project %q from user %q", project, username)
	}
	return nil
}

// ListProjects returns username's project references in insertion order.
func (s *Storage) ListProjects(ctx context.Context, username string) ([]string, error) {
	if _, err := s.getAccount(ctx, username); err != nil {
		return nil, err
	}
	refs, err := s.listMemberships(ctx, username)
	if err != nil {
		return nil, err
	}
	return names(refs), nil
}

// SetProjectRefs makes username's references exactly projects, in that order.
func (s *Storage) SetProjectRefs(ctx context.Context, username string, projects []string) error {
	if _, err := s.getAccount(ctx, username); err != nil {
		return err
	}
	current, err := s.listMemberships(ctx, username)
	if err != nil {
		return err
	}
	base := s.now().UnixNano()
	for i, p := range projects {
		payload, err := s.membership(username, p, base+int64(i))
		if err != nil {
			return err
		}
		if _, err := s.membershipTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
			return classify(err, "set project %q for user %q", p, username)
		}
	}
	for _, ref := range current {
		if slices.Contains(projects, ref.RowKey) {
			continue
		}
		if _, err := s.membershipTable.DeleteEntity(ctx, username, ref.RowKey, nil); err != nil && statusCode(err) != 404 {
			return classify(err, "remove project %q from user %q", ref.RowKey, username)
		}
	}
	return nil
}

// Users yields every username with an account entry.
func (s *Storage) Users(ctx context.Context) iter.Seq2[string, error] {
	return listKeys(ctx, s.accountTable, nil)
}

func (s *Storage) membership(username, project string, addedAt int64) ([]byte, error) {
	return sonic.ConfigStd.Marshal(membershipEntity{
		entityKeys:  entityKeys{PartitionKey: username, RowKey: project},
		AddedAt:     addedAt,
		AddedAtType: edmInt64,
	})
}

func (s *Storage) listMemberships(ctx context.Context, username string) ([]membershipEntity, error) {
	filter := partitionFilter(username)
	pager := s.membershipTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	refs := []membershipEntity{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list projects of user %q", username)
		}
		for _, e := range resp.Entities {
			var ent membershipEntity
			if err := sonic.ConfigStd.Unmarshal(e, &ent); err != nil {
				return nil, fmt.Errorf("user %q: %w: %v", username, domain.ErrCorruptData, err)
			}
			refs = append(refs, ent)
		}
	}
	slices.SortStableFunc(refs, func(a, b membershipEntity) int {
		if c := cmp.Compare(a.AddedAt, b.AddedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RowKey, b.RowKey)
	})
	return refs, nil
}

func names(refs []membershipEntity) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.RowKey)
	}
	return out
}
