package storage

import (
	"context"
	"fmt"
	"iter"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"prism-projects/domain"
)

// projectEntity stores one project document. PartitionKey and RowKey are both
// the project name.
type projectEntity struct {
	entityKeys
	Document     string `json:"Document"`
	Revision     int64  `json:"Revision,string"`
	RevisionType string `json:"Revision@odata.type"`
}

func newProjectEntity(p *domain.Project, revision int64) ([]byte, error) {
	doc, err := domain.EncodeProject(p)
	if err != nil {
		return nil, err
	}
	if len(doc) > maxPropertyBytes {
		return nil, fmt.Errorf("%w: project %q document is %d bytes, limit %d", domain.ErrValidation, p.Name, len(doc), maxPropertyBytes)
	}
	return sonic.ConfigStd.Marshal(projectEntity{
		entityKeys:   entityKeys{PartitionKey: p.Name, RowKey: p.Name},
		Document:     string(doc),
		Revision:     revision,
		RevisionType: edmInt64,
	})
}

func decodeProjectEntity(name string, data []byte) (*domain.Project, error) {
	var ent projectEntity
	if err := sonic.ConfigStd.Unmarshal(data, &ent); err != nil {
		return nil, fmt.Errorf("project %q: %w: %v", name, domain.ErrCorruptData, err)
	}
	return domain.DecodeProject(name, []byte(ent.Document), ent.Revision)
}

// Put stores a new project document at revision 1.
func (s *Storage) Put(ctx context.Context, p *domain.Project) error {
	payload, err := newProjectEntity(p, 1)
	if err != nil {
		return err
	}
	if _, err := s.projectTable.AddEntity(ctx, payload, nil); err != nil {
		return classify(err, "put project %q", p.Name)
	}
	p.Revision = 1
	return nil
}

// Get loads a project document.
func (s *Storage) Get(ctx context.Context, name string) (*domain.Project, error) {
	resp, err := s.projectTable.GetEntity(ctx, name, name, nil)
	if err != nil {
		return nil, classify(err, "get project %q", name)
	}
	return decodeProjectEntity(name, resp.Value)
}

// Replace writes p if the stored revision still equals p.Revision. The
// revision check and the write are tied together by the entity ETag.
func (s *Storage) Replace(ctx context.Context, p *domain.Project) error {
	resp, err := s.projectTable.GetEntity(ctx, p.Name, p.Name, nil)
	if err != nil {
		return classify(err, "replace project %q", p.Name)
	}
	var cur projectEntity
	if err := sonic.ConfigStd.Unmarshal(resp.Value, &cur); err != nil {
		return fmt.Errorf("project %q: %w: %v", p.Name, domain.ErrCorruptData, err)
	}
	if cur.Revision != p.Revision {
		return fmt.Errorf("replace project %q at revision %d, stored %d: %w", p.Name, p.Revision, cur.Revision, domain.ErrConflict)
	}
	payload, err := newProjectEntity(p, p.Revision+1)
	if err != nil {
		return err
	}
	etag := resp.ETag
	_, err = s.projectTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
	if err != nil {
		return classify(err, "replace project %q", p.Name)
	}
	p.Revision++
	return nil
}

// Delete removes a project document if its stored revision still equals
// revision. Like Replace, the check and the delete are tied by the ETag.
func (s *Storage) Delete(ctx context.Context, name string, revision int64) error {
	resp, err := s.projectTable.GetEntity(ctx, name, name, nil)
	if err != nil {
		return classify(err, "delete project %q", name)
	}
	var cur projectEntity
	if err := sonic.ConfigStd.Unmarshal(resp.Value, &cur); err != nil {
		return fmt.Errorf("project %q: %w: %v", name, domain.ErrCorruptData, err)
	}
	if cur.Revision != revision {
		return fmt.Errorf("delete project %q at revision %d, stored %d: %w", name, revision, cur.Revision, domain.ErrConflict)
	}
	etag := resp.ETag
	if _, err := s.projectTable.DeleteEntity(ctx, name, name, &aztables.DeleteEntityOptions{IfMatch: &etag}); err != nil {
		return classify(err, "delete project %q", name)
	}
	return nil
}

// List yields the names of all stored projects, paging through the table lazily.
func (s *Storage) List(ctx context.Context) iter.Seq2[string, error] {
	return listKeys(ctx, s.projectTable, nil)
}

func listKeys(ctx context.Context, c tableClient, filter *string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sel := "PartitionKey,RowKey"
		pager := c.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: filter, Select: &sel})
		for pager.More() {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				yield("", err)
				return
			}
			for _, e := range resp.Entities {
				var k entityKeys
				if err := sonic.ConfigStd.Unmarshal(e, &k); err != nil {
					yield("", err)
					return
				}
				if !yield(k.RowKey, nil) {
					return
				}
			}
		}
	}
}
