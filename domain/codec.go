package domain

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// SchemaVersion is the version written into every encoded project document.
const SchemaVersion = 1

type projectDocument struct {
	Schema        int             `json:"schema"`
	Description   string          `json:"description"`
	Collaborators map[string]Role `json:"collaborators"`
	Tasks         []Task          `json:"tasks"`
	Categories    []string        `json:"categories"`
}

// EncodeProject serializes the document body of p. Name and Revision are
// stored as keys by the store and are not part of the document.
func EncodeProject(p *Project) ([]byte, error) {
	doc := projectDocument{
		Schema:        SchemaVersion,
		Description:   p.Description,
		Collaborators: p.Collaborators,
		Tasks:         p.Tasks,
		Categories:    p.Categories,
	}
	if doc.Tasks == nil {
		doc.Tasks = []Task{}
	}
	data, err := sonic.ConfigStd.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode project %q: %w", p.Name, err)
	}
	return data, nil
}

// DecodeProject restores a project from its stored document. Any failure is
// reported as ErrCorruptData.
func DecodeProject(name string, data []byte, revision int64) (*Project, error) {
	var doc projectDocument
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("project %q: %w: %v", name, ErrCorruptData, err)
	}
	if doc.Schema < 1 || doc.Schema > SchemaVersion {
		return nil, fmt.Errorf("project %q: %w: unsupported schema %d", name, ErrCorruptData, doc.Schema)
	}
	if len(doc.Collaborators) == 0 {
		return nil, fmt.Errorf("project %q: %w: no collaborators", name, ErrCorruptData)
	}
	p := &Project{
		Name:          name,
		Description:   doc.Description,
		Collaborators: doc.Collaborators,
		Tasks:         doc.Tasks,
		Categories:    doc.Categories,
		Revision:      revision,
	}
	if p.Tasks == nil {
		p.Tasks = []Task{}
	}
	if !p.HasCategory(DefaultCategory) {
		return nil, fmt.Errorf("project %q: %w: missing %q category", name, ErrCorruptData, DefaultCategory)
	}
	return p, nil
}
