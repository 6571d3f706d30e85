package domain

import (
	"fmt"
	"strings"
	"unicode"

	"cloud.google.com/go/civil"
)

const (
	MinPriority = 1
	MaxPriority = 5

	maxNameLen = 255
)

// ValidateName checks a name that is used as a storage key. kind only feeds
// the error message.
func ValidateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s name is empty", ErrValidation, kind)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: %s name longer than %d bytes", ErrValidation, kind, maxNameLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(`/\#?`, r) {
			return fmt.Errorf("%w: %s name %q contains %q", ErrValidation, kind, name, r)
		}
	}
	return nil
}

// ValidateCategory checks a category name. Categories live inside the project
// document rather than in a storage key, so only blank names and control
// characters are rejected.
func ValidateCategory(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: category name is empty", ErrValidation)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: category name %q contains a control character", ErrValidation, name)
	}
	return nil
}

// ValidateTask checks the task's own fields. When complete is set every field
// must be populated, as required for wholesale task list replacement.
func ValidateTask(t Task, complete bool) error {
	var missing []string
	if strings.TrimSpace(t.Name) == "" {
		missing = append(missing, "name")
	}
	if complete && strings.TrimSpace(t.Description) == "" {
		missing = append(missing, "description")
	}
	if t.Deadline == (civil.Date{}) {
		missing = append(missing, "deadline")
	}
	if complete && t.Category == "" {
		missing = append(missing, "category")
	}
	if complete && t.Status == 0 {
		missing = append(missing, "status")
	}
	if t.Assignee == "" {
		missing = append(missing, "assignee")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: task %q missing %s", ErrValidation, t.Name, strings.Join(missing, ", "))
	}
	if t.Priority < MinPriority || t.Priority > MaxPriority {
		return fmt.Errorf("%w: task %q priority %d outside %d-%d", ErrValidation, t.Name, t.Priority, MinPriority, MaxPriority)
	}
	if !t.Deadline.IsValid() {
		return fmt.Errorf("%w: task %q deadline %s is not a calendar date", ErrValidation, t.Name, t.Deadline)
	}
	if t.Status != 0 && !t.Status.Valid() {
		return fmt.Errorf("%w: task %q has invalid status", ErrValidation, t.Name)
	}
	return nil
}

// CheckTask validates the references a task makes into p: its category must
// exist and its assignee must currently collaborate on p.
func (p *Project) CheckTask(t Task) error {
	if !p.HasCategory(t.Category) {
		return fmt.Errorf("task %q category %q: %w", t.Name, t.Category, ErrNotFound)
	}
	if _, ok := p.Collaborators[t.Assignee]; !ok {
		return fmt.Errorf("task %q assignee %q: %w", t.Name, t.Assignee, ErrNotCollaborator)
	}
	return nil
}
