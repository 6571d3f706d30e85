package projects

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"prism-projects/domain"
)

// AddTask appends task to the project's task list. An empty category means
// the default category and an unset status means TODO. The assignee must be a
// collaborator and the category must exist.
func (m *Manager) AddTask(ctx context.Context, project string, task domain.Task) error {
	return m.addTask(ctx, nil, project, task)
}

// ReplaceTaskList swaps the whole task list. Every task must have all of its
// fields populated and reference an existing category and collaborator.
func (m *Manager) ReplaceTaskList(ctx context.Context, project string, tasks []domain.Task) error {
	return m.replaceTaskList(ctx, nil, project, tasks)
}

func (m *Manager) addTask(ctx context.Context, g gate, project string, task domain.Task) (err error) {
	ctx, c := m.begin(ctx, "AddTask", project, attribute.String("task.name", task.Name))
	defer c.end(&err)

	if task.Category == "" {
		task.Category = domain.DefaultCategory
	}
	if task.Status == 0 {
		task.Status = domain.StatusTodo
	}
	if err := domain.ValidateTask(task, false); err != nil {
		return err
	}
	_, err = m.update(ctx, project, g, func(p *domain.Project) error {
		if err := p.CheckTask(task); err != nil {
			return err
		}
		p.Tasks = append(p.Tasks, task)
		return nil
	})
	return err
}

func (m *Manager) replaceTaskList(ctx context.Context, g gate, project string, tasks []domain.Task) (err error) {
	ctx, c := m.begin(ctx, "ReplaceTaskList", project, attribute.Int("task.count", len(tasks)))
	defer c.end(&err)

	for i, t := range tasks {
		if err := domain.ValidateTask(t, true); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
	}
	_, err = m.update(ctx, project, g, func(p *domain.Project) error {
		for i, t := range tasks {
			if err := p.CheckTask(t); err != nil {
				return fmt.Errorf("task %d: %w", i, err)
			}
		}
		p.Tasks = slices.Clone(tasks)
		if p.Tasks == nil {
			p.Tasks = []domain.Task{}
		}
		return nil
	})
	return err
}
