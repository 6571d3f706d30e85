package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prism-projects/domain"
)

// CreateUser registers a new account.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&accountRow{Username: username, PasswordHash: passwordHash})
	if res.Error != nil {
		return fmt.Errorf("failed to create user %q: %w", username, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %q: %w", username, domain.ErrDuplicate)
	}
	return nil
}

// EnsureUser creates an empty account entry unless one exists.
func (s *Store) EnsureUser(ctx context.Context, username string) error {
	err := s.CreateUser(ctx, username, "")
	if errors.Is(err, domain.ErrDuplicate) {
		return nil
	}
	return err
}

func getAccount(db *gorm.DB, username string) (accountRow, error) {
	var row accountRow
	if err := db.First(&row, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return accountRow{}, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
		}
		return accountRow{}, fmt.Errorf("failed to find user %q: %w", username, err)
	}
	return row, nil
}

func listRefs(db *gorm.DB, username string) ([]string, error) {
	refs := []string{}
	if err := db.Model(&projectRefRow{}).Where("username = ?", username).Order("id").Pluck("project", &refs).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects of user %q: %w", username, err)
	}
	return refs, nil
}

// GetAccount returns the account and its project references.
func (s *Store) GetAccount(ctx context.Context, username string) (domain.Account, error) {
	db := s.db.WithContext(ctx)
	row, err := getAccount(db, username)
	if err != nil {
		return domain.Account{}, err
	}
	refs, err := listRefs(db, username)
	if err != nil {
		return domain.Account{}, err
	}
	return domain.Account{Username: row.Username, PasswordHash: row.PasswordHash, Projects: refs}, nil
}

// AddProjectRef appends project to username's references unless already present.
func (s *Store) AddProjectRef(ctx context.Context, username, project string) error {
	db := s.db.WithContext(ctx)
	if _, err := getAccount(db, username); err != nil {
		return err
	}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&projectRefRow{Username: username, Project: project}).Error
	if err != nil {
		return fmt.Errorf("failed to add project %q to user %q: %w", project, username, err)
	}
	return nil
}

// RemoveProjectRef drops project from username's references if present.
func (s *Store) RemoveProjectRef(ctx context.Context, username, project string) error {
	err := s.db.WithContext(ctx).Where("username = ? AND project = ?", username, project).Delete(&projectRefRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove project %q from user %q: %w", project, username, err)
	}
	return nil
}

// ListProjects returns username's project references in insertion order.
func (s *Store) ListProjects(ctx context.Context, username string) ([]string, error) {
	db := s.db.WithContext(ctx)
	if _, err := getAccount(db, username); err != nil {
		return nil, err
	}
	return listRefs(db, username)
}

// SetProjectRefs makes username's references exactly projects, in that order.
func (s *Store) SetProjectRefs(ctx context.Context, username string, projects []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAccount(tx, username); err != nil {
			return err
		}
		if err := tx.Where("username = ?", username).Delete(&projectRefRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear projects of user %q: %w", username, err)
		}
		if len(projects) == 0 {
			return nil
		}
		rows := make([]projectRefRow, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, projectRefRow{Username: username, Project: p})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to set projects of user %q: %w", username, err)
		}
		return nil
	})
}

// Users yields every username with an account entry.
func (s *Store) Users(ctx context.Context) iter.Seq2[string, error] {
	return s.keys(ctx, &accountRow{}, "username")
}
