// Package sqlstore keeps project documents and the account index in an
// embedded SQLite database through GORM.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"prism-projects/domain"
)

const listBatch = 100

// Store implements both projects.ProjectStore and projects.AccountIndex.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer at a time.
	sqlDB.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// New wraps an already opened GORM handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&projectRow{}, &accountRow{}, &projectRefRow{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Put stores a new project document at revision 1.
func (s *Store) Put(ctx context.Context, p *domain.Project) error {
	doc, err := domain.EncodeProject(p)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&projectRow{Name: p.Name, Document: doc, Revision: 1})
	if res.Error != nil {
		return fmt.Errorf("failed to create project %q: %w", p.Name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %q: %w", p.Name, domain.ErrDuplicate)
	}
	p.Revision = 1
	return nil
}

// Get loads a project document.
func (s *Store) Get(ctx context.Context, name string) (*domain.Project, error) {
	var row projectRow
	if err := s.db.WithContext(ctx).First(&row, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find project %q: %w", name, err)
	}
	return domain.DecodeProject(row.Name, row.Document, row.Revision)
}

// Replace writes p if the stored revision still equals p.Revision.
func (s *Store) Replace(ctx context.Context, p *domain.Project) error {
	doc, err := domain.EncodeProject(p)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&projectRow{}).
		Where("name = ? AND revision = ?", p.Name, p.Revision).
		Updates(map[string]any{"document": doc, "revision": p.Revision + 1, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to replace project %q: %w", p.Name, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missOrConflict(ctx, p.Name, p.Revision)
	}
	p.Revision++
	return nil
}

// Delete removes a project document if its stored revision still equals revision.
func (s *Store) Delete(ctx context.Context, name string, revision int64) error {
	res := s.db.WithContext(ctx).Delete(&projectRow{}, "name = ? AND revision = ?", name, revision)
	if res.Error != nil {
		return fmt.Errorf("failed to delete project %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missOrConflict(ctx, name, revision)
	}
	return nil
}

// missOrConflict explains a conditional write that matched no row.
func (s *Store) missOrConflict(ctx context.Context, name string, revision int64) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&projectRow{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to find project %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("project %q: %w", name, domain.ErrNotFound)
	}
	return fmt.Errorf("project %q at revision %d: %w", name, revision, domain.ErrConflict)
}

// List yields project names in key order, fetching them in small batches so
// no connection is held between iterations.
func (s *Store) List(ctx context.Context) iter.Seq2[string, error] {
	return s.keys(ctx, &projectRow{}, "name")
}

func (s *Store) keys(ctx context.Context, model any, column string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		after := ""
		for {
			var batch []string
			err := s.db.WithContext(ctx).Model(model).
				Where(column+" > ?", after).
				Order(column).
				Limit(listBatch).
				Pluck(column, &batch).Error
			if err != nil {
				yield("", err)
				return
			}
			for _, k := range batch {
				if !yield(k, nil) {
					return
				}
			}
			if len(batch) < listBatch {
				return
			}
			after = batch[len(batch)-1]
		}
	}
}
