// Package backend assembles the configured stores for the binaries.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"prism-projects/config"
	"prism-projects/projects"
	"prism-projects/storage"
	"prism-projects/storage/sqlstore"
)

// Backend holds the project store, the account index and the optional
// repair queue and Redis client selected by a Config.
type Backend struct {
	Store  projects.ProjectStore
	Index  projects.AccountIndex
	Repair *storage.RepairQueue
	Redis  *redis.Client

	init    []func(ctx context.Context) error
	closers []func() error
}

// Open connects to the stores named by cfg. Nothing is created until Init.
func Open(cfg config.Config) (*Backend, error) {
	b := &Backend{}
	var index projects.AccountIndex
	switch cfg.Backend {
	case config.BackendAzure:
		st, err := storage.New(cfg.ConnectionString, storage.Tables{
			Projects:    cfg.ProjectsTable,
			Accounts:    cfg.AccountsTable,
			Memberships: cfg.MembershipsTable,
		})
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		b.Store, index = st, st
		b.init = append(b.init, st.CreateTables)
		if cfg.RepairQueue != "" {
			q, err := storage.NewRepairQueue(cfg.ConnectionString, cfg.RepairQueue)
			if err != nil {
				return nil, fmt.Errorf("repair queue: %w", err)
			}
			b.Repair = q
			b.init = append(b.init, q.CreateQueue)
		}
	case config.BackendSQLite:
		st, err := sqlstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.Store, index = st, st
		b.init = append(b.init, st.Migrate)
		b.closers = append(b.closers, st.Close)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	b.Index = index
	if cfg.RedisConnectionString != "" {
		opts, err := config.RedisOptions(cfg.RedisConnectionString)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Redis = redis.NewClient(opts)
		b.closers = append(b.closers, b.Redis.Close)
		b.Index = storage.NewIndexCache(index, b.Redis, cfg.IndexCacheTTL)
	}
	return b, nil
}

// Init creates tables, queues or schema as required by the backend. It is
// safe to run repeatedly.
func (b *Backend) Init(ctx context.Context) error {
	for _, fn := range b.init {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Manager builds a projects.Manager over the backend, wiring the repair queue
// when one is configured.
func (b *Backend) Manager(logger *log.Logger) *projects.Manager {
	var opts []projects.Option
	if b.Repair != nil {
		opts = append(opts, projects.WithRepairer(b.Repair))
	}
	return projects.NewManager(b.Store, b.Index, logger, opts...)
}

// Close releases database handles and network clients.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
