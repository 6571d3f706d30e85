package storage

import (
	"context"
	"iter"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"prism-projects/domain"
)

type indexBackend interface {
	CreateUser(ctx context.Context, username, passwordHash string) error
	EnsureUser(ctx context.Context, username string) error
	GetAccount(ctx context.Context, username string) (domain.Account, error)
	AddProjectRef(ctx context.Context, username, project string) error
	RemoveProjectRef(ctx context.Context, username, project string) error
	ListProjects(ctx context.Context, username string) ([]string, error)
	SetProjectRefs(ctx context.Context, username string, projects []string) error
	Users(ctx context.Context) iter.Seq2[string, error]
}

// IndexCache wraps an account index with Redis-backed caching of project
// reference lists. Every write through the cache evicts the user's entry and
// bumps the user's generation counter; a read only fills the cache if the
// generation it saw before reading the backing index is still current.
type IndexCache struct {
	base  indexBackend
	redis *redis.Client
	ttl   time.Duration
}

// NewIndexCache creates a caching wrapper using the provided Redis client and TTL.
func NewIndexCache(base indexBackend, client *redis.Client, ttl time.Duration) *IndexCache {
	if base == nil {
		panic("storage.NewIndexCache: base index is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &IndexCache{base: base, redis: client, ttl: ttl}
}

func (c *IndexCache) CreateUser(ctx context.Context, username, passwordHash string) error {
	return c.base.CreateUser(ctx, username, passwordHash)
}

func (c *IndexCache) EnsureUser(ctx context.Context, username string) error {
	return c.base.EnsureUser(ctx, username)
}

func (c *IndexCache) GetAccount(ctx context.Context, username string) (domain.Account, error) {
	return c.base.GetAccount(ctx, username)
}

func (c *IndexCache) AddProjectRef(ctx context.Context, username, project string) error {
	defer c.evict(ctx, username)
	return c.base.AddProjectRef(ctx, username, project)
}

func (c *IndexCache) RemoveProjectRef(ctx context.Context, username, project string) error {
	defer c.evict(ctx, username)
	return c.base.RemoveProjectRef(ctx, username, project)
}

func (c *IndexCache) SetProjectRefs(ctx context.Context, username string, projects []string) error {
	defer c.evict(ctx, username)
	return c.base.SetProjectRefs(ctx, username, projects)
}

func (c *IndexCache) Users(ctx context.Context) iter.Seq2[string, error] {
	return c.base.Users(ctx)
}

func (c *IndexCache) ListProjects(ctx context.Context, username string) ([]string, error) {
	if refs, ok := c.load(ctx, username); ok {
		return refs, nil
	}

	gen, ok := c.generation(ctx, username)
	refs, err := c.base.ListProjects(ctx, username)
	if err != nil {
		return nil, err
	}

	if ok {
		c.store(ctx, username, gen, refs)
	}
	return refs, nil
}

func (c *IndexCache) load(ctx context.Context, username string) ([]string, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, refsCacheKey(username)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing index without failing.
			_ = c.redis.Del(ctx, refsCacheKey(username)).Err()
		}
		return nil, false
	}
	var refs []string
	if err := sonic.ConfigStd.Unmarshal(data, &refs); err != nil || refs == nil {
		_ = c.redis.Del(ctx, refsCacheKey(username)).Err()
		return nil, false
	}
	return refs, true
}

// generation reads the user's write counter. An unset counter reads as "".
func (c *IndexCache) generation(ctx context.Context, username string) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	gen, err := c.redis.Get(ctx, refsGenKey(username)).Result()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return gen, true
}

// store caches refs unless a write has bumped the generation since gen was read.
func (c *IndexCache) store(ctx context.Context, username, gen string, refs []string) {
	if refs == nil {
		refs = []string{}
	}
	data, err := sonic.ConfigStd.Marshal(refs)
	if err != nil {
		return
	}
	genKey := refsGenKey(username)
	// A failed transaction means a writer got in first; the next read refills.
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, refsCacheKey(username), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

func (c *IndexCache) evict(ctx context.Context, username string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, refsGenKey(username))
		pipe.Del(ctx, refsCacheKey(username))
		return nil
	})
}

func refsCacheKey(username string) string {
	return "refs:" + username
}

func refsGenKey(username string) string {
	return "refs-gen:" + username
}
