package storage

import (
	"context"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingIndex struct {
	*Storage
	listCalls int
	// afterList runs once, after the next ListProjects has read the table.
	afterList func()
}

func (c *countingIndex) ListProjects(ctx context.Context, username string) ([]string, error) {
	c.listCalls++
	refs, err := c.Storage.ListProjects(ctx, username)
	if hook := c.afterList; hook != nil {
		c.afterList = nil
		hook()
	}
	return refs, err
}

func newTestCache(t *testing.T, ttl time.Duration) (*IndexCache, *countingIndex, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, _, _, _ := newTestStorage()
	base := &countingIndex{Storage: s}
	return NewIndexCache(base, client, ttl), base, mr
}

func TestIndexCacheMissThenHit(t *testing.T) {
	cache, base, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := cache.CreateUser(ctx, "alice", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := cache.AddProjectRef(ctx, "alice", "P1"); err != nil {
		t.Fatalf("add ref: %v", err)
	}

	for range 2 {
		refs, err := cache.ListProjects(ctx, "alice")
		if err != nil {
			t.Fatalf("list projects: %v", err)
		}
		if !reflect.DeepEqual(refs, []string{"P1"}) {
			t.Fatalf("unexpected refs: %v", refs)
		}
	}
	if base.listCalls != 1 {
		t.Fatalf("expected 1 backend call, got %d", base.listCalls)
	}
	if ttl := mr.TTL(refsCacheKey("alice")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestIndexCacheEvictsOnWrite(t *testing.T) {
	cache, base, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := cache.CreateUser(ctx, "alice", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := cache.ListProjects(ctx, "alice"); err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if !mr.Exists(refsCacheKey("alice")) {
		t.Fatalf("expected cached entry")
	}

	writes := []func() error{
		func() error { return cache.AddProjectRef(ctx, "alice", "P1") },
		func() error { return cache.SetProjectRefs(ctx, "alice", []string{"P2", "P1"}) },
		func() error { return cache.RemoveProjectRef(ctx, "alice", "P2") },
	}
	for i, write := range writes {
		if _, err := cache.ListProjects(ctx, "alice"); err != nil {
			t.Fatalf("warm %d: %v", i, err)
		}
		if err := write(); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if mr.Exists(refsCacheKey("alice")) {
			t.Fatalf("write %d did not evict", i)
		}
	}

	refs, err := cache.ListProjects(ctx, "alice")
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if !reflect.DeepEqual(refs, []string{"P1"}) {
		t.Fatalf("unexpected refs: %v", refs)
	}
	if base.listCalls != 4 {
		t.Fatalf("expected 4 backend calls, got %d", base.listCalls)
	}
}

func TestIndexCacheSkipsFillAfterConcurrentWrite(t *testing.T) {
	cache, base, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := cache.CreateUser(ctx, "bob", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	base.afterList = func() {
		if err := cache.AddProjectRef(ctx, "bob", "P"); err != nil {
			t.Errorf("add ref: %v", err)
		}
	}
	refs, err := cache.ListProjects(ctx, "bob")
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected the read to predate the write, got %v", refs)
	}
	if mr.Exists(refsCacheKey("bob")) {
		t.Fatalf("stale list was cached")
	}

	refs, err = cache.ListProjects(ctx, "bob")
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if !reflect.DeepEqual(refs, []string{"P"}) {
		t.Fatalf("unexpected refs: %v", refs)
	}
	if !mr.Exists(refsCacheKey("bob")) {
		t.Fatalf("expected the fresh list to be cached")
	}
}

func TestIndexCacheDropsUnreadableEntry(t *testing.T) {
	cache, base, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := cache.CreateUser(ctx, "alice", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := mr.Set(refsCacheKey("alice"), "{broken"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	refs, err := cache.ListProjects(ctx, "alice")
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(refs) != 0 || base.listCalls != 1 {
		t.Fatalf("expected backend fallback, got %v after %d calls", refs, base.listCalls)
	}
}

func TestIndexCacheWithoutRedis(t *testing.T) {
	s, _, _, _ := newTestStorage()
	base := &countingIndex{Storage: s}
	cache := NewIndexCache(base, nil, time.Minute)
	ctx := context.Background()

	if err := cache.CreateUser(ctx, "alice", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	for range 2 {
		if _, err := cache.ListProjects(ctx, "alice"); err != nil {
			t.Fatalf("list projects: %v", err)
		}
	}
	if base.listCalls != 2 {
		t.Fatalf("expected every call to reach the backend, got %d", base.listCalls)
	}
}
