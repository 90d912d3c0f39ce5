package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeCache struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
	gets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	f.gets++
	if f.failGet {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCache) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type countingDirectory struct {
	*mockRepo
	calls int
}

func (c *countingDirectory) ActiveProviderIDs(ctx context.Context, businessID int64) ([]int64, error) {
	c.calls++
	return c.mockRepo.ActiveProviderIDs(ctx, businessID)
}

func TestCachedDirectory_HitAndMiss(t *testing.T) {
	repo := newMockRepo()
	repo.items[1] = &Provider{ID: 1, BusinessID: 7, IsActive: true}
	repo.items[2] = &Provider{ID: 2, BusinessID: 7, IsActive: true}
	next := &countingDirectory{mockRepo: repo}
	cache := newFakeCache()
	d := NewCachedDirectory(next, cache, 30*time.Second, zerolog.Nop())

	for i := 0; i < 3; i++ {
		ids, err := d.ActiveProviderIDs(context.Background(), 7)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Fatalf("unexpected ids %v", ids)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected one store lookup, got %d", next.calls)
	}
	if cache.ttls["providers:active:7"] != 30*time.Second {
		t.Errorf("unexpected ttl %v", cache.ttls["providers:active:7"])
	}

	d.Invalidate(context.Background(), 7)
	d.ActiveProviderIDs(context.Background(), 7)
	if next.calls != 2 {
		t.Errorf("expected a fresh lookup after invalidation, got %d calls", next.calls)
	}
}

func TestCachedDirectory_EmptyListIsCached(t *testing.T) {
	next := &countingDirectory{mockRepo: newMockRepo()}
	d := NewCachedDirectory(next, newFakeCache(), 0, zerolog.Nop())

	for i := 0; i < 2; i++ {
		ids, err := d.ActiveProviderIDs(context.Background(), 3)
		if err != nil || ids == nil || len(ids) != 0 {
			t.Fatalf("expected empty non-nil ids, got %v (%v)", ids, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected one store lookup, got %d", next.calls)
	}
}

func TestCachedDirectory_RedisDownFallsBack(t *testing.T) {
	repo := newMockRepo()
	repo.items[5] = &Provider{ID: 5, BusinessID: 1, IsActive: true}
	cache := newFakeCache()
	cache.failGet = true
	d := NewCachedDirectory(repo, cache, time.Minute, zerolog.Nop())

	ids, err := d.ActiveProviderIDs(context.Background(), 1)
	if err != nil || len(ids) != 1 || ids[0] != 5 {
		t.Errorf("expected store result despite cache failure, got %v (%v)", ids, err)
	}
}

func TestCachedDirectory_MalformedEntry(t *testing.T) {
	repo := newMockRepo()
	repo.items[5] = &Provider{ID: 5, BusinessID: 1, IsActive: true}
	cache := newFakeCache()
	cache.data["providers:active:1"] = "not json"
	d := NewCachedDirectory(repo, cache, time.Minute, zerolog.Nop())

	ids, err := d.ActiveProviderIDs(context.Background(), 1)
	if err != nil || len(ids) != 1 {
		t.Errorf("expected store result, got %v (%v)", ids, err)
	}
	if cache.data["providers:active:1"] != "[5]" {
		t.Errorf("expected entry to be rewritten, got %q", cache.data["providers:active:1"])
	}
}

func TestService_InvalidatesCache(t *testing.T) {
	svc, repo, _ := newTestService()
	cache := newFakeCache()
	d := NewCachedDirectory(repo, cache, time.Minute, zerolog.Nop())
	svc.SetCache(d)

	d.ActiveProviderIDs(context.Background(), 1)
	if _, ok := cache.data["providers:active:1"]; !ok {
		t.Fatal("expected cached entry")
	}
	if _, err := svc.Create(context.Background(), 1, CreateInput{Name: "Finn"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.data["providers:active:1"]; ok {
		t.Error("expected create to invalidate the cached ids")
	}
	ids, _ := d.ActiveProviderIDs(context.Background(), 1)
	if len(ids) != 1 {
		t.Errorf("expected the new provider to be visible, got %v", ids)
	}
}
