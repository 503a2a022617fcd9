package push

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// memoryCache 内存缓存桩，任务同步执行
type memoryCache struct {
	sets map[string]map[string]struct{}
}

func newMemoryCache() *memoryCache {
	return &memoryCache{sets: map[string]map[string]struct{}{}}
}

func (m *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}
func (m *memoryCache) Get(ctx context.Context, key string) (string, error)        { return "", nil }
func (m *memoryCache) GetOrError(ctx context.Context, key string) (string, error) { return "", nil }
func (m *memoryCache) Delete(ctx context.Context, key string) error               { return nil }
func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error  { return nil }
func (m *memoryCache) DeleteByPatterns(ctx context.Context, patterns []string) error {
	return nil
}

func (m *memoryCache) AddToSet(ctx context.Context, key string, members ...interface{}) error {
	if m.sets[key] == nil {
		m.sets[key] = map[string]struct{}{}
	}
	for _, member := range members {
		m.sets[key][fmt.Sprint(member)] = struct{}{}
	}
	return nil
}

func (m *memoryCache) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	out := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		out = append(out, member)
	}
	return out, nil
}

func (m *memoryCache) RemoveFromSet(ctx context.Context, key string, members ...interface{}) error {
	for _, member := range members {
		delete(m.sets[key], fmt.Sprint(member))
	}
	return nil
}

func (m *memoryCache) SubmitTask(action func()) { action() }

func TestOnlineUserIdsTracksPresence(t *testing.T) {
	cache := newMemoryCache()
	g := NewGateway(NewHub(), cache, nil)

	g.markOnline(7, true)
	g.markOnline(3, true)

	ids, err := g.OnlineUserIds(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("ids = %v", ids)
	}

	g.markOnline(7, false)
	ids, err = g.OnlineUserIds(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("ids after disconnect = %v", ids)
	}
}

func TestOnlineUserIdsWithoutCache(t *testing.T) {
	g := NewGateway(NewHub(), nil, nil)
	ids, err := g.OnlineUserIds(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v", ids)
	}
}
