package metadata

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/rs/zerolog"
)

type countingApps struct {
	mu   sync.Mutex
	apps map[string]storage.App
	gets int
	err  error
}

func (c *countingApps) Get(ctx context.Context, id string) (*storage.App, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return nil, c.err
	}
	app, ok := c.apps[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &app, nil
}

func (c *countingApps) List(ctx context.Context) ([]storage.App, error) { return nil, nil }
func (c *countingApps) Upsert(ctx context.Context, app storage.App) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apps[app.ID] = app
	return nil
}
func (c *countingApps) Delete(ctx context.Context, id string) error { return nil }

func TestResolverCachesHits(t *testing.T) {
	apps := &countingApps{apps: map[string]storage.App{
		"com.example.chat": {ID: "com.example.chat", DisplayName: "Chat", Icon: []byte{1}},
		"android.settings": {ID: "android.settings", IsSystem: true},
	}}

	r, err := NewResolver(apps, 8, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		meta, err := r.Resolve(ctx, "com.example.chat")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if meta.DisplayName != "Chat" || meta.IsSystemApp || len(meta.Icon) != 1 {
			t.Errorf("Resolve() = %+v", meta)
		}
	}
	if apps.gets != 1 {
		t.Errorf("store queried %d times, want 1", apps.gets)
	}

	meta, _ := r.Resolve(ctx, "android.settings")
	if !meta.IsSystemApp || meta.DisplayName != "android.settings" {
		t.Errorf("Resolve(system) = %+v", meta)
	}

	if size, capacity := r.CacheStats(); size != 2 || capacity != 8 {
		t.Errorf("CacheStats() = %d, %d", size, capacity)
	}

	r.Invalidate("com.example.chat")
	_, _ = r.Resolve(ctx, "com.example.chat")
	if apps.gets != 3 {
		t.Errorf("store queried %d times after invalidate, want 3", apps.gets)
	}
}

func TestResolverMissesAreNotCached(t *testing.T) {
	apps := &countingApps{apps: map[string]storage.App{}}
	r, _ := NewResolver(apps, 0, zerolog.Nop())
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "com.example.new"); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("Resolve() error = %v, want ErrUnresolvable", err)
	}

	_ = apps.Upsert(ctx, storage.App{ID: "com.example.new", DisplayName: "New"})

	meta, err := r.Resolve(ctx, "com.example.new")
	if err != nil {
		t.Fatalf("Resolve() after install error = %v", err)
	}
	if meta.DisplayName != "New" {
		t.Errorf("Resolve() = %+v", meta)
	}
}

func TestResolverStoreError(t *testing.T) {
	apps := &countingApps{err: errors.New("connection refused")}
	r, _ := NewResolver(apps, 4, zerolog.Nop())

	_, err := r.Resolve(context.Background(), "x")
	if err == nil || errors.Is(err, ErrUnresolvable) {
		t.Errorf("Resolve() error = %v, want wrapped store error", err)
	}

	r.ClearCache()
	if size, _ := r.CacheStats(); size != 0 {
		t.Errorf("cache size = %d after clear", size)
	}
}

func TestResolverRegisterRefreshesCache(t *testing.T) {
	apps := &countingApps{apps: map[string]storage.App{
		"com.example.chat": {ID: "com.example.chat", DisplayName: "Chat"},
	}}
	r, _ := NewResolver(apps, 4, zerolog.Nop())
	ctx := context.Background()

	if meta, _ := r.Resolve(ctx, "com.example.chat"); meta.DisplayName != "Chat" {
		t.Fatalf("Resolve() = %+v", meta)
	}

	if err := r.Register(ctx, storage.App{ID: "com.example.chat", DisplayName: "Chat Pro", IsSystem: true}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	meta, err := r.Resolve(ctx, "com.example.chat")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if meta.DisplayName != "Chat Pro" || !meta.IsSystemApp {
		t.Errorf("Resolve() after Register = %+v, want the updated entry", meta)
	}
}
