package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harry123456-afk/Limitliner/internal/metrics"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/harry123456-afk/Limitliner/internal/usage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultCacheSize is used when no cache size is configured
const DefaultCacheSize = 512

// ErrUnresolvable is returned for apps missing from the registry
var ErrUnresolvable = errors.New("metadata: app not installed")

// Resolver resolves app metadata from the app store. Successful lookups are
// cached; misses are not, so newly registered apps show up on the next report.
type Resolver struct {
	apps          storage.AppStore
	cache         *lru.Cache[string, usage.AppMetadata]
	cacheCapacity int
	logger        zerolog.Logger
	mu            sync.RWMutex
}

// NewResolver creates a new metadata resolver
func NewResolver(apps storage.AppStore, cacheSize int, logger zerolog.Logger) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, usage.AppMetadata](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}

	return &Resolver{
		apps:          apps,
		cache:         cache,
		cacheCapacity: cacheSize,
		logger:        logger.With().Str("component", "metadata").Logger(),
	}, nil
}

// Resolve implements usage.MetadataResolver
func (r *Resolver) Resolve(ctx context.Context, appID string) (usage.AppMetadata, error) {
	r.mu.RLock()
	if meta, ok := r.cache.Get(appID); ok {
		r.mu.RUnlock()
		metrics.MetadataCacheHits.Inc()
		return meta, nil
	}
	r.mu.RUnlock()

	metrics.MetadataCacheMisses.Inc()

	app, err := r.apps.Get(ctx, appID)
	if errors.Is(err, storage.ErrNotFound) {
		return usage.AppMetadata{}, fmt.Errorf("%w: %s", ErrUnresolvable, appID)
	}
	if err != nil {
		return usage.AppMetadata{}, fmt.Errorf("failed to look up %s: %w", appID, err)
	}

	meta := usage.AppMetadata{
		DisplayName: app.DisplayName,
		IsSystemApp: app.IsSystem,
		Icon:        app.Icon,
	}
	if meta.DisplayName == "" {
		meta.DisplayName = appID
	}

	r.mu.Lock()
	r.cache.Add(appID, meta)
	r.mu.Unlock()

	return meta, nil
}

// Register stores an app registry entry and drops its cached metadata
func (r *Resolver) Register(ctx context.Context, app storage.App) error {
	if err := r.apps.Upsert(ctx, app); err != nil {
		return fmt.Errorf("failed to store app %s: %w", app.ID, err)
	}
	r.Invalidate(app.ID)
	return nil
}

// Invalidate drops a cached entry after the app registry changed
func (r *Resolver) Invalidate(appID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(appID)
}

// ClearCache clears the metadata cache
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
	r.logger.Info().Msg("Metadata cache cleared")
}

// CacheStats returns metadata cache statistics
func (r *Resolver) CacheStats() (size, capacity int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache.Len(), r.cacheCapacity
}
