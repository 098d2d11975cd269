package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/config"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "limitliner:"

// Store implements the storage.Store interface using Redis
type Store struct {
	client        *redis.Client
	eventStore    *eventStore
	appStore      *appStore
	settingsStore *settingsStore
	alertStore    *alertStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry the port
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:        client,
		eventStore:    &eventStore{client: client},
		appStore:      &appStore{client: client},
		settingsStore: &settingsStore{client: client},
		alertStore:    &alertStore{client: client, ttl: alertTTL},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Events returns the EventStore implementation
func (s *Store) Events() storage.EventStore {
	return s.eventStore
}

// Apps returns the AppStore implementation
func (s *Store) Apps() storage.AppStore {
	return s.appStore
}

// Settings returns the SettingsStore implementation
func (s *Store) Settings() storage.SettingsStore {
	return s.settingsStore
}

// Alerts returns the AlertStore implementation
func (s *Store) Alerts() storage.AlertStore {
	return s.alertStore
}
