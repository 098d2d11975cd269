package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Events() EventStore
	Apps() AppStore
	Settings() SettingsStore
	Alerts() AlertStore
}

// EventStore holds raw foreground/background transition events.
type EventStore interface {
	// Append stores events. Events without an ID get a generated one.
	Append(ctx context.Context, events ...Event) error
	// Range returns events with start <= timestamp < end ordered by timestamp,
	// then by arrival. A positive limit caps the number of events returned.
	Range(ctx context.Context, start, end int64, limit int) ([]Event, error)
	// DeleteBefore removes events older than cutoff (epoch milliseconds).
	DeleteBefore(ctx context.Context, cutoff int64) (int, error)
}

// AppStore holds app metadata reported by the host package registry.
type AppStore interface {
	Get(ctx context.Context, id string) (*App, error)
	List(ctx context.Context) ([]App, error)
	Upsert(ctx context.Context, app App) error
	Delete(ctx context.Context, id string) error
}

// SettingsStore holds per-app limit settings.
type SettingsStore interface {
	Get(ctx context.Context, appID string) (*AppSetting, error)
	List(ctx context.Context) ([]AppSetting, error)
	Upsert(ctx context.Context, setting AppSetting) error
	Delete(ctx context.Context, appID string) error
}

// AlertStore remembers which over-limit alerts were already sent.
type AlertStore interface {
	// MarkNotified records an alert for app on date (YYYY-MM-DD) and reports
	// whether it was the first one.
	MarkNotified(ctx context.Context, date, appID string) (bool, error)
	DeleteBefore(ctx context.Context, cutoffDate string) (int, error)
}
