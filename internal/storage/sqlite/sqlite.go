package sqlite

import (
	"fmt"
	"path/filepath"

	"github.com/harry123456-afk/Limitliner/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements the storage.Store interface on an embedded SQLite database
type Store struct {
	db            *gorm.DB
	eventStore    *eventStore
	appStore      *appStore
	settingsStore *settingsStore
	alertStore    *alertStore
}

// Open opens (or creates) the database at path and migrates the schema
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := storage.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&eventRow{}, &appRow{}, &settingRow{}, &alertRow{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{
		db:            db,
		eventStore:    &eventStore{db: db},
		appStore:      &appStore{db: db},
		settingsStore: &settingsStore{db: db},
		alertStore:    &alertStore{db: db},
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
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
