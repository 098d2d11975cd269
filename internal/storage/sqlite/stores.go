package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// appendBatchSize bounds the number of rows per INSERT statement
const appendBatchSize = 500

type eventStore struct {
	db *gorm.DB
}

// Append stores events in one transaction
func (s *eventStore) Append(ctx context.Context, events ...storage.Event) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]eventRow, len(events))
	for i, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		rows[i] = eventRow{ID: e.ID, AppID: e.AppID, Kind: string(e.Kind), Timestamp: e.Timestamp}
	}

	if err := s.db.WithContext(ctx).CreateInBatches(rows, appendBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}
	return nil
}

// Range returns events in [start, end) ordered by timestamp, then arrival
func (s *eventStore) Range(ctx context.Context, start, end int64, limit int) ([]storage.Event, error) {
	if end <= start {
		return []storage.Event{}, nil
	}

	query := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC, seq ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []eventRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]storage.Event, len(rows))
	for i, r := range rows {
		events[i] = r.toEvent()
	}
	return events, nil
}

// DeleteBefore removes events older than cutoff
func (s *eventStore) DeleteBefore(ctx context.Context, cutoff int64) (int, error) {
	result := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&eventRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

type appStore struct {
	db *gorm.DB
}

// Get retrieves an app by ID
func (s *appStore) Get(ctx context.Context, id string) (*storage.App, error) {
	var row appRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	app := row.toApp()
	return &app, nil
}

// List returns all registered apps ordered by ID
func (s *appStore) List(ctx context.Context) ([]storage.App, error) {
	var rows []appRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}

	apps := make([]storage.App, len(rows))
	for i, r := range rows {
		apps[i] = r.toApp()
	}
	return apps, nil
}

// Upsert creates or updates an app
func (s *appStore) Upsert(ctx context.Context, app storage.App) error {
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = time.Now()
	}
	row := appRow{
		ID:          app.ID,
		DisplayName: app.DisplayName,
		IsSystem:    app.IsSystem,
		Icon:        app.Icon,
		UpdatedAt:   app.UpdatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "is_system", "icon", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert app: %w", err)
	}
	return nil
}

// Delete removes an app
func (s *appStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&appRow{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete app: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type settingsStore struct {
	db *gorm.DB
}

// Get retrieves the setting of an app
func (s *settingsStore) Get(ctx context.Context, appID string) (*storage.AppSetting, error) {
	var row settingRow
	err := s.db.WithContext(ctx).First(&row, "app_id = ?", appID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app setting: %w", err)
	}
	setting := row.toSetting()
	return &setting, nil
}

// List returns all app settings ordered by app ID
func (s *settingsStore) List(ctx context.Context) ([]storage.AppSetting, error) {
	var rows []settingRow
	if err := s.db.WithContext(ctx).Order("app_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list app settings: %w", err)
	}

	settings := make([]storage.AppSetting, len(rows))
	for i, r := range rows {
		settings[i] = r.toSetting()
	}
	return settings, nil
}

// Upsert creates or updates an app setting
func (s *settingsStore) Upsert(ctx context.Context, setting storage.AppSetting) error {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now()
	}
	row := settingRow{
		AppID:            setting.AppID,
		DailyLimitMillis: setting.DailyLimitMillis,
		Muted:            setting.Muted,
		UpdatedAt:        setting.UpdatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "app_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"daily_limit_millis", "muted", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert app setting: %w", err)
	}
	return nil
}

// Delete removes an app setting
func (s *settingsStore) Delete(ctx context.Context, appID string) error {
	result := s.db.WithContext(ctx).Delete(&settingRow{}, "app_id = ?", appID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete app setting: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type alertStore struct {
	db *gorm.DB
}

// MarkNotified inserts the alert marker unless it already exists
func (s *alertStore) MarkNotified(ctx context.Context, date, appID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&alertRow{Date: date, AppID: appID})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark alert: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeleteBefore removes alert markers of days before cutoffDate
func (s *alertStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	result := s.db.WithContext(ctx).Where("date < ?", cutoffDate).Delete(&alertRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old alerts: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
