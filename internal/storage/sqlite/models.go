package sqlite

import (
	"time"

	"github.com/harry123456-afk/Limitliner/internal/storage"
)

// eventRow keeps an autoincrement sequence so events sharing a timestamp
// come back in arrival order.
type eventRow struct {
	Seq       uint   `gorm:"primaryKey;autoIncrement"`
	ID        string `gorm:"not null;uniqueIndex"`
	AppID     string `gorm:"not null;index"`
	Kind      string `gorm:"not null"`
	Timestamp int64  `gorm:"not null;index"`
}

func (eventRow) TableName() string { return "events" }

func (r eventRow) toEvent() storage.Event {
	return storage.Event{
		ID:        r.ID,
		AppID:     r.AppID,
		Kind:      storage.EventKind(r.Kind),
		Timestamp: r.Timestamp,
	}
}

type appRow struct {
	ID          string `gorm:"primaryKey"`
	DisplayName string `gorm:"not null"`
	IsSystem    bool   `gorm:"not null;default:false"`
	Icon        []byte
	UpdatedAt   time.Time
}

func (appRow) TableName() string { return "apps" }

func (r appRow) toApp() storage.App {
	return storage.App{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		IsSystem:    r.IsSystem,
		Icon:        r.Icon,
		UpdatedAt:   r.UpdatedAt,
	}
}

type settingRow struct {
	AppID            string `gorm:"primaryKey"`
	DailyLimitMillis int64  `gorm:"not null;default:0"`
	Muted            bool   `gorm:"not null;default:false"`
	UpdatedAt        time.Time
}

func (settingRow) TableName() string { return "app_settings" }

func (r settingRow) toSetting() storage.AppSetting {
	return storage.AppSetting{
		AppID:            r.AppID,
		DailyLimitMillis: r.DailyLimitMillis,
		Muted:            r.Muted,
		UpdatedAt:        r.UpdatedAt,
	}
}

type alertRow struct {
	Date      string `gorm:"primaryKey"`
	AppID     string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (alertRow) TableName() string { return "alerts" }
