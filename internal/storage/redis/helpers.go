package redis

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/storage"
)

// parseApp converts a Redis hash to App
func parseApp(data map[string]string) (*storage.App, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	isSystem, err := strconv.ParseBool(data["is_system"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse is_system: %w", err)
	}

	icon, err := base64.StdEncoding.DecodeString(data["icon"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse icon: %w", err)
	}
	if len(icon) == 0 {
		icon = nil
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &storage.App{
		ID:          data["id"],
		DisplayName: data["display_name"],
		IsSystem:    isSystem,
		Icon:        icon,
		UpdatedAt:   updatedAt,
	}, nil
}

// parseAppSetting converts a Redis hash to AppSetting
func parseAppSetting(data map[string]string) (*storage.AppSetting, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	limit, err := strconv.ParseInt(data["daily_limit_millis"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daily_limit_millis: %w", err)
	}

	muted, err := strconv.ParseBool(data["muted"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse muted: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &storage.AppSetting{
		AppID:            data["app_id"],
		DailyLimitMillis: limit,
		Muted:            muted,
		UpdatedAt:        updatedAt,
	}, nil
}
