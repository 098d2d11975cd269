package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/redis/go-redis/v9"
)

const settingsKey = keyPrefix + "settings"

type settingsStore struct {
	client *redis.Client
}

func settingKey(appID string) string {
	return keyPrefix + "setting:" + appID
}

// Get retrieves the setting of an app
func (s *settingsStore) Get(ctx context.Context, appID string) (*storage.AppSetting, error) {
	data, err := s.client.HGetAll(ctx, settingKey(appID)).Result()
	if err != nil {
		return nil, err
	}
	return parseAppSetting(data)
}

// List returns all app settings
func (s *settingsStore) List(ctx context.Context) ([]storage.AppSetting, error) {
	ids, err := s.client.SMembers(ctx, settingsKey).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.AppSetting{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, settingKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	settings := make([]storage.AppSetting, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		setting, err := parseAppSetting(data)
		if err == nil {
			settings = append(settings, *setting)
		}
	}

	return settings, nil
}

// Upsert creates or updates an app setting
func (s *settingsStore) Upsert(ctx context.Context, setting storage.AppSetting) error {
	script := redis.NewScript(upsertSettingScript)

	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now()
	}

	keys := []string{settingKey(setting.AppID), settingsKey}
	args := []interface{}{
		setting.AppID,
		setting.DailyLimitMillis,
		strconv.FormatBool(setting.Muted),
		setting.UpdatedAt.Format(time.RFC3339Nano),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// Delete removes an app setting
func (s *settingsStore) Delete(ctx context.Context, appID string) error {
	removed, err := s.client.Del(ctx, settingKey(appID)).Result()
	if err != nil {
		return err
	}
	if err := s.client.SRem(ctx, settingsKey, appID).Err(); err != nil {
		return err
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	return nil
}
