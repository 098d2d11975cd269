package redis

import (
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/redis/go-redis/v9"
)

const appsKey = keyPrefix + "apps"

type appStore struct {
	client *redis.Client
}

func appKey(id string) string {
	return keyPrefix + "app:" + id
}

// Get retrieves an app by ID
func (s *appStore) Get(ctx context.Context, id string) (*storage.App, error) {
	data, err := s.client.HGetAll(ctx, appKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return parseApp(data)
}

// List returns all registered apps
func (s *appStore) List(ctx context.Context) ([]storage.App, error) {
	ids, err := s.client.SMembers(ctx, appsKey).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.App{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, appKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	apps := make([]storage.App, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		app, err := parseApp(data)
		if err == nil {
			apps = append(apps, *app)
		}
	}

	return apps, nil
}

// Upsert creates or updates an app
func (s *appStore) Upsert(ctx context.Context, app storage.App) error {
	script := redis.NewScript(upsertAppScript)

	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = time.Now()
	}

	keys := []string{appKey(app.ID), appsKey}
	args := []interface{}{
		app.ID,
		app.DisplayName,
		strconv.FormatBool(app.IsSystem),
		base64.StdEncoding.EncodeToString(app.Icon),
		app.UpdatedAt.Format(time.RFC3339Nano),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// Delete removes an app
func (s *appStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, appKey(id)).Result()
	if err != nil {
		return err
	}
	if err := s.client.SRem(ctx, appsKey, id).Err(); err != nil {
		return err
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	return nil
}
