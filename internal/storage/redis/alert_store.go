package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Alert markers only need to outlive the day they belong to
const alertTTL = 48 * time.Hour

type alertStore struct {
	client *redis.Client
	ttl    time.Duration
}

func alertKey(date, appID string) string {
	return keyPrefix + "alert:" + date + ":" + appID
}

// MarkNotified sets the alert marker only if it is not there yet
func (s *alertStore) MarkNotified(ctx context.Context, date, appID string) (bool, error) {
	return s.client.SetNX(ctx, alertKey(date, appID), "1", s.ttl).Result()
}

// DeleteBefore is a no-op: alert markers expire through their TTL
func (s *alertStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	return 0, nil
}
