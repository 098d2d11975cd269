package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	eventDaysKey = keyPrefix + "events:days"
	eventSeqKey  = keyPrefix + "events:seq"
)

type eventStore struct {
	client *redis.Client
}

func eventDayKey(day string) string {
	return keyPrefix + "events:" + day
}

// Append stores events, one script call per event in a single pipeline
func (s *eventStore) Append(ctx context.Context, events ...storage.Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, event := range events {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		day := storage.DayOf(event.Timestamp)
		keys := []string{eventDayKey(day), eventDaysKey, eventSeqKey}
		pipe.Eval(ctx, appendEventScript, keys, day, event.Timestamp, string(payload))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	return nil
}

// Range walks the indexed day keys covering [start, end) in order
func (s *eventStore) Range(ctx context.Context, start, end int64, limit int) ([]storage.Event, error) {
	events := make([]storage.Event, 0)
	if end <= start {
		return events, nil
	}

	indexed, err := s.client.SMembers(ctx, eventDaysKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list event days: %w", err)
	}
	days := daysBetween(indexed, start, end-1)
	if len(days) == 0 {
		return events, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(days))
	for i, day := range days {
		cmds[i] = pipe.ZRangeByScore(ctx, eventDayKey(day), &redis.ZRangeBy{
			Min: strconv.FormatInt(start, 10),
			Max: "(" + strconv.FormatInt(end, 10),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("range events: %w", err)
	}

	for _, cmd := range cmds {
		members, err := cmd.Result()
		if err != nil {
			continue
		}
		for _, member := range members {
			event, err := parseEventMember(member)
			if err != nil {
				return nil, err
			}
			events = append(events, *event)
			if limit > 0 && len(events) >= limit {
				return events, nil
			}
		}
	}

	return events, nil
}

// DeleteBefore drops whole days before the cutoff day and trims the cutoff day itself
func (s *eventStore) DeleteBefore(ctx context.Context, cutoff int64) (int, error) {
	cutoffDay := storage.DayOf(cutoff)

	days, err := s.client.SMembers(ctx, eventDaysKey).Result()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, day := range days {
		key := eventDayKey(day)
		switch {
		case day < cutoffDay:
			count, err := s.client.ZCard(ctx, key).Result()
			if err != nil {
				return deleted, err
			}
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return deleted, err
			}
			if err := s.client.SRem(ctx, eventDaysKey, day).Err(); err != nil {
				return deleted, err
			}
			deleted += int(count)

		case day == cutoffDay:
			count, err := s.client.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(count)
		}
	}

	return deleted, nil
}

// daysBetween returns the indexed day keys from the day of first to the day of last, sorted
func daysBetween(indexed []string, first, last int64) []string {
	firstDay := storage.DayOf(first)
	lastDay := storage.DayOf(last)

	days := make([]string, 0, len(indexed))
	for _, day := range indexed {
		if day >= firstDay && day <= lastDay {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	return days
}

// parseEventMember decodes a "{seq}|{json}" sorted set member
func parseEventMember(member string) (*storage.Event, error) {
	_, payload, ok := strings.Cut(member, "|")
	if !ok {
		return nil, fmt.Errorf("malformed event member: %q", member)
	}

	var event storage.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return &event, nil
}
