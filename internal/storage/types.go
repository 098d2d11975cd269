package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventKind is the stored name of a transition.
type EventKind string

const (
	KindForeground EventKind = "foreground"
	KindBackground EventKind = "background"
)

// UnmarshalJSON implements json.Unmarshaler to normalize the kind to lowercase.
func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := EventKind(strings.ToLower(s))

	switch normalized {
	case KindForeground, KindBackground:
		*k = normalized
		return nil
	default:
		return fmt.Errorf("invalid event kind: %s (must be foreground or background)", s)
	}
}

// Event is a stored foreground/background transition.
type Event struct {
	ID        string    `json:"id"`
	AppID     string    `json:"app_id"`
	Kind      EventKind `json:"kind"`
	Timestamp int64     `json:"timestamp"` // epoch milliseconds
}

// App is the registry entry of an installed app.
type App struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	IsSystem    bool      `json:"is_system"`
	Icon        []byte    `json:"icon,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AppSetting holds the user's limit configuration for one app.
type AppSetting struct {
	AppID            string    `json:"app_id"`
	DailyLimitMillis int64     `json:"daily_limit_millis"` // 0 means use the default
	Muted            bool      `json:"muted"`
	UpdatedAt        time.Time `json:"updated_at"`
}
