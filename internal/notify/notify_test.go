package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/harry123456-afk/Limitliner/internal/usage"
	"github.com/rs/zerolog"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		alert usage.Alert
		want  string
	}{
		{usage.Alert{AppID: "com.example.chat", DisplayName: "Chat"}, "You've reached your daily limit for Chat"},
		{usage.Alert{AppID: "com.example.chat"}, "You've reached your daily limit for com.example.chat"},
		{usage.Alert{}, "You've reached your daily screen time limit"},
	}

	for _, tt := range tests {
		if got := Message(tt.alert); got != tt.want {
			t.Errorf("Message(%+v) = %q, want %q", tt.alert, got, tt.want)
		}
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	err := n.Notify(context.Background(), usage.Alert{
		AppID:       "com.example.video",
		DisplayName: "Video",
		UsedMillis:  130 * 60000,
		LimitMillis: 120 * 60000,
		Date:        "2024-01-15",
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["level"] != "warn" || entry["app_id"] != "com.example.video" || entry["component"] != "notifier" {
		t.Errorf("unexpected log entry: %v", entry)
	}
	if entry["used_minutes"] != float64(130) {
		t.Errorf("used_minutes = %v, want 130", entry["used_minutes"])
	}
}
