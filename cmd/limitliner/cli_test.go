package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/harry123456-afk/Limitliner/internal/storage/sqlite"
	"github.com/harry123456-afk/Limitliner/internal/usage"
)

// useSQLiteConfig points the global config path at a sqlite-backed config
func useSQLiteConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "limitliner.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "storage:\n  type: sqlite\n  path: " + dbPath + "\nusage_tracking:\n  timezone: UTC\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	old := configPath
	configPath = cfgPath
	t.Cleanup(func() { configPath = old })
	return dbPath
}

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.jsonl")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}
	return path
}

func TestIngestEventsAndApps(t *testing.T) {
	dbPath := useSQLiteConfig(t)

	events := writeInput(t, `{"app_id": "com.example.a", "kind": "MOVE_TO_FOREGROUND", "timestamp": 1000}

{"app_id": "com.example.a", "kind": "background", "timestamp": 61000}
`)
	if err := runIngestEvents(nil, []string{events}); err != nil {
		t.Fatalf("runIngestEvents() error = %v", err)
	}

	apps := writeInput(t, `{"id": "com.example.a", "display_name": "Example"}`+"\n")
	if err := runIngestApps(nil, []string{apps}); err != nil {
		t.Fatalf("runIngestApps() error = %v", err)
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	stored, err := store.Events().Range(ctx, 0, 100000, 0)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d events, want 2", len(stored))
	}
	if stored[0].Kind != storage.KindForeground || stored[1].Kind != storage.KindBackground {
		t.Errorf("kinds = %s, %s", stored[0].Kind, stored[1].Kind)
	}
	if stored[0].ID == "" {
		t.Error("event ID was not generated")
	}

	app, err := store.Apps().Get(ctx, "com.example.a")
	if err != nil {
		t.Fatalf("Apps().Get() error = %v", err)
	}
	if app.DisplayName != "Example" {
		t.Errorf("DisplayName = %q, want Example", app.DisplayName)
	}
}

func TestIngestEventsRejectsBadLines(t *testing.T) {
	useSQLiteConfig(t)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "bad json", body: "{nope}\n", wantErr: "line 1"},
		{name: "bad kind", body: `{"app_id": "a", "kind": "sideways", "timestamp": 1}` + "\n", wantErr: "invalid event kind"},
		{name: "missing app", body: `{"kind": "foreground", "timestamp": 1}` + "\n", wantErr: "app_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runIngestEvents(nil, []string{writeInput(t, tt.body)})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("runIngestEvents() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestIngestEventsStoresNothingOnLateBadLine(t *testing.T) {
	dbPath := useSQLiteConfig(t)

	body := `{"app_id": "com.example.a", "kind": "foreground", "timestamp": 1000}
{"app_id": "com.example.a", "kind": "background", "timestamp": 2000}
{"app_id": "com.example.a", "kind": "sideways", "timestamp": 3000}
`
	err := runIngestEvents(nil, []string{writeInput(t, body)})
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("runIngestEvents() error = %v, want line 3 error", err)
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	stored, err := store.Events().Range(context.Background(), 0, 100000, 0)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("stored %d events after a rejected input, want 0", len(stored))
	}
}

func TestLimitsCommands(t *testing.T) {
	dbPath := useSQLiteConfig(t)

	if err := runLimitsSet(nil, []string{"com.example.a", "45m"}); err != nil {
		t.Fatalf("runLimitsSet() error = %v", err)
	}
	if err := limitsMuteCmd.RunE(nil, []string{"com.example.a"}); err != nil {
		t.Fatalf("mute error = %v", err)
	}
	if err := runLimitsSet(nil, []string{"com.example.a", "-5m"}); err == nil {
		t.Error("runLimitsSet() expected error for negative limit")
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	setting, err := store.Settings().Get(context.Background(), "com.example.a")
	store.Close()
	if err != nil {
		t.Fatalf("Settings().Get() error = %v", err)
	}
	if setting.DailyLimitMillis != (45 * time.Minute).Milliseconds() || !setting.Muted {
		t.Errorf("setting = %+v", setting)
	}

	if err := runLimitsClear(nil, []string{"com.example.a"}); err != nil {
		t.Fatalf("runLimitsClear() error = %v", err)
	}
	if err := runLimitsClear(nil, []string{"com.example.a"}); err == nil {
		t.Error("runLimitsClear() expected error for missing settings")
	}
}

func TestPrintReport(t *testing.T) {
	color.NoColor = true

	var hist usage.Histogram
	hist[9] = 60
	hist[10] = 30

	report := &usage.Report{
		Window: usage.Window{Start: 0, End: 3600000},
		Records: []usage.UsageRecord{
			{AppID: "a", DisplayName: "Alpha", TotalUsageMillis: 90 * 60000, UsedTodayMillis: 90 * 60000, DailyLimitMillis: 60 * 60000},
			{AppID: "b", DisplayName: "Beta", TotalUsageMillis: 5 * 60000, UsedTodayMillis: 5 * 60000, DailyLimitMillis: 120 * 60000},
		},
		Histogram:          hist,
		TotalMinutes:       95,
		GlobalLimitMinutes: 300,
	}

	var buf bytes.Buffer
	printReport(&buf, report, usage.RangeToday, time.UTC)
	out := buf.String()

	for _, want := range []string{"Alpha", "1h 30m", "OVER LIMIT", "Beta", "01:55", "09:00", "Total: 95 min of 300 min"} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "OVER LIMIT") != 1 {
		t.Errorf("expected exactly one over-limit row:\n%s", out)
	}
}

func TestStatusLine(t *testing.T) {
	if got := statusLine(nil); got != "Waiting for first report" {
		t.Errorf("statusLine(nil) = %q", got)
	}

	report := &usage.Report{
		Records: []usage.UsageRecord{
			{AppID: "a", UsedTodayMillis: 90 * 60000, DailyLimitMillis: 60 * 60000},
			{AppID: "b", UsedTodayMillis: 5 * 60000, DailyLimitMillis: 120 * 60000},
		},
		TotalMinutes:    95,
		GlobalOverLimit: true,
	}
	want := "95 min used today, 1 of 2 apps over limit, global limit reached"
	if got := statusLine(report); got != want {
		t.Errorf("statusLine() = %q, want %q", got, want)
	}
}

func TestTruncateName(t *testing.T) {
	if got := truncateName("short", 10); got != "short" {
		t.Errorf("truncateName() = %q", got)
	}
	if got := truncateName("abcdefghij", 5); got != "abcd…" {
		t.Errorf("truncateName() = %q, want abcd…", got)
	}
}
