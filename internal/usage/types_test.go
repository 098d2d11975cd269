package usage

import (
	"errors"
	"testing"
	"time"
)

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		in      string
		want    EventKind
		wantErr bool
	}{
		{"foreground", ToForeground, false},
		{"BACKGROUND", ToBackground, false},
		{"MOVE_TO_FOREGROUND", ToForeground, false},
		{" move_to_background ", ToBackground, false},
		{"1", ToForeground, false},
		{"2", ToBackground, false},
		{"paused", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseEventKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEventKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEventKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSessionClose(t *testing.T) {
	open := Session{AppID: "A", Start: 10, Open: true}
	closed := open.Close(40)

	if !open.Open || open.End != 0 {
		t.Errorf("Close mutated the receiver: %+v", open)
	}
	if closed.Open || closed.End != 40 {
		t.Errorf("Close() = %+v", closed)
	}
	if got := closed.Duration(1000); got != 30 {
		t.Errorf("Duration() = %d, want 30", got)
	}
	if got := open.Duration(25); got != 15 {
		t.Errorf("open Duration() = %d, want 15", got)
	}
}

func TestUsageRecordDerived(t *testing.T) {
	tests := []struct {
		name          string
		used, limit   int64
		wantProgress  float64
		wantOver      bool
		wantRemaining int64
	}{
		{"half", 30 * 60000, 60 * 60000, 0.5, false, 30 * 60000},
		{"exact", 60 * 60000, 60 * 60000, 1, true, 0},
		{"over", 90 * 60000, 60 * 60000, 1, true, 0},
		{"zero limit", 0, 0, 1, true, 0},
		{"unused", 0, 60000, 0, false, 60000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := UsageRecord{TotalUsageMillis: tt.used, UsedTodayMillis: tt.used, DailyLimitMillis: tt.limit}
			if got := r.ProgressFraction(); got != tt.wantProgress {
				t.Errorf("ProgressFraction() = %v, want %v", got, tt.wantProgress)
			}
			if got := r.IsOverLimit(); got != tt.wantOver {
				t.Errorf("IsOverLimit() = %v, want %v", got, tt.wantOver)
			}
			if got := r.RemainingMillis(); got != tt.wantRemaining {
				t.Errorf("RemainingMillis() = %d, want %d", got, tt.wantRemaining)
			}
		})
	}
}

func TestUsageRecordFormat(t *testing.T) {
	r := UsageRecord{TotalUsageMillis: 65*60000 + 30000, UsedTodayMillis: 65 * 60000, DailyLimitMillis: 2 * 60 * 60000}
	if got := r.FormatUsage(); got != "1h 5m" {
		t.Errorf("FormatUsage() = %q, want 1h 5m", got)
	}
	if got := r.FormatRemaining(); got != "00:55" {
		t.Errorf("FormatRemaining() = %q, want 00:55", got)
	}

	short := UsageRecord{TotalUsageMillis: 42 * 60000}
	if got := short.FormatUsage(); got != "42m" {
		t.Errorf("FormatUsage() = %q, want 42m", got)
	}
}

func TestNewWindow(t *testing.T) {
	if _, err := NewWindow(10, 5); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("NewWindow(10, 5) error = %v, want ErrInvalidWindow", err)
	}

	w, err := NewWindow(5, 5)
	if err != nil {
		t.Fatalf("NewWindow(5, 5) error = %v", err)
	}
	if w.Contains(5) {
		t.Error("empty window should contain nothing")
	}

	w, _ = NewWindow(0, 10)
	if !w.Contains(0) || !w.Contains(9) || w.Contains(10) {
		t.Error("window should be half-open")
	}
}

func TestRangeWindow(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		days int
	}{
		{"today", 1},
		{"day", 1},
		{"Week", 7},
		{"month", 30},
	}

	for _, tt := range tests {
		r, err := ParseRange(tt.in)
		if err != nil {
			t.Fatalf("ParseRange(%q) error = %v", tt.in, err)
		}
		w := r.Window(now)
		if w.End != now.UnixMilli() {
			t.Errorf("%s: End = %d, want now", tt.in, w.End)
		}
		if got := time.Duration(w.End-w.Start) * time.Millisecond; got != time.Duration(tt.days)*24*time.Hour {
			t.Errorf("%s: span = %v, want %d days", tt.in, got, tt.days)
		}
	}

	if _, err := ParseRange("year"); err == nil {
		t.Error("ParseRange(year) expected error")
	}
}
