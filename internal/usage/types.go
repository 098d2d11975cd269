package usage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidWindow is returned when a window ends before it starts.
var ErrInvalidWindow = errors.New("usage: window end is before window start")

// DefaultAppLimitMillis is the per-app daily limit used when nothing else is configured (2 hours).
const DefaultAppLimitMillis int64 = 2 * 60 * 60 * 1000

// DefaultGlobalDailyLimitMinutes is the daily limit across all apps.
const DefaultGlobalDailyLimitMinutes int64 = 300

const millisPerMinute int64 = 60 * 1000

// EventKind is the kind of foreground transition observed for an app.
type EventKind int

const (
	ToForeground EventKind = iota + 1
	ToBackground
)

// String returns the canonical name of the event kind.
func (k EventKind) String() string {
	switch k {
	case ToForeground:
		return "foreground"
	case ToBackground:
		return "background"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseEventKind parses an event kind name. Android's MOVE_TO_* constants are accepted too.
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "foreground", "to_foreground", "move_to_foreground", "1":
		return ToForeground, nil
	case "background", "to_background", "move_to_background", "2":
		return ToBackground, nil
	default:
		return 0, fmt.Errorf("invalid event kind: %q (must be foreground or background)", s)
	}
}

// UsageEvent is one observed foreground/background transition.
type UsageEvent struct {
	AppID     string
	Kind      EventKind
	Timestamp int64 // milliseconds since epoch
}

// Session is a reconstructed foreground interval of one app.
// An open session has not seen its background event yet; End is meaningless while Open is set.
type Session struct {
	AppID string
	Start int64
	End   int64
	Open  bool
}

// Close returns a copy of the session closed at ts.
func (s Session) Close(ts int64) Session {
	s.End = ts
	s.Open = false
	return s
}

// Duration returns the session length in milliseconds. Open sessions are measured
// against queryEnd. Malformed sessions (end before start) count as zero.
func (s Session) Duration(queryEnd int64) int64 {
	end := s.End
	if s.Open {
		end = queryEnd
	}
	if end < s.Start {
		return 0
	}
	return end - s.Start
}

// LastBoundary returns the most recent observed timestamp of the session.
func (s Session) LastBoundary() int64 {
	if s.Open {
		return s.Start
	}
	return s.End
}

// AppSessions holds the sessions of one app in the order they were observed.
type AppSessions struct {
	AppID    string
	Sessions []Session
}

// AppTotal is the aggregated usage of one app over a window.
type AppTotal struct {
	AppID        string
	TotalMillis  int64
	LastUsedAt   int64
	SessionCount int
}

// AppMetadata describes an installed app as reported by the host package registry.
type AppMetadata struct {
	DisplayName string
	IsSystemApp bool
	Icon        []byte
}

// UsageRecord is the final per-app usage entry handed to UI and notifier collaborators.
type UsageRecord struct {
	AppID            string `json:"app_id"`
	DisplayName      string `json:"display_name"`
	IsSystemApp      bool   `json:"is_system_app"`
	Icon             []byte `json:"icon,omitempty"`
	TotalUsageMillis int64  `json:"total_usage_millis"`
	LastUsedAt       int64  `json:"last_used_at"`
	DailyLimitMillis int64  `json:"daily_limit_millis"`
	UsedTodayMillis  int64  `json:"used_today_millis"`
}

// UsageMinutes returns the total usage in whole minutes.
func (r UsageRecord) UsageMinutes() int64 {
	return toMinutes(r.TotalUsageMillis)
}

// ProgressFraction returns used/limit clamped to [0,1]. A non-positive limit reads as full.
func (r UsageRecord) ProgressFraction() float64 {
	if r.DailyLimitMillis <= 0 {
		return 1
	}
	f := float64(r.UsedTodayMillis) / float64(r.DailyLimitMillis)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// IsOverLimit reports whether today's usage reached the daily limit.
func (r UsageRecord) IsOverLimit() bool {
	return IsOverLimit(r.UsedTodayMillis, r.DailyLimitMillis)
}

// RemainingMillis returns the time left before the limit is reached, never negative.
func (r UsageRecord) RemainingMillis() int64 {
	remaining := r.DailyLimitMillis - r.UsedTodayMillis
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatUsage renders the usage as "1h 5m" or "42m".
func (r UsageRecord) FormatUsage() string {
	return formatMinutes(r.UsageMinutes())
}

// FormatRemaining renders the remaining time as "HH:MM".
func (r UsageRecord) FormatRemaining() string {
	remaining := time.Duration(r.RemainingMillis()) * time.Millisecond
	hours := int64(remaining / time.Hour)
	minutes := int64(remaining/time.Minute) % 60
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

func formatMinutes(minutes int64) string {
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Histogram holds minutes of usage per local hour of day.
type Histogram [24]int64

// Total returns the sum of all buckets.
func (h Histogram) Total() int64 {
	var total int64
	for _, m := range h {
		total += m
	}
	return total
}

// Window is the half-open range [Start, End) in epoch milliseconds.
type Window struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// NewWindow validates and returns a window.
func NewWindow(start, end int64) (Window, error) {
	if end < start {
		return Window{}, fmt.Errorf("%w: start=%d end=%d", ErrInvalidWindow, start, end)
	}
	return Window{Start: start, End: end}, nil
}

// WindowFromTimes builds a window from wall-clock times.
func WindowFromTimes(start, end time.Time) (Window, error) {
	return NewWindow(start.UnixMilli(), end.UnixMilli())
}

// Contains reports whether ts falls in the window.
func (w Window) Contains(ts int64) bool {
	return ts >= w.Start && ts < w.End
}

// Range selects a predefined reporting window ending now.
type Range string

const (
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// ParseRange parses a range name.
func ParseRange(s string) (Range, error) {
	switch Range(strings.ToLower(s)) {
	case RangeToday, "day":
		return RangeToday, nil
	case RangeWeek:
		return RangeWeek, nil
	case RangeMonth:
		return RangeMonth, nil
	default:
		return "", fmt.Errorf("invalid range: %s (valid: today, week, month)", s)
	}
}

// Window returns the window of the range ending at now: the last 1, 7 or 30 days.
func (r Range) Window(now time.Time) Window {
	days := 1
	switch r {
	case RangeWeek:
		days = 7
	case RangeMonth:
		days = 30
	}
	end := now.UnixMilli()
	return Window{Start: end - int64(days)*24*60*millisPerMinute, End: end}
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func toMinutes(millis int64) int64 {
	return millis / millisPerMinute
}
