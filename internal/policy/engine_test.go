package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/policy/opa"
	"github.com/harry123456-afk/Limitliner/internal/usage"
	"github.com/rs/zerolog"
)

const weekendPolicy = `package limitliner.limits

import rego.v1

weekend if input.time.day_of_week in {0, 6}

base := input.app_limit_ms if {
	input.app_limit_ms > 0
} else := input.default_limit_ms

limit_ms := base * 2 if {
	weekend
} else := base

default notify := true

notify := false if input.muted

notify := false if input.is_system

decision := {"limit_ms": limit_ms, "notify": notify}
`

func newTestEngine(t *testing.T, policy string) *Engine {
	t.Helper()
	return newTestEngineIn(t, policy, time.UTC)
}

func newTestEngineIn(t *testing.T, policy string, loc *time.Location) *Engine {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "limits.rego"), []byte(policy), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	engine, err := NewEngine(opa.Config{PolicyDir: dir}, loc, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func TestDecideUsesTimeFacts(t *testing.T) {
	engine := newTestEngine(t, weekendPolicy)

	tests := []struct {
		name       string
		now        time.Time
		facts      Facts
		wantLimit  int64
		wantNotify bool
	}{
		{
			name:       "weekday app limit",
			now:        time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), // Monday
			facts:      Facts{AppID: "chat", AppLimitMillis: 1800000, DefaultLimitMillis: 7200000},
			wantLimit:  1800000,
			wantNotify: true,
		},
		{
			name:       "weekend doubles",
			now:        time.Date(2024, 1, 13, 10, 0, 0, 0, time.UTC), // Saturday
			facts:      Facts{AppID: "chat", AppLimitMillis: 1800000, DefaultLimitMillis: 7200000},
			wantLimit:  3600000,
			wantNotify: true,
		},
		{
			name:       "default limit, muted",
			now:        time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC),
			facts:      Facts{AppID: "video", DefaultLimitMillis: 7200000, Muted: true},
			wantLimit:  7200000,
			wantNotify: false,
		},
		{
			name:       "system app",
			now:        time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC),
			facts:      Facts{AppID: "launcher", DefaultLimitMillis: 7200000, IsSystemApp: true},
			wantLimit:  7200000,
			wantNotify: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine.SetClock(&usage.TestClock{CurrentTime: tt.now})

			decision := engine.Decide(context.Background(), tt.facts)
			if decision.LimitMillis != tt.wantLimit {
				t.Errorf("LimitMillis = %d, want %d", decision.LimitMillis, tt.wantLimit)
			}
			if decision.Notify != tt.wantNotify {
				t.Errorf("Notify = %v, want %v", decision.Notify, tt.wantNotify)
			}
		})
	}
}

func TestDecideFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		policy string
	}{
		{
			name: "negative limit",
			policy: `package limitliner.limits

import rego.v1

decision := {"limit_ms": -1, "notify": true}
`,
		},
		{
			name: "missing limit",
			policy: `package limitliner.limits

import rego.v1

decision := {"notify": true}
`,
		},
		{
			name: "zero limit",
			policy: `package limitliner.limits

import rego.v1

decision := {"limit_ms": 0, "notify": true}
`,
		},
		{
			name: "undefined decision",
			policy: `package limitliner.limits

import rego.v1

decision := {"limit_ms": 1, "notify": true} if input.never
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, tt.policy)

			decision := engine.Decide(context.Background(), Facts{AppID: "chat", DefaultLimitMillis: 600000, Muted: true})
			if decision.LimitMillis != 600000 || decision.Notify || decision.Reason != "fallback" {
				t.Errorf("Decide() = %+v, want fallback to configured values", decision)
			}
		})
	}
}

func TestDecideUsesConfiguredTimezone(t *testing.T) {
	// Friday 20:00 UTC is already Saturday at UTC+9
	now := time.Date(2024, 1, 12, 20, 0, 0, 0, time.UTC)
	facts := Facts{AppID: "chat", AppLimitMillis: 1800000}

	utc := newTestEngineIn(t, weekendPolicy, time.UTC)
	utc.SetClock(&usage.TestClock{CurrentTime: now})
	if got := utc.Decide(context.Background(), facts).LimitMillis; got != 1800000 {
		t.Errorf("UTC LimitMillis = %d, want 1800000", got)
	}

	tokyo := newTestEngineIn(t, weekendPolicy, time.FixedZone("UTC+9", 9*3600))
	tokyo.SetClock(&usage.TestClock{CurrentTime: now})
	if got := tokyo.Decide(context.Background(), facts).LimitMillis; got != 3600000 {
		t.Errorf("UTC+9 LimitMillis = %d, want 3600000", got)
	}
}

func TestEngineModules(t *testing.T) {
	engine := newTestEngine(t, weekendPolicy)

	modules := engine.Modules()
	if len(modules) != 1 || filepath.Base(modules[0]) != "limits.rego" {
		t.Errorf("Modules() = %v, want [limits.rego]", modules)
	}
}
