package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeReporter struct {
	mu      sync.Mutex
	report  *Report
	fail    int // number of calls to fail before succeeding
	windows []Window
	called  chan struct{}
}

func (f *fakeReporter) Report(ctx context.Context, window Window) (*Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.windows = append(f.windows, window)
	if f.called != nil {
		select {
		case f.called <- struct{}{}:
		default:
		}
	}
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("transient failure")
	}
	return f.report, nil
}

type memoryAlerts struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memoryAlerts) MarkNotified(ctx context.Context, date, appID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	key := date + "/" + appID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memoryAlerts) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	return 0, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingNotifier) Notify(ctx context.Context, alert Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func overLimitReport() *Report {
	return &Report{
		Records: []UsageRecord{
			{AppID: "video", DisplayName: "Video", TotalUsageMillis: 3 * 3600000, UsedTodayMillis: 3 * 3600000, DailyLimitMillis: 2 * 3600000},
			{AppID: "games", DisplayName: "Games", TotalUsageMillis: 3600000, UsedTodayMillis: 3600000, DailyLimitMillis: 1800000},
			{AppID: "notes", DisplayName: "Notes", TotalUsageMillis: 60000, UsedTodayMillis: 60000, DailyLimitMillis: 3600000},
		},
		TotalMinutes:       241,
		GlobalLimitMinutes: 240,
		GlobalOverLimit:    true,
		Limits:             Limits{Muted: map[string]bool{"games": true}},
	}
}

func TestMonitorCheckSendsAlertsOncePerDay(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)}
	reporter := &fakeReporter{report: overLimitReport()}
	notifier := &recordingNotifier{}

	monitor := NewMonitor(reporter, &memoryAlerts{}, notifier, MonitorConfig{Location: time.UTC}, clock, zerolog.Nop())

	if _, err := monitor.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if notifier.count() != 2 {
		t.Fatalf("Expected 2 alerts (video + device), got %+v", notifier.alerts)
	}
	if notifier.alerts[0].AppID != "video" || notifier.alerts[0].Date != "2024-01-15" {
		t.Errorf("alerts[0] = %+v", notifier.alerts[0])
	}
	if !notifier.alerts[1].Global() || notifier.alerts[1].LimitMillis != 240*60000 {
		t.Errorf("alerts[1] = %+v", notifier.alerts[1])
	}

	wantWindow := Window{
		Start: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).UnixMilli(),
		End:   clock.Now().UnixMilli(),
	}
	if reporter.windows[0] != wantWindow {
		t.Errorf("window = %+v, want %+v", reporter.windows[0], wantWindow)
	}

	clock.Advance(time.Minute)
	if _, err := monitor.Check(context.Background()); err != nil {
		t.Fatalf("second Check() error = %v", err)
	}
	if notifier.count() != 2 {
		t.Errorf("Expected no repeated alerts on the same day, got %d", notifier.count())
	}

	clock.Set(time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC))
	if _, err := monitor.Check(context.Background()); err != nil {
		t.Fatalf("next day Check() error = %v", err)
	}
	if notifier.count() != 4 {
		t.Errorf("Expected alerts again on a new day, got %d", notifier.count())
	}

	if monitor.LastReport() == nil {
		t.Error("LastReport() should hold the latest report")
	}
}

func TestMonitorCheckError(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)}
	reporter := &fakeReporter{fail: 1}

	monitor := NewMonitor(reporter, &memoryAlerts{}, &recordingNotifier{}, MonitorConfig{Location: time.UTC}, clock, zerolog.Nop())

	if _, err := monitor.Check(context.Background()); err == nil {
		t.Fatal("Check() expected error")
	}
	if monitor.LastReport() != nil {
		t.Error("failed cycle should not replace the last report")
	}
}

func TestMonitorRetriesAfterFailure(t *testing.T) {
	reporter := &fakeReporter{
		report: &Report{},
		fail:   2,
		called: make(chan struct{}, 16),
	}
	monitor := NewMonitor(reporter, &memoryAlerts{}, &recordingNotifier{}, MonitorConfig{
		PollInterval: time.Hour,
		RetryDelay:   time.Millisecond,
		Location:     time.UTC,
	}, &TestClock{CurrentTime: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}, zerolog.Nop())

	monitor.Start()
	defer monitor.Stop()

	deadline := time.After(5 * time.Second)
	for calls := 0; calls < 3; {
		select {
		case <-reporter.called:
			calls++
		case <-deadline:
			t.Fatalf("monitor did not retry, saw %d calls", calls)
		}
	}

	// Third call succeeds; the next one waits for the poll interval.
	deadlineReport := time.After(5 * time.Second)
	for monitor.LastReport() == nil {
		select {
		case <-deadlineReport:
			t.Fatal("monitor did not record the successful report")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestMonitorStopWithoutStart(t *testing.T) {
	monitor := NewMonitor(&fakeReporter{}, &memoryAlerts{}, &recordingNotifier{}, MonitorConfig{}, nil, zerolog.Nop())
	monitor.Stop()
}

func TestMonitorZeroGlobalLimit(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	clock := &TestClock{CurrentTime: day.Add(5 * time.Minute)}
	events := &fakeEvents{}
	engine := newTestEngine(events, fakeMetadata{"chat": {DisplayName: "Chat"}},
		&fakeLimits{limits: Limits{DefaultMillis: DefaultAppLimitMillis}},
		EngineConfig{GlobalDailyLimitMinutes: 0})
	notifier := &recordingNotifier{}

	monitor := NewMonitor(engine, &memoryAlerts{}, notifier, MonitorConfig{Location: time.UTC}, clock, zerolog.Nop())

	report, err := monitor.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if report.GlobalOverLimit {
		t.Error("a zero global limit should not be reached without usage")
	}
	if notifier.count() != 0 {
		t.Fatalf("Expected no alerts without usage, got %+v", notifier.alerts)
	}

	// Two minutes of usage reach the zero limit
	events.events = []UsageEvent{
		fg("chat", day.Add(5*time.Minute).UnixMilli()),
		bg("chat", day.Add(7*time.Minute).UnixMilli()),
	}
	clock.Set(day.Add(10 * time.Minute))

	report, err = monitor.Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !report.GlobalOverLimit {
		t.Error("recorded usage should reach a zero global limit")
	}
	if notifier.count() != 1 || !notifier.alerts[0].Global() {
		t.Errorf("Expected one device alert, got %+v", notifier.alerts)
	}
}
