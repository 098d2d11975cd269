package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/metrics"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/rs/zerolog"
)

const (
	// DefaultPollInterval is how often the monitor re-aggregates today's usage
	DefaultPollInterval = time.Minute

	// DefaultRetryDelay is the wait before retrying a failed cycle
	DefaultRetryDelay = time.Second

	// GlobalAlertKey identifies the device-wide limit in the alert store
	GlobalAlertKey = "*"
)

// Alert describes a reached daily limit. AppID is empty for the device-wide limit.
type Alert struct {
	AppID       string
	DisplayName string
	UsedMillis  int64
	LimitMillis int64
	Date        string
	At          time.Time
}

// Global reports whether the alert concerns the device-wide limit.
func (a Alert) Global() bool {
	return a.AppID == ""
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Reporter produces usage reports; *Engine implements it.
type Reporter interface {
	Report(ctx context.Context, window Window) (*Report, error)
}

// MonitorConfig holds monitor configuration
type MonitorConfig struct {
	PollInterval time.Duration
	RetryDelay   time.Duration
	Location     *time.Location
}

// Monitor periodically aggregates today's usage and fires an alert for every
// app over its limit, at most once per app per local day.
type Monitor struct {
	reporter Reporter
	alerts   storage.AlertStore
	notifier Notifier
	clock    Clock
	config   MonitorConfig
	logger   zerolog.Logger

	mu         sync.RWMutex
	lastReport *Report
	gaugeApps  map[string]struct{}

	started  bool
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a new usage monitor
func NewMonitor(reporter Reporter, alerts storage.AlertStore, notifier Notifier, config MonitorConfig, clock Clock, logger zerolog.Logger) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if clock == nil {
		clock = RealClock{}
	}

	return &Monitor{
		reporter:  reporter,
		alerts:    alerts,
		notifier:  notifier,
		clock:     clock,
		config:    config,
		logger:    logger.With().Str("component", "usage-monitor").Logger(),
		gaugeApps: make(map[string]struct{}),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start begins the polling loop
func (m *Monitor) Start() {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	go m.run()
	m.logger.Info().
		Dur("poll_interval", m.config.PollInterval).
		Dur("retry_delay", m.config.RetryDelay).
		Msg("Usage monitor started")
}

// Stop stops the polling loop and waits for the current cycle to finish
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})

	m.mu.RLock()
	started := m.started
	m.mu.RUnlock()
	if started {
		<-m.doneChan
	}
	m.logger.Info().Msg("Usage monitor stopped")
}

// LastReport returns the report of the most recent successful cycle, or nil.
func (m *Monitor) LastReport() *Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReport
}

// run is the main monitor loop
func (m *Monitor) run() {
	defer close(m.doneChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-m.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		wait := m.config.PollInterval
		if _, err := m.Check(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Error().Err(err).Dur("retry_in", m.config.RetryDelay).Msg("Usage check failed")
			wait = m.config.RetryDelay
		}

		select {
		case <-time.After(wait):
		case <-m.stopChan:
			return
		}
	}
}

// Check runs one cycle: aggregate today's usage, refresh gauges and send
// pending alerts.
func (m *Monitor) Check(ctx context.Context) (*Report, error) {
	now := m.clock.Now().In(m.config.Location)
	window, err := WindowFromTimes(StartOfDay(now), now)
	if err != nil {
		metrics.MonitorCycles.WithLabelValues("error").Inc()
		return nil, err
	}

	report, err := m.reporter.Report(ctx, window)
	if err != nil {
		metrics.MonitorCycles.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to build usage report: %w", err)
	}

	m.updateGauges(report)

	date := now.Format(storage.DateLayout)
	if err := m.sendAlerts(ctx, report, date, now); err != nil {
		metrics.MonitorCycles.WithLabelValues("error").Inc()
		return nil, err
	}

	m.mu.Lock()
	m.lastReport = report
	m.mu.Unlock()

	metrics.MonitorCycles.WithLabelValues("ok").Inc()
	m.logger.Debug().
		Int("apps", len(report.Records)).
		Int64("total_minutes", report.TotalMinutes).
		Int("events", report.EventCount).
		Msg("Usage check complete")

	return report, nil
}

// sendAlerts notifies at most once per app (and once for the device) per day
func (m *Monitor) sendAlerts(ctx context.Context, report *Report, date string, now time.Time) error {
	var pending []Alert
	for _, r := range report.Records {
		if !r.IsOverLimit() || report.Limits.IsMuted(r.AppID) {
			continue
		}
		pending = append(pending, Alert{
			AppID:       r.AppID,
			DisplayName: r.DisplayName,
			UsedMillis:  r.UsedTodayMillis,
			LimitMillis: r.DailyLimitMillis,
			Date:        date,
			At:          now,
		})
	}
	if report.GlobalOverLimit {
		pending = append(pending, Alert{
			UsedMillis:  report.TotalMinutes * millisPerMinute,
			LimitMillis: report.GlobalLimitMinutes * millisPerMinute,
			Date:        date,
			At:          now,
		})
	}

	for _, alert := range pending {
		key := alert.AppID
		if alert.Global() {
			key = GlobalAlertKey
		}

		first, err := m.alerts.MarkNotified(ctx, date, key)
		if err != nil {
			return fmt.Errorf("failed to record alert for %s: %w", key, err)
		}
		if !first {
			continue
		}

		if err := m.notifier.Notify(ctx, alert); err != nil {
			// Delivery failures are not retried; the marker is already set.
			m.logger.Error().Err(err).Str("app_id", alert.AppID).Msg("Failed to deliver alert")
			continue
		}

		metrics.AlertsSent.WithLabelValues(key).Inc()
		m.logger.Info().
			Str("app_id", alert.AppID).
			Int64("used_ms", alert.UsedMillis).
			Int64("limit_ms", alert.LimitMillis).
			Msg("Daily limit reached")
	}

	return nil
}

// updateGauges publishes today's usage; apps that dropped out of the report
// are removed from the gauge
func (m *Monitor) updateGauges(report *Report) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]struct{}, len(report.Records))
	over := 0
	for _, r := range report.Records {
		current[r.AppID] = struct{}{}
		metrics.AppUsageMinutes.WithLabelValues(r.AppID).Set(float64(r.UsageMinutes()))
		if r.IsOverLimit() {
			over++
		}
	}
	for appID := range m.gaugeApps {
		if _, ok := current[appID]; !ok {
			metrics.AppUsageMinutes.DeleteLabelValues(appID)
		}
	}
	m.gaugeApps = current

	metrics.TotalUsageMinutes.Set(float64(report.TotalMinutes))
	metrics.AppsOverLimit.Set(float64(over))
}
