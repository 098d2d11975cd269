package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/metrics"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultRetentionDays is how long raw events are kept
const DefaultRetentionDays = 90

// RetentionScheduler prunes old events and alert markers once a day
type RetentionScheduler struct {
	events        storage.EventStore
	alerts        storage.AlertStore
	resetTime     time.Time // Time of day to run (only hour and minute are used)
	retentionDays int
	location      *time.Location
	clock         Clock
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// CleanupResult reports what one cleanup pass removed
type CleanupResult struct {
	EventCutoff   int64
	EventsDeleted int
	AlertCutoff   string
	AlertsDeleted int
}

// NewRetentionScheduler creates a new retention scheduler
func NewRetentionScheduler(store storage.Store, resetTime string, retentionDays int, loc *time.Location, clock Clock, logger zerolog.Logger) (*RetentionScheduler, error) {
	// Parse reset time (HH:MM format)
	parsedTime, err := time.Parse("15:04", resetTime)
	if err != nil {
		return nil, fmt.Errorf("invalid reset time %q: %w", resetTime, err)
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = RealClock{}
	}

	return &RetentionScheduler{
		events:        store.Events(),
		alerts:        store.Alerts(),
		resetTime:     parsedTime,
		retentionDays: retentionDays,
		location:      loc,
		clock:         clock,
		logger:        logger.With().Str("component", "retention-scheduler").Logger(),
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the retention scheduler
func (rs *RetentionScheduler) Start() {
	go rs.run()
	rs.logger.Info().
		Str("reset_time", rs.resetTime.Format("15:04")).
		Int("retention_days", rs.retentionDays).
		Msg("Retention scheduler started")
}

// Stop stops the retention scheduler
func (rs *RetentionScheduler) Stop() {
	close(rs.stopChan)
	rs.logger.Info().Msg("Retention scheduler stopped")
}

// run is the main scheduler loop
func (rs *RetentionScheduler) run() {
	for {
		now := rs.clock.Now()
		nextRun := rs.NextRun(now)
		waitDuration := nextRun.Sub(now)

		rs.logger.Info().
			Time("next_run", nextRun).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next retention cleanup")

		select {
		case <-time.After(waitDuration):
			if _, err := rs.Cleanup(context.Background()); err != nil {
				rs.logger.Error().Err(err).Msg("Retention cleanup failed")
			}
		case <-rs.stopChan:
			return
		}
	}
}

// NextRun returns the next reset time strictly after now
func (rs *RetentionScheduler) NextRun(now time.Time) time.Time {
	now = now.In(rs.location)

	todayRun := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.resetTime.Hour(), rs.resetTime.Minute(), 0, 0,
		rs.location,
	)

	// If we've already reached today's run time, schedule for tomorrow
	if !now.Before(todayRun) {
		return todayRun.AddDate(0, 0, 1)
	}

	return todayRun
}

// Cleanup deletes events older than the retention period and alert markers
// of previous days
func (rs *RetentionScheduler) Cleanup(ctx context.Context) (CleanupResult, error) {
	now := rs.clock.Now().In(rs.location)
	today := StartOfDay(now)

	result := CleanupResult{
		EventCutoff: today.AddDate(0, 0, -rs.retentionDays).UnixMilli(),
		AlertCutoff: today.Format(storage.DateLayout),
	}

	deleted, err := rs.events.DeleteBefore(ctx, result.EventCutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete old events: %w", err)
	}
	result.EventsDeleted = deleted
	metrics.RetentionDeleted.WithLabelValues("events").Add(float64(deleted))

	alerts, err := rs.alerts.DeleteBefore(ctx, result.AlertCutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete old alerts: %w", err)
	}
	result.AlertsDeleted = alerts
	metrics.RetentionDeleted.WithLabelValues("alerts").Add(float64(alerts))

	rs.logger.Info().
		Int("events_deleted", result.EventsDeleted).
		Int("alerts_deleted", result.AlertsDeleted).
		Time("event_cutoff", time.UnixMilli(result.EventCutoff)).
		Str("alert_cutoff", result.AlertCutoff).
		Msg("Retention cleanup complete")

	return result, nil
}
