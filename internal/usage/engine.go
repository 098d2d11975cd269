package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultMaxEventsPerQuery caps the events a single report processes.
const DefaultMaxEventsPerQuery = 500000

// EventSource supplies the raw events of a window, ordered by arrival.
type EventSource interface {
	Events(ctx context.Context, window Window) ([]UsageEvent, error)
}

// MetadataResolver maps an app ID to its registry entry. An error means the
// app cannot be resolved.
type MetadataResolver interface {
	Resolve(ctx context.Context, appID string) (AppMetadata, error)
}

// LimitSource supplies the limit configuration for a set of apps.
type LimitSource interface {
	Limits(ctx context.Context, appIDs []string) (Limits, error)
}

// EngineConfig holds engine configuration
type EngineConfig struct {
	DefaultAppLimitMillis   int64
	GlobalDailyLimitMinutes int64
	MaxEventsPerQuery       int
	Location                *time.Location
}

// Report is the result of one aggregation run.
type Report struct {
	Window             Window        `json:"window"`
	Records            []UsageRecord `json:"records"`
	Histogram          Histogram     `json:"hourly_minutes"`
	TotalMinutes       int64         `json:"total_minutes"`
	GlobalLimitMinutes int64         `json:"global_limit_minutes"`
	GlobalOverLimit    bool          `json:"global_over_limit"`
	Limits             Limits        `json:"-"`
	EventCount         int           `json:"event_count"`
	Discarded          int           `json:"discarded_events"`
	Truncated          bool          `json:"truncated"`
}

// Engine composes the event source, metadata and limits around the pure
// aggregation functions. It keeps no state between calls.
type Engine struct {
	events   EventSource
	metadata MetadataResolver
	limits   LimitSource
	config   EngineConfig
	logger   zerolog.Logger
}

// NewEngine creates a new engine
func NewEngine(events EventSource, metadata MetadataResolver, limits LimitSource, config EngineConfig, logger zerolog.Logger) *Engine {
	if config.MaxEventsPerQuery <= 0 {
		config.MaxEventsPerQuery = DefaultMaxEventsPerQuery
	}
	if config.DefaultAppLimitMillis <= 0 {
		config.DefaultAppLimitMillis = DefaultAppLimitMillis
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	return &Engine{
		events:   events,
		metadata: metadata,
		limits:   limits,
		config:   config,
		logger:   logger.With().Str("component", "usage-engine").Logger(),
	}
}

// Location returns the time zone used for local days and hours.
func (e *Engine) Location() *time.Location {
	return e.config.Location
}

// Report aggregates the events of window into a usage report.
func (e *Engine) Report(ctx context.Context, window Window) (*Report, error) {
	if window.End < window.Start {
		return nil, fmt.Errorf("%w: start=%d end=%d", ErrInvalidWindow, window.Start, window.End)
	}

	start := time.Now()
	defer func() {
		metrics.ReportDuration.Observe(time.Since(start).Seconds())
	}()

	events, err := e.events.Events(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	truncated := false
	if len(events) > e.config.MaxEventsPerQuery {
		e.logger.Warn().
			Int("events", len(events)).
			Int("max_events", e.config.MaxEventsPerQuery).
			Int64("window_start", window.Start).
			Int64("window_end", window.End).
			Msg("Event window exceeds cap, truncating")
		events = events[:e.config.MaxEventsPerQuery]
		truncated = true
		metrics.EventsTruncated.Inc()
	}

	sessions, discarded := ReconstructWithStats(events)
	metrics.EventsProcessed.Add(float64(len(events)))
	if discarded > 0 {
		metrics.EventsDiscarded.Add(float64(discarded))
		e.logger.Debug().Int("discarded", discarded).Msg("Dropped events without a matching session")
	}

	totals := AggregateTotals(sessions, window.End)

	appIDs := make([]string, len(totals))
	for i, t := range totals {
		appIDs[i] = t.AppID
	}

	limits, err := e.limits.Limits(ctx, appIDs)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to load limits, using default limit")
		limits = Limits{DefaultMillis: e.config.DefaultAppLimitMillis}
	}

	resolved := e.resolveAll(ctx, appIDs)
	records := Build(totals, func(appID string) (AppMetadata, bool) {
		meta, ok := resolved[appID]
		return meta, ok
	}, limits)

	// A zero global limit is only reached once some usage is recorded
	total := TotalMinutes(records)

	return &Report{
		Window:             window,
		Records:            records,
		Histogram:          HourlyHistogram(events, window, e.config.Location),
		TotalMinutes:       total,
		GlobalLimitMinutes: e.config.GlobalDailyLimitMinutes,
		GlobalOverLimit:    total > 0 && IsOverLimit(total, e.config.GlobalDailyLimitMinutes),
		Limits:             limits,
		EventCount:         len(events),
		Discarded:          discarded,
		Truncated:          truncated,
	}, nil
}

// resolveAll looks up every app once. A failed lookup leaves the app out.
func (e *Engine) resolveAll(ctx context.Context, appIDs []string) map[string]AppMetadata {
	resolved := make(map[string]AppMetadata, len(appIDs))
	for _, id := range appIDs {
		meta, err := e.metadata.Resolve(ctx, id)
		if err != nil {
			metrics.MetadataUnresolved.Inc()
			e.logger.Debug().Err(err).Str("app_id", id).Msg("Dropping unresolvable app")
			continue
		}
		resolved[id] = meta
	}
	return resolved
}
