package limits

import (
	"context"
	"fmt"

	"github.com/harry123456-afk/Limitliner/internal/policy"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/harry123456-afk/Limitliner/internal/usage"
	"github.com/rs/zerolog"
)

// Decider evaluates the effective limit of one app; *policy.Engine implements it.
type Decider interface {
	Decide(ctx context.Context, facts policy.Facts) policy.Decision
}

// Resolver assembles the limit configuration handed to the report builder
// from stored per-app settings, the configured default and an optional policy.
type Resolver struct {
	settings      storage.SettingsStore
	defaultMillis int64
	decider       Decider
	apps          usage.MetadataResolver
	logger        zerolog.Logger
}

// NewResolver creates a new limit resolver. decider may be nil; apps is only
// consulted for the policy's is_system fact and may be nil as well.
func NewResolver(settings storage.SettingsStore, defaultMillis int64, decider Decider, apps usage.MetadataResolver, logger zerolog.Logger) *Resolver {
	if defaultMillis <= 0 {
		defaultMillis = usage.DefaultAppLimitMillis
	}

	return &Resolver{
		settings:      settings,
		defaultMillis: defaultMillis,
		decider:       decider,
		apps:          apps,
		logger:        logger.With().Str("component", "limits").Logger(),
	}
}

// DefaultMillis returns the configured default daily limit
func (r *Resolver) DefaultMillis() int64 {
	return r.defaultMillis
}

// Limits implements usage.LimitSource
func (r *Resolver) Limits(ctx context.Context, appIDs []string) (usage.Limits, error) {
	settings, err := r.settings.List(ctx)
	if err != nil {
		return usage.Limits{}, fmt.Errorf("failed to load app settings: %w", err)
	}

	limits := usage.Limits{
		DefaultMillis: r.defaultMillis,
		PerApp:        make(map[string]int64),
		Muted:         make(map[string]bool),
	}

	byApp := make(map[string]storage.AppSetting, len(settings))
	for _, s := range settings {
		byApp[s.AppID] = s
		if s.DailyLimitMillis > 0 {
			limits.PerApp[s.AppID] = s.DailyLimitMillis
		}
		if s.Muted {
			limits.Muted[s.AppID] = true
		}
	}

	if r.decider == nil {
		return limits, nil
	}

	for _, appID := range appIDs {
		setting := byApp[appID]
		decision := r.decider.Decide(ctx, policy.Facts{
			AppID:              appID,
			AppLimitMillis:     setting.DailyLimitMillis,
			DefaultLimitMillis: r.defaultMillis,
			Muted:              setting.Muted,
			IsSystemApp:        r.isSystemApp(ctx, appID),
		})

		limits.PerApp[appID] = decision.LimitMillis
		if decision.Notify {
			delete(limits.Muted, appID)
		} else {
			limits.Muted[appID] = true
		}

		r.logger.Debug().
			Str("app_id", appID).
			Int64("limit_ms", decision.LimitMillis).
			Bool("notify", decision.Notify).
			Str("reason", decision.Reason).
			Msg("Limit decided by policy")
	}

	return limits, nil
}

// isSystemApp reports the registry flag; unresolvable apps count as user apps
func (r *Resolver) isSystemApp(ctx context.Context, appID string) bool {
	if r.apps == nil {
		return false
	}
	meta, err := r.apps.Resolve(ctx, appID)
	if err != nil {
		return false
	}
	return meta.IsSystemApp
}
