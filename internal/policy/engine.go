package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/policy/opa"
	"github.com/harry123456-afk/Limitliner/internal/usage"
	"github.com/rs/zerolog"
)

// Facts are the inputs of a limit decision for one app
type Facts struct {
	AppID              string
	AppLimitMillis     int64 // 0 when the app has no explicit limit
	DefaultLimitMillis int64
	Muted              bool
	IsSystemApp        bool
}

// Decision is the effective limit configuration of one app
type Decision struct {
	LimitMillis int64
	Notify      bool
	Reason      string
}

// Engine handles limit evaluation by gathering facts and calling OPA
type Engine struct {
	opaEngine *opa.Engine
	clock     usage.Clock
	location  *time.Location
	logger    zerolog.Logger
}

// NewEngine creates a new fact-based policy engine. Time facts are reported
// in loc, or UTC when loc is nil.
func NewEngine(opaConfig opa.Config, loc *time.Location, logger zerolog.Logger) (*Engine, error) {
	opaEngine, err := opa.NewEngine(opaConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OPA engine: %w", err)
	}

	logger.Info().
		Str("policy_dir", opaConfig.PolicyDir).
		Strs("modules", opaEngine.Modules()).
		Msg("Limit policy engine initialized")

	if loc == nil {
		loc = time.UTC
	}

	return &Engine{
		opaEngine: opaEngine,
		clock:     usage.RealClock{},
		location:  loc,
		logger:    logger.With().Str("component", "policy").Logger(),
	}, nil
}

// SetClock sets the clock for time-based policy evaluation (for testing)
func (e *Engine) SetClock(clock usage.Clock) {
	e.clock = clock
}

// Decide evaluates the limit of one app. When the policy fails, the explicit
// facts are used unchanged.
func (e *Engine) Decide(ctx context.Context, facts Facts) Decision {
	result, err := e.opaEngine.EvaluateLimit(ctx, e.buildInput(facts))
	if err != nil {
		e.logger.Error().Err(err).Str("app_id", facts.AppID).Msg("OPA limit evaluation failed, falling back to configured limit")
		return fallback(facts)
	}

	// A decision without limit_ms decodes to zero
	if result.LimitMillis <= 0 {
		e.logger.Warn().
			Str("app_id", facts.AppID).
			Int64("limit_ms", result.LimitMillis).
			Msg("Policy returned no positive limit, falling back to configured limit")
		return fallback(facts)
	}

	return Decision{
		LimitMillis: result.LimitMillis,
		Notify:      result.Notify,
		Reason:      result.Reason,
	}
}

// buildInput gathers the facts and the current local time into the OPA input
func (e *Engine) buildInput(facts Facts) map[string]interface{} {
	now := e.clock.Now().In(e.location)

	return map[string]interface{}{
		"app_id":           facts.AppID,
		"app_limit_ms":     facts.AppLimitMillis,
		"default_limit_ms": facts.DefaultLimitMillis,
		"muted":            facts.Muted,
		"is_system":        facts.IsSystemApp,
		"time": map[string]interface{}{
			"day_of_week": int(now.Weekday()),
			"hour":        now.Hour(),
			"minute":      now.Minute(),
		},
	}
}

func fallback(facts Facts) Decision {
	limit := facts.AppLimitMillis
	if limit <= 0 {
		limit = facts.DefaultLimitMillis
	}
	return Decision{LimitMillis: limit, Notify: !facts.Muted, Reason: "fallback"}
}

// Modules returns the policy files currently loaded
func (e *Engine) Modules() []string {
	return e.opaEngine.Modules()
}

// Reload reloads the OPA policies
func (e *Engine) Reload() error {
	return e.opaEngine.Reload()
}
