package notify

import (
	"context"
	"fmt"

	"github.com/harry123456-afk/Limitliner/internal/usage"
	"github.com/rs/zerolog"
)

// Message renders the user-facing text of an alert
func Message(alert usage.Alert) string {
	if alert.Global() {
		return "You've reached your daily screen time limit"
	}
	name := alert.DisplayName
	if name == "" {
		name = alert.AppID
	}
	return fmt.Sprintf("You've reached your daily limit for %s", name)
}

// LogNotifier writes alerts to the log
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs every alert at warn level
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify implements usage.Notifier
func (n *LogNotifier) Notify(ctx context.Context, alert usage.Alert) error {
	event := n.logger.Warn().
		Str("date", alert.Date).
		Int64("used_minutes", alert.UsedMillis/60000).
		Int64("limit_minutes", alert.LimitMillis/60000)
	if !alert.Global() {
		event = event.Str("app_id", alert.AppID)
	}
	event.Msg(Message(alert))
	return nil
}
