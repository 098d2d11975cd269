package usage

import (
	"context"
	"fmt"

	"github.com/harry123456-afk/Limitliner/internal/storage"
)

// StoreEventSource reads usage events from an EventStore.
type StoreEventSource struct {
	Store storage.EventStore
	// Limit caps the number of events read per window; zero reads everything.
	Limit int
}

// Events returns the stored events of the window in arrival order.
func (s StoreEventSource) Events(ctx context.Context, window Window) ([]UsageEvent, error) {
	stored, err := s.Store.Range(ctx, window.Start, window.End, s.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	events := make([]UsageEvent, 0, len(stored))
	for _, e := range stored {
		kind, err := ParseEventKind(string(e.Kind))
		if err != nil {
			continue
		}
		events = append(events, UsageEvent{AppID: e.AppID, Kind: kind, Timestamp: e.Timestamp})
	}
	return events, nil
}

// ToStorageEvent converts a usage event into its stored form.
func ToStorageEvent(e UsageEvent) storage.Event {
	kind := storage.KindForeground
	if e.Kind == ToBackground {
		kind = storage.KindBackground
	}
	return storage.Event{AppID: e.AppID, Kind: kind, Timestamp: e.Timestamp}
}
