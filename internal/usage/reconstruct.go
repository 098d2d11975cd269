package usage

// Reconstruct turns a raw event stream into per-app sessions, ordered by each
// app's first appearance. Events are trusted to be chronological per app; they
// are never reordered. Open sessions stay open whatever the query end; their
// duration is resolved by AggregateTotals.
func Reconstruct(events []UsageEvent, _ int64) []AppSessions {
	sessions, _ := ReconstructWithStats(events)
	return sessions
}

// ReconstructWithStats is Reconstruct that also returns how many events were
// discarded because they could not be attributed to a session.
//
// A foreground event always opens a new session, even when the previous one is
// still open. A background event closes the most recent session of its app if
// that session is open and is dropped otherwise.
func ReconstructWithStats(events []UsageEvent) ([]AppSessions, int) {
	result := make([]AppSessions, 0)
	index := make(map[string]int)
	discarded := 0

	for _, event := range events {
		switch event.Kind {
		case ToForeground:
			i, ok := index[event.AppID]
			if !ok {
				i = len(result)
				index[event.AppID] = i
				result = append(result, AppSessions{AppID: event.AppID})
			}
			result[i].Sessions = append(result[i].Sessions, Session{
				AppID: event.AppID,
				Start: event.Timestamp,
				Open:  true,
			})

		case ToBackground:
			i, ok := index[event.AppID]
			if !ok {
				discarded++
				continue
			}
			sessions := result[i].Sessions
			last := len(sessions) - 1
			if last < 0 || !sessions[last].Open {
				discarded++
				continue
			}
			// The accumulator is private until returned, so replacing the last
			// slot with the closed copy is not visible to anyone.
			sessions[last] = sessions[last].Close(event.Timestamp)

		default:
			discarded++
		}
	}

	return result, discarded
}

// FindSessions returns the sessions of appID, or nil.
func FindSessions(all []AppSessions, appID string) []Session {
	for _, s := range all {
		if s.AppID == appID {
			return s.Sessions
		}
	}
	return nil
}
