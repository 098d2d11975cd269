package usage

import "time"

// AggregateTotals sums session durations per app. Open sessions count up to
// queryEnd; a malformed session contributes zero instead of reducing the total.
func AggregateTotals(sessions []AppSessions, queryEnd int64) []AppTotal {
	totals := make([]AppTotal, 0, len(sessions))
	for _, app := range sessions {
		total := AppTotal{AppID: app.AppID, SessionCount: len(app.Sessions)}
		for _, s := range app.Sessions {
			total.TotalMillis += s.Duration(queryEnd)
			if b := s.LastBoundary(); b > total.LastUsedAt {
				total.LastUsedAt = b
			}
		}
		totals = append(totals, total)
	}
	return totals
}

// HourlyHistogram buckets usage minutes by the local hour in which each
// foreground stretch started.
//
// The scan is global across apps: whenever any transition directly follows a
// foreground event, the elapsed time is attributed entirely to the hour of that
// foreground event, even if it spans several hours. A trailing foreground event
// that is never followed by another transition contributes nothing.
// Events outside the window are ignored.
func HourlyHistogram(events []UsageEvent, window Window, loc *time.Location) Histogram {
	if loc == nil {
		loc = time.Local
	}

	var (
		hist     Histogram
		seen     bool
		lastTime int64
		lastKind EventKind
	)

	for _, event := range events {
		if event.Kind != ToForeground && event.Kind != ToBackground {
			continue
		}
		if !window.Contains(event.Timestamp) {
			continue
		}

		if seen && lastKind == ToForeground {
			if elapsed := event.Timestamp - lastTime; elapsed > 0 {
				hour := time.UnixMilli(lastTime).In(loc).Hour()
				hist[hour] += toMinutes(elapsed)
			}
		}

		seen = true
		lastTime = event.Timestamp
		lastKind = event.Kind
	}

	return hist
}

// IsOverLimit reports whether used has reached limit. A zero limit is always reached.
func IsOverLimit(usedMillis, limitMillis int64) bool {
	return usedMillis >= limitMillis
}

// TotalMinutes sums the whole minutes of each record.
func TotalMinutes(records []UsageRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.UsageMinutes()
	}
	return total
}
