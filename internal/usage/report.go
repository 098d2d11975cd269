package usage

import "sort"

// Limits is the daily limit configuration applied when building a report.
type Limits struct {
	DefaultMillis int64
	PerApp        map[string]int64
	Muted         map[string]bool
}

// For returns the daily limit of appID, falling back to the default.
func (l Limits) For(appID string) int64 {
	if limit, ok := l.PerApp[appID]; ok {
		return limit
	}
	return l.DefaultMillis
}

// IsMuted reports whether over-limit alerts are suppressed for appID.
func (l Limits) IsMuted(appID string) bool {
	return l.Muted[appID]
}

// MetadataLookup resolves app metadata; ok is false when the app cannot be resolved.
type MetadataLookup func(appID string) (meta AppMetadata, ok bool)

// Build joins totals with metadata and limits into the ordered report.
//
// Unresolvable apps, system apps and apps with less than a minute of usage are
// dropped. The rest is sorted by usage minutes, descending; equal minutes keep
// the order of totals (stable sort).
func Build(totals []AppTotal, lookup MetadataLookup, limits Limits) []UsageRecord {
	records := make([]UsageRecord, 0, len(totals))
	for _, total := range totals {
		meta, ok := lookup(total.AppID)
		if !ok {
			continue
		}
		if meta.IsSystemApp {
			continue
		}
		if toMinutes(total.TotalMillis) == 0 {
			continue
		}

		records = append(records, UsageRecord{
			AppID:            total.AppID,
			DisplayName:      meta.DisplayName,
			IsSystemApp:      meta.IsSystemApp,
			Icon:             meta.Icon,
			TotalUsageMillis: total.TotalMillis,
			LastUsedAt:       total.LastUsedAt,
			DailyLimitMillis: limits.For(total.AppID),
			UsedTodayMillis:  total.TotalMillis,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UsageMinutes() > records[j].UsageMinutes()
	})

	return records
}

// OverLimit returns the records whose usage reached their limit, in report order.
func OverLimit(records []UsageRecord) []UsageRecord {
	over := make([]UsageRecord, 0)
	for _, r := range records {
		if r.IsOverLimit() {
			over = append(over, r)
		}
	}
	return over
}
