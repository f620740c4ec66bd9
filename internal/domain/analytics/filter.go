package analytics

import (
	"time"
)

// isoMillis matches the millisecond UTC layout browsers emit for Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

const PresetCustom = "custom"

type DateFilter struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Preset string    `json:"preset,omitempty"`
}

// CacheKey derives the cache key for a tab and optional date range.
// A nil filter addresses the unfiltered "all" view of the tab.
func CacheKey(tabID string, f *DateFilter) string {
	if f == nil {
		return tabID + "-all"
	}
	preset := f.Preset
	if preset == "" {
		preset = PresetCustom
	}
	return tabID + "-" + f.Start.UTC().Format(isoMillis) + "-" + f.End.UTC().Format(isoMillis) + "-" + preset
}

// Contains reports whether t falls inside [Start, End]. A nil filter contains everything.
func (f *DateFilter) Contains(t time.Time) bool {
	if f == nil {
		return true
	}
	return !t.Before(f.Start) && !t.After(f.End)
}
