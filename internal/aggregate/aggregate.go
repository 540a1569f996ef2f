package aggregate

import (
	"sort"
	"strings"
	"time"

	"opscal/internal/model"
)

// Display colors for the two pseudo-source streams. Feed sources get palette
// colors at creation time instead.
const (
	ManualColor   = "#38bdf8"
	DeadlineColor = "#f97316"
)

// ComputeCanonical merges the per-source event cache with the manual-event and
// external-deadline streams into one canonical list, sorted ascending by start
// with ties kept in encounter order. That stable ordering is what the layout
// engine's greedy packing relies on.
//
// Only enabled sources contribute. The manual and deadline streams are gated
// by their reserved pseudo-sources, so disabling "manual" hides that stream
// like any other source. Pure given its inputs.
func ComputeCanonical(
	sources []model.CalendarSource,
	cache map[string]model.CacheEntry,
	manual []model.ManualRecord,
	deadlines []model.DeadlineRecord,
	loc *time.Location,
) []model.Event {
	if loc == nil {
		loc = time.Local
	}

	enabled := make(map[string]bool, len(sources))
	for _, src := range sources {
		enabled[src.ID] = src.Enabled
	}

	out := make([]model.Event, 0)

	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		entry, ok := cache[src.ID]
		if !ok {
			continue
		}
		out = append(out, entry.Events...)
	}

	if enabled[model.ManualSourceID] {
		for _, rec := range manual {
			ev, ok := manualEvent(rec, loc)
			if !ok {
				continue
			}
			out = append(out, ev)
		}
	}

	if enabled[model.DeadlineSourceID] {
		for _, rec := range deadlines {
			if rec.Completed {
				continue
			}
			out = append(out, deadlineEvent(rec, loc))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// manualEvent maps one manually entered record to a canonical event. A record
// whose date cannot be parsed is dropped.
func manualEvent(rec model.ManualRecord, loc *time.Location) (model.Event, bool) {
	start, allDay, ok := parseManualDate(rec.Date, loc)
	if !ok || rec.Title == "" {
		return model.Event{}, false
	}

	end := start.Add(time.Hour)
	if allDay {
		end = start.AddDate(0, 0, 1)
	}

	return model.Event{
		ID:          model.ManualSourceID + "-" + rec.ID,
		Title:       rec.Title,
		Description: rec.Notes,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		SourceID:    model.ManualSourceID,
		Color:       ManualColor,
	}, true
}

// deadlineEvent maps an externally owned deadline to a single-instant all-day
// event on the deadline's date.
func deadlineEvent(rec model.DeadlineRecord, loc *time.Location) model.Event {
	due := rec.Due.In(loc)
	day := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, loc)

	return model.Event{
		ID:       model.DeadlineSourceID + "-" + rec.ID,
		Title:    rec.Title,
		Start:    day,
		End:      day,
		AllDay:   true,
		SourceID: model.DeadlineSourceID,
		Color:    DeadlineColor,
	}
}

// manualDateLayouts are the stored-date shapes the dashboard widgets produce.
var manualDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseManualDate parses a stored manual-record date. A date without a time
// component, or one carrying an exact midnight literal, is all-day.
func parseManualDate(s string, loc *time.Location) (t time.Time, allDay, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}

	for _, layout := range manualDateLayouts {
		parsed, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		hasTime := layout != "2006-01-02"
		midnight := parsed.Hour() == 0 && parsed.Minute() == 0 && parsed.Second() == 0
		return parsed, !hasTime || midnight, true
	}
	return time.Time{}, false, false
}
