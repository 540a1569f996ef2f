package timeline

import (
	"time"

	"opscal/internal/model"
)

// ResolveWindow computes the viewing window for the given reference instant
// and granularity. Day-based windows run from local midnight of now's day to
// the last millisecond of the final day; the week window starts on the most
// recent Sunday. The 12h window is the only one anchored to now itself,
// backfilling one hour.
func ResolveWindow(now time.Time, g model.Granularity) model.TimeWindow {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var (
		start, end time.Time
		bucket     int
	)

	switch g {
	case model.Granularity12h:
		start = now.Add(-time.Hour)
		end = now.Add(11 * time.Hour)
		bucket = 60
	case model.Granularity72h:
		start = midnight
		end = midnight.AddDate(0, 0, 3).Add(-time.Millisecond)
		bucket = 180
	case model.Granularity1w:
		start = midnight.AddDate(0, 0, -int(now.Weekday()))
		end = start.AddDate(0, 0, 7).Add(-time.Millisecond)
		bucket = 360
	case model.Granularity30d:
		start = midnight
		end = midnight.AddDate(0, 0, 30).Add(-time.Millisecond)
		bucket = 1440
	default:
		// 24h, also the fallback for unknown selectors.
		g = model.Granularity24h
		start = midnight
		end = midnight.AddDate(0, 0, 1).Add(-time.Millisecond)
		bucket = 60
	}

	return model.TimeWindow{
		Start:         start,
		End:           end,
		Granularity:   g,
		BucketMinutes: bucket,
	}
}

// FilterWindow returns the events intersecting w, preserving input order.
// The overlap test is closed on both ends: an event touching a window edge
// is included.
func FilterWindow(events []model.Event, w model.TimeWindow) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if w.Intersects(ev) {
			out = append(out, ev)
		}
	}
	return out
}
