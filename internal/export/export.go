// Package export serializes the canonical event list back into iCalendar
// text, so other tools can subscribe to the merged view the dashboard shows.
// This is read-out only; nothing is ever written back to a remote calendar.
package export

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"opscal/internal/model"
)

// Calendar renders events as a single VCALENDAR document. All-day events are
// emitted with DATE values; timed events with UTC date-times.
func Calendar(events []model.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//opscal//calendar export//EN")

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}

		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			// A single-instant deadline still spans its calendar day.
			end := ev.End
			if !end.After(ev.Start) {
				end = ev.Start.AddDate(0, 0, 1)
			}
			ve.SetAllDayEndAt(end)
		} else {
			ve.SetStartAt(ev.Start.UTC())
			ve.SetEndAt(ev.End.UTC())
		}
	}

	return cal.Serialize()
}
