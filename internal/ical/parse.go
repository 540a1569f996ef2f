package ical

import (
	"strings"
	"time"
)

// RawEvent is the normalized representation of one VEVENT as produced by
// Parse. Start/End are absolute instants; when the input carried no DTEND the
// default-duration rule has already been applied (one day for all-day events,
// one hour for timed ones).
type RawEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// Parse parses an iCalendar-style payload into a list of RawEvent.
//
// It is total: malformed or incomplete VEVENT blocks are dropped individually
// and the call itself never fails. Only UID, SUMMARY, DESCRIPTION, LOCATION,
// DTSTART and DTEND are recognized; every other property and block type is
// ignored. A record is emitted only when it has a non-empty summary and a
// parseable DTSTART.
//
// loc is the location used for date values without a Z suffix; nil means
// time.Local.
func Parse(text string, loc *time.Location) []RawEvent {
	if loc == nil {
		loc = time.Local
	}

	lines := unfold(text)
	events := make([]RawEvent, 0)

	var (
		inEvent bool
		cur     rawFields
	)

	for _, line := range lines {
		switch {
		case line == "BEGIN:VEVENT":
			// A nested BEGIN restarts the record; the partial one is
			// dropped silently.
			inEvent = true
			cur = rawFields{}
		case line == "END:VEVENT":
			if inEvent {
				if ev, ok := cur.finalize(loc); ok {
					events = append(events, ev)
				}
			}
			inEvent = false
		case inEvent:
			cur.apply(line)
		}
	}

	// A trailing record without END:VEVENT is omitted.
	return events
}

// unfold normalizes line endings and reassembles RFC-style folded lines:
// a physical line starting with one space or tab continues the previous
// logical line, with that single whitespace byte removed.
func unfold(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	physical := strings.Split(text, "\n")
	logical := make([]string, 0, len(physical))

	for _, line := range physical {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') && len(logical) > 0 {
			logical[len(logical)-1] += line[1:]
			continue
		}
		logical = append(logical, line)
	}
	return logical
}

// rawFields accumulates the recognized properties of the VEVENT being read.
type rawFields struct {
	uid, summary, description, location string
	dtstart, dtend                      string
}

func (f *rawFields) apply(line string) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return
	}

	name := line[:colon]
	// Parameters after ';' are ignored but must not break name extraction.
	if semi := strings.Index(name, ";"); semi >= 0 {
		name = name[:semi]
	}
	value := line[colon+1:]

	switch strings.ToUpper(name) {
	case "UID":
		f.uid = value
	case "SUMMARY":
		f.summary = unescapeText(value)
	case "DESCRIPTION":
		f.description = unescapeText(value)
	case "LOCATION":
		f.location = unescapeText(value)
	case "DTSTART":
		f.dtstart = value
	case "DTEND":
		f.dtend = value
	}
}

// unescapeText applies the three escape sequences in this fixed order:
// \n -> newline, \, -> comma, \\ -> backslash.
func unescapeText(v string) string {
	v = strings.ReplaceAll(v, `\n`, "\n")
	v = strings.ReplaceAll(v, `\,`, ",")
	v = strings.ReplaceAll(v, `\\`, `\`)
	return v
}

// finalize turns the accumulated fields into a RawEvent. It reports false
// when the record must be dropped (empty summary or unparseable DTSTART).
func (f *rawFields) finalize(loc *time.Location) (RawEvent, bool) {
	if f.summary == "" {
		return RawEvent{}, false
	}

	start, allDay, ok := sniffDate(f.dtstart, loc)
	if !ok {
		return RawEvent{}, false
	}

	end, _, endOK := sniffDate(f.dtend, loc)
	// An end before the start would violate the end >= start invariant the
	// importer owes downstream; treat it like a missing end.
	if !endOK || end.Before(start) {
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.Add(time.Hour)
		}
	}

	return RawEvent{
		UID:         f.uid,
		Summary:     f.summary,
		Description: f.description,
		Location:    f.location,
		Start:       start,
		End:         end,
		AllDay:      allDay,
	}, true
}

// sniffDate normalizes a DTSTART/DTEND value by format:
//
//   - YYYYMMDD            -> local midnight of that date, all-day
//   - YYYYMMDDTHHMMSS     -> timed instant in loc
//   - YYYYMMDDTHHMMSSZ    -> timed instant in UTC
//
// Anything else is rejected; the caller drops or defaults accordingly.
func sniffDate(v string, loc *time.Location) (t time.Time, allDay, ok bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, false
	}

	if len(v) == 8 && allDigits(v) {
		t, err := time.ParseInLocation("20060102", v, loc)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, false, true
	}

	t2, err := time.ParseInLocation("20060102T150405", v, loc)
	if err != nil {
		return time.Time{}, false, false
	}
	return t2, false, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
