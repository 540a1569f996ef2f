package aggregate

import (
	"testing"
	"time"

	"opscal/internal/model"
)

var loc = time.UTC

func feedSource(id string, enabled bool) model.CalendarSource {
	return model.CalendarSource{
		ID:      id,
		Name:    id,
		Origin:  model.OriginRemoteFeed,
		Locator: "https://example.com/" + id + ".ics",
		Color:   "#60a5fa",
		Enabled: enabled,
	}
}

func pseudoSources(manualEnabled, deadlineEnabled bool) []model.CalendarSource {
	return []model.CalendarSource{
		{ID: model.ManualSourceID, Origin: model.OriginManual, Enabled: manualEnabled},
		{ID: model.DeadlineSourceID, Origin: model.OriginDeadline, Enabled: deadlineEnabled},
	}
}

func TestComputeCanonicalSkipsDisabledSources(t *testing.T) {
	sources := append([]model.CalendarSource{
		feedSource("on", true),
		feedSource("off", false),
	}, pseudoSources(true, true)...)

	at := time.Date(2026, 3, 4, 9, 0, 0, 0, loc)
	cache := map[string]model.CacheEntry{
		"on":  {Events: []model.Event{{ID: "on-1", SourceID: "on", Start: at, End: at.Add(time.Hour)}}},
		"off": {Events: []model.Event{{ID: "off-1", SourceID: "off", Start: at, End: at.Add(time.Hour)}}},
	}

	events := ComputeCanonical(sources, cache, nil, nil, loc)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID != "on-1" {
		t.Errorf("got event %q", events[0].ID)
	}
}

func TestComputeCanonicalManualAllDayInference(t *testing.T) {
	tests := []struct {
		name       string
		date       string
		wantAllDay bool
	}{
		{"date only", "2026-03-04", true},
		{"midnight literal", "2026-03-04T00:00:00Z", true},
		{"timed", "2026-03-04T14:30:00Z", false},
		{"short timed", "2026-03-04T09:15", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manual := []model.ManualRecord{{ID: "m1", Title: "standup", Date: tt.date}}
			events := ComputeCanonical(pseudoSources(true, true), nil, manual, nil, loc)
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			ev := events[0]
			if ev.AllDay != tt.wantAllDay {
				t.Errorf("allDay: got %v, want %v", ev.AllDay, tt.wantAllDay)
			}
			if ev.SourceID != model.ManualSourceID {
				t.Errorf("sourceId: got %q", ev.SourceID)
			}
			if ev.Color != ManualColor {
				t.Errorf("color: got %q", ev.Color)
			}
			wantDur := time.Hour
			if tt.wantAllDay {
				wantDur = 24 * time.Hour
			}
			if got := ev.End.Sub(ev.Start); got != wantDur {
				t.Errorf("duration: got %v, want %v", got, wantDur)
			}
		})
	}
}

func TestComputeCanonicalDropsUnparseableManualDates(t *testing.T) {
	manual := []model.ManualRecord{
		{ID: "bad", Title: "???", Date: "soonish"},
		{ID: "ok", Title: "ok", Date: "2026-03-04"},
	}
	events := ComputeCanonical(pseudoSources(true, true), nil, manual, nil, loc)
	if len(events) != 1 || events[0].ID != model.ManualSourceID+"-ok" {
		t.Fatalf("expected only the parseable record, got %+v", events)
	}
}

func TestComputeCanonicalDeadlines(t *testing.T) {
	due := time.Date(2026, 3, 10, 16, 45, 0, 0, loc)
	deadlines := []model.DeadlineRecord{
		{ID: "d1", Title: "patch rollout", Due: due},
		{ID: "d2", Title: "done already", Due: due, Completed: true},
	}

	events := ComputeCanonical(pseudoSources(true, true), nil, nil, deadlines, loc)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if !ev.AllDay {
		t.Errorf("deadline must be all-day")
	}
	if !ev.Start.Equal(ev.End) {
		t.Errorf("deadline must be single-instant: start %v end %v", ev.Start, ev.End)
	}
	wantDay := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	if !ev.Start.Equal(wantDay) {
		t.Errorf("deadline day: got %v, want %v", ev.Start, wantDay)
	}
	if ev.SourceID != model.DeadlineSourceID {
		t.Errorf("sourceId: got %q", ev.SourceID)
	}
}

func TestComputeCanonicalPseudoSourceToggleGatesStreams(t *testing.T) {
	manual := []model.ManualRecord{{ID: "m1", Title: "note", Date: "2026-03-04"}}
	deadlines := []model.DeadlineRecord{{ID: "d1", Title: "due", Due: time.Date(2026, 3, 5, 0, 0, 0, 0, loc)}}

	events := ComputeCanonical(pseudoSources(false, true), nil, manual, deadlines, loc)
	if len(events) != 1 || events[0].SourceID != model.DeadlineSourceID {
		t.Fatalf("expected only the deadline stream, got %+v", events)
	}
}

func TestComputeCanonicalSortedStable(t *testing.T) {
	at := time.Date(2026, 3, 4, 9, 0, 0, 0, loc)
	sources := append([]model.CalendarSource{
		feedSource("a", true),
		feedSource("b", true),
	}, pseudoSources(true, true)...)

	// Same start everywhere: encounter order (a's events, then b's) must hold.
	cache := map[string]model.CacheEntry{
		"a": {Events: []model.Event{
			{ID: "a-1", SourceID: "a", Start: at, End: at.Add(time.Hour)},
			{ID: "a-2", SourceID: "a", Start: at, End: at.Add(time.Hour)},
		}},
		"b": {Events: []model.Event{
			{ID: "b-1", SourceID: "b", Start: at.Add(-time.Hour), End: at},
			{ID: "b-2", SourceID: "b", Start: at, End: at.Add(time.Hour)},
		}},
	}

	events := ComputeCanonical(sources, cache, nil, nil, loc)
	got := make([]string, 0, len(events))
	for _, ev := range events {
		got = append(got, ev.ID)
	}

	want := []string{"b-1", "a-1", "a-2", "b-2"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q (full order %v)", i, got[i], want[i], got)
		}
	}
}
