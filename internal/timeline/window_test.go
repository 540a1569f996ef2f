package timeline

import (
	"testing"
	"time"

	"opscal/internal/model"
)

func TestResolveWindowGranularityTable(t *testing.T) {
	loc := time.FixedZone("TST", -5*60*60)
	// A Wednesday, mid-afternoon.
	now := time.Date(2026, 3, 4, 15, 42, 10, 0, loc)
	midnight := time.Date(2026, 3, 4, 0, 0, 0, 0, loc)

	tests := []struct {
		granularity model.Granularity
		wantStart   time.Time
		wantEnd     time.Time
		wantBucket  int
	}{
		{
			granularity: model.Granularity12h,
			wantStart:   now.Add(-time.Hour),
			wantEnd:     now.Add(11 * time.Hour),
			wantBucket:  60,
		},
		{
			granularity: model.Granularity24h,
			wantStart:   midnight,
			wantEnd:     midnight.AddDate(0, 0, 1).Add(-time.Millisecond),
			wantBucket:  60,
		},
		{
			granularity: model.Granularity72h,
			wantStart:   midnight,
			wantEnd:     midnight.AddDate(0, 0, 3).Add(-time.Millisecond),
			wantBucket:  180,
		},
		{
			granularity: model.Granularity1w,
			wantStart:   time.Date(2026, 3, 1, 0, 0, 0, 0, loc), // most recent Sunday
			wantEnd:     time.Date(2026, 3, 8, 0, 0, 0, 0, loc).Add(-time.Millisecond),
			wantBucket:  360,
		},
		{
			granularity: model.Granularity30d,
			wantStart:   midnight,
			wantEnd:     midnight.AddDate(0, 0, 30).Add(-time.Millisecond),
			wantBucket:  1440,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.granularity), func(t *testing.T) {
			w := ResolveWindow(now, tt.granularity)
			if !w.Start.Equal(tt.wantStart) {
				t.Errorf("start: got %v, want %v", w.Start, tt.wantStart)
			}
			if !w.End.Equal(tt.wantEnd) {
				t.Errorf("end: got %v, want %v", w.End, tt.wantEnd)
			}
			if w.BucketMinutes != tt.wantBucket {
				t.Errorf("bucket: got %d, want %d", w.BucketMinutes, tt.wantBucket)
			}
			if !w.End.After(w.Start) {
				t.Errorf("window end %v not after start %v", w.End, w.Start)
			}
		})
	}
}

func TestResolveWindow24hBoundariesAnyTimeOfDay(t *testing.T) {
	loc := time.UTC
	for _, hour := range []int{0, 1, 11, 23} {
		now := time.Date(2026, 7, 19, hour, 59, 59, 0, loc)
		w := ResolveWindow(now, model.Granularity24h)

		if w.Start.Hour() != 0 || w.Start.Minute() != 0 || w.Start.Second() != 0 || w.Start.Nanosecond() != 0 {
			t.Errorf("hour %d: start not at midnight: %v", hour, w.Start)
		}
		wantEnd := time.Date(2026, 7, 19, 23, 59, 59, 999000000, loc)
		if !w.End.Equal(wantEnd) {
			t.Errorf("hour %d: end: got %v, want %v", hour, w.End, wantEnd)
		}
		if w.Start.Day() != now.Day() || w.End.Day() != now.Day() {
			t.Errorf("hour %d: window left the calendar day", hour)
		}
	}
}

func TestResolveWindowUnknownGranularityFallsBackTo24h(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	w := ResolveWindow(now, model.Granularity("fortnight"))
	if w.Granularity != model.Granularity24h {
		t.Errorf("got granularity %q", w.Granularity)
	}
}

func TestFilterWindowClosedIntervalOverlap(t *testing.T) {
	loc := time.UTC
	w := model.TimeWindow{
		Start: time.Date(2026, 3, 4, 0, 0, 0, 0, loc),
		End:   time.Date(2026, 3, 4, 23, 59, 59, 999000000, loc),
	}

	mk := func(id string, start, end time.Time) model.Event {
		return model.Event{ID: id, Start: start, End: end}
	}

	events := []model.Event{
		mk("before", w.Start.Add(-2*time.Hour), w.Start.Add(-time.Hour)),
		mk("touch-start", w.Start.Add(-time.Hour), w.Start),
		mk("inside", w.Start.Add(time.Hour), w.Start.Add(2*time.Hour)),
		mk("spanning", w.Start.Add(-time.Hour), w.End.Add(time.Hour)),
		mk("touch-end", w.End, w.End.Add(time.Hour)),
		mk("after", w.End.Add(time.Hour), w.End.Add(2*time.Hour)),
	}

	got := FilterWindow(events, w)
	want := []string{"touch-start", "inside", "spanning", "touch-end"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, id)
		}
	}
}
