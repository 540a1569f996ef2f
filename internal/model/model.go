package model

import "time"

// SourceOrigin describes where a calendar source's events come from.
type SourceOrigin string

const (
	OriginRemoteFeed   SourceOrigin = "remote-feed"
	OriginImportedFile SourceOrigin = "imported-file"
	OriginManual       SourceOrigin = "manual"
	OriginDeadline     SourceOrigin = "external-deadline"
)

// Reserved pseudo-source ids. These sources always exist and cannot be removed;
// they carry the manual-event and external-deadline streams into aggregation.
const (
	ManualSourceID   = "manual"
	DeadlineSourceID = "external-deadline"
)

// CalendarSource is the identity and configuration of one origin of events.
//
// Locator is non-empty iff Origin is remote-feed. Color is assigned round-robin
// from the palette when the source is created and stays fixed afterwards.
type CalendarSource struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Origin     SourceOrigin `json:"origin"`
	Locator    string       `json:"locator,omitempty"`
	Color      string       `json:"color"`
	Enabled    bool         `json:"enabled"`
	LastSynced *time.Time   `json:"last_synced,omitempty"`

	// Path is the local file behind an imported-file source, when known.
	// It is what the change watcher re-reads; empty for pasted-in text.
	Path string `json:"path,omitempty"`
}

// Event is the canonical calendar event after import, ready for aggregation
// and layout.
//
// Invariant: End is never before Start; the importer synthesizes or clamps
// the end so layout never sees a negative interval.
type Event struct {
	ID          string    `json:"id"`
	UID         string    `json:"uid,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	SourceID    string    `json:"source_id"`
	Color       string    `json:"color"`
}

// CacheEntry is one source's parsed events plus when they were obtained.
// Entries are replaced wholesale on re-import; there is no per-event merge.
type CacheEntry struct {
	Events    []Event   `json:"events"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Granularity selects how wide the viewing window is.
type Granularity string

const (
	Granularity12h Granularity = "12h"
	Granularity24h Granularity = "24h"
	Granularity72h Granularity = "72h"
	Granularity1w  Granularity = "1w"
	Granularity30d Granularity = "30d"
)

// TimeWindow is the resolved viewing span. It is recomputed fresh from the
// reference "now" whenever now or the granularity changes, never mutated.
type TimeWindow struct {
	Start         time.Time   `json:"start"`
	End           time.Time   `json:"end"`
	Granularity   Granularity `json:"granularity"`
	BucketMinutes int         `json:"bucket_minutes"`
}

// Intersects reports whether ev overlaps the window, closed on both ends.
func (w TimeWindow) Intersects(ev Event) bool {
	return !ev.Start.After(w.End) && !ev.End.Before(w.Start)
}

// LayoutBlock is the position computed for one event within a window.
// Top and Height are fractions of the total window height in [0, 1].
type LayoutBlock struct {
	EventID      string  `json:"event_id"`
	Top          float64 `json:"top"`
	Height       float64 `json:"height"`
	Column       int     `json:"column"`
	TotalColumns int     `json:"total_columns"`
}

// ManualRecord is one manually entered dashboard item, owned by the notes
// subsystem and read here as-is.
type ManualRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
	Notes string `json:"notes,omitempty"`
}

// DeadlineRecord is one externally owned deadline, typically a project task.
// Completed records are excluded from aggregation; the owning subsystem keeps
// that flag current.
type DeadlineRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Due       time.Time `json:"due"`
	Completed bool      `json:"completed"`
}
