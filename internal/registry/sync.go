package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"opscal/internal/fetch"
	"opscal/internal/ical"
	"opscal/internal/log"
	"opscal/internal/model"
)

// OSFileReader reads files from the local filesystem.
type OSFileReader struct{}

func (OSFileReader) ReadText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImportFromText parses text and replaces the cache entry for sourceID
// wholesale, stamping every event with color. It returns the number of
// events imported. This is the single mutation point for a source's cache;
// readers see either the old entry or the new one, never a mix.
func (r *Registry) ImportFromText(ctx context.Context, sourceID, text, color string) (int, error) {
	if _, ok := r.Source(sourceID); !ok {
		return 0, ErrUnknownSource
	}

	raw := ical.Parse(text, r.loc)
	now := r.now()

	events := make([]model.Event, 0, len(raw))
	for _, rec := range raw {
		// Without a UID the id gets a random suffix; re-importing such a
		// feed produces fresh ids each time, as documented.
		suffix := rec.UID
		if suffix == "" {
			suffix = uuid.NewString()
		}
		events = append(events, model.Event{
			ID:          sourceID + "-" + suffix,
			UID:         rec.UID,
			Title:       rec.Summary,
			Description: rec.Description,
			Location:    rec.Location,
			Start:       rec.Start,
			End:         rec.End,
			AllDay:      rec.AllDay,
			SourceID:    sourceID,
			Color:       color,
		})
	}

	r.mu.Lock()
	r.cache[sourceID] = model.CacheEntry{Events: events, FetchedAt: now}
	for i := range r.sources {
		if r.sources[i].ID == sourceID {
			synced := now
			r.sources[i].LastSynced = &synced
			break
		}
	}
	r.saveLocked(ctx)
	r.mu.Unlock()

	log.Info("import completed", "source_id", sourceID, "event_count", len(events))
	r.notify()
	return len(events), nil
}

// ImportFromFile creates a new imported-file source named after the file
// (extension stripped), reads its full text and imports it. Read failures
// propagate to the caller; this is the one failure the engine surfaces
// instead of absorbing.
func (r *Registry) ImportFromFile(ctx context.Context, path string) (model.CalendarSource, int, error) {
	text, err := r.files.ReadText(ctx, path)
	if err != nil {
		return model.CalendarSource{}, 0, err
	}

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	src, err := r.AddSource(ctx, name, "", model.OriginImportedFile)
	if err != nil {
		return model.CalendarSource{}, 0, err
	}

	r.mu.Lock()
	for i := range r.sources {
		if r.sources[i].ID == src.ID {
			r.sources[i].Path = path
			src = r.sources[i]
			break
		}
	}
	r.saveLocked(ctx)
	r.mu.Unlock()

	count, err := r.ImportFromText(ctx, src.ID, text, src.Color)
	return src, count, err
}

// ReimportFile re-reads the file behind an imported-file source and replaces
// its cache entry in place, keeping the existing source record and color.
// Used by the change watcher.
func (r *Registry) ReimportFile(ctx context.Context, sourceID string) (int, error) {
	src, ok := r.Source(sourceID)
	if !ok {
		return 0, ErrUnknownSource
	}
	if src.Origin != model.OriginImportedFile || src.Path == "" {
		return 0, nil
	}

	text, err := r.files.ReadText(ctx, src.Path)
	if err != nil {
		return 0, err
	}
	return r.ImportFromText(ctx, sourceID, text, src.Color)
}

// SyncRemote fetches a remote-feed source and imports the result. Every
// failure (network, timeout, non-2xx) is absorbed: it logs, returns 0 and
// leaves the previous cache entry untouched, so a transient blip never
// erases known events. Non-remote sources sync to 0 as well.
func (r *Registry) SyncRemote(ctx context.Context, id string) int {
	src, ok := r.Source(id)
	if !ok || src.Origin != model.OriginRemoteFeed || src.Locator == "" {
		return 0
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetch.DefaultTimeout)
	defer cancel()

	body, err := r.getter.Get(fetchCtx, src.Locator)
	if err != nil {
		log.Error("feed sync failed", err, "id", src.ID, "url", fetch.RedactURL(src.Locator))
		return 0
	}

	count, err := r.ImportFromText(ctx, src.ID, string(body), src.Color)
	if err != nil {
		// Source vanished between fetch and import; nothing to keep.
		log.Error("feed import failed", err, "id", src.ID)
		return 0
	}
	log.Info("feed synced", "id", src.ID, "url", fetch.RedactURL(src.Locator), "event_count", count)
	return count
}

// SyncAll syncs every enabled remote-feed source sequentially, bounding
// concurrent outbound fetches to one. Returns the total events imported.
func (r *Registry) SyncAll(ctx context.Context) int {
	started := time.Now()
	total := 0
	for _, src := range r.Sources() {
		if src.Origin != model.OriginRemoteFeed || !src.Enabled {
			continue
		}
		total += r.SyncRemote(ctx, src.ID)
	}
	log.Info("sync cycle finished", "event_count", total, "elapsed", time.Since(started).Round(time.Millisecond))
	return total
}
