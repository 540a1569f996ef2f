// Package registry owns the configured calendar sources and the per-source
// event cache. It is the only mutable shared state in the calendar engine;
// every mutation replaces state wholesale, persists it through the store
// collaborator and notifies subscribers, so readers never observe a torn
// view.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"opscal/internal/aggregate"
	"opscal/internal/fetch"
	"opscal/internal/log"
	"opscal/internal/model"
	"opscal/internal/store"
)

// Palette is the fixed set of display colors handed out round-robin to new
// sources. The cursor is a stored counter, not the current source count, so
// colors stay stable when sources are removed and re-added.
var Palette = []string{
	"#60a5fa", // blue
	"#34d399", // emerald
	"#fbbf24", // amber
	"#f472b6", // pink
	"#a78bfa", // violet
	"#2dd4bf", // teal
	"#fb923c", // orange
	"#e879f9", // fuchsia
}

// FileReader is the full-text file reading collaborator used by
// ImportFromFile; the only registry operation besides remote sync that
// suspends.
type FileReader interface {
	ReadText(ctx context.Context, path string) (string, error)
}

// ManualProvider is the read-only manual-event stream owned by the notes
// subsystem.
type ManualProvider interface {
	ManualRecords(ctx context.Context) ([]model.ManualRecord, error)
}

// DeadlineProvider is the read-only deadline stream owned by the projects
// subsystem.
type DeadlineProvider interface {
	DeadlineRecords(ctx context.Context) ([]model.DeadlineRecord, error)
}

// ErrUnknownSource is returned when an operation names a source id that is
// not registered.
var ErrUnknownSource = errors.New("registry: unknown source")

// Options wires the registry's collaborators. Zero fields get safe defaults:
// a memory store, the os file reader, empty record streams, time.Local and
// time.Now.
type Options struct {
	Store     store.Store
	Getter    fetch.Getter
	Files     FileReader
	Manual    ManualProvider
	Deadlines DeadlineProvider
	Location  *time.Location
	Now       func() time.Time
}

// Registry is the source registry plus event cache.
type Registry struct {
	mu          sync.RWMutex
	sources     []model.CalendarSource
	cache       map[string]model.CacheEntry
	colorCursor int

	st        store.Store
	getter    fetch.Getter
	files     FileReader
	manual    ManualProvider
	deadlines DeadlineProvider
	loc       *time.Location
	now       func() time.Time

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// persistedSources is the document stored under store.KeySources: the ordered
// source list plus the palette cursor.
type persistedSources struct {
	Sources     []model.CalendarSource `json:"sources"`
	ColorCursor int                    `json:"color_cursor"`
}

func New(opts Options) *Registry {
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Getter == nil {
		opts.Getter = fetch.NewHTTPGetter(0)
	}
	if opts.Files == nil {
		opts.Files = OSFileReader{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Registry{
		cache:     make(map[string]model.CacheEntry),
		st:        opts.Store,
		getter:    opts.Getter,
		files:     opts.Files,
		manual:    opts.Manual,
		deadlines: opts.Deadlines,
		loc:       opts.Location,
		now:       opts.Now,
		subs:      make(map[int]func()),
	}
	r.ensurePseudoSourcesLocked()
	return r
}

// Load restores sources and cache from the store. Missing keys are a clean
// first run, not an error. The reserved pseudo-sources are re-ensured after
// loading.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, found, err := r.st.Get(ctx, store.KeySources)
	if err != nil {
		return err
	}
	if found {
		var doc persistedSources
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("registry: decode sources: %w", err)
		}
		r.sources = doc.Sources
		r.colorCursor = doc.ColorCursor
	}

	data, found, err = r.st.Get(ctx, store.KeyCache)
	if err != nil {
		return err
	}
	if found {
		cache := make(map[string]model.CacheEntry)
		if err := json.Unmarshal(data, &cache); err != nil {
			return fmt.Errorf("registry: decode cache: %w", err)
		}
		r.cache = cache
	}

	r.ensurePseudoSourcesLocked()
	log.Info("registry loaded", "source_count", len(r.sources))
	return nil
}

// ensurePseudoSourcesLocked guarantees the reserved manual and
// external-deadline sources exist. They carry fixed colors outside the
// palette rotation.
func (r *Registry) ensurePseudoSourcesLocked() {
	have := make(map[string]bool, len(r.sources))
	for _, src := range r.sources {
		have[src.ID] = true
	}
	if !have[model.ManualSourceID] {
		r.sources = append(r.sources, model.CalendarSource{
			ID:      model.ManualSourceID,
			Name:    "Manual entries",
			Origin:  model.OriginManual,
			Color:   aggregate.ManualColor,
			Enabled: true,
		})
	}
	if !have[model.DeadlineSourceID] {
		r.sources = append(r.sources, model.CalendarSource{
			ID:      model.DeadlineSourceID,
			Name:    "Project deadlines",
			Origin:  model.OriginDeadline,
			Color:   aggregate.DeadlineColor,
			Enabled: true,
		})
	}
}

// save persists both documents. Persistence is best-effort: a failing store
// must not block the in-memory engine, so errors are logged and swallowed.
func (r *Registry) saveLocked(ctx context.Context) {
	doc := persistedSources{Sources: r.sources, ColorCursor: r.colorCursor}
	if data, err := json.Marshal(doc); err == nil {
		if err := r.st.Set(ctx, store.KeySources, data); err != nil {
			log.Error("registry: persist sources failed", err)
		}
	}
	if data, err := json.Marshal(r.cache); err == nil {
		if err := r.st.Set(ctx, store.KeyCache, data); err != nil {
			log.Error("registry: persist cache failed", err)
		}
	}
}

// Subscribe registers a change callback and returns an unsubscribe func.
// Callbacks fire after every successful mutation, outside the registry lock.
func (r *Registry) Subscribe(fn func()) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) notify() {
	r.subMu.Lock()
	fns := make([]func(), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Sources returns a copy of the ordered source list.
func (r *Registry) Sources() []model.CalendarSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.CalendarSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Source looks up one source by id.
func (r *Registry) Source(id string) (model.CalendarSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, src := range r.sources {
		if src.ID == id {
			return src, true
		}
	}
	return model.CalendarSource{}, false
}

// Cached returns the cache entry for a source, if any.
func (r *Registry) Cached(id string) (model.CacheEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[id]
	return entry, ok
}

// AddSource registers a new source and assigns it the next palette color.
// A remote-feed source must carry a locator URL; any other origin must not.
func (r *Registry) AddSource(ctx context.Context, name, locator string, origin model.SourceOrigin) (model.CalendarSource, error) {
	switch origin {
	case model.OriginRemoteFeed:
		if locator == "" {
			return model.CalendarSource{}, errors.New("registry: remote-feed source needs a locator")
		}
	case model.OriginImportedFile:
		if locator != "" {
			return model.CalendarSource{}, errors.New("registry: only remote-feed sources carry a locator")
		}
	default:
		return model.CalendarSource{}, fmt.Errorf("registry: cannot add source with origin %q", origin)
	}

	r.mu.Lock()
	src := model.CalendarSource{
		ID:      uuid.NewString(),
		Name:    name,
		Origin:  origin,
		Locator: locator,
		Color:   Palette[r.colorCursor%len(Palette)],
		Enabled: true,
	}
	r.colorCursor++
	r.sources = append(r.sources, src)
	r.saveLocked(ctx)
	r.mu.Unlock()

	log.Info("source added", "id", src.ID, "name", src.Name, "origin", string(src.Origin))
	r.notify()
	return src, nil
}

// EnsureFeed adds a remote-feed source for url unless one with the same
// locator already exists. Used to seed sources from configuration.
func (r *Registry) EnsureFeed(ctx context.Context, name, url string) (model.CalendarSource, error) {
	r.mu.RLock()
	for _, src := range r.sources {
		if src.Origin == model.OriginRemoteFeed && src.Locator == url {
			r.mu.RUnlock()
			return src, nil
		}
	}
	r.mu.RUnlock()
	return r.AddSource(ctx, name, url, model.OriginRemoteFeed)
}

// RemoveSource drops a source and purges its cache entry. Removing an
// unknown id is a no-op; the reserved pseudo-sources cannot be removed.
func (r *Registry) RemoveSource(ctx context.Context, id string) {
	if id == model.ManualSourceID || id == model.DeadlineSourceID {
		log.Info("refusing to remove reserved source", "id", id)
		return
	}

	r.mu.Lock()
	idx := -1
	for i, src := range r.sources {
		if src.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	r.sources = append(r.sources[:idx], r.sources[idx+1:]...)
	delete(r.cache, id)
	r.saveLocked(ctx)
	r.mu.Unlock()

	log.Info("source removed", "id", id)
	r.notify()
}

// ToggleSource flips a source's enabled flag. The cache entry is retained so
// re-enabling is cheap.
func (r *Registry) ToggleSource(ctx context.Context, id string) (model.CalendarSource, error) {
	r.mu.Lock()
	idx := -1
	for i, src := range r.sources {
		if src.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return model.CalendarSource{}, ErrUnknownSource
	}
	r.sources[idx].Enabled = !r.sources[idx].Enabled
	src := r.sources[idx]
	r.saveLocked(ctx)
	r.mu.Unlock()

	log.Info("source toggled", "id", id, "enabled", src.Enabled)
	r.notify()
	return src, nil
}

// CanonicalEvents re-reads the manual and deadline streams, merges them with
// the cached events of enabled sources and returns the sorted canonical list.
// Stream read failures degrade to an empty stream; a broken notes store must
// not blank out feed events.
func (r *Registry) CanonicalEvents(ctx context.Context) []model.Event {
	var (
		manual    []model.ManualRecord
		deadlines []model.DeadlineRecord
		err       error
	)
	if r.manual != nil {
		if manual, err = r.manual.ManualRecords(ctx); err != nil {
			log.Error("manual stream read failed", err)
			manual = nil
		}
	}
	if r.deadlines != nil {
		if deadlines, err = r.deadlines.DeadlineRecords(ctx); err != nil {
			log.Error("deadline stream read failed", err)
			deadlines = nil
		}
	}

	r.mu.RLock()
	sources := make([]model.CalendarSource, len(r.sources))
	copy(sources, r.sources)
	cache := make(map[string]model.CacheEntry, len(r.cache))
	for k, v := range r.cache {
		cache[k] = v
	}
	r.mu.RUnlock()

	return aggregate.ComputeCanonical(sources, cache, manual, deadlines, r.loc)
}
