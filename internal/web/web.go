package web

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"opscal/internal/config"
	"opscal/internal/export"
	"opscal/internal/log"
	"opscal/internal/model"
	"opscal/internal/registry"
	"opscal/internal/timeline"
)

// maxImportBody caps a pasted interchange payload at 8 MiB.
const maxImportBody = 8 << 20

// FileWatcher is the optional watcher hook for imported-file sources.
type FileWatcher interface {
	Add(path, sourceID string) error
	Remove(path string) error
}

// Server exposes the calendar engine's operations over HTTP for the
// dashboard UI.
type Server struct {
	cfg     *config.Config
	reg     *registry.Registry
	watcher FileWatcher
	loc     *time.Location
	now     func() time.Time
	mux     *http.ServeMux
}

// Options wires the server. Watcher may be nil; Now defaults to time.Now and
// Location to time.Local.
type Options struct {
	Config   *config.Config
	Registry *registry.Registry
	Watcher  FileWatcher
	Location *time.Location
	Now      func() time.Time
}

func NewServer(opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		cfg:     opts.Config,
		reg:     opts.Registry,
		watcher: opts.Watcher,
		loc:     opts.Location,
		now:     opts.Now,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler, wrapped with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		log.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects every endpoint except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="opscal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/sources", s.handleListSources)
	s.mux.HandleFunc("POST /api/sources", s.handleAddSource)
	s.mux.HandleFunc("DELETE /api/sources/{id}", s.handleRemoveSource)
	s.mux.HandleFunc("POST /api/sources/{id}/toggle", s.handleToggleSource)
	s.mux.HandleFunc("POST /api/sources/{id}/sync", s.handleSyncSource)
	s.mux.HandleFunc("POST /api/sources/{id}/import", s.handleImportText)
	s.mux.HandleFunc("POST /api/sync", s.handleSyncAll)
	s.mux.HandleFunc("POST /api/import-file", s.handleImportFile)
	s.mux.HandleFunc("GET /api/timeline", s.handleTimeline)
	s.mux.HandleFunc("GET /api/export.ics", s.handleExport)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Sources())
}

type addSourceRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "name and url are required")
		return
	}

	src, err := s.reg.AddSource(r.Context(), req.Name, req.URL, model.OriginRemoteFeed)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == model.ManualSourceID || id == model.DeadlineSourceID {
		writeError(w, http.StatusForbidden, "reserved sources cannot be removed")
		return
	}

	if src, ok := s.reg.Source(id); ok && src.Path != "" && s.watcher != nil {
		if err := s.watcher.Remove(src.Path); err != nil {
			log.Error("unwatch failed", err, "path", src.Path)
		}
	}

	s.reg.RemoveSource(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.reg.ToggleSource(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	writeJSON(w, http.StatusOK, src)
}

type countResponse struct {
	Imported int `json:"imported"`
}

func (s *Server) handleSyncSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.reg.Source(id); !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	count := s.reg.SyncRemote(r.Context(), id)
	writeJSON(w, http.StatusOK, countResponse{Imported: count})
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	count := s.reg.SyncAll(r.Context())
	writeJSON(w, http.StatusOK, countResponse{Imported: count})
}

// handleImportText imports a raw interchange payload into an existing
// source. The body is the calendar text itself, not JSON.
func (s *Server) handleImportText(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	src, ok := s.reg.Source(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	count, err := s.reg.ImportFromText(r.Context(), id, string(body), src.Color)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Imported: count})
}

type importFileRequest struct {
	Path string `json:"path"`
}

type importFileResponse struct {
	Source   model.CalendarSource `json:"source"`
	Imported int                  `json:"imported"`
}

// handleImportFile creates an imported-file source from a server-local file.
// Read failures surface to the caller; this is the one import error the
// engine does not absorb.
func (s *Server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	var req importFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	src, count, err := s.reg.ImportFromFile(r.Context(), req.Path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if s.watcher != nil {
		if err := s.watcher.Add(req.Path, src.ID); err != nil {
			log.Error("watch failed", err, "path", req.Path)
		}
	}
	writeJSON(w, http.StatusOK, importFileResponse{Source: src, Imported: count})
}

// timelineResponse bundles everything one render pass needs: the resolved
// window, the canonical events inside it and their layout blocks.
type timelineResponse struct {
	Window model.TimeWindow    `json:"window"`
	Events []model.Event       `json:"events"`
	Blocks []model.LayoutBlock `json:"blocks"`
}

// handleTimeline computes the timeline for a granularity selector.
//
// GET /api/timeline?granularity=24h[&at=RFC3339]
//
// "at" overrides the reference now, mainly for the UI's scrubbing and for
// reproducible tests.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	g := model.Granularity(q.Get("granularity"))
	now := s.now().In(s.loc)
	if at := q.Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at parameter")
			return
		}
		now = parsed.In(s.loc)
	}

	window := timeline.ResolveWindow(now, g)
	events := timeline.FilterWindow(s.reg.CanonicalEvents(r.Context()), window)
	blocks := timeline.Layout(events, window)

	writeJSON(w, http.StatusOK, timelineResponse{
		Window: window,
		Events: events,
		Blocks: blocks,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events := s.reg.CanonicalEvents(r.Context())
	body := export.Calendar(events, s.now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="opscal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
