// Package watch re-imports file-backed calendar sources when the underlying
// file changes on disk.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"opscal/internal/log"
)

// debounceDelay coalesces the burst of events most editors emit per save.
const debounceDelay = 200 * time.Millisecond

// Reimporter is the slice of the registry the watcher needs.
type Reimporter interface {
	ReimportFile(ctx context.Context, sourceID string) (int, error)
}

// Watcher maps watched file paths to the imported-file sources behind them
// and triggers a re-import on write.
type Watcher struct {
	fsw *fsnotify.Watcher
	reg Reimporter

	mu      sync.Mutex
	sources map[string]string // absolute path -> source id
	pending map[string]*time.Timer

	done chan struct{}
}

func New(reg Reimporter) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		reg:     reg,
		sources: make(map[string]string),
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Add starts watching path on behalf of sourceID. Watching the same path
// twice just rebinds it.
func (w *Watcher) Add(path, sourceID string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.sources[abs]; !ok {
		if err := w.fsw.Add(abs); err != nil {
			return err
		}
	}
	w.sources[abs] = sourceID
	return nil
}

// Remove stops watching path. Unknown paths are a no-op.
func (w *Watcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.sources[abs]; !ok {
		return nil
	}
	delete(w.sources, abs)
	return w.fsw.Remove(abs)
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounce(event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error("file watcher error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		sourceID, watching := w.sources[path]
		w.mu.Unlock()
		if !watching {
			return
		}

		count, err := w.reg.ReimportFile(context.Background(), sourceID)
		if err != nil {
			log.Error("re-import after file change failed", err, "path", path, "source_id", sourceID)
			return
		}
		log.Info("re-imported changed file", "path", path, "source_id", sourceID, "event_count", count)
	})
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
