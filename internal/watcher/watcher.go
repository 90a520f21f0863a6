// internal/watcher/watcher.go
package watcher

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codemedic/internal/events"
)

// DefaultDebounce coalesces rapid events for the same path
const DefaultDebounce = 200 * time.Millisecond

// skipDirs are never watched or reported
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	".next":        true,
}

// Watcher observes a project directory and reports file changes that
// the engine itself did not make, so out-of-band edits during a
// tracked batch are visible to the presentation layer.
type Watcher struct {
	root     string
	debounce time.Duration
	hub      *events.Hub

	watcher *fsnotify.Watcher
	done    chan struct{}
	started bool
	closed  bool
	mu      sync.Mutex

	debouncer  map[string]*time.Timer
	debounceMu sync.Mutex

	// suppressed paths were just mutated by the executor; the next
	// event for them within the window is expected, not external
	suppressed  map[string]time.Time
	suppressMu  sync.Mutex
	suppressFor time.Duration
}

// New creates a Watcher for the project root
func New(root string, hub *events.Hub) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	return &Watcher{
		root:        root,
		debounce:    DefaultDebounce,
		hub:         hub,
		watcher:     fsw,
		done:        make(chan struct{}),
		debouncer:   make(map[string]*time.Timer),
		suppressed:  make(map[string]time.Time),
		suppressFor: 2 * time.Second,
	}, nil
}

// AddPath adds another directory to the watch set
func (w *Watcher) AddPath(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	if skipDirs[filepath.Base(path)] {
		return nil
	}
	return w.watcher.Add(path)
}

// Suppress marks a path as engine-mutated so the resulting filesystem
// event is not reported as external
func (w *Watcher) Suppress(path string) {
	w.suppressMu.Lock()
	defer w.suppressMu.Unlock()
	w.suppressed[w.abs(path)] = time.Now()
}

func (w *Watcher) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.root, path)
}

// Start begins the event loop
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	if w.started {
		return fmt.Errorf("watcher already started")
	}
	w.started = true
	go w.watch()
	return nil
}

// Close stops watching and cancels pending debounce timers
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.started {
		close(w.done)
	}

	w.debounceMu.Lock()
	for _, timer := range w.debouncer {
		timer.Stop()
	}
	w.debouncer = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Watcher] Error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	for _, part := range strings.Split(filepath.ToSlash(event.Name), "/") {
		if skipDirs[part] {
			return
		}
	}

	var kind string
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		kind = "create"
	case event.Op&fsnotify.Write == fsnotify.Write:
		kind = "modify"
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		kind = "delete"
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		kind = "delete"
	default:
		return
	}

	w.debounceEvent(event.Name, kind)
}

// debounceEvent coalesces bursts for the same path before reporting
func (w *Watcher) debounceEvent(path, kind string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debouncer[path]; exists {
		timer.Stop()
	}
	w.debouncer[path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		delete(w.debouncer, path)
		w.debounceMu.Unlock()
		w.report(path, kind)
	})
}

func (w *Watcher) report(path, kind string) {
	w.suppressMu.Lock()
	if at, ok := w.suppressed[path]; ok {
		delete(w.suppressed, path)
		w.suppressMu.Unlock()
		if time.Since(at) < w.suppressFor {
			return
		}
	} else {
		w.suppressMu.Unlock()
	}

	if w.hub != nil {
		rel := path
		if r, err := filepath.Rel(w.root, path); err == nil {
			rel = r
		}
		w.hub.EmitFileSystemChanged(events.FileSystemChangedEvent{
			Path:     rel,
			Kind:     kind,
			External: true,
		})
		w.hub.EmitProgress(fmt.Sprintf("External change detected: %s (%s)", rel, kind))
	}
}
