// Package watcher polls files for saves and reports each changed file once
// the writes have settled.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// EventType represents the type of file change
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is one observed change to a watched file.
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// ChangeHandler is called with the last event for a file after its
// debounce period.
type ChangeHandler func(ev Event)

// Config contains watcher configuration
type Config struct {
	DebounceMs   int
	PollInterval time.Duration
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		DebounceMs:   500,
		PollInterval: time.Second,
	}
}

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

type fileWatcher struct {
	path      string
	last      fileState
	debouncer *Debouncer
}

// Watcher polls a set of files.
type Watcher struct {
	config  Config
	logger  *slog.Logger
	handler ChangeHandler

	mu    sync.Mutex
	files map[string]*fileWatcher
	stat  func(string) (os.FileInfo, error)
}

// New creates a watcher. Call Run to start polling.
func New(config Config, logger *slog.Logger, handler ChangeHandler) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	return &Watcher{
		config:  config,
		logger:  logger,
		handler: handler,
		files:   make(map[string]*fileWatcher),
		stat:    os.Stat,
	}
}

// Watch adds path. Its current state is the baseline, so no event fires
// until it changes.
func (w *Watcher) Watch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.files[path]; exists {
		return
	}
	w.files[path] = &fileWatcher{
		path:      path,
		last:      w.read(path),
		debouncer: NewDebouncer(time.Duration(w.config.DebounceMs) * time.Millisecond),
	}
	w.logger.Debug("Watching file", "path", path)
}

// Unwatch removes path and drops any pending event for it.
func (w *Watcher) Unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fw, exists := w.files[path]; exists {
		fw.debouncer.Cancel()
		delete(w.files, path)
	}
}

// Watched returns the number of watched files.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

// Run polls until ctx is done. Pending events are dropped on return.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Poll()
		case <-ctx.Done():
			w.mu.Lock()
			for _, fw := range w.files {
				fw.debouncer.Cancel()
			}
			w.mu.Unlock()
			return
		}
	}
}

// Poll checks every file once.
func (w *Watcher) Poll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, fw := range w.files {
		current := w.read(fw.path)
		ev, changed := diff(fw.path, fw.last, current)
		fw.last = current
		if !changed {
			continue
		}
		fw.debouncer.Trigger(func() {
			w.logger.Debug("File change detected", "path", ev.Path, "type", ev.Type.String())
			if w.handler != nil {
				w.handler(ev)
			}
		})
	}
}

func (w *Watcher) read(path string) fileState {
	info, err := w.stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func diff(path string, before, after fileState) (Event, bool) {
	ev := Event{Path: path, Timestamp: time.Now()}
	switch {
	case !before.exists && after.exists:
		ev.Type = EventCreate
	case before.exists && !after.exists:
		ev.Type = EventDelete
	case after.exists && (!after.modTime.Equal(before.modTime) || after.size != before.size):
		ev.Type = EventModify
	default:
		return Event{}, false
	}
	return ev, true
}
