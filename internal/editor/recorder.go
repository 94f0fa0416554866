package editor

import (
	"context"
	"fmt"
	"sync"
)

// Recorder is an in-memory Surface for tests and headless use.
type Recorder struct {
	mu        sync.Mutex
	docs      map[string]Document
	active    *Document
	published map[string][]Diagnostic
	events    []string
	messages  []string

	// OnProgress, when set, runs before fn with a cancel func that simulates
	// the user pressing cancel.
	OnProgress func(title string, cancel context.CancelFunc)
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		docs:      make(map[string]Document),
		published: make(map[string][]Diagnostic),
	}
}

// AddDocument makes a document available to OpenDocument.
func (r *Recorder) AddDocument(doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.Path] = doc
}

// SetActive sets the active document.
func (r *Recorder) SetActive(doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = &doc
}

func (r *Recorder) OpenDocument(_ context.Context, path string) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[path]
	if !ok {
		return Document{}, fmt.Errorf("document %s is not open", path)
	}
	return doc, nil
}

func (r *Recorder) ActiveDocument() (Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return Document{}, false
	}
	return *r.active, true
}

func (r *Recorder) SetDiagnostics(uri string, diags []Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[uri] = append([]Diagnostic(nil), diags...)
	r.events = append(r.events, fmt.Sprintf("set %s %d", uri, len(diags)))
}

func (r *Recorder) ClearDiagnostics(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.published, uri)
	r.events = append(r.events, "clear "+uri)
}

func (r *Recorder) WithProgress(ctx context.Context, title string, cancellable bool, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.events = append(r.events, "progress "+title)
	hook := r.OnProgress
	r.mu.Unlock()

	if hook != nil && cancellable {
		hook(title, cancel)
	}
	return fn(ctx)
}

func (r *Recorder) ShowInfo(msg string)    { r.message("info", msg) }
func (r *Recorder) ShowWarning(msg string) { r.message("warning", msg) }
func (r *Recorder) ShowError(msg string)   { r.message("error", msg) }

func (r *Recorder) message(kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, kind+": "+msg)
}

// Published returns the current diagnostic set for uri and whether one exists.
func (r *Recorder) Published(uri string) ([]Diagnostic, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.published[uri]
	return append([]Diagnostic(nil), d...), ok
}

// Events returns the ordered log of diagnostic and progress calls.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Messages returns every message shown, prefixed with its kind.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

var (
	_ Surface = (*Console)(nil)
	_ Surface = (*Recorder)(nil)
)
