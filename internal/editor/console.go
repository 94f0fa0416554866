package editor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/fatih/color"

	"livecheck/internal/paths"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	dimColor     = color.New(color.Faint)
)

// Console is the terminal host used by the CLI. Diagnostics are printed as
// they are published and kept for later lookup.
type Console struct {
	out io.Writer
	err io.Writer

	mu     sync.Mutex
	active *Document
	diags  map[string][]Diagnostic
}

// NewConsole creates a console writing to out and err.
func NewConsole(out, err io.Writer) *Console {
	return &Console{out: out, err: err, diags: make(map[string][]Diagnostic)}
}

// OpenDocument reads path from disk.
func (c *Console) OpenDocument(_ context.Context, path string) (Document, error) {
	abs, err := paths.CanonicalizePath(path)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Document{}, err
	}
	return Document{URI: paths.FileURI(abs), Path: abs, Text: string(data)}, nil
}

// SetActive records the document the user is looking at.
func (c *Console) SetActive(doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = &doc
}

func (c *Console) ActiveDocument() (Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Document{}, false
	}
	return *c.active, true
}

func (c *Console) SetDiagnostics(uri string, diags []Diagnostic) {
	c.mu.Lock()
	c.diags[uri] = append([]Diagnostic(nil), diags...)
	c.mu.Unlock()

	path := paths.PathFromURI(uri)
	if len(diags) == 0 {
		dimColor.Fprintf(c.out, "%s: no issues\n", path)
		return
	}
	for _, d := range diags {
		levelColor(d.Level).Fprintf(c.out, "%s:%d: %s", path, d.Line, d.Level)
		fmt.Fprintf(c.out, " %s\n", d.Message)
		for _, r := range d.Related {
			dimColor.Fprintf(c.out, "    %s\n", r.Message)
		}
	}
}

func (c *Console) ClearDiagnostics(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.diags, uri)
}

// Diagnostics returns the set last published for uri.
func (c *Console) Diagnostics(uri string) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.diags[uri]...)
}

// WithProgress prints title and, when cancellable, cancels fn's ctx on SIGINT.
func (c *Console) WithProgress(ctx context.Context, title string, cancellable bool, fn func(ctx context.Context) error) error {
	dimColor.Fprintf(c.err, "%s...\n", title)
	if !cancellable {
		return fn(ctx)
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return fn(ctx)
}

func (c *Console) ShowInfo(msg string)    { infoColor.Fprintln(c.err, msg) }
func (c *Console) ShowWarning(msg string) { warningColor.Fprintln(c.err, msg) }
func (c *Console) ShowError(msg string)   { errorColor.Fprintln(c.err, msg) }

func levelColor(l Level) *color.Color {
	switch l {
	case LevelError:
		return errorColor
	case LevelWarning:
		return warningColor
	default:
		return infoColor
	}
}
