// Package editor is the host surface the scanner core talks to: documents,
// diagnostics, progress and user messages.
package editor

import (
	"context"
)

// Level is a diagnostic severity as the editor understands it.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInformation
	LevelHint
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInformation:
		return "info"
	default:
		return "hint"
	}
}

// MarshalText makes levels readable in json and yaml output.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// RelatedInfo is an extra note attached to a diagnostic.
type RelatedInfo struct {
	URI     string `json:"uri" yaml:"uri"`
	Line    int    `json:"line" yaml:"line"`
	Message string `json:"message" yaml:"message"`
}

// Diagnostic is one entry in a document's diagnostic set.
type Diagnostic struct {
	Line     int           `json:"line" yaml:"line"`
	Level    Level         `json:"level" yaml:"level"`
	Message  string        `json:"message" yaml:"message"`
	Source   string        `json:"source" yaml:"source"`
	Code     string        `json:"code,omitempty" yaml:"code,omitempty"`
	CodeURL  string        `json:"codeUrl,omitempty" yaml:"codeUrl,omitempty"`
	IssueKey string        `json:"issueKey" yaml:"issueKey"`
	Related  []RelatedInfo `json:"related,omitempty" yaml:"related,omitempty"`
}

// Document is an open file.
type Document struct {
	URI  string
	Path string
	Text string
}

// Surface is everything the core needs from the host.
type Surface interface {
	OpenDocument(ctx context.Context, path string) (Document, error)
	ActiveDocument() (Document, bool)
	SetDiagnostics(uri string, diags []Diagnostic)
	ClearDiagnostics(uri string)
	// WithProgress runs fn under a progress indicator. When cancellable, a
	// user cancel cancels the ctx passed to fn.
	WithProgress(ctx context.Context, title string, cancellable bool, fn func(ctx context.Context) error) error
	ShowInfo(msg string)
	ShowWarning(msg string)
	ShowError(msg string)
}
