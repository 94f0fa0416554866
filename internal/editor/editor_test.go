package editor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestLevelString(t *testing.T) {
	tests := map[Level]string{
		LevelError:       "error",
		LevelWarning:     "warning",
		LevelInformation: "info",
		LevelHint:        "hint",
	}
	for level, want := range tests {
		if got := level.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", level, got, want)
		}
		text, _ := level.MarshalText()
		if string(text) != want {
			t.Errorf("MarshalText = %q", text)
		}
	}
}

func TestConsole_OpenAndPublish(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	c := NewConsole(&out, &errOut)

	doc, err := c.OpenDocument(context.Background(), file)
	if err != nil {
		t.Fatalf("OpenDocument failed: %v", err)
	}
	if doc.Text != "package main\n" || !strings.HasPrefix(doc.URI, "file://") {
		t.Errorf("unexpected document: %+v", doc)
	}

	if _, ok := c.ActiveDocument(); ok {
		t.Error("no document should be active yet")
	}
	c.SetActive(doc)
	if active, ok := c.ActiveDocument(); !ok || active.Path != doc.Path {
		t.Errorf("ActiveDocument = %+v, %v", active, ok)
	}

	c.SetDiagnostics(doc.URI, []Diagnostic{{
		Line:    3,
		Level:   LevelError,
		Message: "too complex",
		Related: []RelatedInfo{{Message: "Write-off requested"}},
	}})
	output := out.String()
	for _, want := range []string{"main.go:3: error too complex", "Write-off requested"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output: %s", want, output)
		}
	}
	if len(c.Diagnostics(doc.URI)) != 1 {
		t.Error("diagnostics should be retained")
	}

	c.ClearDiagnostics(doc.URI)
	if len(c.Diagnostics(doc.URI)) != 0 {
		t.Error("diagnostics should be cleared")
	}

	c.ShowError("boom")
	if !strings.Contains(errOut.String(), "boom") {
		t.Errorf("error message missing: %s", errOut.String())
	}
}

func TestConsole_WithProgress(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(&out, &errOut)

	ran := false
	err := c.WithProgress(context.Background(), "Scanning main.go", true, func(ctx context.Context) error {
		ran = ctx.Err() == nil
		return nil
	})
	if err != nil || !ran {
		t.Errorf("WithProgress: err=%v ran=%v", err, ran)
	}
	if !strings.Contains(errOut.String(), "Scanning main.go") {
		t.Errorf("progress title missing: %s", errOut.String())
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	if _, err := r.OpenDocument(context.Background(), "/missing.go"); err == nil {
		t.Error("expected error for unknown document")
	}
	r.AddDocument(Document{URI: "file:///a.go", Path: "/a.go", Text: "x"})
	if doc, err := r.OpenDocument(context.Background(), "/a.go"); err != nil || doc.Text != "x" {
		t.Errorf("OpenDocument = %+v, %v", doc, err)
	}

	r.ClearDiagnostics("file:///a.go")
	r.SetDiagnostics("file:///a.go", []Diagnostic{{Line: 1}})
	if got := strings.Join(r.Events(), ","); got != "clear file:///a.go,set file:///a.go 1" {
		t.Errorf("events = %s", got)
	}

	r.OnProgress = func(title string, cancel context.CancelFunc) { cancel() }
	err := r.WithProgress(context.Background(), "scan", true, func(ctx context.Context) error {
		return ctx.Err()
	})
	if err != context.Canceled {
		t.Errorf("cancel hook should cancel fn's ctx, got %v", err)
	}

	r.ShowWarning("careful")
	if msgs := r.Messages(); len(msgs) != 1 || msgs[0] != "warning: careful" {
		t.Errorf("messages = %v", msgs)
	}
}
