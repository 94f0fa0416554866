package diagnostics

import "livecheck/internal/editor"

// Publisher replaces a document's whole diagnostic set in one step.
type Publisher struct {
	surface editor.Surface
}

// NewPublisher creates a publisher over surface.
func NewPublisher(surface editor.Surface) *Publisher {
	return &Publisher{surface: surface}
}

// Publish clears uri, then sets diags.
func (p *Publisher) Publish(uri string, diags []editor.Diagnostic) {
	p.surface.ClearDiagnostics(uri)
	p.surface.SetDiagnostics(uri, diags)
}

// Clear removes every diagnostic for uri.
func (p *Publisher) Clear(uri string) {
	p.surface.ClearDiagnostics(uri)
}
