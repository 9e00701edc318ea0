package dafny

// types.go - wire types for the Dafny language server and the gutter payload.

import (
	"github.com/sanjit/dafny-mcp/internal/gutter"
)

// Diagnostic is an LSP diagnostic.
type Diagnostic struct {
	Range    gutter.Range `json:"range"`
	Severity int          `json:"severity"`
	Source   string       `json:"source,omitempty"`
	Message  string       `json:"message"`
}

func toGutterDiagnostics(diags []Diagnostic) []gutter.Diagnostic {
	out := make([]gutter.Diagnostic, len(diags))
	for i, d := range diags {
		out[i] = gutter.Diagnostic{Range: d.Range, Source: d.Source}
	}
	return out
}

type publishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// symbolStatusParams is the payload of dafny/textDocument/symbolStatus.
type symbolStatusParams struct {
	URI              string                   `json:"uri"`
	Version          int                      `json:"version"`
	NamedVerifiables []gutter.NamedVerifiable `json:"namedVerifiables"`
}

type logMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

// GutterStatus is the per-line verification payload handed to renderers.
type GutterStatus struct {
	URI           string `json:"uri"`
	Version       int    `json:"version"`
	Sequence      uint64 `json:"sequence"`
	PerLineStatus []int  `json:"perLineStatus"`
	// Settled is true once every verifiable of the document finished.
	Settled bool `json:"settled"`
}

// GutterSink receives every gutter that is applied to a document.
type GutterSink interface {
	UpdateGutter(status GutterStatus)
}

// GutterSinkFunc adapts a function to GutterSink.
type GutterSinkFunc func(status GutterStatus)

func (f GutterSinkFunc) UpdateGutter(status GutterStatus) { f(status) }

func allSettled(statuses []gutter.NamedVerifiable) bool {
	for _, s := range statuses {
		if !s.Status.Settled() {
			return false
		}
	}
	return true
}

const (
	methodPublishDiagnostics = "textDocument/publishDiagnostics"
	methodSymbolStatus       = "dafny/textDocument/symbolStatus"
	methodDocumentSymbol     = "textDocument/documentSymbol"
	methodLogMessage         = "window/logMessage"
)
