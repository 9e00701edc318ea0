package dafny

// verify.go - gutter queries and verification waits backing the MCP tools.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultVerifyTimeout bounds DoVerify when the caller gives no timeout.
const DefaultVerifyTimeout = 2 * time.Minute

// DoGutter renders the per-line gutter of an open document.
func DoGutter(sm *StateManager, file string) (*mcp.CallToolResult, any, error) {
	v, err := sm.View(file)
	if err != nil {
		return ErrResult(err), nil, nil
	}
	return TextResult(FormatGutter(v)), nil, nil
}

// DoRanges renders the gutter as range groups.
func DoRanges(sm *StateManager, file string) (*mcp.CallToolResult, any, error) {
	v, err := sm.View(file)
	if err != nil {
		return ErrResult(err), nil, nil
	}
	return TextResult(FormatRanges(v)), nil, nil
}

// WaitSettled blocks until doc carries a settled gutter for its current
// version, or ctx is done.
func WaitSettled(ctx context.Context, sm *StateManager, doc *DocState) error {
	for {
		sm.Mu.Lock()
		done := doc.Gutter != nil && doc.Gutter.Settled && doc.Gutter.Version >= doc.Version
		sm.Mu.Unlock()
		if done {
			return nil
		}
		select {
		case <-doc.GutterCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DoVerify waits until every verifiable of the document has settled, then
// renders the gutter with the diagnostics.
func DoVerify(sm *StateManager, file string, timeout time.Duration) (*mcp.CallToolResult, any, error) {
	sm.Mu.Lock()
	doc, err := sm.GetDoc(file)
	sm.Mu.Unlock()
	if err != nil {
		return ErrResult(err), nil, nil
	}
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	waitErr := WaitSettled(ctx, sm, doc)

	sm.Mu.Lock()
	v, err := doc.view()
	diags := append([]Diagnostic(nil), doc.Diagnostics...)
	sm.Mu.Unlock()
	if err != nil {
		return ErrResult(err), nil, nil
	}

	var sb strings.Builder
	if waitErr != nil {
		fmt.Fprintf(&sb, "Verification did not settle within %s.\n", timeout)
	}
	sb.WriteString(FormatRanges(v))
	FormatDiagnostics(&sb, diags)
	return TextResult(sb.String()), nil, nil
}

// DoDiagnostics renders the last published diagnostics.
func DoDiagnostics(sm *StateManager, file string) (*mcp.CallToolResult, any, error) {
	sm.Mu.Lock()
	doc, err := sm.GetDoc(file)
	var diags []Diagnostic
	if err == nil {
		diags = append(diags, doc.Diagnostics...)
	}
	sm.Mu.Unlock()
	if err != nil {
		return ErrResult(err), nil, nil
	}
	if len(diags) == 0 {
		return TextResult("No diagnostics for " + file), nil, nil
	}
	var sb strings.Builder
	FormatDiagnostics(&sb, diags)
	return TextResult(strings.TrimPrefix(sb.String(), "\n")), nil, nil
}

// DoSymbols fetches and renders the document's symbol tree.
func DoSymbols(sm *StateManager, file string) (*mcp.CallToolResult, any, error) {
	sm.Mu.Lock()
	doc, err := sm.GetDoc(file)
	client := sm.Client
	sm.Mu.Unlock()
	if err != nil {
		return ErrResult(err), nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), sm.opts.NotifyTimeout)
	defer cancel()
	symbols, err := documentSymbols(ctx, client, doc.URI)
	if err != nil {
		return ErrResult(err), nil, nil
	}
	if symbols == nil {
		return TextResult("Symbols are not available yet for " + file), nil, nil
	}
	if len(symbols) == 0 {
		return TextResult("No symbols in " + file), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Symbols: %s ===\n", file)
	FormatSymbols(&sb, symbols)
	return TextResult(sb.String()), nil, nil
}
