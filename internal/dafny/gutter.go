package dafny

// gutter.go - recomputes a document's gutter whenever its inputs change.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sanjit/dafny-mcp/internal/gutter"
)

// Results recorded on dafny_mcp_gutter_updates_total.
const (
	resultApplied   = "applied"
	resultDiscarded = "discarded"
	resultSkipped   = "skipped"
	resultFailed    = "failed"
)

// scheduleGutter hands out the next sequence number and recomputes the gutter
// of the document open at uri in the background. Notification handlers run on the client read loop, and a
// symbol request issued from there would never see its response.
func (sm *StateManager) scheduleGutter(uri string) {
	sm.Mu.Lock()
	doc, ok := sm.Docs[uri]
	if !ok {
		sm.Mu.Unlock()
		return
	}
	sm.seq++
	seq := sm.seq
	client := sm.Client
	sm.Mu.Unlock()

	sm.refreshes.Add(1)
	go func() {
		defer sm.refreshes.Done()
		sm.refreshGutter(client, doc, seq)
	}()
}

// refreshGutter computes the gutter of doc for trigger seq. The result is
// dropped if doc was closed in the meantime, even when the same file has
// been reopened.
func (sm *StateManager) refreshGutter(client languageClient, doc *DocState, seq uint64) {
	start := time.Now()
	uri := doc.URI
	logger := sm.logger.With(slog.String("uri", uri), slog.Uint64("seq", seq))

	ctx, cancel := context.WithTimeout(context.Background(), sm.opts.NotifyTimeout)
	defer cancel()
	symbols, err := documentSymbols(ctx, client, uri)
	if err != nil {
		observeUpdate(resultFailed, start)
		logger.Warn("document symbols", slog.Any("error", err))
		return
	}
	if symbols == nil {
		observeUpdate(resultSkipped, start)
		logger.Debug("symbols unavailable, gutter not updated")
		return
	}

	sm.Mu.Lock()
	if sm.Docs[uri] != doc {
		sm.Mu.Unlock()
		observeUpdate(resultDiscarded, start)
		logger.Debug("document closed, gutter discarded")
		return
	}
	if doc.Statuses == nil {
		sm.Mu.Unlock()
		observeUpdate(resultSkipped, start)
		logger.Debug("no symbol statuses yet, gutter not updated")
		return
	}
	diags := toGutterDiagnostics(doc.Diagnostics)
	statuses := append([]gutter.NamedVerifiable(nil), doc.Statuses...)
	version := doc.StatusVersion
	lines := lineCount(doc.Content)
	sm.Mu.Unlock()

	computed, err := gutter.ComputeLineStatuses(symbols, diags, statuses, lines)
	if err != nil {
		observeUpdate(resultFailed, start)
		logger.Error("compute gutter", slog.Any("error", err))
		return
	}

	status := &GutterStatus{
		URI:           uri,
		Version:       version,
		Sequence:      seq,
		PerLineStatus: gutter.Encode(computed),
		Settled:       allSettled(statuses),
	}
	if sm.applyGutter(doc, status) {
		observeUpdate(resultApplied, start)
	} else {
		observeUpdate(resultDiscarded, start)
		logger.Debug("discarded out-of-order gutter")
	}
}

// applyGutter installs status on doc unless a later trigger already won or
// doc is no longer open. Sinks see applied gutters in sequence order.
func (sm *StateManager) applyGutter(doc *DocState, status *GutterStatus) bool {
	sm.deliverMu.Lock()
	defer sm.deliverMu.Unlock()

	sm.Mu.Lock()
	if sm.Docs[doc.URI] != doc || status.Sequence <= doc.appliedSeq {
		sm.Mu.Unlock()
		return false
	}
	doc.appliedSeq = status.Sequence
	doc.Gutter = status
	current := status.Version >= doc.Version
	if current {
		doc.StaleLines = nil
	}
	content := doc.Content
	sm.Mu.Unlock()

	select {
	case doc.GutterCh <- status:
	default:
	}
	if sm.opts.Sink != nil {
		sm.opts.Sink.UpdateGutter(*status)
	}
	if sm.opts.Cache != nil && current {
		if err := sm.opts.Cache.Put(content, status); err != nil {
			sm.logger.Warn("write gutter cache", slog.String("uri", status.URI), slog.Any("error", err))
		}
	}
	return true
}

// documentSymbols fetches the hierarchical symbol tree. A nil slice with a nil
// error means the server has no tree for the document yet.
func documentSymbols(ctx context.Context, client languageClient, uri string) ([]gutter.Symbol, error) {
	if client == nil {
		return nil, ErrClientClosed
	}
	params := map[string]any{
		"textDocument": map[string]any{"uri": uri},
	}
	raw, err := client.Request(ctx, methodDocumentSymbol, params)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	symbols := []gutter.Symbol{}
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, fmt.Errorf("parse document symbols: %w", err)
	}
	return symbols, nil
}

// GutterView is a document's gutter lined up with its current content.
type GutterView struct {
	URI     string
	Version int
	// GutterVersion is the document version the gutter was computed for.
	GutterVersion int
	Lines         []string
	Statuses      []gutter.LineStatus
	StaleLines    []int
	Settled       bool
	// Available is false until a gutter has been computed or seeded.
	Available bool
}

// Codes returns the encoded per-line statuses.
func (v GutterView) Codes() []int {
	return gutter.Encode(v.Statuses)
}

// Ranges compresses the view into range groups keyed by status code.
func (v GutterView) Ranges() map[int][]gutter.LineRange {
	return gutter.PerLineStatusToRanges(v.Codes(), v.StaleLines)
}

// View snapshots the gutter of an open document. Lines the gutter does not
// cover yet are pending; stale lines are forced to pending.
func (sm *StateManager) View(path string) (GutterView, error) {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	doc, err := sm.GetDoc(path)
	if err != nil {
		return GutterView{}, err
	}
	return doc.view()
}

// view builds the snapshot. Caller holds the state lock.
func (doc *DocState) view() (GutterView, error) {
	v := GutterView{
		URI:        doc.URI,
		Version:    doc.Version,
		Lines:      splitLines(doc.Content),
		StaleLines: append([]int(nil), doc.StaleLines...),
	}
	v.Statuses = make([]gutter.LineStatus, len(v.Lines))
	if doc.Gutter == nil {
		return v, nil
	}
	v.Available = true
	v.GutterVersion = doc.Gutter.Version
	v.Settled = doc.Gutter.Settled && doc.Gutter.Version >= doc.Version
	for i, code := range doc.Gutter.PerLineStatus {
		if i >= len(v.Statuses) {
			break
		}
		st, err := gutter.Decode(code)
		if err != nil {
			return GutterView{}, fmt.Errorf("line %d: %w", i, err)
		}
		v.Statuses[i] = st
	}
	v.Statuses = gutter.MarkStale(v.Statuses, v.StaleLines)
	return v, nil
}
