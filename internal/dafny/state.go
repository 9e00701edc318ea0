package dafny

// state.go - per-document state tracking and language server notification dispatch.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sanjit/dafny-mcp/internal/gutter"
)

// DocState tracks per-document state.
type DocState struct {
	URI         string
	Path        string
	Version     int
	Content     string
	Diagnostics []Diagnostic

	// Statuses is nil until the first symbolStatus notification arrives.
	Statuses      []gutter.NamedVerifiable
	StatusVersion int

	// Gutter is the last applied gutter, possibly seeded from the cache.
	Gutter *GutterStatus
	// StaleLines are lines edited since Gutter was computed.
	StaleLines []int

	// GutterCh bridges applied gutters to waiting tool calls.
	GutterCh chan *GutterStatus

	appliedSeq uint64 // sequence number of Gutter
}

// Options configures a StateManager.
type Options struct {
	Command       string
	Args          []string
	NotifyTimeout time.Duration
	Logger        *slog.Logger
	// Sink, when set, receives every applied gutter.
	Sink GutterSink
	// Cache, when set, seeds opened documents and stores applied gutters.
	Cache *GutterCache
}

// StateManager manages per-document state and the language server client.
type StateManager struct {
	Client languageClient
	Docs   map[string]*DocState // keyed by URI
	Mu     sync.Mutex

	opts    Options
	logger  *slog.Logger
	dial    func(ctx context.Context) (languageClient, error)
	watcher *Watcher

	// seq is the last sequence number handed out. It is shared by all
	// documents so a reopened document never reuses a number.
	seq       uint64
	refreshes sync.WaitGroup
	deliverMu sync.Mutex // held across apply and delivery
}

func NewStateManager(opts Options) *StateManager {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	sm := &StateManager{
		Docs:   make(map[string]*DocState),
		opts:   opts,
		logger: opts.Logger,
	}
	sm.dial = sm.startServer
	return sm
}

func (sm *StateManager) startServer(ctx context.Context) (languageClient, error) {
	client, err := StartClient(sm.opts.Command, sm.opts.Args, sm.logger)
	if err != nil {
		return nil, err
	}
	cwd, _ := os.Getwd()
	if err := client.Initialize(ctx, FileURI(cwd)); err != nil {
		return nil, err
	}
	return client, nil
}

// ensureClient lazily starts the language server. Caller holds Mu.
func (sm *StateManager) ensureClient() error {
	if sm.Client != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), sm.opts.NotifyTimeout)
	defer cancel()
	client, err := sm.dial(ctx)
	if err != nil {
		return err
	}
	sm.Client = client

	// Handlers take Mu, so they are registered only after the handshake.
	client.OnNotification(methodPublishDiagnostics, sm.handleDiagnostics)
	client.OnNotification(methodSymbolStatus, sm.handleSymbolStatus)
	client.OnNotification(methodLogMessage, sm.handleLogMessage)
	return nil
}

// SetWatcher makes OpenDoc and CloseDoc keep w in step with the open documents.
func (sm *StateManager) SetWatcher(w *Watcher) {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()
	sm.watcher = w
}

func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + abs
}

func lineCount(content string) int {
	return strings.Count(content, "\n") + 1
}

// OpenDoc opens a .dfy file in the language server.
func (sm *StateManager) OpenDoc(path string) error {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	if err := sm.ensureClient(); err != nil {
		return err
	}

	uri := FileURI(path)
	if _, exists := sm.Docs[uri]; exists {
		return fmt.Errorf("document already open: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	doc := &DocState{
		URI:      uri,
		Path:     path,
		Version:  1,
		Content:  string(content),
		GutterCh: make(chan *GutterStatus, 16),
	}
	sm.seedFromCache(doc)
	sm.Docs[uri] = doc

	if sm.watcher != nil {
		if err := sm.watcher.Add(path); err != nil {
			sm.logger.Warn("watch document", slog.String("path", path), slog.Any("error", err))
		}
	}

	params := map[string]any{
		"textDocument": map[string]any{
			"uri":        uri,
			"languageId": "dafny",
			"version":    doc.Version,
			"text":       doc.Content,
		},
	}
	return sm.Client.Notify("textDocument/didOpen", params)
}

// seedFromCache installs a cached gutter for identical content, with every
// line stale until the server reports.
func (sm *StateManager) seedFromCache(doc *DocState) {
	if sm.opts.Cache == nil {
		return
	}
	codes, ok, err := sm.opts.Cache.Get(doc.Content)
	if err != nil {
		sm.logger.Warn("read gutter cache", slog.String("uri", doc.URI), slog.Any("error", err))
		return
	}
	if !ok || len(codes) != lineCount(doc.Content) {
		return
	}
	doc.Gutter = &GutterStatus{URI: doc.URI, PerLineStatus: codes}
	doc.StaleLines = make([]int, len(codes))
	for i := range doc.StaleLines {
		doc.StaleLines[i] = i
	}
	sm.logger.Debug("seeded gutter from cache", slog.String("uri", doc.URI))
}

// CloseDoc closes a document in the language server.
func (sm *StateManager) CloseDoc(path string) error {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	uri := FileURI(path)
	doc, ok := sm.Docs[uri]
	if !ok {
		return fmt.Errorf("document not open: %s", path)
	}

	params := map[string]any{
		"textDocument": map[string]any{
			"uri": doc.URI,
		},
	}
	err := sm.Client.Notify("textDocument/didClose", params)
	delete(sm.Docs, uri)
	if sm.watcher != nil {
		sm.watcher.Remove(path)
	}
	return err
}

// SyncDoc re-reads a file from disk and sends didChange. Unchanged content is
// not resent.
func (sm *StateManager) SyncDoc(path string) error {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	uri := FileURI(path)
	doc, ok := sm.Docs[uri]
	if !ok {
		return fmt.Errorf("document not open: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if string(content) == doc.Content {
		return nil
	}

	doc.StaleLines = ChangedLines(doc.Content, string(content))
	doc.Version++
	doc.Content = string(content)

	params := map[string]any{
		"textDocument": map[string]any{
			"uri":     doc.URI,
			"version": doc.Version,
		},
		"contentChanges": []map[string]any{
			{"text": doc.Content},
		},
	}
	return sm.Client.Notify("textDocument/didChange", params)
}

// GetDoc returns the state for a file (caller must hold lock or accept races).
func (sm *StateManager) GetDoc(path string) (*DocState, error) {
	uri := FileURI(path)
	doc, ok := sm.Docs[uri]
	if !ok {
		return nil, fmt.Errorf("document not open: %s", path)
	}
	return doc, nil
}

// IsOpen reports whether path is an open document.
func (sm *StateManager) IsOpen(path string) bool {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()
	_, ok := sm.Docs[FileURI(path)]
	return ok
}

// handleDiagnostics processes publishDiagnostics notifications.
func (sm *StateManager) handleDiagnostics(params json.RawMessage) {
	var p publishDiagnosticsParams
	if err := json.Unmarshal(params, &p); err != nil {
		sm.logger.Warn("parse diagnostics", slog.Any("error", err))
		return
	}

	sm.Mu.Lock()
	doc, ok := sm.Docs[p.URI]
	if ok {
		doc.Diagnostics = p.Diagnostics
	}
	sm.Mu.Unlock()

	if ok {
		sm.scheduleGutter(p.URI)
	}
}

// handleSymbolStatus processes dafny/textDocument/symbolStatus notifications.
func (sm *StateManager) handleSymbolStatus(params json.RawMessage) {
	var p symbolStatusParams
	if err := json.Unmarshal(params, &p); err != nil {
		sm.logger.Warn("parse symbolStatus", slog.Any("error", err))
		return
	}
	if p.NamedVerifiables == nil {
		p.NamedVerifiables = []gutter.NamedVerifiable{}
	}

	sm.Mu.Lock()
	doc, ok := sm.Docs[p.URI]
	if ok {
		doc.Statuses = p.NamedVerifiables
		doc.StatusVersion = p.Version
	}
	sm.Mu.Unlock()

	if ok {
		sm.scheduleGutter(p.URI)
	}
}

func (sm *StateManager) handleLogMessage(params json.RawMessage) {
	var p logMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	sm.logger.Debug("dafny server", slog.Int("type", p.Type), slog.String("message", p.Message))
}

// Shutdown waits for in-flight gutter refreshes and stops the language server.
func (sm *StateManager) Shutdown(ctx context.Context) error {
	sm.Mu.Lock()
	client := sm.Client
	sm.Mu.Unlock()
	if client == nil {
		return nil
	}
	err := client.Shutdown(ctx)
	sm.refreshes.Wait()
	return err
}
