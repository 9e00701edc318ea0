package dafny

// client.go - the `dafny server` subprocess and its request/notification plumbing.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// ErrClientClosed is returned for requests pending when the server pipe closes.
var ErrClientClosed = errors.New("language server connection closed")

// languageClient is what the state manager needs from a language server
// connection. Tests substitute a fake.
type languageClient interface {
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)
	Notify(method string, params any) error
	OnNotification(method string, handler func(json.RawMessage))
	Shutdown(ctx context.Context) error
}

// Client manages a Dafny language server subprocess and its LSP communication.
type Client struct {
	cmd    *exec.Cmd
	codec  *lspCodec
	logger *slog.Logger

	// Pending request responses, keyed by ID.
	pending   map[int64]chan *rawMessage
	pendingMu sync.Mutex
	closed    bool

	handlers   map[string]func(json.RawMessage)
	handlersMu sync.RWMutex
}

// StartClient launches command with args and starts reading its stdout.
func StartClient(command string, args []string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	c := &Client{
		cmd:      cmd,
		codec:    newLSPCodec(stdout, stdin),
		logger:   logger,
		pending:  make(map[int64]chan *rawMessage),
		handlers: make(map[string]func(json.RawMessage)),
	}
	go c.readLoop()
	return c, nil
}

// readLoop reads messages from the server and dispatches them.
func (c *Client) readLoop() {
	defer c.failPending()
	for {
		msg, err := c.codec.decode()
		if err != nil {
			c.logger.Debug("language server read loop ended", slog.Any("error", err))
			return
		}

		switch {
		case msg.ID != nil && msg.Method == nil:
			c.pendingMu.Lock()
			ch, ok := c.pending[*msg.ID]
			if ok {
				delete(c.pending, *msg.ID)
			}
			c.pendingMu.Unlock()
			if ok {
				ch <- msg
			}
		case msg.ID != nil:
			// Server-to-client requests (registerCapability, workDoneProgress/create,
			// workspace/configuration) only need an answer to unblock the server.
			c.logger.Debug("answering server request", slog.String("method", *msg.Method))
			if err := c.codec.sendResult(*msg.ID, nil); err != nil {
				c.logger.Warn("answer server request", slog.String("method", *msg.Method), slog.Any("error", err))
			}
		case msg.Method != nil:
			c.handlersMu.RLock()
			handler, ok := c.handlers[*msg.Method]
			c.handlersMu.RUnlock()
			if ok {
				handler(msg.Params)
			} else {
				c.logger.Debug("unhandled notification", slog.String("method", *msg.Method))
			}
		}
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Request sends an LSP request and waits for the response or ctx.
func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	ch := make(chan *rawMessage, 1)

	// Register before sending so a fast response is not lost.
	c.pendingMu.Lock()
	if c.closed {
		c.pendingMu.Unlock()
		return nil, ErrClientClosed
	}
	id := c.codec.allocID()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.codec.writeRequest(id, method, params); err != nil {
		c.forget(id)
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClientClosed
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("LSP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (c *Client) forget(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// Notify sends an LSP notification.
func (c *Client) Notify(method string, params any) error {
	return c.codec.sendNotification(method, params)
}

// OnNotification registers a handler for a server notification method.
// Handlers run on the read loop and must not block on requests.
func (c *Client) OnNotification(method string, handler func(json.RawMessage)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[method] = handler
}

// Initialize performs the LSP initialize/initialized handshake.
func (c *Client) Initialize(ctx context.Context, rootURI string) error {
	params := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   rootURI,
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"publishDiagnostics": map[string]any{},
				"documentSymbol": map[string]any{
					"hierarchicalDocumentSymbolSupport": true,
				},
			},
		},
	}
	if _, err := c.Request(ctx, "initialize", params); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := c.Notify("initialized", map[string]any{}); err != nil {
		return fmt.Errorf("initialized: %w", err)
	}
	return nil
}

// Shutdown sends the shutdown request and exit notification, then waits for
// the process.
func (c *Client) Shutdown(ctx context.Context) error {
	if _, err := c.Request(ctx, "shutdown", nil); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := c.Notify("exit", nil); err != nil {
		return fmt.Errorf("exit: %w", err)
	}
	return c.cmd.Wait()
}
