package dafny

// lsp.go - Content-Length framed JSON-RPC 2.0 codec for the language server pipe.

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// lspCodec handles Content-Length framed JSON-RPC reading and writing.
type lspCodec struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex // protects writer
	nextID atomic.Int64
}

func newLSPCodec(r io.Reader, w io.Writer) *lspCodec {
	c := &lspCodec{
		reader: bufio.NewReader(r),
		writer: w,
	}
	c.nextID.Store(1)
	return c
}

// rawMessage is the decoded JSON-RPC envelope. Server-to-client requests carry
// both an ID and a method.
type rawMessage struct {
	ID     *int64          `json:"id,omitempty"`
	Method *string         `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

func (c *lspCodec) encode(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// decode reads one Content-Length framed JSON-RPC message.
func (c *lspCodec) decode() (*rawMessage, error) {
	contentLength := -1
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("parse Content-Length: %w", err)
		}
		contentLength = n
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var msg rawMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &msg, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}

// allocID reserves the next request ID.
func (c *lspCodec) allocID() int64 {
	return c.nextID.Add(1) - 1
}

func (c *lspCodec) writeRequest(id int64, method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	return c.encode(&jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: raw})
}

// sendNotification sends a JSON-RPC notification (no ID, no response expected).
func (c *lspCodec) sendNotification(method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	return c.encode(&jsonRPCNotification{JSONRPC: "2.0", Method: method, Params: raw})
}

// sendResult answers a server-to-client request.
func (c *lspCodec) sendResult(id int64, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.encode(&jsonRPCResponse{JSONRPC: "2.0", ID: id, Result: raw})
}
