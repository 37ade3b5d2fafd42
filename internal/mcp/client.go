package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crystaldolphin/mcpchat/internal/schema"
	"github.com/crystaldolphin/mcpchat/internal/tools"
)

const protocolVersion = "2024-11-05"

var errClosed = errors.New("mcp connection closed")

// client manages JSON-RPC communication with a single MCP server (stdio or HTTP).
// It implements tools.Connection.
type client struct {
	cfg        ServerConfig
	httpClient *http.Client

	// Stdio fields (non-nil when command-based)
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan rpcResponse

	sessionID atomic.Value // string; HTTP servers that issue Mcp-Session-Id
	nextID    atomic.Int64
	ready     atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

var _ tools.Connection = (*client)(nil)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message) }

type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func newClient(cfg ServerConfig) *client {
	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		pending:    make(map[int64]chan rpcResponse),
		done:       make(chan struct{}),
	}
}

func (c *client) Name() string    { return c.cfg.Name }
func (c *client) Connected() bool { return c.ready.Load() }

// connect starts the MCP server subprocess (or prepares HTTP) and runs the
// initialize handshake.
func (c *client) connect(ctx context.Context) error {
	switch c.cfg.transport() {
	case TypeHTTP:
		if c.cfg.URL == "" {
			return fmt.Errorf("MCP server %q: http transport without url", c.cfg.Name)
		}
	case TypeStdio, TypeDocker:
		if c.cfg.Command == "" {
			return fmt.Errorf("MCP server %q: no command configured", c.cfg.Name)
		}
		if err := c.startProcess(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("MCP server %q: unknown type %q", c.cfg.Name, c.cfg.Type)
	}

	if err := c.initialize(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("initialize: %w", err)
	}
	c.ready.Store(true)
	return nil
}

func (c *client) startProcess() error {
	// The subprocess outlives the connect context; Close kills it.
	c.cmd = exec.Command(c.cfg.Command, c.cfg.Args...)
	if len(c.cfg.Env) > 0 {
		c.cmd.Env = os.Environ()
		for k, v := range c.cfg.Env {
			c.cmd.Env = append(c.cmd.Env, k+"="+v)
		}
	}

	stdinPipe, err := c.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutPipe, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	c.stdin = stdinPipe

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("start MCP server: %w", err)
	}
	go c.readLoop(stdoutPipe)
	return nil
}

// readLoop routes stdout responses to their waiting callers. Non-JSON lines
// (server log output) and notifications are skipped.
func (c *client) readLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		id, ok := parseID(resp.ID)
		if !ok {
			continue
		}
		c.pendingMu.Lock()
		ch := c.pending[id]
		delete(c.pending, id)
		c.pendingMu.Unlock()
		if ch != nil {
			ch <- resp
		}
	}
	if err := sc.Err(); err != nil {
		slog.Warn("MCP stdout read failed", "server", c.cfg.Name, "err", err)
	}
	c.ready.Store(false)
	c.closeOnce.Do(func() { close(c.done) })
}

func parseID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	id, err := n.Int64()
	return id, err == nil
}

// ListTools returns the tools exposed by this MCP server, following
// pagination cursors.
func (c *client) ListTools(ctx context.Context) ([]schema.ToolDescriptor, error) {
	var out []schema.ToolDescriptor
	cursor := ""
	for {
		var params any
		if cursor != "" {
			params = map[string]any{"cursor": cursor}
		}
		raw, err := c.call(ctx, "tools/list", params)
		if err != nil {
			return nil, err
		}
		var result struct {
			Tools []struct {
				Name        string         `json:"name"`
				Description string         `json:"description"`
				InputSchema map[string]any `json:"inputSchema"`
			} `json:"tools"`
			NextCursor string `json:"nextCursor"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("decode tools/list: %w", err)
		}
		for _, t := range result.Tools {
			out = append(out, schema.ToolDescriptor{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
				Origin:      c.cfg.Name,
			})
		}
		if result.NextCursor == "" || result.NextCursor == cursor {
			return out, nil
		}
		cursor = result.NextCursor
	}
}

// CallTool invokes a named tool and unwraps its content to text.
func (c *client) CallTool(ctx context.Context, name string, args map[string]any) (schema.ToolOutput, error) {
	raw, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return schema.ToolOutput{}, err
	}
	return decodeToolResult(raw), nil
}

// decodeToolResult joins the text blocks of a tools/call result. Results
// without any text are rendered as indented JSON.
func decodeToolResult(raw json.RawMessage) schema.ToolOutput {
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return schema.ToolOutput{Content: string(raw)}
	}

	var parts []string
	for _, block := range result.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) > 0 {
		return schema.ToolOutput{Content: strings.Join(parts, "\n"), IsError: result.IsError}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return schema.ToolOutput{Content: string(raw), IsError: result.IsError}
	}
	return schema.ToolOutput{Content: pretty.String(), IsError: result.IsError}
}

// Close stops the subprocess, if any, and marks the connection dropped.
func (c *client) Close() error {
	c.ready.Store(false)
	c.closeOnce.Do(func() { close(c.done) })
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_, _ = c.cmd.Process.Wait()
	}
	return nil
}

// ---------------------------------------------------------------------------
// JSON-RPC plumbing
// ---------------------------------------------------------------------------

func (c *client) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "mcpchat", "version": "1.0.0"},
	}
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return err
	}
	return c.notify(ctx, "notifications/initialized")
}

func (c *client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if c.cfg.transport() == TypeHTTP {
		return c.callHTTP(ctx, id, data)
	}
	return c.callStdio(ctx, id, data)
}

func (c *client) notify(ctx context.Context, method string) error {
	data, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": method})
	if c.cfg.transport() == TypeHTTP {
		_, err := c.postHTTP(ctx, data)
		return err
	}
	return c.writeLine(data)
}

func (c *client) writeLine(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.stdin, "%s\n", data); err != nil {
		return fmt.Errorf("write to MCP stdin: %w", err)
	}
	return nil
}

func (c *client) callStdio(ctx context.Context, id int64, data []byte) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, errClosed
	default:
	}

	ch := make(chan rpcResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.writeLine(data); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, errClosed
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (c *client) callHTTP(ctx context.Context, id int64, data []byte) (json.RawMessage, error) {
	resp, err := c.postHTTP(ctx, data)
	if err != nil {
		return nil, err
	}
	for _, r := range resp {
		if got, ok := parseID(r.ID); ok && got == id {
			if r.Error != nil {
				return nil, r.Error
			}
			return r.Result, nil
		}
	}
	return nil, fmt.Errorf("MCP server %q: no response for request %d", c.cfg.Name, id)
}

// postHTTP sends one JSON-RPC message and decodes every response it carries,
// whether the server answers with plain JSON or an event stream.
func (c *client) postHTTP(ctx context.Context, data []byte) ([]rpcResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if sid, _ := c.sessionID.Load().(string); sid != "" {
		httpReq.Header.Set("Mcp-Session-Id", sid)
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		c.sessionID.Store(sid)
	}
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("MCP server %q: HTTP %d: %s", c.cfg.Name, resp.StatusCode,
			strings.TrimSpace(string(body)))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return decodeEventStream(body), nil
	}
	var single rpcResponse
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decode MCP response: %w", err)
	}
	return []rpcResponse{single}, nil
}

func decodeEventStream(body []byte) []rpcResponse {
	var out []rpcResponse
	for _, line := range strings.Split(string(body), "\n") {
		payload, ok := strings.CutPrefix(strings.TrimSpace(line), "data:")
		if !ok {
			continue
		}
		var r rpcResponse
		if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &r); err == nil {
			out = append(out, r)
		}
	}
	return out
}
