package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/crystaldolphin/mcpchat/internal/schema"
	"github.com/crystaldolphin/mcpchat/internal/tools"
)

const helperEnv = "MCPCHAT_HELPER_PROCESS"

// ─── Subprocess MCP server ───────────────────────────────────────────────────

// TestHelperProcess is not a real test: the stdio tests re-exec the test
// binary into it so it plays a minimal MCP server on stdin/stdout.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	serveHelper(os.Stdin, os.Stdout)
	os.Exit(0)
}

func serveHelper(in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "helper server starting on stdio")

	initialized := false
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		var req rpcRequest
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			continue
		}
		if req.ID == nil {
			if req.Method == "notifications/initialized" {
				initialized = true
			}
			continue
		}

		reply := map[string]any{"jsonrpc": "2.0", "id": *req.ID}
		switch {
		case req.Method == "initialize":
			if req.Params["protocolVersion"] != protocolVersion {
				reply["error"] = map[string]any{"code": -32602, "message": "unsupported protocol version"}
				break
			}
			reply["result"] = map[string]any{"protocolVersion": protocolVersion}
		case !initialized:
			reply["error"] = map[string]any{"code": -32002, "message": "not initialized"}
		case req.Method == "tools/list":
			fmt.Fprintln(out, `{"jsonrpc":"2.0","method":"notifications/message","params":{"level":"info"}}`)
			reply["result"] = map[string]any{"tools": []any{
				map[string]any{"name": "echo", "description": "Echo text", "inputSchema": map[string]any{"type": "object"}},
				map[string]any{"name": "broken", "inputSchema": map[string]any{"type": "object"}},
			}}
		case req.Method == "tools/call":
			args, _ := req.Params["arguments"].(map[string]any)
			switch req.Params["name"] {
			case "echo":
				reply["result"] = map[string]any{
					"content": []any{map[string]any{"type": "text", "text": fmt.Sprintf("echo:%v", args["text"])}},
				}
			case "broken":
				reply["result"] = map[string]any{
					"content": []any{map[string]any{"type": "text", "text": "boom"}},
					"isError": true,
				}
			case "exit":
				os.Exit(0)
			}
		default:
			reply["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}

		body, _ := json.Marshal(reply)
		fmt.Fprintf(out, "%s\n", body)
	}
}

func helperConfig(name string) ServerConfig {
	return ServerConfig{
		Name:    name,
		Type:    TypeStdio,
		Command: os.Args[0],
		Args:    []string{"-test.run=^TestHelperProcess$"},
		Env:     map[string]string{helperEnv: "1"},
	}
}

// ─── Stdio transport ─────────────────────────────────────────────────────────

func TestClient_Stdio_HandshakeListAndCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := newClient(helperConfig("local"))
	if err := c.connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if !c.Connected() {
		t.Fatal("expected client to be connected")
	}

	descs, err := c.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(descs) != 2 || descs[0].Name != "echo" || descs[0].Origin != "local" || descs[1].Name != "broken" {
		t.Fatalf("unexpected descriptors: %+v", descs)
	}

	out, err := c.CallTool(ctx, "echo", map[string]any{"text": "hola"})
	if err != nil {
		t.Fatalf("CallTool echo: %v", err)
	}
	if out != (schema.ToolOutput{Content: "echo:hola"}) {
		t.Errorf("echo output = %+v", out)
	}

	out, err = c.CallTool(ctx, "broken", map[string]any{})
	if err != nil {
		t.Fatalf("CallTool broken: %v", err)
	}
	if out != (schema.ToolOutput{Content: "boom", IsError: true}) {
		t.Errorf("broken output = %+v", out)
	}
}

func TestClient_Stdio_ProcessExitDisconnects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := newClient(helperConfig("local"))
	if err := c.connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	_, err := c.CallTool(ctx, "exit", map[string]any{})
	if !errors.Is(err, errClosed) {
		t.Fatalf("want errClosed when the server exits, got %v", err)
	}
	if c.Connected() {
		t.Error("expected disconnected after the server exited")
	}
	if _, err := c.ListTools(ctx); !errors.Is(err, errClosed) {
		t.Errorf("ListTools after exit: %v", err)
	}
}

func TestManager_ConnectStdioAndDispatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reg := tools.NewRegistry()
	t.Cleanup(reg.Close)
	m := NewManager([]ServerConfig{helperConfig("local")})
	if err := m.Connect(ctx, reg); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if m.Connected() != 1 {
		t.Fatalf("Connected() = %d, want 1", m.Connected())
	}
	if got := reg.Providers(); len(got) != 1 || got[0] != "local" {
		t.Errorf("Providers() = %v", got)
	}

	res, err := reg.Dispatch(ctx, "broken", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.IsError || res.Content != "boom" {
		t.Errorf("result = %+v", res)
	}
}
