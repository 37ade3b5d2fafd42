// Package mcpserver exposes the chat engine as an MCP server, so other MCP
// clients can run turns and poll their status.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/crystaldolphin/mcpchat/internal/orchestrator"
	"github.com/crystaldolphin/mcpchat/internal/status"
	"github.com/crystaldolphin/mcpchat/internal/tools"
)

const toolsResourceURI = "mcpchat://tools"

// Engine runs one chat turn.
type Engine interface {
	Process(ctx context.Context, req orchestrator.TurnRequest, onEvent orchestrator.EventFunc) (orchestrator.TurnResult, error)
}

// ToolCatalog exposes the grouped tool listing.
type ToolCatalog interface {
	GroupedByOrigin() []tools.ToolGroup
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	tracker   *status.Tracker
	catalog   ToolCatalog
	mcpServer *server.MCPServer
}

func NewServer(engine Engine, tracker *status.Tracker, catalog ToolCatalog, version string) *Server {
	s := &Server{
		engine:    engine,
		tracker:   tracker,
		catalog:   catalog,
		mcpServer: server.NewMCPServer("mcpchat", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Send one message to an LLM provider with access to the configured MCP tools."),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message")),
		mcp.WithString("provider", mcp.Description("claude, openai or gemini (default claude)")),
		mcp.WithString("context_key", mcp.Description("Initial context to apply")),
	), s.handleChat)

	s.mcpServer.AddTool(mcp.NewTool("chat_status",
		mcp.WithDescription("Get the last recorded status of a chat request."),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("Request id returned by chat")),
	), s.handleStatus)
}

func (s *Server) handleChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := request.GetString("message", "")
	if message == "" {
		return mcp.NewToolResultError("message is required"), nil
	}
	provider := request.GetString("provider", "claude")
	requestID := uuid.NewString()

	var hook orchestrator.EventFunc
	if s.tracker != nil {
		hook = s.tracker.Hook(requestID)
	}
	res, err := s.engine.Process(ctx, orchestrator.TurnRequest{
		Message:    message,
		Provider:   provider,
		ContextKey: request.GetString("context_key", ""),
		RequestID:  requestID,
	}, hook)
	if err != nil {
		s.finish(ctx, requestID, err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.finish(ctx, requestID, nil)
	return mcp.NewToolResultText(res.Text), nil
}

func (s *Server) finish(ctx context.Context, id string, turnErr error) {
	if s.tracker == nil {
		return
	}
	var err error
	if turnErr != nil {
		err = s.tracker.Fail(context.WithoutCancel(ctx), id, turnErr.Error())
	} else {
		err = s.tracker.Complete(context.WithoutCancel(ctx), id, "Respuesta enviada")
	}
	if err != nil {
		slog.Warn("Status update failed", "request_id", id, "err", err)
	}
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("request_id", "")
	if s.tracker == nil {
		return mcp.NewToolResultError("status tracking is disabled"), nil
	}
	rec, err := s.tracker.Get(ctx, id)
	if errors.Is(err, status.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no status for request %q", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status lookup failed: %v", err)), nil
	}
	data, _ := json.Marshal(rec)
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(toolsResourceURI, "Connected MCP tools",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		groups := []tools.ToolGroup{}
		if s.catalog != nil {
			groups = append(groups, s.catalog.GroupedByOrigin()...)
		}
		data, err := json.Marshal(groups)
		if err != nil {
			return nil, fmt.Errorf("marshal tools: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      toolsResourceURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
