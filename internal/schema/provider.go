package schema

import (
	"context"
	"strings"
)

// StopReason is the normalised reason a provider stopped generating.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
)

// UnifiedResponse is the vendor-neutral response produced by every adapter.
type UnifiedResponse struct {
	Content    []ContentBlock
	StopReason StopReason
}

// ToolUses returns the tool_use blocks as invocation requests. Blocks with an
// empty name are ignored; a nil input becomes an empty map.
func (r UnifiedResponse) ToolUses() []ToolInvocationRequest {
	var out []ToolInvocationRequest
	for _, b := range r.Content {
		if b.Type != BlockToolUse || b.Name == "" {
			continue
		}
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		out = append(out, ToolInvocationRequest{ID: b.ID, Name: b.Name, Input: input})
	}
	return out
}

// HasToolUse reports whether the response requests at least one tool call.
func (r UnifiedResponse) HasToolUse() bool { return len(r.ToolUses()) > 0 }

// Text joins the trimmed, non-empty text blocks with a blank line.
// It returns "" when there are none.
func (r UnifiedResponse) Text() string {
	var parts []string
	for _, b := range r.Content {
		if b.Type != BlockText {
			continue
		}
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// LLMProvider is the adapter every LLM vendor must satisfy.
type LLMProvider interface {
	// ID is the provider identifier used for selection, e.g. "claude".
	ID() string
	// StrictTools reports whether the vendor validates tool schemas strictly
	// and round-trips structured tool_use / tool_result blocks.
	StrictTools() bool
	Send(ctx context.Context, messages Messages, tools []ToolDescriptor) (UnifiedResponse, error)
}
