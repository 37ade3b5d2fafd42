package schema

import "strings"

// Role is the speaker of a message. Only user and assistant are exchanged
// with providers; policy and context preambles travel as user turns.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType tags a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a structured message body.
//
//   - text:        Text
//   - tool_use:    ID, Name, Input
//   - tool_result: ToolUseID, Content, IsError
type ContentBlock struct {
	Type      BlockType      `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

func ToolResultBlock(r ToolInvocationResult) ContentBlock {
	return ContentBlock{
		Type:      BlockToolResult,
		ToolUseID: r.CorrelationID,
		Content:   r.Content,
		IsError:   r.IsError,
	}
}

// Message is one entry in the conversation sent to a provider.
//
// Text holds plain content. Blocks holds structured content and, when
// non-empty, takes precedence over Text.
type Message struct {
	Role   Role
	Text   string
	Blocks []ContentBlock
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// IsStructured reports whether the message carries content blocks.
func (m Message) IsStructured() bool { return len(m.Blocks) > 0 }

// PlainText flattens the message to text. Text blocks and tool results are
// kept; tool_use blocks are rendered as their tool name.
func (m Message) PlainText() string {
	if !m.IsStructured() {
		return m.Text
	}
	parts := make([]string, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch b.Type {
		case BlockText:
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case BlockToolUse:
			parts = append(parts, "["+b.Name+"]")
		case BlockToolResult:
			if b.Content != "" {
				parts = append(parts, b.Content)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// HistoryEntry is one prior turn as supplied by the caller.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
