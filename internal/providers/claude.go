package providers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

const (
	DefaultClaudeModel = "claude-sonnet-4-20250514"
	DefaultClaudeBase  = "https://api.anthropic.com/v1"
	anthropicVersion   = "2023-06-01"
)

// ClaudeProvider calls the Anthropic Messages API directly.
type ClaudeProvider struct {
	apiKey      string
	apiBase     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func NewClaudeProvider(p Params) *ClaudeProvider {
	p = p.withDefaults(DefaultClaudeBase, DefaultClaudeModel)
	return &ClaudeProvider{
		apiKey:      p.APIKey,
		apiBase:     p.APIBase,
		model:       p.Model,
		maxTokens:   p.MaxTokens,
		temperature: p.Temperature,
		httpClient:  newHTTPClient(),
	}
}

func (p *ClaudeProvider) ID() string        { return "claude" }
func (p *ClaudeProvider) StrictTools() bool { return true }

func (p *ClaudeProvider) Send(ctx context.Context, messages schema.Messages, tools []schema.ToolDescriptor) (schema.UnifiedResponse, error) {
	if p.apiKey == "" {
		return schema.UnifiedResponse{}, missingKey(p.ID())
	}

	body := map[string]any{
		"model":      p.model,
		"max_tokens": p.maxTokens,
		"messages":   toAnthropicMessages(messages),
	}
	if p.temperature > 0 {
		body["temperature"] = p.temperature
	}
	if len(tools) > 0 {
		body["tools"] = toAnthropicTools(tools)
	}

	raw, err := postJSON(ctx, p.httpClient, p.ID(), p.apiBase+"/messages", map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}, body)
	if err != nil {
		return schema.UnifiedResponse{}, err
	}
	return parseAnthropicResponse(raw)
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

func toAnthropicMessages(messages schema.Messages) []map[string]any {
	out := make([]map[string]any, 0, len(messages.Messages))
	for _, m := range messages.Messages {
		if !m.IsStructured() {
			out = append(out, map[string]any{"role": string(m.Role), "content": m.Text})
			continue
		}
		blocks := make([]any, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Type {
			case schema.BlockText:
				blocks = append(blocks, map[string]any{"type": "text", "text": b.Text})
			case schema.BlockToolUse:
				input := b.Input
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    b.ID,
					"name":  b.Name,
					"input": input,
				})
			case schema.BlockToolResult:
				block := map[string]any{
					"type":        "tool_result",
					"tool_use_id": b.ToolUseID,
					"content":     b.Content,
				}
				if b.IsError {
					block["is_error"] = true
				}
				blocks = append(blocks, block)
			}
		}
		out = append(out, map[string]any{"role": string(m.Role), "content": blocks})
	}
	return out
}

func toAnthropicTools(tools []schema.ToolDescriptor) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"name":         t.Name,
			"description":  t.Description,
			"input_schema": t.InputSchema,
		})
	}
	return out
}

type anthropicRespBody struct {
	Content []struct {
		Type  string         `json:"type"`
		Text  string         `json:"text"`
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func parseAnthropicResponse(raw []byte) (schema.UnifiedResponse, error) {
	var body anthropicRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.UnifiedResponse{}, schema.NewError(schema.KindProvider, "claude: parse response", err)
	}

	var out schema.UnifiedResponse
	for _, block := range body.Content {
		switch block.Type {
		case "text":
			out.Content = append(out.Content, schema.TextBlock(block.Text))
		case "tool_use":
			out.Content = append(out.Content, schema.ToolUseBlock(block.ID, block.Name, block.Input))
		}
	}
	out.StopReason = schema.StopEndTurn
	if body.StopReason == "tool_use" {
		out.StopReason = schema.StopToolUse
	}
	return out, nil
}
