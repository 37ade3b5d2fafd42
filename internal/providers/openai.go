package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

const (
	DefaultOpenAIModel = "gpt-4-turbo-preview"
	DefaultOpenAIBase  = "https://api.openai.com/v1"
)

// OpenAIProvider makes direct HTTP calls to the Chat Completions endpoint.
// Tool results travel back as plain text turns.
type OpenAIProvider struct {
	apiKey      string
	apiBase     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func NewOpenAIProvider(p Params) *OpenAIProvider {
	p = p.withDefaults(DefaultOpenAIBase, DefaultOpenAIModel)
	return &OpenAIProvider{
		apiKey:      p.APIKey,
		apiBase:     p.APIBase,
		model:       p.Model,
		maxTokens:   p.MaxTokens,
		temperature: p.Temperature,
		httpClient:  newHTTPClient(),
	}
}

func (p *OpenAIProvider) ID() string        { return "openai" }
func (p *OpenAIProvider) StrictTools() bool { return false }

func (p *OpenAIProvider) Send(ctx context.Context, messages schema.Messages, tools []schema.ToolDescriptor) (schema.UnifiedResponse, error) {
	if p.apiKey == "" {
		return schema.UnifiedResponse{}, missingKey(p.ID())
	}

	body := map[string]any{
		"model":      p.model,
		"messages":   toOpenAIMessages(messages),
		"max_tokens": p.maxTokens,
	}
	if p.temperature > 0 {
		body["temperature"] = p.temperature
	}
	if len(tools) > 0 {
		body["tools"] = toOpenAITools(tools)
		body["tool_choice"] = "auto"
	}

	raw, err := postJSON(ctx, p.httpClient, p.ID(), p.apiBase+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}, body)
	if err != nil {
		return schema.UnifiedResponse{}, err
	}
	return parseOpenAIResponse(raw)
}

func toOpenAIMessages(messages schema.Messages) []map[string]any {
	out := make([]map[string]any, 0, len(messages.Messages))
	for _, m := range messages.Messages {
		out = append(out, map[string]any{
			"role":    string(m.Role),
			"content": m.PlainText(),
		})
	}
	return out
}

func toOpenAITools(tools []schema.ToolDescriptor) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		params := t.InputSchema
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			},
		})
	}
	return out
}

// openAIRespBody is the subset of the chat completion response we care about.
type openAIRespBody struct {
	Choices []struct {
		Message struct {
			Content   any `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseOpenAIResponse(raw []byte) (schema.UnifiedResponse, error) {
	var body openAIRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.UnifiedResponse{}, schema.NewError(schema.KindProvider, "openai: parse response", err)
	}
	if len(body.Choices) == 0 {
		return schema.UnifiedResponse{}, schema.NewError(schema.KindProvider, "openai: empty choices in response", nil)
	}

	choice := body.Choices[0]
	var out schema.UnifiedResponse
	if text, ok := choice.Message.Content.(string); ok && text != "" {
		out.Content = append(out.Content, schema.TextBlock(text))
	}
	for _, tc := range choice.Message.ToolCalls {
		args, err := repairJSON(tc.Function.Arguments)
		if err != nil {
			slog.Warn("Failed to parse tool arguments", "tool", tc.Function.Name, "err", err)
			args = map[string]any{}
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out.Content = append(out.Content, schema.ToolUseBlock(id, tc.Function.Name, args))
	}

	out.StopReason = schema.StopEndTurn
	if choice.FinishReason == "tool_calls" || len(choice.Message.ToolCalls) > 0 {
		out.StopReason = schema.StopToolUse
	}
	return out, nil
}
