package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

const (
	DefaultGeminiModel       = "gemini-2.5-flash"
	DefaultGeminiBase        = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiTemperature = 0.7
)

// GeminiProvider calls the Generative Language generateContent endpoint.
type GeminiProvider struct {
	apiKey      string
	apiBase     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	now         func() time.Time
}

func NewGeminiProvider(p Params) *GeminiProvider {
	p = p.withDefaults(DefaultGeminiBase, DefaultGeminiModel)
	if p.Temperature <= 0 {
		p.Temperature = defaultGeminiTemperature
	}
	return &GeminiProvider{
		apiKey:      p.APIKey,
		apiBase:     p.APIBase,
		model:       p.Model,
		maxTokens:   p.MaxTokens,
		temperature: p.Temperature,
		httpClient:  newHTTPClient(),
		now:         time.Now,
	}
}

func (p *GeminiProvider) ID() string        { return "gemini" }
func (p *GeminiProvider) StrictTools() bool { return false }

func (p *GeminiProvider) Send(ctx context.Context, messages schema.Messages, tools []schema.ToolDescriptor) (schema.UnifiedResponse, error) {
	if p.apiKey == "" {
		return schema.UnifiedResponse{}, missingKey(p.ID())
	}

	body := map[string]any{
		"contents": toGeminiContents(messages, tools),
		"generationConfig": map[string]any{
			"maxOutputTokens": p.maxTokens,
			"temperature":     p.temperature,
		},
	}
	if len(tools) > 0 {
		body["tools"] = []any{map[string]any{"functionDeclarations": toGeminiDeclarations(tools)}}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.apiBase, url.PathEscape(p.model), url.QueryEscape(p.apiKey))
	raw, err := postJSON(ctx, p.httpClient, p.ID(), endpoint, nil, body)
	if err != nil {
		return schema.UnifiedResponse{}, reclassifyGemini(err)
	}
	return p.parseResponse(raw)
}

// reclassifyGemini refines generic failures using the vendor message.
func reclassifyGemini(err error) error {
	var e *schema.Error
	if !errors.As(err, &e) || e.Kind != schema.KindProvider {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "404"):
		return schema.NewError(schema.KindModelUnavailable, "gemini: model not available", err)
	case strings.Contains(msg, "API key"):
		return schema.NewError(schema.KindAuth, "gemini: invalid API key", err)
	case strings.Contains(msg, "quota"):
		return schema.NewError(schema.KindQuotaExceeded, "gemini: usage limit exceeded", err)
	}
	return err
}

// toGeminiContents maps the conversation to user/model turns. The tool
// listing is prepended to the first user turn.
func toGeminiContents(messages schema.Messages, tools []schema.ToolDescriptor) []map[string]any {
	preamble := toolListing(tools)
	out := make([]map[string]any, 0, len(messages.Messages))
	for _, m := range messages.Messages {
		role := "user"
		if m.Role == schema.RoleAssistant {
			role = "model"
		}
		text := m.PlainText()
		if preamble != "" && role == "user" {
			text = preamble + text
			preamble = ""
		}
		out = append(out, map[string]any{
			"role":  role,
			"parts": []any{map[string]any{"text": text}},
		})
	}
	return out
}

func toolListing(tools []schema.ToolDescriptor) string {
	if len(tools) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Tienes acceso a las siguientes herramientas (MCPs):\n\n")
	for _, t := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
	}
	sb.WriteString("\nPuedes usar estas herramientas cuando sea necesario para responder mejor.\n\n")
	return sb.String()
}

func toGeminiDeclarations(tools []schema.ToolDescriptor) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		props, _ := t.InputSchema["properties"].(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		required := t.InputSchema["required"]
		if required == nil {
			required = []any{}
		}
		out = append(out, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		})
	}
	return out
}

type geminiRespBody struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text         string `json:"text"`
				FunctionCall *struct {
					Name string         `json:"name"`
					Args map[string]any `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) parseResponse(raw []byte) (schema.UnifiedResponse, error) {
	var body geminiRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.UnifiedResponse{}, schema.NewError(schema.KindProvider, "gemini: parse response", err)
	}

	var calls, texts []schema.ContentBlock
	for _, cand := range body.Candidates {
		for _, part := range cand.Content.Parts {
			if part.FunctionCall != nil {
				calls = append(calls, schema.ToolUseBlock(p.toolID(), part.FunctionCall.Name, part.FunctionCall.Args))
				continue
			}
			if part.Text != "" {
				texts = append(texts, schema.TextBlock(part.Text))
			}
		}
	}
	if len(calls) > 0 {
		return schema.UnifiedResponse{Content: calls, StopReason: schema.StopToolUse}, nil
	}

	var joined strings.Builder
	for _, t := range texts {
		joined.WriteString(t.Text)
	}
	return schema.UnifiedResponse{
		Content:    []schema.ContentBlock{schema.TextBlock(joined.String())},
		StopReason: schema.StopEndTurn,
	}, nil
}

// toolID returns tool_<unixmillis>_<9 base36 chars>.
func (p *GeminiProvider) toolID() string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return "tool_" + strconv.FormatInt(p.now().UnixMilli(), 10) + "_" + string(suffix)
}
