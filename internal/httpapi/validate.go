package httpapi

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/crystaldolphin/mcpchat/internal/config/provider"
	"github.com/crystaldolphin/mcpchat/internal/schema"
)

const (
	maxMessageChars = 10000
	maxIdentChars   = 100
	maxHistory      = 100
)

// chatRequest is the raw POST body. Fields are untyped so type mismatches
// surface as validation errors rather than decode failures.
type chatRequest struct {
	Message             any `json:"message"`
	ConversationHistory any `json:"conversationHistory"`
	Provider            any `json:"provider"`
	ContextKey          any `json:"contextKey"`
	RequestID           any `json:"requestId"`
}

type chatInput struct {
	Message    string
	History    []schema.HistoryEntry
	Provider   string
	ContextKey string
	RequestID  string
}

func invalid(format string, args ...any) error {
	return schema.NewError(schema.KindValidation, fmt.Sprintf(format, args...), nil)
}

func optionalString(field string, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid("%s must be a string", field)
	}
	if utf8.RuneCountInString(s) > maxIdentChars {
		return "", invalid("%s must be at most %d characters", field, maxIdentChars)
	}
	return s, nil
}

func (r chatRequest) validate() (chatInput, error) {
	var in chatInput

	msg, ok := r.Message.(string)
	if !ok {
		return in, invalid("message is required and must be a string")
	}
	if strings.TrimSpace(msg) == "" {
		return in, invalid("message must not be empty")
	}
	if utf8.RuneCountInString(msg) > maxMessageChars {
		return in, invalid("message must be at most %d characters", maxMessageChars)
	}
	in.Message = msg

	in.Provider = provider.ProviderClaude
	if r.Provider != nil {
		p, ok := r.Provider.(string)
		if !ok || !slices.Contains(provider.Names, p) {
			return in, invalid("provider must be one of %s", strings.Join(provider.Names, ", "))
		}
		in.Provider = p
	}

	var err error
	if in.ContextKey, err = optionalString("contextKey", r.ContextKey); err != nil {
		return in, err
	}
	if in.RequestID, err = optionalString("requestId", r.RequestID); err != nil {
		return in, err
	}

	if r.ConversationHistory == nil {
		return in, nil
	}
	entries, ok := r.ConversationHistory.([]any)
	if !ok {
		return in, invalid("conversationHistory must be an array")
	}
	if len(entries) > maxHistory {
		return in, invalid("conversationHistory must have at most %d entries", maxHistory)
	}
	for i, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			return in, invalid("conversationHistory[%d] must be an object", i)
		}
		role, _ := m["role"].(string)
		if role != string(schema.RoleUser) && role != string(schema.RoleAssistant) {
			return in, invalid("conversationHistory[%d].role must be user or assistant", i)
		}
		content, ok := m["content"].(string)
		if !ok || content == "" {
			return in, invalid("conversationHistory[%d].content must be a non-empty string", i)
		}
		in.History = append(in.History, schema.HistoryEntry{Role: role, Content: content})
	}
	return in, nil
}
