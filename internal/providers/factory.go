package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

const defaultMaxTokens = 4096

// Params are the raw values needed to construct a provider.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	APIKey      string
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature float64
}

func (p Params) withDefaults(base, model string) Params {
	if p.APIBase == "" {
		p.APIBase = base
	}
	p.APIBase = strings.TrimRight(p.APIBase, "/")
	if p.Model == "" {
		p.Model = model
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = defaultMaxTokens
	}
	return p
}

// New creates the adapter for a provider id.
func New(id string, p Params) (schema.LLMProvider, error) {
	switch id {
	case "claude":
		return NewClaudeProvider(p), nil
	case "openai":
		return NewOpenAIProvider(p), nil
	case "gemini":
		return NewGeminiProvider(p), nil
	default:
		return nil, unknownProvider(id)
	}
}

// Factory resolves adapters by provider id.
type Factory struct {
	providers map[string]schema.LLMProvider
}

func NewFactory(ps ...schema.LLMProvider) *Factory {
	f := &Factory{providers: make(map[string]schema.LLMProvider, len(ps))}
	for _, p := range ps {
		f.providers[p.ID()] = p
	}
	return f
}

// Get returns the adapter for id or an UnknownProvider error.
func (f *Factory) Get(id string) (schema.LLMProvider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, unknownProvider(id)
	}
	return p, nil
}

// IDs returns the registered provider ids, sorted.
func (f *Factory) IDs() []string {
	ids := make([]string, 0, len(f.providers))
	for id := range f.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func unknownProvider(id string) error {
	return schema.NewError(schema.KindUnknownProvider, fmt.Sprintf("unknown provider: %s", id), nil)
}
