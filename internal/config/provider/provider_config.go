package provider

const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Names lists the supported provider ids in their canonical order.
var Names = []string{ProviderClaude, ProviderOpenAI, ProviderGemini}

// ProviderConfig holds credentials and request defaults for one LLM provider.
// Zero values fall back to the adapter defaults.
type ProviderConfig struct {
	APIKey      string  `json:"apiKey"`
	APIBase     string  `json:"apiBase,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// ProvidersConfig holds credentials for all supported LLM providers.
type ProvidersConfig struct {
	Claude ProviderConfig `json:"claude"`
	OpenAI ProviderConfig `json:"openai"`
	Gemini ProviderConfig `json:"gemini"`
}

func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{}
}

// ByName returns a pointer to the ProviderConfig field matching the given
// provider id. Returns nil if the id is unknown.
func (p *ProvidersConfig) ByName(name string) *ProviderConfig {
	switch name {
	case ProviderClaude:
		return &p.Claude
	case ProviderOpenAI:
		return &p.OpenAI
	case ProviderGemini:
		return &p.Gemini
	}
	return nil
}

// Configured returns the ids of providers that have an API key.
func (p *ProvidersConfig) Configured() []string {
	var out []string
	for _, name := range Names {
		if p.ByName(name).APIKey != "" {
			out = append(out, name)
		}
	}
	return out
}
