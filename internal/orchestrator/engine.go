// Package orchestrator drives one chat turn: it assembles the message list,
// enforces the domain allow-list, and runs the bounded tool-calling loop
// between an LLM provider and the tool registry.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/crystaldolphin/mcpchat/internal/metrics"
	"github.com/crystaldolphin/mcpchat/internal/schema"
	"github.com/crystaldolphin/mcpchat/internal/whitelist"
)

// ProviderSource resolves an LLM adapter by id.
type ProviderSource interface {
	Get(id string) (schema.LLMProvider, error)
}

// ToolCatalog is the read and dispatch surface of the tool registry.
type ToolCatalog interface {
	ListTools() []schema.ToolDescriptor
	StrictTools() []schema.ToolDescriptor
	Lookup(name string) (schema.ToolDescriptor, bool)
	Dispatch(ctx context.Context, name string, input map[string]any) (schema.ToolInvocationResult, error)
}

// ContextSource yields the initial instructions for a context key.
type ContextSource interface {
	InitialContext(key string) (string, bool)
}

// Whitelist is the allow-list policy.
type Whitelist interface {
	AllowedDomains(ctx context.Context) ([]string, error)
	Validate(ctx context.Context, payloads ...any) (whitelist.Validation, error)
}

// Options tunes the engine. Zero values select the defaults.
type Options struct {
	MaxToolIterations int
	MaxHostsPerTurn   int
	// TrustedOrigin names the tool provider whose calls skip the per-call
	// whitelist check.
	TrustedOrigin     string
	WhitelistEnabled  bool
	EnforcedProviders []string
}

func DefaultOptions() Options {
	return Options{
		MaxToolIterations: 8,
		MaxHostsPerTurn:   3,
		TrustedOrigin:     "mongodb",
		WhitelistEnabled:  true,
		EnforcedProviders: []string{"claude", "openai", "gemini"},
	}
}

// TurnRequest is one user message with its prior conversation.
type TurnRequest struct {
	Message    string
	History    []schema.HistoryEntry
	Provider   string
	ContextKey string
	RequestID  string
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	Text           string
	Provider       string
	ContextKey     string
	ContextApplied bool
}

// Engine runs turns. It holds no per-turn state and is safe for concurrent use.
type Engine struct {
	providers ProviderSource
	tools     ToolCatalog
	contexts  ContextSource
	whitelist Whitelist
	metrics   metrics.Recorder
	opts      Options
}

func NewEngine(
	providers ProviderSource,
	tools ToolCatalog,
	contexts ContextSource,
	wl Whitelist,
	recorder metrics.Recorder,
	opts Options,
) *Engine {
	def := DefaultOptions()
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = def.MaxToolIterations
	}
	if opts.MaxHostsPerTurn <= 0 {
		opts.MaxHostsPerTurn = def.MaxHostsPerTurn
	}
	if opts.EnforcedProviders == nil {
		opts.EnforcedProviders = def.EnforcedProviders
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Engine{
		providers: providers,
		tools:     tools,
		contexts:  contexts,
		whitelist: wl,
		metrics:   recorder,
		opts:      opts,
	}
}

// turn is the mutable state of one Process call. It is never shared.
type turn struct {
	provider schema.LLMProvider
	strict   bool
	enforce  bool
	messages schema.Messages
	tools    []schema.ToolDescriptor
	visited  []string
	onEvent  EventFunc
}

// Process runs one turn to completion or failure.
func (e *Engine) Process(ctx context.Context, req TurnRequest, onEvent EventFunc) (TurnResult, error) {
	res, err := e.process(ctx, req, onEvent)
	e.metrics.TurnFinished(req.Provider, metrics.Outcome(err == nil))
	if err != nil {
		slog.Error("Turn failed", "provider", req.Provider, "request_id", req.RequestID, "err", err)
		return TurnResult{}, err
	}
	slog.Info("Turn completed", "provider", res.Provider, "request_id", req.RequestID,
		"context_applied", res.ContextApplied)
	return res, nil
}

func (e *Engine) process(ctx context.Context, req TurnRequest, onEvent EventFunc) (TurnResult, error) {
	onEvent.emit(EventPreparing, "Preparando proveedor y contexto")

	provider, err := e.providers.Get(req.Provider)
	if err != nil {
		return TurnResult{}, err
	}
	contextKey := resolveContextKey(req.Provider, req.ContextKey)
	firstMessage := len(req.History) == 0

	t := &turn{
		provider: provider,
		strict:   provider.StrictTools(),
		enforce:  e.enforces(req.Provider),
		onEvent:  onEvent,
	}

	var domains []string
	if t.enforce {
		if domains, err = e.checkInput(ctx, req, onEvent); err != nil {
			return TurnResult{}, err
		}
	}

	onEvent.emit(EventContextLoading, "Cargando contexto inicial")
	var initial, policy *schema.Message
	var contextText string
	if firstMessage && e.contexts != nil {
		if text, ok := e.contexts.InitialContext(contextKey); ok && text != "" {
			contextText = text
			m := contextMessage(text)
			initial = &m
		}
	}
	if t.enforce && firstMessage && len(domains) > 0 {
		m := policyMessage(domains)
		policy = &m
	}
	t.messages = buildMessages(policy, initial, req.History, req.Message)

	if e.tools != nil {
		if t.strict {
			t.tools = e.tools.StrictTools()
		} else {
			t.tools = e.tools.ListTools()
		}
	}

	onEvent.emit(EventProviderProcessing, "Consultando "+req.Provider)
	var resp schema.UnifiedResponse
	if len(t.tools) > 0 {
		resp, err = e.runToolLoop(ctx, t)
	} else {
		resp, err = e.send(ctx, t.provider, t.messages, nil)
	}
	if err != nil {
		if len(t.tools) == 0 || !isSchemaRejection(err) {
			return TurnResult{}, err
		}
		slog.Warn("Provider rejected the tool schemas, retrying without tools",
			"provider", req.Provider, "err", err)
		onEvent.emit(EventProviderRetry, "Reintentando proveedor sin tools")
		if resp, err = e.send(ctx, t.provider, t.messages, nil); err != nil {
			return TurnResult{}, err
		}
	}

	onEvent.emit(EventFinalizing, "Procesando respuesta final")
	return TurnResult{
		Text:           displayText(resp),
		Provider:       req.Provider,
		ContextKey:     contextKey,
		ContextApplied: firstMessage && contextText != "",
	}, nil
}

// checkInput loads the allow-list and validates the message and history.
func (e *Engine) checkInput(ctx context.Context, req TurnRequest, onEvent EventFunc) ([]string, error) {
	onEvent.emit(EventWhitelistLoading, "Cargando dominios permitidos")
	domains, err := e.whitelist.AllowedDomains(ctx)
	if err != nil || len(domains) == 0 {
		return nil, schema.NewError(schema.KindWhitelist,
			"Enforcement Whitelist: la colección Whitelisted está vacía o no disponible.", err)
	}

	onEvent.emit(EventWhitelistValidating, "Validando URLs contra Whitelisted")
	payloads := []any{req.Message}
	for _, h := range req.History {
		if h.Content != "" {
			payloads = append(payloads, h.Content)
		}
	}
	v, err := e.whitelist.Validate(ctx, payloads...)
	if err != nil {
		return nil, err
	}
	if !v.OK {
		e.metrics.WhitelistBlocked(len(v.BlockedHostnames))
		msg := fmt.Sprintf("Enforcement Whitelist: URL no permitida detectada (%s). "+
			"Solo se permiten fuentes incluidas en la colección Whitelisted.",
			strings.Join(v.BlockedHostnames, ", "))
		return nil, &schema.Error{Kind: schema.KindWhitelist, Message: msg, Hosts: v.BlockedHostnames}
	}
	return domains, nil
}

func (e *Engine) enforces(provider string) bool {
	return e.opts.WhitelistEnabled && e.whitelist != nil &&
		slices.Contains(e.opts.EnforcedProviders, provider)
}

func (e *Engine) send(ctx context.Context, p schema.LLMProvider, msgs schema.Messages, tools []schema.ToolDescriptor) (schema.UnifiedResponse, error) {
	start := time.Now()
	resp, err := p.Send(ctx, msgs, tools)
	e.metrics.ProviderRequest(p.ID(), time.Since(start))
	return resp, err
}

// resolveContextKey prefers the caller's key, then the provider default.
func resolveContextKey(provider, key string) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	switch provider {
	case "claude", "openai", "gemini":
		return "webscraper-mcp"
	default:
		return "default"
	}
}

// isSchemaRejection reports whether a provider refused the tool catalog.
func isSchemaRejection(err error) bool {
	return schema.KindOf(err) == schema.KindProvider &&
		schema.ContainsAny(err, "input_schema", "JSON schema is invalid", "tools.")
}
