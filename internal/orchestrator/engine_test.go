package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/crystaldolphin/mcpchat/internal/schema"
	"github.com/crystaldolphin/mcpchat/internal/whitelist"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

type scriptedProvider struct {
	id     string
	strict bool
	// replies are returned in order; the last one repeats.
	replies []schema.UnifiedResponse
	errs    []error
	calls   []sentCall
}

type sentCall struct {
	messages schema.Messages
	tools    []schema.ToolDescriptor
}

func (p *scriptedProvider) ID() string        { return p.id }
func (p *scriptedProvider) StrictTools() bool { return p.strict }
func (p *scriptedProvider) Send(_ context.Context, msgs schema.Messages, tools []schema.ToolDescriptor) (schema.UnifiedResponse, error) {
	n := len(p.calls)
	p.calls = append(p.calls, sentCall{messages: msgs.Clone(), tools: tools})
	if n < len(p.errs) && p.errs[n] != nil {
		return schema.UnifiedResponse{}, p.errs[n]
	}
	if n >= len(p.replies) {
		n = len(p.replies) - 1
	}
	return p.replies[n], nil
}

type providerMap map[string]schema.LLMProvider

func (m providerMap) Get(id string) (schema.LLMProvider, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, schema.NewError(schema.KindUnknownProvider, "unknown provider: "+id, nil)
}

type fakeCatalog struct {
	tools      []schema.ToolDescriptor
	dispatched []string
	fail       map[string]error
}

func (c *fakeCatalog) ListTools() []schema.ToolDescriptor   { return c.tools }
func (c *fakeCatalog) StrictTools() []schema.ToolDescriptor { return c.tools }
func (c *fakeCatalog) Lookup(name string) (schema.ToolDescriptor, bool) {
	for _, d := range c.tools {
		if d.Name == name {
			return d, true
		}
	}
	return schema.ToolDescriptor{}, false
}
func (c *fakeCatalog) Dispatch(_ context.Context, name string, input map[string]any) (schema.ToolInvocationResult, error) {
	c.dispatched = append(c.dispatched, name)
	if err := c.fail[name]; err != nil {
		return schema.ToolInvocationResult{}, err
	}
	return schema.ToolInvocationResult{ToolName: name, Content: fmt.Sprintf("%s ok", name)}, nil
}

type staticContexts map[string]string

func (s staticContexts) InitialContext(key string) (string, bool) {
	if v, ok := s[key]; ok {
		return v, true
	}
	v, ok := s["default"]
	return v, ok
}

func text(s string) schema.UnifiedResponse {
	return schema.UnifiedResponse{Content: []schema.ContentBlock{schema.TextBlock(s)}, StopReason: schema.StopEndTurn}
}

func toolUse(id, name string, input map[string]any) schema.UnifiedResponse {
	return schema.UnifiedResponse{
		Content:    []schema.ContentBlock{schema.ToolUseBlock(id, name, input)},
		StopReason: schema.StopToolUse,
	}
}

var webTools = []schema.ToolDescriptor{
	{Name: "fetch", Origin: "web", InputSchema: map[string]any{"type": "object"}},
	{Name: "query", Origin: "mongodb", InputSchema: map[string]any{"type": "object"}},
}

func newEngine(p *scriptedProvider, cat *fakeCatalog, wl Whitelist, ctxs ContextSource, opts Options) *Engine {
	var tc ToolCatalog
	if cat != nil {
		tc = cat
	}
	return NewEngine(providerMap{p.id: p}, tc, ctxs, wl, nil, opts)
}

func noWhitelist() Options {
	o := DefaultOptions()
	o.WhitelistEnabled = false
	return o
}

type eventLog []string

func (l *eventLog) hook() EventFunc {
	return func(status, details string) { *l = append(*l, status) }
}

// ─── Context and message assembly ────────────────────────────────────────────

func TestProcess_ContextAppliedOnFirstMessageOnly(t *testing.T) {
	p := &scriptedProvider{id: "claude", strict: true, replies: []schema.UnifiedResponse{text("hi!")}}
	e := newEngine(p, nil, nil, staticContexts{"default": "be nice"}, noWhitelist())
	ctx := context.Background()

	res, err := e.Process(ctx, TurnRequest{Message: "hello", Provider: "claude", ContextKey: "default"}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.ContextApplied || res.Text != "hi!" || res.ContextKey != "default" {
		t.Errorf("first turn = %+v", res)
	}
	first := p.calls[0].messages.Messages
	if len(first) != 2 || !strings.HasPrefix(first[0].Text, "CONTEXTO INICIAL DEL SISTEMA") ||
		!strings.Contains(first[0].Text, "be nice") || first[1].Text != "hello" {
		t.Errorf("messages = %+v", first)
	}

	res, err = e.Process(ctx, TurnRequest{
		Message:  "again",
		Provider: "claude",
		History: []schema.HistoryEntry{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi!"},
			{Role: "system", Content: "odd"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.ContextApplied {
		t.Error("context must not apply with history")
	}
	if res.ContextKey != "webscraper-mcp" {
		t.Errorf("context key = %q", res.ContextKey)
	}
	second := p.calls[1].messages.Messages
	roles := []schema.Role{second[0].Role, second[1].Role, second[2].Role, second[3].Role}
	want := []schema.Role{schema.RoleUser, schema.RoleAssistant, schema.RoleUser, schema.RoleUser}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("role[%d] = %s, want %s", i, roles[i], want[i])
		}
	}
}

func TestProcess_EventsAndSingleSendWithoutTools(t *testing.T) {
	p := &scriptedProvider{id: "openai", replies: []schema.UnifiedResponse{text("")}}
	e := newEngine(p, &fakeCatalog{}, nil, nil, noWhitelist())

	var events eventLog
	res, err := e.Process(context.Background(), TurnRequest{Message: "hello", Provider: "openai"}, events.hook())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(p.calls) != 1 || p.calls[0].tools != nil {
		t.Errorf("calls = %d, tools = %v", len(p.calls), p.calls[0].tools)
	}
	if res.Text != noTextFallback {
		t.Errorf("text = %q", res.Text)
	}
	want := "preparing,context_loading,provider_processing,finalizing"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestProcess_UnknownProvider(t *testing.T) {
	p := &scriptedProvider{id: "claude", replies: []schema.UnifiedResponse{text("x")}}
	_, err := newEngine(p, nil, nil, nil, noWhitelist()).
		Process(context.Background(), TurnRequest{Message: "m", Provider: "mistral"}, nil)
	if !errors.Is(err, schema.ErrUnknownProvider) {
		t.Fatalf("want unknown provider, got %v", err)
	}
}

// ─── Whitelist ───────────────────────────────────────────────────────────────

func TestProcess_BlockedURLInMessage(t *testing.T) {
	p := &scriptedProvider{id: "claude", strict: true, replies: []schema.UnifiedResponse{text("x")}}
	wl := whitelist.NewPolicy(whitelist.StaticSource{"example.com"})
	e := newEngine(p, nil, wl, nil, DefaultOptions())

	_, err := e.Process(context.Background(), TurnRequest{Message: "read https://blocked.test/x", Provider: "claude"}, nil)
	if !errors.Is(err, schema.ErrWhitelist) {
		t.Fatalf("want whitelist violation, got %v", err)
	}
	if hosts := schema.HostsOf(err); len(hosts) != 1 || hosts[0] != "blocked.test" {
		t.Errorf("hosts = %v", hosts)
	}
	if !strings.Contains(err.Error(), "blocked.test") {
		t.Errorf("message = %q", err.Error())
	}
	if len(p.calls) != 0 {
		t.Error("provider must not be called")
	}
}

func TestProcess_EmptyAllowListFails(t *testing.T) {
	p := &scriptedProvider{id: "claude", replies: []schema.UnifiedResponse{text("x")}}
	e := newEngine(p, nil, whitelist.NewPolicy(whitelist.StaticSource{}), nil, DefaultOptions())

	_, err := e.Process(context.Background(), TurnRequest{Message: "hello", Provider: "claude"}, nil)
	if schema.KindOf(err) != schema.KindWhitelist {
		t.Fatalf("want whitelist error, got %v", err)
	}
}

func TestProcess_PolicyMessagePrepended(t *testing.T) {
	domains := make(whitelist.StaticSource, 0, 125)
	for i := 0; i < 125; i++ {
		domains = append(domains, fmt.Sprintf("d%d.example", i))
	}
	p := &scriptedProvider{id: "claude", strict: true, replies: []schema.UnifiedResponse{text("ok")}}
	e := newEngine(p, nil, whitelist.NewPolicy(domains), staticContexts{"default": "ctx"}, DefaultOptions())

	var events eventLog
	if _, err := e.Process(context.Background(), TurnRequest{Message: "hello", Provider: "claude"}, events.hook()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	msgs := p.calls[0].messages.Messages
	if len(msgs) != 3 {
		t.Fatalf("want policy, context, message; got %d", len(msgs))
	}
	policy := msgs[0].Text
	if !strings.HasPrefix(policy, "POLITICA DE ENFORCEMENT WHITELIST (OBLIGATORIA):") ||
		!strings.Contains(policy, "- d119.example\n- ... y 5 dominios adicionales") ||
		strings.Contains(policy, "d120.example") {
		t.Errorf("policy = %q", policy)
	}
	if !strings.HasPrefix(msgs[1].Text, "CONTEXTO INICIAL") {
		t.Errorf("context message misplaced: %q", msgs[1].Text)
	}
	if got := strings.Join(events, ","); !strings.HasPrefix(got, "preparing,whitelist_loading,whitelist_validating,context_loading") {
		t.Errorf("events = %s", got)
	}
}

func TestProcess_ToolCallBlockedByWhitelistBecomesErrorResult(t *testing.T) {
	p := &scriptedProvider{id: "claude", strict: true, replies: []schema.UnifiedResponse{
		toolUse("t1", "fetch", map[string]any{"url": "https://evil.test/a"}),
		text("done"),
	}}
	cat := &fakeCatalog{tools: webTools}
	e := newEngine(p, cat, whitelist.NewPolicy(whitelist.StaticSource{"example.com"}), nil, DefaultOptions())

	res, err := e.Process(context.Background(), TurnRequest{Message: "go", Provider: "claude"}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Text != "done" || len(cat.dispatched) != 0 {
		t.Errorf("res = %+v, dispatched = %v", res, cat.dispatched)
	}
	last := p.calls[1].messages.Messages
	result := last[len(last)-1].Blocks[0]
	if !result.IsError || result.ToolUseID != "t1" ||
		result.Content != `Whitelist Enforcement: tool "fetch" bloqueado por dominios no permitidos (evil.test).` {
		t.Errorf("result = %+v", result)
	}
}

func TestProcess_TrustedOriginSkipsPerCallCheck(t *testing.T) {
	p := &scriptedProvider{id: "claude", strict: true, replies: []schema.UnifiedResponse{
		toolUse("t1", "query", map[string]any{"filter": "https://evil.test"}),
		text("done"),
	}}
	cat := &fakeCatalog{tools: webTools}
	e := newEngine(p, cat, whitelist.NewPolicy(whitelist.StaticSource{"example.com"}), nil, DefaultOptions())

	if _, err := e.Process(context.Background(), TurnRequest{Message: "go", Provider: "claude"}, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(cat.dispatched) != 1 || cat.dispatched[0] != "query" {
		t.Errorf("dispatched = %v", cat.dispatched)
	}
}

// ─── Tool loop ───────────────────────────────────────────────────────────────

func TestProcess_HostLimitFailsBeforeFourthHost(t *testing.T) {
	resp := schema.UnifiedResponse{StopReason: schema.StopToolUse}
	for i, host := range []string{"a.example.com", "b.example.com", "c.example.com", "d.example.com"} {
		resp.Content = append(resp.Content, schema.ToolUseBlock(fmt.Sprintf("t%d", i), "fetch",
			map[string]any{"url": "https://" + host + "/page"}))
	}
	p := &scriptedProvider{id: "claude", strict: true, replies: []schema.UnifiedResponse{resp}}
	cat := &fakeCatalog{tools: webTools}
	e := newEngine(p, cat, whitelist.NewPolicy(whitelist.StaticSource{"example.com"}), nil, DefaultOptions())

	_, err := e.Process(context.Background(), TurnRequest{Message: "crawl", Provider: "claude"}, nil)
	if !errors.Is(err, schema.ErrHostLimit) {
		t.Fatalf("want host limit, got %v", err)
	}
	if len(cat.dispatched) != 3 {
		t.Errorf("dispatched %d tools, want 3", len(cat.dispatched))
	}
	if !strings.Contains(err.Error(), "límite de 3 subdominios") || len(schema.HostsOf(err)) != 4 {
		t.Errorf("err = %v", err)
	}
}

func TestProcess_ToolLoopExceededAfterEightIterations(t *testing.T) {
	p := &scriptedProvider{id: "openai", replies: []schema.UnifiedResponse{
		toolUse("t", "fetch", map[string]any{}),
	}}
	e := newEngine(p, &fakeCatalog{tools: webTools}, nil, nil, noWhitelist())

	_, err := e.Process(context.Background(), TurnRequest{Message: "loop", Provider: "openai"}, nil)
	if !errors.Is(err, schema.ErrToolLoopExceeded) {
		t.Fatalf("want loop exceeded, got %v", err)
	}
	if len(p.calls) != 9 {
		t.Errorf("provider calls = %d, want 9", len(p.calls))
	}
}

func TestProcess_EightToolRoundsThenAnswer(t *testing.T) {
	replies := make([]schema.UnifiedResponse, 0, 9)
	for i := 0; i < 8; i++ {
		replies = append(replies, toolUse("t", "fetch", map[string]any{}))
	}
	replies = append(replies, text("finally"))
	p := &scriptedProvider{id: "openai", replies: replies}
	e := newEngine(p, &fakeCatalog{tools: webTools}, nil, nil, noWhitelist())

	res, err := e.Process(context.Background(), TurnRequest{Message: "loop", Provider: "openai"}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Text != "finally" || len(p.calls) != 9 {
		t.Errorf("text = %q, calls = %d", res.Text, len(p.calls))
	}
}

func TestProcess_TextualToolTurnForNonStrictProviders(t *testing.T) {
	resp := schema.UnifiedResponse{StopReason: schema.StopToolUse, Content: []schema.ContentBlock{
		schema.ToolUseBlock("a", "fetch", nil),
		schema.ToolUseBlock("b", "query", nil),
	}}
	p := &scriptedProvider{id: "gemini", replies: []schema.UnifiedResponse{resp, text("ok")}}
	cat := &fakeCatalog{tools: webTools, fail: map[string]error{"query": errors.New("db down")}}
	e := newEngine(p, cat, nil, nil, noWhitelist())

	if _, err := e.Process(context.Background(), TurnRequest{Message: "go", Provider: "gemini"}, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(cat.dispatched) != 2 {
		t.Errorf("sibling call skipped: %v", cat.dispatched)
	}
	msgs := p.calls[1].messages.Messages
	summary, results := msgs[len(msgs)-2], msgs[len(msgs)-1]
	if summary.Role != schema.RoleAssistant || summary.Text != "Llamé 2 tool(s): fetch, query" {
		t.Errorf("summary = %+v", summary)
	}
	want := "Resultado Tool [OK] fetch:\nfetch ok\n\nResultado Tool [ERROR] query:\nError ejecutando tool query: db down"
	if results.Role != schema.RoleUser || results.Text != want {
		t.Errorf("results = %q", results.Text)
	}
}

func TestProcess_StructuredToolTurnForStrictProviders(t *testing.T) {
	first := schema.UnifiedResponse{StopReason: schema.StopToolUse, Content: []schema.ContentBlock{
		schema.TextBlock("checking"),
		schema.ToolUseBlock("tu_1", "fetch", map[string]any{"q": "x"}),
	}}
	p := &scriptedProvider{id: "claude", strict: true, replies: []schema.UnifiedResponse{first, text("ok")}}
	e := newEngine(p, &fakeCatalog{tools: webTools}, nil, nil, noWhitelist())

	if _, err := e.Process(context.Background(), TurnRequest{Message: "go", Provider: "claude"}, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	msgs := p.calls[1].messages.Messages
	assistant, user := msgs[len(msgs)-2], msgs[len(msgs)-1]
	if assistant.Role != schema.RoleAssistant || len(assistant.Blocks) != 2 {
		t.Errorf("assistant = %+v", assistant)
	}
	if user.Role != schema.RoleUser || user.Blocks[0].Type != schema.BlockToolResult ||
		user.Blocks[0].ToolUseID != "tu_1" || user.Blocks[0].Content != "fetch ok" {
		t.Errorf("user = %+v", user)
	}
}

// ─── Schema rejection ────────────────────────────────────────────────────────

func TestProcess_SchemaRejectionRetriesWithoutTools(t *testing.T) {
	rejection := schema.NewError(schema.KindProvider, "claude: HTTP 400: tools.0.input_schema: JSON schema is invalid", nil)
	p := &scriptedProvider{
		id: "claude", strict: true,
		errs:    []error{rejection},
		replies: []schema.UnifiedResponse{text("unused"), text("plain answer")},
	}
	e := newEngine(p, &fakeCatalog{tools: webTools}, nil, nil, noWhitelist())

	var events eventLog
	res, err := e.Process(context.Background(), TurnRequest{Message: "go", Provider: "claude"}, events.hook())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Text != "plain answer" || len(p.calls) != 2 || p.calls[1].tools != nil {
		t.Errorf("res = %+v, calls = %d", res, len(p.calls))
	}
	if !strings.Contains(strings.Join(events, ","), "provider_retry") {
		t.Errorf("events = %v", events)
	}
}

func TestProcess_AuthErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{
		id: "claude", strict: true,
		errs:    []error{schema.NewError(schema.KindAuth, "claude: HTTP 401: tools. invalid key", nil)},
		replies: []schema.UnifiedResponse{text("unused")},
	}
	e := newEngine(p, &fakeCatalog{tools: webTools}, nil, nil, noWhitelist())

	_, err := e.Process(context.Background(), TurnRequest{Message: "go", Provider: "claude"}, nil)
	if !errors.Is(err, schema.ErrAuth) || len(p.calls) != 1 {
		t.Fatalf("err = %v, calls = %d", err, len(p.calls))
	}
}

func TestResolveContextKey(t *testing.T) {
	cases := []struct{ provider, key, want string }{
		{"claude", "  sales ", "sales"},
		{"gemini", "", "webscraper-mcp"},
		{"other", " ", "default"},
	}
	for _, c := range cases {
		if got := resolveContextKey(c.provider, c.key); got != c.want {
			t.Errorf("resolveContextKey(%q, %q) = %q, want %q", c.provider, c.key, got, c.want)
		}
	}
}
