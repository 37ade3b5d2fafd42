package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/crystaldolphin/mcpchat/internal/metrics"
	"github.com/crystaldolphin/mcpchat/internal/schema"
	"github.com/crystaldolphin/mcpchat/internal/shared/llmutils"
	"github.com/crystaldolphin/mcpchat/internal/whitelist"
)

// runToolLoop alternates provider calls and tool execution until the model
// answers without tool calls or the iteration bound is exhausted.
func (e *Engine) runToolLoop(ctx context.Context, t *turn) (schema.UnifiedResponse, error) {
	resp, err := e.send(ctx, t.provider, t.messages, t.tools)
	if err != nil {
		return schema.UnifiedResponse{}, err
	}

	for i := 0; i < e.opts.MaxToolIterations; i++ {
		uses := resp.ToolUses()
		if len(uses) == 0 {
			return resp, nil
		}

		t.onEvent.emit(EventToolExecuting, fmt.Sprintf("Ejecutando %d herramienta(s)", len(uses)))
		slog.Info("Tool round", "provider", t.provider.ID(), "iteration", i+1,
			"calls", llmutils.ToolHint(uses))

		results := make([]schema.ToolInvocationResult, 0, len(uses))
		for _, use := range uses {
			t.onEvent.emit(EventToolCall, "Tool: "+use.Name)

			if err := e.trackHosts(t, use); err != nil {
				return schema.UnifiedResponse{}, err
			}
			results = append(results, e.invoke(ctx, t, use))
		}

		appendToolTurn(&t.messages, t.strict, resp, uses, results)

		t.onEvent.emit(EventProviderProcessing, "Procesando resultados de tools")
		if resp, err = e.send(ctx, t.provider, t.messages, t.tools); err != nil {
			return schema.UnifiedResponse{}, err
		}
	}

	if !resp.HasToolUse() {
		return resp, nil
	}
	return schema.UnifiedResponse{}, schema.NewError(schema.KindToolLoopExceeded,
		"Se excedió el máximo de iteraciones de tools MCP.", nil)
}

// trackHosts adds the hostnames in use's arguments to the turn's visited set
// and fails once the set outgrows the per-turn limit.
func (e *Engine) trackHosts(t *turn, use schema.ToolInvocationRequest) error {
	for _, h := range whitelist.ExtractHostnames(use.Input) {
		if !slices.Contains(t.visited, h) {
			t.visited = append(t.visited, h)
		}
	}
	if len(t.visited) <= e.opts.MaxHostsPerTurn {
		return nil
	}
	msg := fmt.Sprintf("Enforcement Subdominios: se excedió el límite de %d subdominios por request. Visitados: %s",
		e.opts.MaxHostsPerTurn, strings.Join(t.visited, ", "))
	return &schema.Error{Kind: schema.KindHostLimit, Message: msg, Hosts: slices.Clone(t.visited)}
}

// invoke runs one tool call. Failures become error results so sibling calls
// still execute.
func (e *Engine) invoke(ctx context.Context, t *turn, use schema.ToolInvocationRequest) schema.ToolInvocationResult {
	failed := func(content string) schema.ToolInvocationResult {
		e.metrics.ToolCalled(use.Name, metrics.Outcome(false))
		return schema.ToolInvocationResult{
			ToolName:      use.Name,
			CorrelationID: use.ID,
			Content:       content,
			IsError:       true,
		}
	}

	if t.enforce && !e.trusted(use.Name) {
		v, err := e.whitelist.Validate(ctx, use.Input)
		if err != nil {
			return failed(fmt.Sprintf("Error ejecutando tool %s: %v", use.Name, err))
		}
		if !v.OK {
			e.metrics.WhitelistBlocked(len(v.BlockedHostnames))
			slog.Warn("Tool call blocked by whitelist", "tool", use.Name, "hosts", v.BlockedHostnames)
			return failed(fmt.Sprintf("Whitelist Enforcement: tool %q bloqueado por dominios no permitidos (%s).",
				use.Name, strings.Join(v.BlockedHostnames, ", ")))
		}
	}

	res, err := e.tools.Dispatch(ctx, use.Name, use.Input)
	if err != nil {
		slog.Warn("Tool dispatch failed", "tool", use.Name, "err", err)
		return failed(fmt.Sprintf("Error ejecutando tool %s: %v", use.Name, err))
	}
	res.ToolName = use.Name
	res.CorrelationID = use.ID
	e.metrics.ToolCalled(use.Name, metrics.Outcome(!res.IsError))
	return res
}

func (e *Engine) trusted(tool string) bool {
	if e.opts.TrustedOrigin == "" {
		return false
	}
	d, ok := e.tools.Lookup(tool)
	return ok && d.Origin == e.opts.TrustedOrigin
}
