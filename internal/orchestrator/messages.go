package orchestrator

import (
	"fmt"
	"strings"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

const (
	maxPolicyDomains = 120
	noTextFallback   = "No se recibió contenido de texto del proveedor."
)

func contextMessage(text string) schema.Message {
	return schema.NewUserMessage(strings.Join([]string{
		"CONTEXTO INICIAL DEL SISTEMA (NO lo repitas textualmente al usuario):",
		text,
		"Usa este contexto como guía para responder esta conversación.",
	}, "\n\n"))
}

func policyMessage(domains []string) schema.Message {
	visible := domains
	if len(visible) > maxPolicyDomains {
		visible = visible[:maxPolicyDomains]
	}
	lines := []string{
		"POLITICA DE ENFORCEMENT WHITELIST (OBLIGATORIA):",
		"Solo puedes consultar y citar fuentes dentro de estos dominios permitidos.",
		"Si una fuente no pertenece a esta lista, debes rechazarla como no autorizada.",
		"",
		"DOMINIOS_PERMITIDOS:",
	}
	for _, d := range visible {
		lines = append(lines, "- "+d)
	}
	if hidden := len(domains) - len(visible); hidden > 0 {
		lines = append(lines, fmt.Sprintf("- ... y %d dominios adicionales", hidden))
	}
	return schema.NewUserMessage(strings.Join(lines, "\n"))
}

// buildMessages assembles policy, context, history and the new message in
// that order. Any history role other than assistant is sent as user.
func buildMessages(policy, initial *schema.Message, history []schema.HistoryEntry, message string) schema.Messages {
	msgs := schema.NewMessages()
	for _, h := range history {
		if h.Role == string(schema.RoleAssistant) {
			msgs.AddAssistant(h.Content)
		} else {
			msgs.AddUser(h.Content)
		}
	}
	msgs.AddUser(message)
	if initial != nil {
		msgs.Prepend(*initial)
	}
	if policy != nil {
		msgs.Prepend(*policy)
	}
	return msgs
}

// appendToolTurn records one tool round. Strict providers get the raw
// assistant blocks and correlated tool_result blocks; the rest get a textual
// summary pair.
func appendToolTurn(msgs *schema.Messages, strict bool, resp schema.UnifiedResponse, uses []schema.ToolInvocationRequest, results []schema.ToolInvocationResult) {
	if strict {
		msgs.AddBlocks(schema.RoleAssistant, resp.Content)
		blocks := make([]schema.ContentBlock, 0, len(results))
		for _, r := range results {
			blocks = append(blocks, schema.ToolResultBlock(r))
		}
		msgs.AddBlocks(schema.RoleUser, blocks)
		return
	}

	names := make([]string, 0, len(uses))
	for _, u := range uses {
		names = append(names, u.Name)
	}
	msgs.AddAssistant(fmt.Sprintf("Llamé %d tool(s): %s", len(uses), strings.Join(names, ", ")))

	parts := make([]string, 0, len(results))
	for _, r := range results {
		status := "OK"
		if r.IsError {
			status = "ERROR"
		}
		parts = append(parts, fmt.Sprintf("Resultado Tool [%s] %s:\n%s", status, r.ToolName, r.Content))
	}
	msgs.AddUser(strings.Join(parts, "\n\n"))
}

func displayText(resp schema.UnifiedResponse) string {
	if text := resp.Text(); text != "" {
		return text
	}
	return noTextFallback
}
