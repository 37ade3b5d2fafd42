package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

var (
	// ErrToolNotFound is returned by Dispatch for a name no provider advertises.
	ErrToolNotFound = errors.New("tool not found")
	// ErrProviderNotConnected is returned when the tool's owning connection dropped.
	ErrProviderNotConnected = errors.New("tool provider not connected")
)

// Connection is a live link to one tool provider.
type Connection interface {
	Name() string
	ListTools(ctx context.Context) ([]schema.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (schema.ToolOutput, error)
	Connected() bool
	Close() error
}

// ToolGroup is the diagnostic view of one provider's raw catalog.
type ToolGroup struct {
	Origin string                  `json:"origin"`
	Tools  []schema.ToolDescriptor `json:"tools"`
}

// Registry aggregates the catalogs of every connected tool provider.
// It owns the connections; readers only see copies of the catalog.
//
// Name collisions across providers are kept: lookups resolve to the first
// registered match.
type Registry struct {
	mu    sync.RWMutex
	order []string
	conns map[string]Connection
	tools []schema.ToolDescriptor
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Connection)}
}

// Register adds conn and its descriptors. Descriptors are re-tagged with the
// connection name as origin.
func (r *Registry) Register(conn Connection, descriptors []schema.ToolDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := conn.Name()
	if _, exists := r.conns[name]; !exists {
		r.order = append(r.order, name)
	}
	r.conns[name] = conn

	for _, d := range descriptors {
		d.Origin = name
		if prev, ok := r.lookupLocked(d.Name); ok && d.Name != "" {
			slog.Warn("Tool name collision, first registration wins",
				"tool", d.Name, "kept", prev.Origin, "shadowed", name)
		}
		r.tools = append(r.tools, d)
	}
}

// ListTools returns the flat catalog in registration order.
func (r *Registry) ListTools() []schema.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.ToolDescriptor, len(r.tools))
	copy(out, r.tools)
	return out
}

// StrictTools returns the catalog with normalized schemas, dropping tools
// whose name is blank.
func (r *Registry) StrictTools() []schema.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.ToolDescriptor, 0, len(r.tools))
	for _, d := range r.tools {
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		out = append(out, schema.ToolDescriptor{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: NormalizeSchema(d.InputSchema),
			Origin:      d.Origin,
		})
	}
	return out
}

// GroupedByOrigin returns the raw descriptors grouped per provider, in
// registration order.
func (r *Registry) GroupedByOrigin() []ToolGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := make(map[string]int, len(r.order))
	groups := make([]ToolGroup, 0, len(r.order))
	for _, d := range r.tools {
		origin := d.Origin
		if origin == "" {
			origin = "unknown"
		}
		i, ok := idx[origin]
		if !ok {
			i = len(groups)
			idx[origin] = i
			groups = append(groups, ToolGroup{Origin: origin})
		}
		groups[i].Tools = append(groups[i].Tools, d)
	}
	return groups
}

// Lookup returns the first descriptor registered under name.
func (r *Registry) Lookup(name string) (schema.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(name)
}

func (r *Registry) lookupLocked(name string) (schema.ToolDescriptor, bool) {
	for _, d := range r.tools {
		if d.Name == name {
			return d, true
		}
	}
	return schema.ToolDescriptor{}, false
}

// Providers returns the registered connection names in registration order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Dispatch forwards a call to the provider owning name.
func (r *Registry) Dispatch(ctx context.Context, name string, input map[string]any) (schema.ToolInvocationResult, error) {
	r.mu.RLock()
	desc, ok := r.lookupLocked(name)
	conn := r.conns[desc.Origin]
	r.mu.RUnlock()

	if !ok {
		return schema.ToolInvocationResult{}, schema.NewError(schema.KindToolProvider,
			fmt.Sprintf("tool %q", name), ErrToolNotFound)
	}
	if conn == nil || !conn.Connected() {
		return schema.ToolInvocationResult{}, schema.NewError(schema.KindToolProvider,
			fmt.Sprintf("provider %q", desc.Origin), ErrProviderNotConnected)
	}
	if input == nil {
		input = map[string]any{}
	}

	out, err := conn.CallTool(ctx, name, input)
	if err != nil {
		return schema.ToolInvocationResult{}, schema.NewError(schema.KindToolProvider,
			fmt.Sprintf("call %s/%s", desc.Origin, name), err)
	}
	return schema.ToolInvocationResult{
		ToolName: name,
		Content:  out.Content,
		IsError:  out.IsError,
	}, nil
}

// Close closes every connection. Errors are logged.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		if err := r.conns[name].Close(); err != nil {
			slog.Warn("Tool provider close failed", "provider", name, "err", err)
		}
	}
	r.conns = make(map[string]Connection)
	r.order = nil
	r.tools = nil
}
