package mcp

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/mcpchat/internal/schema"
	"github.com/crystaldolphin/mcpchat/internal/tools"
)

// Manager owns the lifecycle of all configured MCP server connections.
type Manager struct {
	servers      []ServerConfig
	dockerProbe  func(ctx context.Context) bool
	dial         func(ctx context.Context, cfg ServerConfig) (tools.Connection, error)
	once         sync.Once
	connectCount int
}

// NewManager returns a Manager for servers, in declaration order.
func NewManager(servers []ServerConfig) *Manager {
	return &Manager{
		servers:     servers,
		dockerProbe: DockerAvailable,
		dial: func(ctx context.Context, cfg ServerConfig) (tools.Connection, error) {
			c := newClient(cfg)
			if err := c.connect(ctx); err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

type connected struct {
	conn  tools.Connection
	descs []schema.ToolDescriptor
}

// Connect connects to every configured server in parallel and registers the
// discovered tools into reg in declaration order. A server that fails to
// connect or list its tools is logged and skipped; Connect only returns the
// context error. Subsequent calls are no-ops.
func (m *Manager) Connect(ctx context.Context, reg *tools.Registry) error {
	var err error
	m.once.Do(func() { err = m.connect(ctx, reg) })
	return err
}

func (m *Manager) connect(ctx context.Context, reg *tools.Registry) error {
	dockerOK := true
	for _, s := range m.servers {
		if s.transport() == TypeDocker {
			dockerOK = m.dockerProbe(ctx)
			if !dockerOK {
				slog.Warn("Docker not available, skipping docker MCP servers")
			}
			break
		}
	}

	results := make([]*connected, len(m.servers))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range m.servers {
		if cfg.transport() == TypeDocker && !dockerOK {
			slog.Info("MCP server skipped", "server", cfg.Name, "reason", "docker unavailable")
			continue
		}
		g.Go(func() error {
			conn, err := m.dial(gctx, cfg)
			if err != nil {
				slog.Error("MCP server connect failed", "server", cfg.Name, "err", err)
				return nil
			}
			descs, err := conn.ListTools(gctx)
			if err != nil {
				slog.Error("MCP server list_tools failed", "server", cfg.Name, "err", err)
				_ = conn.Close()
				return nil
			}
			results[i] = &connected{conn: conn, descs: descs}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r == nil {
			continue
		}
		reg.Register(r.conn, r.descs)
		m.connectCount++
		slog.Info("MCP server connected", "server", r.conn.Name(), "tools", len(r.descs))
	}
	return ctx.Err()
}

// Connected reports how many servers were registered by Connect.
func (m *Manager) Connected() int { return m.connectCount }
