// Package dependency wires core mcpchat services using go.uber.org/dig.
package dependency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	"github.com/crystaldolphin/mcpchat/internal/config"
	"github.com/crystaldolphin/mcpchat/internal/config/provider"
	"github.com/crystaldolphin/mcpchat/internal/contexts"
	"github.com/crystaldolphin/mcpchat/internal/mcp"
	"github.com/crystaldolphin/mcpchat/internal/metrics"
	"github.com/crystaldolphin/mcpchat/internal/orchestrator"
	"github.com/crystaldolphin/mcpchat/internal/providers"
	"github.com/crystaldolphin/mcpchat/internal/schema"
	"github.com/crystaldolphin/mcpchat/internal/status"
	"github.com/crystaldolphin/mcpchat/internal/tools"
	"github.com/crystaldolphin/mcpchat/internal/whitelist"
)

// ServiceContainer holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type ServiceContainer struct {
	cfg       *config.Config
	engine    *orchestrator.Engine
	registry  *tools.Registry
	mcpMgr    *mcp.Manager
	providers *providers.Factory
	policy    *whitelist.Policy
	source    whitelist.Source
	contexts  *contexts.Loader
	store     status.Store
	tracker   *status.Tracker
	promReg   *prometheus.Registry
}

func (c *ServiceContainer) Config() *config.Config                { return c.cfg }
func (c *ServiceContainer) Engine() *orchestrator.Engine          { return c.engine }
func (c *ServiceContainer) ToolRegistry() *tools.Registry         { return c.registry }
func (c *ServiceContainer) MCPManager() *mcp.Manager              { return c.mcpMgr }
func (c *ServiceContainer) Providers() *providers.Factory         { return c.providers }
func (c *ServiceContainer) Whitelist() *whitelist.Policy          { return c.policy }
func (c *ServiceContainer) WhitelistSource() whitelist.Source     { return c.source }
func (c *ServiceContainer) Contexts() *contexts.Loader            { return c.contexts }
func (c *ServiceContainer) StatusStore() status.Store             { return c.store }
func (c *ServiceContainer) Tracker() *status.Tracker              { return c.tracker }
func (c *ServiceContainer) MetricsRegistry() *prometheus.Registry { return c.promReg }

// ConnectTools bootstraps every configured MCP server into the registry.
func (c *ServiceContainer) ConnectTools(ctx context.Context) error {
	return c.mcpMgr.Connect(ctx, c.registry)
}

// Close releases tool connections and backend clients.
func (c *ServiceContainer) Close(ctx context.Context) error {
	c.registry.Close()
	var errs []error
	if closer, ok := c.source.(interface{ Close(context.Context) error }); ok {
		errs = append(errs, closer.Close(ctx))
	}
	if closer, ok := c.store.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// New builds and wires all core services from cfg. ctx bounds the backend
// connections made while wiring.
func New(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func() context.Context { return ctx }); err != nil {
		return nil, err
	}
	if err := d.Provide(newWhitelistSource); err != nil {
		return nil, err
	}
	if err := d.Provide(newWhitelistPolicy); err != nil {
		return nil, err
	}
	if err := d.Provide(tools.NewRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newMCPManager); err != nil {
		return nil, err
	}
	if err := d.Provide(newProviderFactory); err != nil {
		return nil, err
	}
	if err := d.Provide(newContextLoader); err != nil {
		return nil, err
	}
	if err := d.Provide(newStatusStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newTracker); err != nil {
		return nil, err
	}
	if err := d.Provide(newPrometheusRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newRecorder); err != nil {
		return nil, err
	}
	if err := d.Provide(newEngine); err != nil {
		return nil, err
	}

	var result *ServiceContainer
	err := d.Invoke(func(
		engine *orchestrator.Engine,
		registry *tools.Registry,
		mgr *mcp.Manager,
		factory *providers.Factory,
		policy *whitelist.Policy,
		source whitelist.Source,
		loader *contexts.Loader,
		store status.Store,
		tracker *status.Tracker,
		promReg *prometheus.Registry,
	) {
		result = &ServiceContainer{
			cfg:       cfg,
			engine:    engine,
			registry:  registry,
			mcpMgr:    mgr,
			providers: factory,
			policy:    policy,
			source:    source,
			contexts:  loader,
			store:     store,
			tracker:   tracker,
			promReg:   promReg,
		}
	})
	return result, err
}

// newWhitelistSource prefers MongoDB and falls back to the static list when no
// URI is configured. With neither, the source is empty and enforced turns fail.
// The Mongo client is dialed on first use.
func newWhitelistSource(cfg *config.Config) (whitelist.Source, error) {
	wl := cfg.Whitelist
	if wl.Mongo.URI != "" {
		src, err := whitelist.NewMongoSource(wl.Mongo.URI, wl.Mongo.Database, wl.Mongo.Collection)
		if err != nil {
			return nil, fmt.Errorf("whitelist source: %w", err)
		}
		if len(wl.Domains) > 0 {
			slog.Info("Whitelist static domains ignored, MongoDB is configured")
		}
		return src, nil
	}
	if len(wl.Domains) > 0 {
		return whitelist.StaticSource(wl.Domains), nil
	}
	if wl.Enabled {
		slog.Warn("Whitelist enforcement enabled without MongoDB or domains; enforced turns will fail")
	}
	return whitelist.StaticSource{}, nil
}

func newWhitelistPolicy(cfg *config.Config, src whitelist.Source) *whitelist.Policy {
	var opts []whitelist.Option
	if ttl := cfg.Whitelist.CacheTTL(); ttl > 0 {
		opts = append(opts, whitelist.WithTTL(ttl))
	}
	return whitelist.NewPolicy(src, opts...)
}

func newMCPManager(cfg *config.Config) *mcp.Manager {
	servers := make([]mcp.ServerConfig, 0, len(cfg.MCPServers))
	for _, s := range cfg.MCPServers {
		servers = append(servers, mcp.ServerConfig{
			Name:    s.Name,
			Type:    s.Type,
			Command: s.Command,
			Args:    s.Args,
			Env:     s.Env,
			URL:     s.URL,
			Headers: s.Headers,
		})
	}
	return mcp.NewManager(servers)
}

func newProviderFactory(cfg *config.Config) (*providers.Factory, error) {
	var ps []schema.LLMProvider
	for _, name := range provider.Names {
		pc := cfg.Providers.ByName(name)
		p, err := providers.New(name, providers.Params{
			APIKey:      pc.APIKey,
			APIBase:     pc.APIBase,
			Model:       pc.Model,
			MaxTokens:   pc.MaxTokens,
			Temperature: pc.Temperature,
		})
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return providers.NewFactory(ps...), nil
}

func newContextLoader(cfg *config.Config) *contexts.Loader {
	return contexts.NewLoader(cfg.ContextsFile)
}

func newStatusStore(ctx context.Context, cfg *config.Config) (status.Store, error) {
	if cfg.Status.RedisURL == "" {
		return status.NewMemoryStore(), nil
	}
	store, err := status.NewRedisStore(cfg.Status.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("redis status store: %w", err)
	}
	return store, nil
}

func newTracker(cfg *config.Config, store status.Store) *status.Tracker {
	var opts []status.TrackerOption
	if ttl := cfg.Status.TTL(); ttl > 0 {
		opts = append(opts, status.WithTTL(ttl))
	}
	return status.NewTracker(store, opts...)
}

func newPrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newRecorder(reg *prometheus.Registry) metrics.Recorder {
	return metrics.NewPrometheus(reg)
}

func newEngine(
	cfg *config.Config,
	factory *providers.Factory,
	registry *tools.Registry,
	loader *contexts.Loader,
	policy *whitelist.Policy,
	recorder metrics.Recorder,
) *orchestrator.Engine {
	return orchestrator.NewEngine(factory, registry, loader, policy, recorder, orchestrator.Options{
		MaxToolIterations: cfg.Orchestrator.MaxToolIterations,
		MaxHostsPerTurn:   cfg.Orchestrator.MaxHostsPerTurn,
		TrustedOrigin:     cfg.Orchestrator.TrustedOrigin,
		WhitelistEnabled:  cfg.Whitelist.Enabled,
		EnforcedProviders: cfg.Whitelist.EnforcedProviders,
	})
}
