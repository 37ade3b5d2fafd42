// Package config defines the configuration schema for mcpchat.
//
// JSON keys use camelCase. Every field has a default, so a config file only
// needs the values it changes.
package config

import (
	"time"

	"github.com/crystaldolphin/mcpchat/internal/config/provider"
	"github.com/crystaldolphin/mcpchat/internal/config/server"
)

// MongoConfig locates the collection holding allowed sources.
type MongoConfig struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// WhitelistConfig controls domain enforcement. Mongo is the source when its
// URI is set; Domains is the fallback list otherwise.
type WhitelistConfig struct {
	Enabled           bool        `json:"enabled"`
	Domains           []string    `json:"domains"`
	Mongo             MongoConfig `json:"mongo"`
	CacheTTLSeconds   int         `json:"cacheTtlSeconds"`
	EnforcedProviders []string    `json:"enforcedProviders"`
}

func defaultWhitelistConfig() WhitelistConfig {
	return WhitelistConfig{
		Enabled: true,
		Domains: []string{},
		Mongo: MongoConfig{
			Database:   "mcpchat",
			Collection: "Whitelisted",
		},
		CacheTTLSeconds:   60,
		EnforcedProviders: []string{provider.ProviderClaude, provider.ProviderOpenAI, provider.ProviderGemini},
	}
}

// CacheTTL returns the allow-list cache lifetime.
func (w WhitelistConfig) CacheTTL() time.Duration {
	return time.Duration(w.CacheTTLSeconds) * time.Second
}

// OrchestratorConfig bounds the tool loop.
type OrchestratorConfig struct {
	MaxToolIterations int    `json:"maxToolIterations"`
	MaxHostsPerTurn   int    `json:"maxHostsPerTurn"`
	TrustedOrigin     string `json:"trustedOrigin"`
}

func defaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxToolIterations: 8,
		MaxHostsPerTurn:   3,
		TrustedOrigin:     "mongodb",
	}
}

// MCPServerConfig describes one MCP server connection (stdio, http or docker).
type MCPServerConfig struct {
	Name    string            `json:"name"`
	Type    string            `json:"type,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// StatusConfig selects the status store. An empty RedisURL keeps records in
// memory.
type StatusConfig struct {
	TTLSeconds int    `json:"ttlSeconds"`
	RedisURL   string `json:"redisUrl"`
}

func defaultStatusConfig() StatusConfig {
	return StatusConfig{TTLSeconds: 300}
}

// TTL returns how long terminal records are kept.
func (s StatusConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// Config is the root configuration object.
type Config struct {
	Providers    provider.ProvidersConfig `json:"providers"`
	Whitelist    WhitelistConfig          `json:"whitelist"`
	Orchestrator OrchestratorConfig       `json:"orchestrator"`
	MCPServers   []MCPServerConfig        `json:"mcpServers"`
	Status       StatusConfig             `json:"status"`
	Server       server.ServerConfig      `json:"server"`
	ContextsFile string                   `json:"contextsFile"`
	LogLevel     string                   `json:"logLevel"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Providers:    provider.DefaultProvidersConfig(),
		Whitelist:    defaultWhitelistConfig(),
		Orchestrator: defaultOrchestratorConfig(),
		MCPServers:   []MCPServerConfig{},
		Status:       defaultStatusConfig(),
		Server:       server.DefaultServerConfig(),
		ContextsFile: "contexts.yaml",
		LogLevel:     "info",
	}
}
