package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/crystaldolphin/mcpchat/internal/config/provider"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides file values with environment variables. Malformed
// numeric values are logged and ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, min int, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < min {
			slog.Warn("Ignoring invalid environment value", "key", key, "value", v)
			return
		}
		*dst = n
	}

	str("ANTHROPIC_API_KEY", &c.Providers.Claude.APIKey)
	str("OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	str("GOOGLE_API_KEY", &c.Providers.Gemini.APIKey)

	str("MONGODB_URI", &c.Whitelist.Mongo.URI)
	str("MONGODB_DB_NAME", &c.Whitelist.Mongo.Database)
	str("MONGODB_WHITELIST_COLLECTION", &c.Whitelist.Mongo.Collection)
	if v, ok := lookup("WHITELIST_DOMAINS"); ok && strings.TrimSpace(v) != "" {
		c.Whitelist.Domains = splitList(v)
	}
	if v, ok := lookup("WHITELIST_ENFORCEMENT_ENABLED"); ok {
		c.Whitelist.Enabled = strings.ToLower(strings.TrimSpace(v)) != "false"
	}
	num("MAX_SUBDOMAINS_PER_REQUEST", 1, &c.Orchestrator.MaxHostsPerTurn)

	num("PORT", 1, &c.Server.Port)
	str("REDIS_URL", &c.Status.RedisURL)
	str("CONTEXTS_FILE", &c.ContextsFile)
	str("LOG_LEVEL", &c.LogLevel)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the settings required to serve requests.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Providers.Configured()) == 0 {
		errs = append(errs, fmt.Errorf("no provider API key configured (set one of %s in %s)",
			strings.Join(provider.Names, ", "), ConfigPath()))
	}
	if c.Orchestrator.MaxToolIterations < 1 {
		errs = append(errs, errors.New("orchestrator.maxToolIterations must be at least 1"))
	}
	if c.Orchestrator.MaxHostsPerTurn < 1 {
		errs = append(errs, errors.New("orchestrator.maxHostsPerTurn must be at least 1"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	seen := make(map[string]bool, len(c.MCPServers))
	for i, s := range c.MCPServers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcpServers[%d]: name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("mcpServers[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
	}
	return errors.Join(errs...)
}
