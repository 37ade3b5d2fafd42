package mcp

// Transport types accepted in ServerConfig.Type.
const (
	TypeStdio  = "stdio"
	TypeHTTP   = "http"
	TypeDocker = "docker"
)

// ServerConfig holds the connection parameters for a single MCP server.
// Docker servers are stdio servers whose command starts a container; they
// are skipped when no Docker daemon is reachable.
type ServerConfig struct {
	Name    string
	Type    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string
	Headers map[string]string
}

// transport resolves the effective transport when Type is omitted.
func (c ServerConfig) transport() string {
	switch {
	case c.Type != "":
		return c.Type
	case c.URL != "":
		return TypeHTTP
	default:
		return TypeStdio
	}
}
