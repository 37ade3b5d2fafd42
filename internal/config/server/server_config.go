package server

import (
	"net"
	"strconv"
)

// ServerConfig holds HTTP ingress settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{Host: "0.0.0.0", Port: 3000}
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
