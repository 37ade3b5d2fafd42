package mcp

import (
	"context"
	"os/exec"
	"time"
)

// DockerAvailable reports whether a Docker daemon answers `docker info`.
func DockerAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}
