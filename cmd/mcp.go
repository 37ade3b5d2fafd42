package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/mcpchat/internal/dependency"
	"github.com/crystaldolphin/mcpchat/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the chat engine as an MCP server over stdio",
	RunE:  runMCP,
}

func runMCP(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close(ctx)

	if err := container.ConnectTools(ctx); err != nil {
		return err
	}

	srv := mcpserver.NewServer(container.Engine(), container.Tracker(), container.ToolRegistry(), version)
	return srv.ServeStdio()
}
