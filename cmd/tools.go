package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/mcpchat/internal/dependency"
	"github.com/crystaldolphin/mcpchat/internal/shared/cmdutils"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Connect to the configured MCP servers and list their tools",
	RunE:  runTools,
}

func runTools(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close(context.Background())

	if err := container.ConnectTools(ctx); err != nil {
		return err
	}
	registry := container.ToolRegistry()
	fmt.Printf("%s Connected %d of %d MCP servers", logo, container.MCPManager().Connected(), len(cfg.MCPServers))
	if names := registry.Providers(); len(names) > 0 {
		fmt.Printf(": %s", strings.Join(names, ", "))
	}
	fmt.Print("\n\n")
	cmdutils.PrintToolGroups(os.Stdout, registry.GroupedByOrigin())
	return nil
}
